package chunker

import (
	"regexp"
	"strings"
)

// logicalBlock 打包器消费的原子逻辑块
// 块是文档中一段连续的行范围，原子块永不跨块边界拆分
type logicalBlock struct {
	kind        ElementKind
	startLine   int
	endLine     int
	size        int // 行范围的字符数
	atomic      bool
	language    string
	headerLevel int
	sectionPath []string
	hasURL      bool
	urlPool     bool
}

var urlPattern = regexp.MustCompile(`https?://[^\s)]+|www\.[^\s)]+`)

// extractBlocks 按文档顺序把元素树展平为逻辑块序列
// 遍历时用显式的标题路径栈，避免模块级共享状态
func extractBlocks(parsed *ParseResult, cfg *ChunkConfig) []logicalBlock {
	var blocks []logicalBlock
	var walk func(el *Element, path []string)

	walk = func(el *Element, path []string) {
		for _, child := range el.Children {
			switch child.Kind {
			case KindHeader:
				childPath := append(append([]string{}, path...), child.Content)
				blocks = append(blocks, logicalBlock{
					kind:        KindHeader,
					startLine:   child.Start.Line,
					endLine:     child.End.Line,
					size:        blockSize(parsed.Index, child.Start.Line, child.End.Line),
					headerLevel: child.Level,
					sectionPath: childPath,
				})
				walk(child, childPath)
			case KindCodeBlock:
				blocks = append(blocks, logicalBlock{
					kind:        KindCodeBlock,
					startLine:   child.Start.Line,
					endLine:     child.End.Line,
					size:        blockSize(parsed.Index, child.Start.Line, child.End.Line),
					atomic:      cfg.PreserveAtomicBlocks,
					language:    child.Language,
					sectionPath: path,
				})
			case KindTable:
				blocks = append(blocks, logicalBlock{
					kind:        KindTable,
					startLine:   child.Start.Line,
					endLine:     child.End.Line,
					size:        blockSize(parsed.Index, child.Start.Line, child.End.Line),
					atomic:      cfg.PreserveAtomicBlocks,
					sectionPath: path,
				})
			case KindDisplayMath, KindMathEnv:
				blocks = append(blocks, logicalBlock{
					kind:        child.Kind,
					startLine:   child.Start.Line,
					endLine:     child.End.Line,
					size:        blockSize(parsed.Index, child.Start.Line, child.End.Line),
					atomic:      cfg.PreserveAtomicBlocks,
					sectionPath: path,
				})
			case KindParagraph, KindList, KindBlockquote, KindText:
				blocks = append(blocks, logicalBlock{
					kind:        child.Kind,
					startLine:   child.Start.Line,
					endLine:     child.End.Line,
					size:        blockSize(parsed.Index, child.Start.Line, child.End.Line),
					sectionPath: path,
					hasURL:      urlPattern.MatchString(child.Content),
				})
			}
		}
	}

	walk(parsed.Root, nil)
	return blocks
}

// blockSize 计算行范围的字符数
func blockSize(index *lineIndex, startLine, endLine int) int {
	return index.lineEnd(endLine) - index.lineStart(startLine)
}

// packOptions 打包选项
type packOptions struct {
	strategy     string
	contentType  string
	sectionFlush bool // 标题边界强制截断（结构化策略使用）
}

// blockPacker 贪心块打包器
// 被所有内容感知策略共享
type blockPacker struct {
	cfg   *ChunkConfig
	index *lineIndex
}

func newBlockPacker(cfg *ChunkConfig, index *lineIndex) *blockPacker {
	return &blockPacker{cfg: cfg, index: index}
}

// pack 单遍贪心打包：按文档顺序组装逻辑块为大小受限的分块
func (p *blockPacker) pack(blocks []logicalBlock, opts packOptions) ([]*Chunk, error) {
	blocks = poolURLBlocks(blocks, p.index)

	var chunks []*Chunk
	var cur []logicalBlock

	sizeWith := func(b logicalBlock) int {
		if len(cur) == 0 {
			return b.size
		}
		return p.index.lineEnd(b.endLine) - p.index.lineStart(cur[0].startLine)
	}
	curSize := func() int {
		if len(cur) == 0 {
			return 0
		}
		return p.index.lineEnd(cur[len(cur)-1].endLine) - p.index.lineStart(cur[0].startLine)
	}
	flush := func() error {
		if len(cur) == 0 {
			return nil
		}
		chunk, err := p.emit(cur, opts, "")
		if err != nil {
			return err
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
		cur = nil
		return nil
	}

	for _, b := range blocks {
		// 结构化策略在标题边界强制截断
		if opts.sectionFlush && b.kind == KindHeader {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		// 运行块达到目标大小后在块边界截断，而不是一路填到上限
		if p.cfg.TargetChunkSize > 0 && curSize() >= p.cfg.TargetChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		// 原子块或即将超限时先冲刷运行块
		if (b.atomic || sizeWith(b) > p.cfg.MaxChunkSize) && len(cur) > 0 {
			if err := flush(); err != nil {
				return nil, err
			}
		}

		// 单块自身超限：作为独立的超限块发出，绝不拆分
		// 原子块始终携带完整性原因；非原子块仅在容差范围内标记为对齐容忍，
		// 超出容差的不打标记，由校验器记录超限警告
		if b.size > p.cfg.MaxChunkSize {
			chunk, err := p.emit([]logicalBlock{b}, opts, p.oversizeReason(b))
			if err != nil {
				return nil, err
			}
			if chunk != nil {
				chunks = append(chunks, chunk)
			}
			continue
		}

		cur = append(cur, b)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	chunks = p.mergeSmallChunks(chunks, opts)

	// 重新编号并生成section id
	for i, c := range chunks {
		c.Metadata.ChunkIndex = i
		c.Metadata.SectionID = sectionSlug(c.Metadata.SectionPath)
	}
	return chunks, nil
}

// emit 由一组逻辑块构造分块
// 内容取行范围的原始文本切片，保证拼接可还原输入
func (p *blockPacker) emit(group []logicalBlock, opts packOptions, reason string) (*Chunk, error) {
	startLine := group[0].startLine
	endLine := group[len(group)-1].endLine
	content := p.index.slice(startLine, endLine)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	md := ChunkMetadata{
		Strategy:    opts.strategy,
		ContentType: opts.contentType,
		SectionPath: group[0].sectionPath,
	}
	for _, b := range group {
		if b.kind == KindCodeBlock && b.language != "" {
			md.Language = b.language
			break
		}
	}
	if reason != "" {
		md.AllowOversize = true
		md.OversizeReason = reason
	}
	return NewChunk(content, startLine, endLine, md)
}

// oversizeReason 根据块类型返回超限原因代码
// 非原子块超出 max×(1+OversizeTolerance) 时返回空串，表示不允许超限
func (p *blockPacker) oversizeReason(b logicalBlock) string {
	if b.atomic {
		switch b.kind {
		case KindCodeBlock:
			return OversizeCodeBlock
		case KindTable:
			return OversizeTable
		case KindDisplayMath, KindMathEnv:
			return OversizeLatex
		default:
			return OversizeBlockAlignment
		}
	}
	tolerated := float64(p.cfg.MaxChunkSize) * (1 + p.cfg.OversizeTolerance)
	if float64(b.size) <= tolerated {
		return OversizeBlockAlignment
	}
	return ""
}

// poolURLBlocks 合并连续的URL段落为单个“URL池”伪块
// 至少3个连续的含URL段落才会合并，引用链接簇不会被打散
func poolURLBlocks(blocks []logicalBlock, index *lineIndex) []logicalBlock {
	var result []logicalBlock
	i := 0
	for i < len(blocks) {
		if blocks[i].kind == KindParagraph && blocks[i].hasURL {
			j := i
			for j < len(blocks) && blocks[j].kind == KindParagraph && blocks[j].hasURL {
				j++
			}
			if j-i >= 3 {
				pooled := logicalBlock{
					kind:        KindParagraph,
					startLine:   blocks[i].startLine,
					endLine:     blocks[j-1].endLine,
					size:        blockSize(index, blocks[i].startLine, blocks[j-1].endLine),
					atomic:      true,
					sectionPath: blocks[i].sectionPath,
					hasURL:      true,
					urlPool:     true,
				}
				result = append(result, pooled)
				i = j
				continue
			}
		}
		result = append(result, blocks[i])
		i++
	}
	return result
}

// mergeSmallChunks 合并低于下限的小块
// 只在不跨越章节边界且不超出上限时向前/向后合并；
// 无法合并的小块按结构强度决定是否打上small_chunk标记
func (p *blockPacker) mergeSmallChunks(chunks []*Chunk, opts packOptions) []*Chunk {
	if p.cfg.MinChunkSize <= 0 || len(chunks) <= 1 {
		return chunks
	}

	merged := make([]*Chunk, 0, len(chunks))
	for i := 0; i < len(chunks); i++ {
		c := chunks[i]
		if c.Size() >= p.cfg.MinChunkSize || c.Metadata.AllowOversize {
			merged = append(merged, c)
			continue
		}

		// 优先向前合并到上一个块
		if len(merged) > 0 {
			prev := merged[len(merged)-1]
			if samePath(prev.Metadata.SectionPath, c.Metadata.SectionPath) && !prev.Metadata.AllowOversize {
				combined := p.index.lineEnd(c.EndLine) - p.index.lineStart(prev.StartLine)
				if combined <= p.cfg.MaxChunkSize {
					merged[len(merged)-1] = p.combine(prev, c)
					continue
				}
			}
		}

		// 向后合并到下一个块
		if i+1 < len(chunks) {
			next := chunks[i+1]
			if samePath(next.Metadata.SectionPath, c.Metadata.SectionPath) && !next.Metadata.AllowOversize {
				combined := p.index.lineEnd(next.EndLine) - p.index.lineStart(c.StartLine)
				if combined <= p.cfg.MaxChunkSize {
					chunks[i+1] = p.combine(c, next)
					continue
				}
			}
		}

		// 无法合并时做结构强度评估
		if !hasStructuralStrength(c.Content) {
			c.Metadata.SmallChunk = true
		}
		merged = append(merged, c)
	}
	return merged
}

// combine 合并两个相邻分块
func (p *blockPacker) combine(a, b *Chunk) *Chunk {
	md := a.Metadata
	if md.Language == "" {
		md.Language = b.Metadata.Language
	}
	return &Chunk{
		Content:   p.index.slice(a.StartLine, b.EndLine),
		StartLine: a.StartLine,
		EndLine:   b.EndLine,
		Metadata:  md,
	}
}

// samePath 判断两个section path是否指向同一章节
func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hasStructuralStrength 评估小块的结构强度
// 含2/3级标题、至少2个段落间隔、至少3个非标题行或超过100个非标题字符
// 的小块被认为结构完整，不打标记
func hasStructuralStrength(content string) bool {
	lines := strings.Split(content, "\n")
	nonHeaderLines := 0
	nonHeaderChars := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") || strings.HasPrefix(trimmed, "### ") {
			return true
		}
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			nonHeaderLines++
			nonHeaderChars += len(trimmed)
		}
	}
	if strings.Count(content, "\n\n") >= 2 {
		return true
	}
	return nonHeaderLines >= 3 || nonHeaderChars > 100
}
