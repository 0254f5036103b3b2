package chunker

import (
	"strings"
	"unicode/utf8"
)

// codeStrategy 代码为主文档的分块策略
// 代码块保持原子性，围绕代码围栏组织分块
type codeStrategy struct{}

func (s *codeStrategy) Name() string  { return StrategyCode }
func (s *codeStrategy) Priority() int { return 1 }

func (s *codeStrategy) CanHandle(a *ContentAnalysis, cfg *ChunkConfig) bool {
	return a.CodeRatio >= cfg.CodeRatioThreshold && a.CodeBlockCount >= cfg.MinCodeBlocks
}

func (s *codeStrategy) Quality(a *ContentAnalysis) float64 {
	return clamp01(a.CodeRatio + float64(a.CodeBlockCount)*0.02)
}

func (s *codeStrategy) Apply(parsed *ParseResult, a *ContentAnalysis, cfg *ChunkConfig) ([]*Chunk, error) {
	return applyPacked(parsed, a, cfg, s.Name(), false)
}

// tableStrategy 表格为主文档的分块策略
type tableStrategy struct{}

func (s *tableStrategy) Name() string  { return StrategyTable }
func (s *tableStrategy) Priority() int { return 2 }

func (s *tableStrategy) CanHandle(a *ContentAnalysis, cfg *ChunkConfig) bool {
	return a.TableRatio >= cfg.TableRatioThreshold && a.TableCount >= cfg.MinTables
}

func (s *tableStrategy) Quality(a *ContentAnalysis) float64 {
	return clamp01(a.TableRatio + float64(a.TableCount)*0.05)
}

func (s *tableStrategy) Apply(parsed *ParseResult, a *ContentAnalysis, cfg *ChunkConfig) ([]*Chunk, error) {
	return applyPacked(parsed, a, cfg, s.Name(), false)
}

// structuralStrategy 标题层级分明文档的分块策略
// 在标题边界强制截断，分块贴合章节结构
type structuralStrategy struct{}

func (s *structuralStrategy) Name() string  { return StrategyStructural }
func (s *structuralStrategy) Priority() int { return 3 }

func (s *structuralStrategy) CanHandle(a *ContentAnalysis, cfg *ChunkConfig) bool {
	return a.HeaderCount >= cfg.HeaderCountThreshold && a.MaxHeaderDepth > 1
}

func (s *structuralStrategy) Quality(a *ContentAnalysis) float64 {
	return clamp01(float64(a.HeaderCount)*0.08 + float64(a.MaxHeaderDepth)*0.1)
}

func (s *structuralStrategy) Apply(parsed *ParseResult, a *ContentAnalysis, cfg *ChunkConfig) ([]*Chunk, error) {
	return applyPacked(parsed, a, cfg, s.Name(), true)
}

// mixedStrategy 混合内容文档的分块策略
type mixedStrategy struct{}

func (s *mixedStrategy) Name() string  { return StrategyMixed }
func (s *mixedStrategy) Priority() int { return 4 }

func (s *mixedStrategy) CanHandle(a *ContentAnalysis, cfg *ChunkConfig) bool {
	dominant := a.CodeRatio >= 0.6 || a.ListRatio >= 0.6 || a.TableRatio >= 0.6 || a.TextRatio >= 0.6
	return !dominant && a.ComplexityScore >= cfg.MinComplexity
}

func (s *mixedStrategy) Quality(a *ContentAnalysis) float64 {
	q := a.ComplexityScore
	if a.HasMixedContent {
		q += 0.2
	}
	return clamp01(q)
}

func (s *mixedStrategy) Apply(parsed *ParseResult, a *ContentAnalysis, cfg *ChunkConfig) ([]*Chunk, error) {
	return applyPacked(parsed, a, cfg, s.Name(), false)
}

// listStrategy 列表为主文档的分块策略
// 已知该策略会丢弃非列表内容，严格模式的自动选择排除它，只能显式指定
type listStrategy struct{}

func (s *listStrategy) Name() string  { return StrategyList }
func (s *listStrategy) Priority() int { return 5 }

func (s *listStrategy) CanHandle(a *ContentAnalysis, cfg *ChunkConfig) bool {
	return a.ListRatio >= cfg.ListRatioThreshold && a.ListItemCount >= cfg.MinListItems
}

func (s *listStrategy) Quality(a *ContentAnalysis) float64 {
	return clamp01(a.ListRatio + float64(a.NestedListDepth)*0.05)
}

func (s *listStrategy) Apply(parsed *ParseResult, a *ContentAnalysis, cfg *ChunkConfig) ([]*Chunk, error) {
	return applyPacked(parsed, a, cfg, s.Name(), false)
}

// sentenceStrategy 句子/段落级的兜底策略
// 对任何非空文本都适用且保证成功，优先级最低
type sentenceStrategy struct{}

func (s *sentenceStrategy) Name() string  { return StrategySentence }
func (s *sentenceStrategy) Priority() int { return 6 }

func (s *sentenceStrategy) CanHandle(a *ContentAnalysis, cfg *ChunkConfig) bool {
	return true
}

func (s *sentenceStrategy) Quality(a *ContentAnalysis) float64 {
	return clamp01(a.TextRatio * 0.8)
}

func (s *sentenceStrategy) Apply(parsed *ParseResult, a *ContentAnalysis, cfg *ChunkConfig) ([]*Chunk, error) {
	blocks := extractBlocks(parsed, cfg)
	// 超限的非原子块先按行拆成句子边界的子块，原子块保持完整
	blocks = splitOversizeBlocks(blocks, parsed.Index, cfg)
	packer := newBlockPacker(cfg, parsed.Index)
	return packer.pack(blocks, packOptions{
		strategy:    s.Name(),
		contentType: a.ContentType,
	})
}

// splitOversizeBlocks 把超限的非原子块按行边界拆分
// 尽量在句末标点结束的行收束，避免句子被截断
func splitOversizeBlocks(blocks []logicalBlock, index *lineIndex, cfg *ChunkConfig) []logicalBlock {
	var result []logicalBlock
	for _, b := range blocks {
		if b.atomic || b.size <= cfg.MaxChunkSize || b.startLine == b.endLine {
			result = append(result, b)
			continue
		}

		start := b.startLine
		for start <= b.endLine {
			end := start
			// 贪心扩展直到下一行会超限
			for end < b.endLine {
				next := index.lineEnd(end+1) - index.lineStart(start)
				if next > cfg.MaxChunkSize {
					break
				}
				end++
			}
			// 在句末标点结束的行收束（保留至少一行）
			cut := end
			for cut > start && !endsWithSentenceBreak(index.line(cut)) {
				cut--
			}
			if cut > start {
				end = cut
			}
			result = append(result, logicalBlock{
				kind:        b.kind,
				startLine:   start,
				endLine:     end,
				size:        blockSize(index, start, end),
				sectionPath: b.sectionPath,
			})
			start = end + 1
		}
	}
	return result
}

// endsWithSentenceBreak 判断行是否以句末标点结束
func endsWithSentenceBreak(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	switch last {
	case '.', '!', '?', ';', ':', '。', '！', '？', '；':
		return true
	}
	return false
}
