package chunker

import (
	"strings"
	"unicode/utf8"
)

// overlapManager 重叠管理器
// 为每个块（首块除外）前置上一块的尾部上下文
type overlapManager struct {
	cfg   *ChunkConfig
	spans []AtomicSpan
}

func newOverlapManager(cfg *ChunkConfig, spans []AtomicSpan) *overlapManager {
	return &overlapManager{cfg: cfg, spans: spans}
}

// apply 对分块序列应用重叠
// 重叠永不从原子区域或单词中间开始；行号范围保持不变，
// 重叠只体现在内容和元数据上
func (m *overlapManager) apply(chunks []*Chunk) []*Chunk {
	if !m.cfg.EnableOverlap || len(chunks) <= 1 {
		return chunks
	}

	// 先记录每个块的原始内容，重叠只取自未修改的前块
	originals := make([]string, len(chunks))
	for i, c := range chunks {
		originals[i] = c.Content
	}

	for i := 1; i < len(chunks); i++ {
		c := chunks[i]
		prev := chunks[i-1]

		limit := m.cfg.OverlapSize
		byPercent := int(float64(c.Size()) * m.cfg.OverlapPercentage)
		if byPercent < limit {
			limit = byPercent
		}
		if limit <= 0 {
			continue
		}

		overlap := m.tailContext(originals[i-1], prev, limit)
		if strings.TrimSpace(overlap) == "" {
			continue
		}

		c.Content = overlap + "\n" + c.Content
		c.Metadata.HasOverlap = true
		c.Metadata.OverlapSize = len(overlap) + 1
		c.Metadata.OverlapType = "previous_tail"
	}
	return chunks
}

// tailContext 截取前块尾部的上下文
// 截取点回退到最近的单词边界，且不落在闭合的原子区域内部
func (m *overlapManager) tailContext(content string, prev *Chunk, limit int) string {
	if limit >= len(content) {
		// 前块整体作为上下文时无需调整边界
		return content
	}

	cut := len(content) - limit
	// 对齐到rune边界
	for cut < len(content) && !utf8.RuneStart(content[cut]) {
		cut++
	}

	// 截取点落在原子区域内部时，前移到区域结束之后
	cutLine := prev.StartLine + strings.Count(content[:cut], "\n")
	for _, span := range m.spans {
		if !span.IsClosed {
			continue
		}
		if cutLine > span.StartLine && cutLine <= span.EndLine {
			// 跳到区域后的第一行行首
			target := span.EndLine + 1 - prev.StartLine
			pos := 0
			for n := 0; n < target && pos < len(content); {
				if content[pos] == '\n' {
					n++
				}
				pos++
			}
			cut = pos
			break
		}
	}
	if cut >= len(content) {
		return ""
	}

	// 回退到单词边界：跳到下一个空白后的第一个非空白字符
	rest := content[cut:]
	if idx := strings.IndexAny(rest, " \t\n"); idx >= 0 && cut > 0 {
		rest = strings.TrimLeft(rest[idx:], " \t\n")
	}
	return rest
}
