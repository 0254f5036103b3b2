package chunker

// SpanKind 原子区域的类型
type SpanKind string

const (
	// SpanCode 代码围栏区域
	SpanCode SpanKind = "code"
	// SpanTable 表格区域
	SpanTable SpanKind = "table"
	// SpanMath 数学公式区域（$$块或LaTeX环境）
	SpanMath SpanKind = "math"
)

// AtomicSpan 不可分割的原子区域
// 是解析树中所有不可跨块拆分区域的扁平化视图，按起始行排序
// 同类型的区域之间不会重叠；未闭合的区域延伸至文档末尾且IsClosed为false
type AtomicSpan struct {
	Kind        SpanKind `json:"kind"`
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
	StartOffset int      `json:"start_offset"`
	EndOffset   int      `json:"end_offset"`
	Size        int      `json:"size"`
	IsClosed    bool     `json:"is_closed"`
}

// ContainsLine 判断指定行是否落在区域内
func (s *AtomicSpan) ContainsLine(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// IntersectsRange 判断[startLine, endLine]是否与区域部分相交
// 完全包含不算部分相交
func (s *AtomicSpan) IntersectsRange(startLine, endLine int) bool {
	if s.EndLine < startLine || s.StartLine > endLine {
		return false
	}
	// 完全包含在范围内时不算违规
	if s.StartLine >= startLine && s.EndLine <= endLine {
		return false
	}
	return true
}

// spanAtLine 查找覆盖指定行的第一个原子区域
func spanAtLine(spans []AtomicSpan, line int) *AtomicSpan {
	for i := range spans {
		if spans[i].ContainsLine(line) {
			return &spans[i]
		}
	}
	return nil
}
