package chunker

import "sort"

// Position 文本中的位置信息
// 行号和列号从1开始，字节偏移从0开始
type Position struct {
	Line   int `json:"line"`   // 行号（1-based）
	Column int `json:"column"` // 列号（1-based）
	Offset int `json:"offset"` // 字节偏移（0-based）
}

// lineIndex 预计算的行偏移索引
// 用于O(log n)的偏移到位置转换
type lineIndex struct {
	text   string
	starts []int // 每行起始的字节偏移
}

// newLineIndex 为规范化后的文本构建行索引
// 文本必须已经统一为\n换行符
func newLineIndex(text string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{text: text, starts: starts}
}

// lineCount 返回文本总行数
func (li *lineIndex) lineCount() int {
	// 末尾换行符不会产生额外的一行
	if len(li.text) > 0 && li.text[len(li.text)-1] == '\n' {
		return len(li.starts) - 1
	}
	return len(li.starts)
}

// lineStart 返回指定行（1-based）的起始字节偏移
func (li *lineIndex) lineStart(line int) int {
	if line < 1 {
		line = 1
	}
	if line > len(li.starts) {
		return len(li.text)
	}
	return li.starts[line-1]
}

// lineEnd 返回指定行（1-based）内容结束的字节偏移（不含换行符）
func (li *lineIndex) lineEnd(line int) int {
	if line < 1 {
		return 0
	}
	if line >= len(li.starts) {
		return len(li.text)
	}
	end := li.starts[line] - 1
	if end < 0 {
		end = 0
	}
	return end
}

// line 返回指定行（1-based）的内容，不含换行符
func (li *lineIndex) line(n int) string {
	start := li.lineStart(n)
	end := li.lineEnd(n)
	if start > end {
		return ""
	}
	return li.text[start:end]
}

// slice 返回[startLine, endLine]（均为1-based，闭区间）的原始文本
// 不含最后一行的换行符
func (li *lineIndex) slice(startLine, endLine int) string {
	start := li.lineStart(startLine)
	end := li.lineEnd(endLine)
	if start > end {
		return ""
	}
	return li.text[start:end]
}

// position 将字节偏移转换为位置信息
func (li *lineIndex) position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.text) {
		offset = len(li.text)
	}
	// 二分查找所在行
	line := sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	})
	return Position{
		Line:   line,
		Column: offset - li.starts[line-1] + 1,
		Offset: offset,
	}
}
