package chunker

import (
	"math"
	"strings"
)

// 内容类型分类结果
const (
	ContentTypeCodeHeavy  = "code_heavy"
	ContentTypeListHeavy  = "list_heavy"
	ContentTypeTableHeavy = "table_heavy"
	ContentTypeMixed      = "mixed"
	ContentTypePrimary    = "primary"
)

// 前导区分类结果
const (
	PreambleIntroduction = "introduction"
	PreambleSummary      = "summary"
	PreambleMetadata     = "metadata"
)

// PreambleInfo 文档前导区信息（第一个标题之前的内容）
type PreambleInfo struct {
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Kind      string `json:"kind"`    // introduction | summary | metadata
	Content   string `json:"content"` // 前导区原始文本
}

// ContentAnalysis 文档内容的量化分析快照
// 创建后不可变，各类型字符占比之和恒为1.0（±舍入误差）
type ContentAnalysis struct {
	TotalChars int `json:"total_chars"`
	TotalLines int `json:"total_lines"`

	CodeRatio  float64 `json:"code_ratio"`
	ListRatio  float64 `json:"list_ratio"`
	TableRatio float64 `json:"table_ratio"`
	TextRatio  float64 `json:"text_ratio"`

	CodeBlockCount int `json:"code_block_count"`
	ListCount      int `json:"list_count"`
	ListItemCount  int `json:"list_item_count"`
	TableCount     int `json:"table_count"`
	HeaderCount    int `json:"header_count"`
	ParagraphCount int `json:"paragraph_count"`

	MaxHeaderDepth  int `json:"max_header_depth"`
	NestedListDepth int `json:"nested_list_depth"`

	ComplexityScore float64 `json:"complexity_score"` // [0,1]
	ContentType     string  `json:"content_type"`
	HasMixedContent bool    `json:"has_mixed_content"`

	Languages map[string]int `json:"languages,omitempty"` // 代码语言标签及出现次数
	Preamble  *PreambleInfo  `json:"preamble,omitempty"`
}

// Analyzer 内容分析器
type Analyzer struct{}

// NewAnalyzer 创建新的内容分析器
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze 从解析结果计算内容分析快照
func (a *Analyzer) Analyze(parsed *ParseResult) *ContentAnalysis {
	analysis := &ContentAnalysis{
		TotalChars: len(parsed.Text),
		TotalLines: parsed.TotalLines(),
		Languages:  make(map[string]int),
	}

	// 按字符数统计各类型占比
	var codeChars, listChars, tableChars int
	parsed.Root.Walk(func(el *Element) bool {
		switch el.Kind {
		case KindCodeBlock:
			analysis.CodeBlockCount++
			codeChars += el.End.Offset - el.Start.Offset
			if el.Language != "" {
				analysis.Languages[el.Language]++
			}
			return false
		case KindList:
			analysis.ListCount++
			listChars += el.End.Offset - el.Start.Offset
			if el.NestingDepth > analysis.NestedListDepth {
				analysis.NestedListDepth = el.NestingDepth
			}
		case KindListItem:
			analysis.ListItemCount++
		case KindTable:
			analysis.TableCount++
			tableChars += el.End.Offset - el.Start.Offset
			return false
		case KindHeader:
			analysis.HeaderCount++
			if el.Level > analysis.MaxHeaderDepth {
				analysis.MaxHeaderDepth = el.Level
			}
		case KindParagraph:
			analysis.ParagraphCount++
		}
		return true
	})

	// 归一化占比，确保四项之和为1.0
	if analysis.TotalChars > 0 {
		textChars := analysis.TotalChars - codeChars - listChars - tableChars
		if textChars < 0 {
			textChars = 0
		}
		total := float64(codeChars + listChars + tableChars + textChars)
		analysis.CodeRatio = float64(codeChars) / total
		analysis.ListRatio = float64(listChars) / total
		analysis.TableRatio = float64(tableChars) / total
		analysis.TextRatio = float64(textChars) / total
	}

	// 混合内容：两种及以上类型的占比均不可忽略
	significant := 0
	for _, r := range []float64{analysis.CodeRatio, analysis.ListRatio, analysis.TableRatio, analysis.TextRatio} {
		if r >= 0.15 {
			significant++
		}
	}
	analysis.HasMixedContent = significant >= 2

	analysis.ComplexityScore = a.complexityScore(analysis)
	analysis.ContentType = a.classifyContentType(analysis)
	analysis.Preamble = a.detectPreamble(parsed)

	return analysis
}

// complexityScore 计算复合复杂度评分
// 三个有界子项的加权和：结构≤0.3、内容≤0.4、规模≤0.3，整体钳位到[0,1]
func (a *Analyzer) complexityScore(analysis *ContentAnalysis) float64 {
	structural := float64(analysis.MaxHeaderDepth)*0.04 + float64(analysis.NestedListDepth)*0.06
	if structural > 0.3 {
		structural = 0.3
	}

	content := analysis.CodeRatio * 0.3
	if analysis.HasMixedContent {
		content += 0.1
	}
	if content > 0.4 {
		content = 0.4
	}

	size := 0.0
	if analysis.TotalChars > 0 {
		// 文档长度按对数缩放，100万字符时达到上限
		size = math.Log10(float64(analysis.TotalChars)) / 20.0
	}
	if size > 0.3 {
		size = 0.3
	}
	if size < 0 {
		size = 0
	}

	score := structural + content + size
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// classifyContentType 按有序阈值检查分类内容类型
func (a *Analyzer) classifyContentType(analysis *ContentAnalysis) string {
	switch {
	case analysis.CodeRatio >= 0.7 && analysis.CodeBlockCount >= 3:
		return ContentTypeCodeHeavy
	case analysis.ListRatio >= 0.6:
		return ContentTypeListHeavy
	case analysis.TableRatio >= 0.6:
		return ContentTypeTableHeavy
	case !a.hasDominantRatio(analysis) && analysis.ComplexityScore >= 0.3:
		return ContentTypeMixed
	default:
		return ContentTypePrimary
	}
}

// hasDominantRatio 判断是否存在单一占主导的内容类型
func (a *Analyzer) hasDominantRatio(analysis *ContentAnalysis) bool {
	for _, r := range []float64{analysis.CodeRatio, analysis.ListRatio, analysis.TableRatio, analysis.TextRatio} {
		if r >= 0.6 {
			return true
		}
	}
	return false
}

// detectPreamble 检测第一个标题之前的前导区
// 通过前几行的关键词启发式分类为introduction/summary/metadata
func (a *Analyzer) detectPreamble(parsed *ParseResult) *PreambleInfo {
	firstHeaderLine := 0
	parsed.Root.Walk(func(el *Element) bool {
		if firstHeaderLine > 0 {
			return false
		}
		if el.Kind == KindHeader {
			firstHeaderLine = el.Start.Line
			return false
		}
		return true
	})

	endLine := parsed.TotalLines()
	if firstHeaderLine > 0 {
		endLine = firstHeaderLine - 1
	} else if endLine == 0 {
		return nil
	}
	if endLine < 1 {
		return nil
	}

	content := parsed.Index.slice(1, endLine)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	return &PreambleInfo{
		StartLine: 1,
		EndLine:   endLine,
		Kind:      classifyPreamble(content),
		Content:   content,
	}
}

// classifyPreamble 对前导区内容做关键词分类
func classifyPreamble(content string) string {
	lines := strings.Split(content, "\n")
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	head := strings.ToLower(strings.Join(lines[:limit], "\n"))

	switch {
	case strings.HasPrefix(strings.TrimSpace(head), "---"),
		strings.Contains(head, "title:"),
		strings.Contains(head, "author:"),
		strings.Contains(head, "date:"):
		return PreambleMetadata
	case strings.Contains(head, "summary"),
		strings.Contains(head, "abstract"),
		strings.Contains(head, "tl;dr"):
		return PreambleSummary
	default:
		return PreambleIntroduction
	}
}
