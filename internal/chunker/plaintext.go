package chunker

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// markdownToPlain 把Markdown渲染为纯文本
// 先渲染为HTML再剥离标签，用于层级根节点的摘要和前导区展示
func markdownToPlain(source string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)
	doc := mdParser.Parse([]byte(source))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	rendered := markdown.Render(doc, renderer)

	return stripHTMLTags(string(rendered))
}

// stripHTMLTags 从HTML中提取纯文本
// 简化实现：块级标签替换为换行，其余标签直接移除
func stripHTMLTags(source string) string {
	replacements := []struct {
		old string
		new string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"</p>", "\n\n"},
		{"<li>", "- "},
		{"</li>", "\n"},
		{"</h1>", "\n\n"},
		{"</h2>", "\n\n"},
		{"</h3>", "\n\n"},
		{"</h4>", "\n\n"},
		{"</h5>", "\n\n"},
		{"</h6>", "\n\n"},
	}

	result := source
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.old, r.new)
	}

	for {
		start := strings.Index(result, "<")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], ">")
		if end == -1 {
			break
		}
		result = result[:start] + " " + result[start+end+1:]
	}

	// 规范化空白：行内连续空白压成单个空格，保留段落间隔
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	result = strings.Join(lines, "\n")
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(result)
}

// truncateRunes 按rune数截断文本并附加省略号
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
