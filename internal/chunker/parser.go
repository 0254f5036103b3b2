package chunker

import (
	"regexp"
	"strings"
)

// Diagnostic 解析过程中记录的非致命问题
// 解析器对畸形输入永不抛错，只降级处理并记录诊断信息
type Diagnostic struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ParseResult 解析结果
// 元素树和原子区域目录在解析后只读
type ParseResult struct {
	Root        *Element     // 文档元素树根节点
	Spans       []AtomicSpan // 按起始行排序的原子区域目录
	Diagnostics []Diagnostic // 解析诊断信息
	Text        string       // 规范化后的文本
	Index       *lineIndex   // 行偏移索引
}

// TotalLines 返回文档总行数
func (r *ParseResult) TotalLines() int { return r.Index.lineCount() }

// Parser Markdown结构解析器
// 单遍状态机处理围栏代码块，第二遍构建标题层级
type Parser struct{}

// NewParser 创建新的解析器
func NewParser() *Parser {
	return &Parser{}
}

var (
	headerPattern    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	fencePattern     = regexp.MustCompile("^(\\s*)(`{3,}|~{3,})(.*)$")
	listItemPattern  = regexp.MustCompile(`^(\s*)([-*+]|\d{1,9}[.)])\s+(.*)$`)
	tableSepPattern  = regexp.MustCompile(`^\s*\|?[\s:|-]+\|?\s*$`)
	mathEnvPattern   = regexp.MustCompile(`^\s*\\begin\{([a-zA-Z*]+)\}`)
	blockquoteRegexp = regexp.MustCompile(`^\s*>`)
)

// openFence 围栏栈中的条目
type openFence struct {
	char      byte   // 围栏字符（`或~）
	length    int    // 开围栏的长度
	startLine int    // 开围栏所在行
	language  string // 语言标签
}

// Parse 解析规范化后的文本，返回元素树、原子区域和诊断信息
// 换行符规范化必须最先发生，所有下游偏移都基于规范化后的文本
func (p *Parser) Parse(text string) *ParseResult {
	text = normalizeLineEndings(text)
	index := newLineIndex(text)
	totalLines := index.lineCount()

	result := &ParseResult{
		Text:  text,
		Index: index,
	}

	// 第一遍：线性扫描产生扁平的块级元素序列
	var flat []*Element
	var fenceStack []openFence

	// 段落、列表、表格、引用的累积状态
	var paraStart int
	var paraLines []string
	var listStart int
	var listLines []string
	var tableStart int
	var tableLines []string
	var quoteStart int
	var quoteLines []string

	// 数学块状态
	mathStart := 0
	mathEnvName := ""
	inDisplayMath := false
	inMathEnv := false

	flushPara := func(endLine int) {
		if len(paraLines) == 0 {
			return
		}
		flat = append(flat, p.makeElement(KindParagraph, strings.Join(paraLines, "\n"), paraStart, endLine, index))
		paraLines = nil
	}
	flushList := func(endLine int) {
		if len(listLines) == 0 {
			return
		}
		flat = append(flat, p.makeList(listLines, listStart, endLine, index))
		listLines = nil
	}
	flushTable := func(endLine int) {
		if len(tableLines) == 0 {
			return
		}
		flat = append(flat, p.makeTable(tableLines, tableStart, endLine, index))
		tableLines = nil
	}
	flushQuote := func(endLine int) {
		if len(quoteLines) == 0 {
			return
		}
		flat = append(flat, p.makeElement(KindBlockquote, strings.Join(quoteLines, "\n"), quoteStart, endLine, index))
		quoteLines = nil
	}
	flushAll := func(endLine int) {
		flushPara(endLine)
		flushList(endLine)
		flushTable(endLine)
		flushQuote(endLine)
	}

	for n := 1; n <= totalLines; n++ {
		line := index.line(n)

		// 代码围栏优先级最高，围栏内抑制其他一切结构检测
		if len(fenceStack) > 0 {
			if char, length, lang, ok := matchFence(line); ok {
				top := fenceStack[len(fenceStack)-1]
				// CommonMark闭合规则：字符相同且长度不小于开围栏
				if char == top.char && length >= top.length && lang == "" {
					fenceStack = fenceStack[:len(fenceStack)-1]
					if len(fenceStack) == 0 {
						flat = append(flat, p.makeCodeBlock(top, n, true, index))
					}
				} else {
					// 内层围栏入栈，防止其提前闭合外层
					fenceStack = append(fenceStack, openFence{char: char, length: length, startLine: n, language: lang})
				}
			}
			continue
		}

		// 数学块内同样抑制结构检测
		if inDisplayMath {
			if strings.TrimSpace(line) == "$$" || strings.HasSuffix(strings.TrimSpace(line), "$$") {
				flat = append(flat, p.makeMath(KindDisplayMath, "", mathStart, n, true, index))
				inDisplayMath = false
			}
			continue
		}
		if inMathEnv {
			if strings.Contains(line, `\end{`+mathEnvName+`}`) {
				flat = append(flat, p.makeMath(KindMathEnv, mathEnvName, mathStart, n, true, index))
				inMathEnv = false
			}
			continue
		}

		// 围栏开启
		if char, length, lang, ok := matchFence(line); ok {
			flushAll(n - 1)
			fenceStack = append(fenceStack, openFence{char: char, length: length, startLine: n, language: lang})
			continue
		}

		trimmed := strings.TrimSpace(line)

		// 展示数学块 $$...$$
		if strings.HasPrefix(trimmed, "$$") {
			flushAll(n - 1)
			rest := trimmed[2:]
			if strings.HasSuffix(rest, "$$") && len(rest) >= 2 {
				// 单行展示公式
				flat = append(flat, p.makeMath(KindDisplayMath, "", n, n, true, index))
			} else {
				inDisplayMath = true
				mathStart = n
			}
			continue
		}

		// LaTeX数学环境 \begin{env}...\end{env}
		if m := mathEnvPattern.FindStringSubmatch(line); m != nil {
			flushAll(n - 1)
			name := m[1]
			if strings.Contains(line, `\end{`+name+`}`) {
				flat = append(flat, p.makeMath(KindMathEnv, name, n, n, true, index))
			} else {
				inMathEnv = true
				mathEnvName = name
				mathStart = n
			}
			continue
		}

		// 空行结束所有累积块
		if trimmed == "" {
			flushAll(n - 1)
			continue
		}

		// 标题
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flushAll(n - 1)
			el := p.makeElement(KindHeader, strings.TrimSpace(m[2]), n, n, index)
			el.Level = len(m[1])
			flat = append(flat, el)
			continue
		}

		// 表格：当前行是表格行且下一行是分隔行，或已在表格累积中
		if len(tableLines) > 0 {
			if isTableRow(line) {
				tableLines = append(tableLines, line)
				continue
			}
			flushTable(n - 1)
		} else if isTableRow(line) && n < totalLines && isTableSeparator(index.line(n+1)) {
			flushAll(n - 1)
			tableStart = n
			tableLines = append(tableLines, line)
			continue
		}

		// 引用块
		if blockquoteRegexp.MatchString(line) {
			if len(quoteLines) == 0 {
				flushPara(n - 1)
				flushList(n - 1)
				quoteStart = n
			}
			quoteLines = append(quoteLines, line)
			continue
		}
		flushQuote(n - 1)

		// 列表项或列表的缩进延续行
		if listItemPattern.MatchString(line) {
			if len(listLines) == 0 {
				flushPara(n - 1)
				listStart = n
			}
			listLines = append(listLines, line)
			continue
		}
		if len(listLines) > 0 && leadingIndent(line) >= 2 {
			listLines = append(listLines, line)
			continue
		}
		flushList(n - 1)

		// 其余内容归入段落
		if len(paraLines) == 0 {
			paraStart = n
		}
		paraLines = append(paraLines, line)
	}

	flushAll(totalLines)

	// 文档结束时处理未闭合的块
	if inDisplayMath {
		flat = append(flat, p.makeMath(KindDisplayMath, "", mathStart, totalLines, false, index))
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Line: mathStart, Kind: "unclosed_math",
			Message: "display math block is never closed, extends to end of document",
		})
	}
	if inMathEnv {
		flat = append(flat, p.makeMath(KindMathEnv, mathEnvName, mathStart, totalLines, false, index))
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Line: mathStart, Kind: "unclosed_math",
			Message: "math environment \\begin{" + mathEnvName + "} is never closed",
		})
	}
	if len(fenceStack) > 0 {
		// 最外层的未闭合围栏作为原子区域延伸至文档末尾
		// 嵌套的内层条目只记录诊断，避免同类区域重叠
		outer := fenceStack[0]
		flat = append(flat, p.makeCodeBlock(outer, totalLines, false, index))
		for _, f := range fenceStack {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Line: f.startLine, Kind: "unclosed_fence",
				Message: "code fence opened here is never closed",
			})
		}
	}

	// 第二遍：按标题级别构建层级树
	result.Root = p.buildTree(flat, index, totalLines)

	// 从扁平元素序列提取原子区域目录
	result.Spans = collectSpans(flat, index)

	return result
}

// normalizeLineEndings 统一换行符为\n
// 必须在任何位置计算之前执行
func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// matchFence 匹配围栏行：行首（可缩进）连续3个及以上相同围栏字符
func matchFence(line string) (char byte, length int, language string, ok bool) {
	m := fencePattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, "", false
	}
	run := m[2]
	info := strings.TrimSpace(m[3])
	// 反引号围栏的信息串中不允许再出现反引号
	if run[0] == '`' && strings.Contains(info, "`") {
		return 0, 0, "", false
	}
	// 语言标签只取信息串的第一个词
	if i := strings.IndexAny(info, " \t"); i >= 0 {
		info = info[:i]
	}
	return run[0], len(run), info, true
}

// isTableRow 判断是否为表格行
func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.Contains(trimmed, "|") && trimmed != ""
}

// isTableSeparator 判断是否为表格分隔行（如 | --- | :--: |）
func isTableSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, "-") || !strings.Contains(trimmed, "|") {
		return false
	}
	return tableSepPattern.MatchString(trimmed)
}

// leadingIndent 计算行首缩进宽度（制表符按4列计）
func leadingIndent(line string) int {
	indent := 0
	for _, r := range line {
		switch r {
		case ' ':
			indent++
		case '\t':
			indent += 4
		default:
			return indent
		}
	}
	return indent
}

// makeElement 根据行范围构造基础元素
func (p *Parser) makeElement(kind ElementKind, content string, startLine, endLine int, index *lineIndex) *Element {
	return &Element{
		Kind:    kind,
		Content: content,
		Start:   index.position(index.lineStart(startLine)),
		End:     index.position(index.lineEnd(endLine)),
	}
}

// makeCodeBlock 构造代码块元素
func (p *Parser) makeCodeBlock(f openFence, endLine int, closed bool, index *lineIndex) *Element {
	// 内容为围栏之间的行；未闭合时延伸至文档末尾
	contentStart := f.startLine + 1
	contentEnd := endLine - 1
	if !closed {
		contentEnd = endLine
	}
	content := ""
	if contentStart <= contentEnd {
		content = index.slice(contentStart, contentEnd)
	}
	el := p.makeElement(KindCodeBlock, content, f.startLine, endLine, index)
	el.Language = f.language
	el.FenceChar = f.char
	el.FenceLength = f.length
	el.Closed = closed
	return el
}

// makeMath 构造数学块元素
func (p *Parser) makeMath(kind ElementKind, envName string, startLine, endLine int, closed bool, index *lineIndex) *Element {
	el := p.makeElement(kind, index.slice(startLine, endLine), startLine, endLine, index)
	el.EnvName = envName
	el.Closed = closed
	return el
}

// makeTable 构造表格元素及其行、单元格子元素
func (p *Parser) makeTable(lines []string, startLine, endLine int, index *lineIndex) *Element {
	table := p.makeElement(KindTable, strings.Join(lines, "\n"), startLine, endLine, index)
	for i, line := range lines {
		if isTableSeparator(line) {
			continue
		}
		row := p.makeElement(KindTableRow, line, startLine+i, startLine+i, index)
		for _, cell := range splitTableCells(line) {
			c := p.makeElement(KindTableCell, cell, startLine+i, startLine+i, index)
			row.AddChild(c)
		}
		table.AddChild(row)
	}
	return table
}

// splitTableCells 拆分表格行的单元格
func splitTableCells(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(trimmed, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}
	return cells
}

// makeList 构造列表元素
// 列表项的嵌套深度以列表自身的首项缩进为基准计算
func (p *Parser) makeList(lines []string, startLine, endLine int, index *lineIndex) *Element {
	list := p.makeElement(KindList, strings.Join(lines, "\n"), startLine, endLine, index)

	baseline := -1
	maxDepth := 0
	for i, line := range lines {
		m := listItemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := leadingIndent(line)
		if baseline < 0 {
			baseline = indent
			// 有序性由首个列表项的标记决定
			list.Ordered = m[2] != "-" && m[2] != "*" && m[2] != "+"
		}
		depth := 0
		if indent > baseline {
			depth = (indent - baseline + 1) / 2
		}
		if depth > maxDepth {
			maxDepth = depth
		}
		item := p.makeElement(KindListItem, strings.TrimSpace(m[3]), startLine+i, startLine+i, index)
		item.NestingDepth = depth
		list.AddChild(item)
	}
	list.NestingDepth = maxDepth
	return list
}

// buildTree 第二遍：把扁平元素序列按标题级别组织成树
// 使用显式的标题栈，级别跳跃不破坏链条（4级标题可以直接嵌在2级下）
func (p *Parser) buildTree(flat []*Element, index *lineIndex, totalLines int) *Element {
	root := &Element{
		Kind:  KindDocument,
		Start: Position{Line: 1, Column: 1, Offset: 0},
		End:   index.position(len(index.text)),
	}
	if totalLines == 0 {
		return root
	}

	var headerStack []*Element
	for _, el := range flat {
		if el.Kind == KindHeader {
			// 弹出级别不低于当前标题的祖先
			for len(headerStack) > 0 && headerStack[len(headerStack)-1].Level >= el.Level {
				headerStack = headerStack[:len(headerStack)-1]
			}
			if len(headerStack) == 0 {
				root.AddChild(el)
			} else {
				headerStack[len(headerStack)-1].AddChild(el)
			}
			headerStack = append(headerStack, el)
			continue
		}
		if len(headerStack) == 0 {
			root.AddChild(el)
		} else {
			headerStack[len(headerStack)-1].AddChild(el)
		}
	}
	return root
}

// collectSpans 从扁平元素序列提取原子区域目录
func collectSpans(flat []*Element, index *lineIndex) []AtomicSpan {
	var spans []AtomicSpan
	for _, el := range flat {
		var kind SpanKind
		closed := true
		switch el.Kind {
		case KindCodeBlock:
			kind = SpanCode
			closed = el.Closed
		case KindTable:
			kind = SpanTable
		case KindDisplayMath, KindMathEnv:
			kind = SpanMath
			closed = el.Closed
		default:
			continue
		}
		startLine := el.Start.Line
		endLine := el.End.Line
		startOffset := index.lineStart(startLine)
		endOffset := index.lineEnd(endLine)
		spans = append(spans, AtomicSpan{
			Kind:        kind,
			StartLine:   startLine,
			EndLine:     endLine,
			StartOffset: startOffset,
			EndOffset:   endOffset,
			Size:        endOffset - startOffset,
			IsClosed:    closed,
		})
	}
	return spans
}
