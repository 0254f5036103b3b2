package chunker

// ElementKind 文档元素类型
type ElementKind string

const (
	// KindDocument 文档根节点
	KindDocument ElementKind = "document"
	// KindHeader 标题元素
	KindHeader ElementKind = "header"
	// KindParagraph 段落元素
	KindParagraph ElementKind = "paragraph"
	// KindCodeBlock 代码块元素
	KindCodeBlock ElementKind = "code_block"
	// KindList 列表元素
	KindList ElementKind = "list"
	// KindListItem 列表项元素
	KindListItem ElementKind = "list_item"
	// KindTable 表格元素
	KindTable ElementKind = "table"
	// KindTableRow 表格行元素
	KindTableRow ElementKind = "table_row"
	// KindTableCell 表格单元格元素
	KindTableCell ElementKind = "table_cell"
	// KindBlockquote 引用块元素
	KindBlockquote ElementKind = "blockquote"
	// KindDisplayMath 展示数学公式块（$$...$$）
	KindDisplayMath ElementKind = "display_math"
	// KindMathEnv LaTeX数学环境块（\begin{env}...\end{env}）
	KindMathEnv ElementKind = "math_environment"
	// KindText 纯文本元素
	KindText ElementKind = "text"
)

// Element 文档结构树的节点
// 子节点由父节点独占持有；Parent仅用于遍历，不参与序列化
type Element struct {
	Kind     ElementKind `json:"kind"`
	Content  string      `json:"content"`
	Start    Position    `json:"start"`
	End      Position    `json:"end"`
	Children []*Element  `json:"children,omitempty"`
	Parent   *Element    `json:"-"`

	// 标题元素专用
	Level int `json:"level,omitempty"` // 标题级别（1-6）

	// 代码块元素专用
	Language    string `json:"language,omitempty"`     // 围栏后的语言标签
	FenceChar   byte   `json:"fence_char,omitempty"`   // 围栏字符（`或~）
	FenceLength int    `json:"fence_length,omitempty"` // 围栏长度
	Closed      bool   `json:"closed,omitempty"`       // 围栏是否闭合

	// 列表元素专用
	Ordered      bool `json:"ordered,omitempty"`       // 是否为有序列表
	NestingDepth int  `json:"nesting_depth,omitempty"` // 嵌套深度（从0开始）

	// 数学环境专用
	EnvName string `json:"env_name,omitempty"` // 环境名称（如align、equation）
}

// AddChild 添加子节点并设置父指针
func (e *Element) AddChild(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

// StartLine 返回元素起始行号
func (e *Element) StartLine() int { return e.Start.Line }

// EndLine 返回元素结束行号
func (e *Element) EndLine() int { return e.End.Line }

// Walk 深度优先遍历元素树
// fn返回false时跳过该节点的子树
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, child := range e.Children {
		child.Walk(fn)
	}
}

// CountByKind 统计子树中指定类型元素的数量
func (e *Element) CountByKind(kind ElementKind) int {
	count := 0
	e.Walk(func(el *Element) bool {
		if el.Kind == kind {
			count++
		}
		return true
	})
	return count
}
