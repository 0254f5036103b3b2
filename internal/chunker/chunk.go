package chunker

import (
	"fmt"
	"strings"
)

// 超限原因代码
const (
	OversizeCodeBlock      = "code_block_integrity"
	OversizeTable          = "table_integrity"
	OversizeLatex          = "latex_integrity"
	OversizeBlockAlignment = "block_alignment_tolerance"
)

// ChunkMetadata 分块的元数据
// 由策略创建，重叠管理器和层级构建器可以补充字段
type ChunkMetadata struct {
	Strategy    string `json:"strategy,omitempty"`     // 产生该块的策略名称
	ContentType string `json:"content_type,omitempty"` // 文档级内容类型
	Language    string `json:"language,omitempty"`     // 代码块的语言标签
	ChunkIndex  int    `json:"chunk_index"`            // 块在序列中的下标

	SectionPath []string `json:"section_path,omitempty"` // 祖先标题文本的有序列表
	SectionID   string   `json:"section_id,omitempty"`   // 由SectionPath派生的slug

	AllowOversize  bool   `json:"allow_oversize,omitempty"`  // 是否允许超限
	OversizeReason string `json:"oversize_reason,omitempty"` // 超限原因代码
	SmallChunk     bool   `json:"small_chunk,omitempty"`     // 结构强度不足的小块标记

	HasOverlap  bool   `json:"has_overlap,omitempty"`  // 是否带有前块重叠
	OverlapSize int    `json:"overlap_size,omitempty"` // 实际前置的重叠字符数
	OverlapType string `json:"overlap_type,omitempty"` // 重叠类型

	// 层级构建器填充的导航信息
	ChunkID        string   `json:"chunk_id,omitempty"`
	ParentID       string   `json:"parent_id,omitempty"`
	ChildrenIDs    []string `json:"children_ids,omitempty"`
	PrevSiblingID  string   `json:"prev_sibling_id,omitempty"`
	NextSiblingID  string   `json:"next_sibling_id,omitempty"`
	HierarchyLevel int      `json:"hierarchy_level,omitempty"` // 树深度而非标题级别
	IsLeaf         bool     `json:"is_leaf,omitempty"`
	IsRoot         bool     `json:"is_root,omitempty"`
}

// Chunk 一个输出分块
// 构造时强制校验不变量；返回给调用方后视为不可变值
type Chunk struct {
	Content   string        `json:"content"`
	StartLine int           `json:"start_line"`
	EndLine   int           `json:"end_line"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// NewChunk 构造分块并校验不变量
// start_line≥1、end_line≥start_line、内容去除空白后非空
func NewChunk(content string, startLine, endLine int, md ChunkMetadata) (*Chunk, error) {
	if startLine < 1 {
		return nil, fmt.Errorf("invalid chunk: start_line must be >= 1, got %d", startLine)
	}
	if endLine < startLine {
		return nil, fmt.Errorf("invalid chunk: end_line %d < start_line %d", endLine, startLine)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("invalid chunk: content is empty after trimming")
	}
	return &Chunk{
		Content:   content,
		StartLine: startLine,
		EndLine:   endLine,
		Metadata:  md,
	}, nil
}

// Size 返回块内容的字符数（派生值，不存储）
func (c *Chunk) Size() int { return len(c.Content) }

// LineCount 返回块覆盖的行数（派生值，不存储）
func (c *Chunk) LineCount() int { return c.EndLine - c.StartLine + 1 }

// ChunkingResult 分块流水线的完整返回结果
// errors非空表示结果已降级，调用方在信任完整性之前必须检查
type ChunkingResult struct {
	Chunks          []*Chunk `json:"chunks"`
	StrategyUsed    string   `json:"strategy_used"`
	ProcessingTime  float64  `json:"processing_time"` // 处理耗时（秒）
	FallbackUsed    bool     `json:"fallback_used"`
	FallbackLevel   int      `json:"fallback_level"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	TotalChars      int      `json:"total_chars"`
	TotalLines      int      `json:"total_lines"`
	ContentType     string   `json:"content_type"`
	ComplexityScore float64  `json:"complexity_score"`
}

// HierarchyResult 层级分块结果
type HierarchyResult struct {
	Chunks []*Chunk `json:"chunks"`
	RootID string   `json:"root_id"`
}

// sectionSlug 由section path生成slug标识
func sectionSlug(path []string) string {
	if len(path) == 0 {
		return ""
	}
	parts := make([]string, 0, len(path))
	for _, p := range path {
		slug := strings.ToLower(strings.TrimSpace(p))
		slug = strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
				return r
			case r == ' ' || r == '-' || r == '_':
				return '-'
			default:
				return -1
			}
		}, slug)
		slug = strings.Trim(slug, "-")
		if slug != "" {
			parts = append(parts, slug)
		}
	}
	return strings.Join(parts, "/")
}
