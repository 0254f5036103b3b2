package model

import (
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/chunker"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ChunkResponse Markdown分块响应
type ChunkResponse struct {
	Chunks          []*chunker.Chunk `json:"chunks"`             // 分块列表
	StrategyUsed    string           `json:"strategy_used"`      // 实际使用的策略
	FallbackUsed    bool             `json:"fallback_used"`      // 是否触发了降级
	FallbackLevel   int              `json:"fallback_level"`     // 降级层级
	ChunkCount      int              `json:"chunk_count"`        // 分块数量
	TotalChars      int              `json:"total_chars"`        // 输入字符总数
	TotalLines      int              `json:"total_lines"`        // 输入行数
	ContentType     string           `json:"content_type"`       // 文档内容类型
	ComplexityScore float64          `json:"complexity_score"`   // 复杂度评分
	ProcessingTime  float64          `json:"processing_time"`    // 处理时间（秒）
	Errors          []string         `json:"errors,omitempty"`   // 错误信息
	Warnings        []string         `json:"warnings,omitempty"` // 警告信息
}

// NewChunkResponse 从分块结果构建响应
func NewChunkResponse(result *chunker.ChunkingResult) *ChunkResponse {
	return &ChunkResponse{
		Chunks:          result.Chunks,
		StrategyUsed:    result.StrategyUsed,
		FallbackUsed:    result.FallbackUsed,
		FallbackLevel:   result.FallbackLevel,
		ChunkCount:      len(result.Chunks),
		TotalChars:      result.TotalChars,
		TotalLines:      result.TotalLines,
		ContentType:     result.ContentType,
		ComplexityScore: result.ComplexityScore,
		ProcessingTime:  result.ProcessingTime,
		Errors:          result.Errors,
		Warnings:        result.Warnings,
	}
}

// HierarchyResponse 层级分块响应
type HierarchyResponse struct {
	Chunks     []*chunker.Chunk `json:"chunks"`      // 分块列表（含根块）
	RootID     string           `json:"root_id"`     // 根分块ID
	ChunkCount int              `json:"chunk_count"` // 分块数量
}

// PresetsResponse 预设配置列表响应
type PresetsResponse struct {
	Presets []string `json:"presets"` // 预设名称列表
}

// TaskEnqueueResponse 任务入队响应
type TaskEnqueueResponse struct {
	TaskID     string `json:"task_id"`               // 任务ID
	DocumentID string `json:"document_id,omitempty"` // 关联的文档ID
	Status     string `json:"status"`                // 初始状态
}

// DocumentUploadResponse 文档上传响应
type DocumentUploadResponse struct {
	DocumentID string `json:"document_id"` // 文档ID
	FileName   string `json:"filename"`    // 文件名
	FileSize   int64  `json:"file_size"`   // 文件大小（字节）
	Status     string `json:"status"`      // 文档状态
}

// DocumentStatusResponse 文档状态查询响应
type DocumentStatusResponse struct {
	DocumentID string `json:"document_id"`        // 文档ID
	Status     string `json:"status"`             // 处理状态
	FileName   string `json:"filename"`           // 文件名
	Progress   int    `json:"progress"`           // 处理进度（0-100）
	Stage      string `json:"stage,omitempty"`    // 当前处理阶段
	TaskID     string `json:"task_id,omitempty"`  // 当前任务ID
	ChunkCount int    `json:"chunk_count"`        // 分块数量（处理完成后）
	Strategy   string `json:"strategy,omitempty"` // 使用的策略
	Error      string `json:"error,omitempty"`    // 错误信息（如果有）
	UploadedAt string `json:"uploaded_at"`        // 上传时间
	UpdatedAt  string `json:"updated_at"`         // 更新时间
}

// DocumentInfo 文档信息
type DocumentInfo struct {
	DocumentID string    `json:"document_id"` // 文档ID
	FileName   string    `json:"filename"`    // 文件名
	Status     string    `json:"status"`      // 状态
	Tags       string    `json:"tags"`        // 标签
	UploadedAt time.Time `json:"uploaded_at"` // 上传时间
	ChunkCount int       `json:"chunk_count"` // 分块数量
	Strategy   string    `json:"strategy"`    // 使用的策略
	Preset     string    `json:"preset"`      // 预设配置名称
}

// NewDocumentInfo 从文档模型构建响应信息
func NewDocumentInfo(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Status:     string(doc.Status),
		Tags:       doc.Tags,
		UploadedAt: doc.UploadedAt,
		ChunkCount: doc.ChunkCount,
		Strategy:   doc.Strategy,
		Preset:     doc.Preset,
	}
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// ChunkRecordInfo 已入库的分块信息
type ChunkRecordInfo struct {
	ChunkID     string `json:"chunk_id,omitempty"`     // 层级分块ID
	ParentID    string `json:"parent_id,omitempty"`    // 父分块ID
	Position    int    `json:"position"`               // 块在文档中的位置
	Content     string `json:"content"`                // 块内容
	StartLine   int    `json:"start_line"`             // 起始行号
	EndLine     int    `json:"end_line"`               // 结束行号
	Size        int    `json:"size"`                   // 字符数
	Strategy    string `json:"strategy"`               // 产生该块的策略
	SectionPath string `json:"section_path,omitempty"` // 章节路径
	Level       int    `json:"level"`                  // 层级深度
}

// DocumentChunksResponse 文档分块列表响应
type DocumentChunksResponse struct {
	DocumentID string            `json:"document_id"` // 文档ID
	Total      int               `json:"total"`       // 分块总数
	Chunks     []ChunkRecordInfo `json:"chunks"`      // 分块列表
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success    bool   `json:"success"`     // 是否成功
	DocumentID string `json:"document_id"` // 文档ID
}
