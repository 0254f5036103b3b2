package model

import (
	"encoding/json"
	"mime/multipart"
	"time"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// ChunkRequest Markdown分块请求
type ChunkRequest struct {
	Content  string          `json:"content" binding:"required"`                 // Markdown文本内容
	Preset   string          `json:"preset" binding:"omitempty"`                 // 预设配置名称
	Config   json.RawMessage `json:"config" binding:"omitempty"`                 // 配置覆盖，JSON编码的分块配置
	Strategy string          `json:"strategy" binding:"omitempty,chunkstrategy"` // 策略覆盖
	Async    bool            `json:"async" binding:"omitempty"`                  // 是否异步处理
	DocID    string          `json:"document_id" binding:"omitempty"`            // 关联的文档ID（异步任务专用）
}

// DocumentUploadRequest 文档上传请求
type DocumentUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"`  // 文件对象
	Tags string                `form:"tags" binding:"omitempty"` // 文档标签，逗号分隔
}

// DocumentProcessRequest 文档处理请求
type DocumentProcessRequest struct {
	Preset    string `json:"preset" binding:"omitempty"`                 // 预设配置名称
	Strategy  string `json:"strategy" binding:"omitempty,chunkstrategy"` // 策略覆盖
	Hierarchy bool   `json:"hierarchy"`                                  // 是否构建层级结构
	Persist   bool   `json:"persist"`                                    // 是否将分块写入数据库
}

// DocumentIDRequest 按ID操作文档的路径参数
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" binding:"omitempty"` // 开始时间
	EndTime   *time.Time `form:"end_time" binding:"omitempty"`   // 结束时间
	Status    string     `form:"status" binding:"omitempty"`     // 文档状态过滤
	Tags      string     `form:"tags" binding:"omitempty"`       // 标签过滤
	Strategy  string     `form:"strategy" binding:"omitempty"`   // 策略过滤
	FileName  string     `form:"file_name" binding:"omitempty"`  // 文件名模糊过滤
}

// TaskWaitRequest 任务等待请求参数
type TaskWaitRequest struct {
	Timeout int `form:"timeout" binding:"omitempty,min=1,max=300"` // 等待超时（秒），默认30
}

// GetTimeout 获取等待超时时间，默认30秒
func (r *TaskWaitRequest) GetTimeout() time.Duration {
	if r.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.Timeout) * time.Second
}
