package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskMarkdownChunk Markdown分块任务
	TaskMarkdownChunk TaskType = "markdown_chunk"
	// TaskChunkHierarchy 带层级结构的分块任务
	TaskChunkHierarchy TaskType = "chunk_hierarchy"
	// TaskDocumentProcess 文档完整处理任务（读取存储中的文件并分块入库）
	TaskDocumentProcess TaskType = "document_process"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	DocumentID  string          `json:"document_id"`  // 关联的文档ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据，不同任务类型对应不同结构
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// MarkdownChunkPayload Markdown分块任务载荷
type MarkdownChunkPayload struct {
	DocumentID string          `json:"document_id"`        // 文档ID
	Content    string          `json:"content"`            // Markdown文本内容
	Preset     string          `json:"preset,omitempty"`   // 预设配置名称（可选）
	Config     json.RawMessage `json:"config,omitempty"`   // 配置覆盖（可选，JSON编码的ChunkConfig）
	Strategy   string          `json:"strategy,omitempty"` // 策略覆盖（可选）
}

// ChunkSummary 分块摘要信息（任务结果中不携带全文）
type ChunkSummary struct {
	Index       int    `json:"index"`                 // 分块索引
	StartLine   int    `json:"start_line"`            // 起始行号
	EndLine     int    `json:"end_line"`              // 结束行号
	Size        int    `json:"size"`                  // 字符数
	Strategy    string `json:"strategy"`              // 产生该块的策略
	SectionPath string `json:"section_path"`          // 章节路径
	ChunkID     string `json:"chunk_id,omitempty"`    // 层级分块ID（仅层级任务）
	Oversize    bool   `json:"oversize,omitempty"`    // 是否超限块
	SmallChunk  bool   `json:"small_chunk,omitempty"` // 是否小块
}

// MarkdownChunkResult Markdown分块任务结果
type MarkdownChunkResult struct {
	DocumentID     string         `json:"document_id"`       // 文档ID
	Strategy       string         `json:"strategy"`          // 实际使用的策略
	FallbackUsed   bool           `json:"fallback_used"`     // 是否触发了降级
	ChunkCount     int            `json:"chunk_count"`       // 分块数量
	TotalChars     int            `json:"total_chars"`       // 输入字符总数
	Chunks         []ChunkSummary `json:"chunks"`            // 分块摘要列表
	Warnings       []string       `json:"warnings"`          // 警告信息
	ProcessingTime float64        `json:"processing_time"`   // 处理时间（秒）
	Error          string         `json:"error,omitempty"`   // 错误信息（如果有）
	RootID         string         `json:"root_id,omitempty"` // 根分块ID（仅层级任务）
}

// DocumentProcessPayload 文档完整处理任务载荷
type DocumentProcessPayload struct {
	DocumentID string `json:"document_id"`        // 文档ID
	FileID     string `json:"file_id"`            // 存储层文件ID
	FileName   string `json:"file_name"`          // 原始文件名
	Preset     string `json:"preset,omitempty"`   // 预设配置名称
	Strategy   string `json:"strategy,omitempty"` // 策略覆盖
	Hierarchy  bool   `json:"hierarchy"`          // 是否构建层级结构
	Persist    bool   `json:"persist"`            // 是否将分块写入数据库
}

// DocumentProcessResult 文档完整处理任务结果
type DocumentProcessResult struct {
	DocumentID  string  `json:"document_id"`     // 文档ID
	ChunkCount  int     `json:"chunk_count"`     // 分块数量
	Strategy    string  `json:"strategy"`        // 实际使用的策略
	Persisted   bool    `json:"persisted"`       // 分块是否已入库
	ElapsedSecs float64 `json:"elapsed_secs"`    // 总耗时（秒）
	Error       string  `json:"error,omitempty"` // 错误信息（如果有）
}

// TaskCallback 任务回调信息
type TaskCallback struct {
	TaskID     string          `json:"task_id"`     // 任务ID
	DocumentID string          `json:"document_id"` // 文档ID
	Status     TaskStatus      `json:"status"`      // 任务状态
	Type       TaskType        `json:"type"`        // 任务类型
	Result     json.RawMessage `json:"result"`      // 任务结果
	Error      string          `json:"error"`       // 错误信息
	Timestamp  time.Time       `json:"timestamp"`   // 回调时间戳
}
