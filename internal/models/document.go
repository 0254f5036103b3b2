package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus 文档处理状态类型
type DocumentStatus string

const (
	// DocStatusUploaded 文档已上传，等待处理
	DocStatusUploaded DocumentStatus = "uploaded"
	// DocStatusProcessing 文档处理中
	DocStatusProcessing DocumentStatus = "processing"
	// DocStatusCompleted 文档处理完成
	DocStatusCompleted DocumentStatus = "completed"
	// DocStatusFailed 文档处理失败
	DocStatusFailed DocumentStatus = "failed"
)

// ProcessStage 文档处理阶段
type ProcessStage string

const (
	// StageParsing 解析阶段
	StageParsing ProcessStage = "parsing"
	// StageChunking 分块阶段
	StageChunking ProcessStage = "chunking"
	// StageHierarchy 层级构建阶段
	StageHierarchy ProcessStage = "hierarchy"
	// StagePersisting 分块入库阶段
	StagePersisting ProcessStage = "persisting"
	// StageCompleted 处理完成
	StageCompleted ProcessStage = "completed"
)

// Document 文档数据模型
// 用于存储Markdown文档的元数据信息
type Document struct {
	ID             string         `gorm:"primaryKey"`         // 文档ID，主键
	FileName       string         `gorm:"not null"`           // 文件名
	FilePath       string         `gorm:"not null"`           // 文件存储路径
	FileSize       int64          `gorm:"not null"`           // 文件大小（字节）
	Status         DocumentStatus `gorm:"not null;index"`     // 处理状态
	UploadedAt     time.Time      `gorm:"not null;index"`     // 上传时间
	ProcessedAt    *time.Time     `gorm:"index"`              // 处理完成时间
	UpdatedAt      time.Time      `gorm:"not null;index"`     // 更新时间
	Progress       int            `gorm:"not null;default:0"` // 处理进度（0-100）
	Error          string         `gorm:"type:text"`          // 错误信息
	ChunkCount     int            `gorm:"not null;default:0"` // 分块数量
	Strategy       string         `gorm:"size:30"`            // 分块使用的策略
	ContentType    string         `gorm:"size:30"`            // 内容类型分类
	Preset         string         `gorm:"size:50"`            // 使用的预设配置名称
	Tags           string         `gorm:"type:varchar(255)"`  // 标签，逗号分隔
	Metadata       datatypes.JSON `gorm:"type:json"`          // 元数据，JSON格式
	CurrentStage   ProcessStage   `gorm:"size:20"`            // 当前处理阶段
	CurrentTaskID  string         `gorm:"size:50;index"`      // 当前关联的任务ID
	LastTaskStatus string         `gorm:"size:20"`            // 最后任务的状态
	RetryCount     int            `gorm:"default:0"`          // 重试次数
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.UploadedAt.IsZero() {
		d.UploadedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}

// ChunkRecord 分块数据模型
// 用于在数据库中持久化文档的分块结果
type ChunkRecord struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	DocumentID  string         `gorm:"not null;index"`           // 所属文档ID
	ChunkID     string         `gorm:"size:50;index"`            // 层级分块ID（层级模式下唯一）
	ParentID    string         `gorm:"size:50;index"`            // 父分块ID
	Position    int            `gorm:"not null"`                 // 分块在文档中的序号
	Content     string         `gorm:"type:text;not null"`       // 分块文本内容
	StartLine   int            `gorm:"not null"`                 // 起始行号（1-based）
	EndLine     int            `gorm:"not null"`                 // 结束行号（含）
	Size        int            `gorm:"not null"`                 // 字符数
	Strategy    string         `gorm:"size:30"`                  // 产生该块的策略
	SectionPath string         `gorm:"type:varchar(512)"`        // 章节路径，>分隔
	Level       int            `gorm:"default:0"`                // 层级深度（层级模式）
	CreatedAt   time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt   time.Time      `gorm:"not null"`                 // 更新时间
	Metadata    datatypes.JSON `gorm:"type:json"`                // 分块元数据（超限标记、重叠信息等）
	TaskID      string         `gorm:"size:50;index"`            // 产生此分块的任务ID
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (cr *ChunkRecord) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	cr.CreatedAt = now
	cr.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (cr *ChunkRecord) BeforeUpdate(tx *gorm.DB) (err error) {
	cr.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (ChunkRecord) TableName() string {
	return "chunk_records"
}

// DocumentTask 文档任务关联模型
// 用于跟踪文档处理任务
type DocumentTask struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	DocumentID string         `gorm:"not null;index"`           // 文档ID
	TaskID     string         `gorm:"not null;uniqueIndex"`     // 任务ID
	TaskType   string         `gorm:"not null;size:50"`         // 任务类型
	Status     string         `gorm:"not null;size:20"`         // 任务状态
	CreatedAt  time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt  time.Time      `gorm:"not null"`                 // 更新时间
	StartedAt  *time.Time     `gorm:""`                         // 开始时间
	EndedAt    *time.Time     `gorm:""`                         // 结束时间
	Error      string         `gorm:"type:text"`                // 错误信息
	Result     datatypes.JSON `gorm:"type:json"`                // 任务结果
	Retries    int            `gorm:"default:0"`                // 重试次数
	Progress   int            `gorm:"default:0"`                // 进度（0-100）
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (dt *DocumentTask) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	dt.CreatedAt = now
	dt.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (dt *DocumentTask) BeforeUpdate(tx *gorm.DB) (err error) {
	dt.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (DocumentTask) TableName() string {
	return "document_tasks"
}
