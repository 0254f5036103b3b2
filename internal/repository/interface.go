package repository

import "github.com/asukhodko/dify-markdown-chunker-sub002/internal/models"

// DocumentRepository 文档仓储接口
// 负责文档元数据和分块记录的存储和检索
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档
	GetByID(id string) (*models.Document, error)

	// List 列出文档列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete 删除文档
	Delete(id string) error

	// UpdateStatus 更新文档状态
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateProgress 更新文档处理进度
	UpdateProgress(id string, progress int) error

	// SaveChunk 保存分块记录
	SaveChunk(chunk *models.ChunkRecord) error

	// SaveChunks 批量保存分块记录
	SaveChunks(chunks []*models.ChunkRecord) error

	// GetChunks 获取文档的所有分块，按序号排列
	GetChunks(docID string) ([]*models.ChunkRecord, error)

	// GetChunkByID 根据层级分块ID获取分块
	GetChunkByID(docID, chunkID string) (*models.ChunkRecord, error)

	// CountChunks 统计文档的分块数量
	CountChunks(docID string) (int, error)

	// DeleteChunks 删除文档的所有分块
	DeleteChunks(docID string) error
}
