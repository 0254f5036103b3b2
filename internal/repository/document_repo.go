package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/database"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/models"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/taskqueue"
	"gorm.io/gorm"
)

// docRepository 文档仓储实现
type docRepository struct {
	db        *gorm.DB        // 数据库连接
	taskQueue taskqueue.Queue // 任务队列
	ctx       context.Context // 上下文，可用于事务或超时控制
}

// NewDocumentRepository 创建文档仓储实例
func NewDocumentRepository() DocumentRepository {
	return &docRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// NewDocumentRepositoryWithQueue 使用指定的数据库连接和任务队列创建文档仓储实例
func NewDocumentRepositoryWithQueue(db *gorm.DB, queue taskqueue.Queue) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db:        db,
		taskQueue: queue,
		ctx:       context.Background(),
	}
}

// Create 创建文档记录
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Save(doc).Error
}

// GetByID 根据ID获取文档
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档列表，支持分页和筛选
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	// 应用筛选条件
	if filters != nil {
		// 状态过滤
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.DocumentStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			default:
				statusStr := fmt.Sprintf("%v", status)
				if statusStr != "" {
					query = query.Where("status = ?", statusStr)
				}
			}
		}

		// 标签过滤
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}

		// 策略过滤
		if strategy, ok := filters["strategy"].(string); ok && strategy != "" {
			query = query.Where("strategy = ?", strategy)
		}

		// 时间范围过滤
		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("uploaded_at >= ?", startTime)
		}

		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("uploaded_at <= ?", endTime)
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	// 获取总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 应用排序、分页并执行查询
	err := query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&docs).Error

	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete 删除文档记录
func (r *docRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 1. 删除文档分块
		if err := tx.Where("document_id = ?", id).Delete(&models.ChunkRecord{}).Error; err != nil {
			return err
		}

		// 2. 删除文档记录
		if err := tx.Where("id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}

		// 3. 如果任务队列已初始化，尝试获取并删除相关任务
		if r.taskQueue != nil {
			ctx := r.getContext()
			tasks, err := r.taskQueue.GetTasksByDocument(ctx, id)
			if err == nil && len(tasks) > 0 {
				for _, task := range tasks {
					// 忽略错误，因为任务可能已经被删除
					_ = r.taskQueue.DeleteTask(ctx, task.ID)
				}
			}
		}

		return nil
	})
}

// UpdateStatus 更新文档状态
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	// 如果状态是已完成或失败，设置处理完成时间
	if status == models.DocStatusCompleted || status == models.DocStatusFailed {
		now := time.Now()
		updates["processed_at"] = &now
	}

	return r.db.Model(&models.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateProgress 更新文档处理进度
func (r *docRepository) UpdateProgress(id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return r.db.Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":   progress,
			"updated_at": time.Now(),
		}).Error
}

// SaveChunk 保存分块记录
func (r *docRepository) SaveChunk(chunk *models.ChunkRecord) error {
	return r.db.Create(chunk).Error
}

// SaveChunks 批量保存分块记录
func (r *docRepository) SaveChunks(chunks []*models.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}

	// 使用事务批量插入
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(chunks, 100).Error
	})
}

// GetChunks 获取文档的所有分块
func (r *docRepository) GetChunks(docID string) ([]*models.ChunkRecord, error) {
	var chunks []*models.ChunkRecord
	err := r.db.Where("document_id = ?", docID).
		Order("position ASC").
		Find(&chunks).Error
	return chunks, err
}

// GetChunkByID 根据层级分块ID获取分块
func (r *docRepository) GetChunkByID(docID, chunkID string) (*models.ChunkRecord, error) {
	var chunk models.ChunkRecord
	err := r.db.Where("document_id = ? AND chunk_id = ?", docID, chunkID).
		First(&chunk).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrChunkNotFound
		}
		return nil, err
	}
	return &chunk, nil
}

// CountChunks 统计文档的分块数量
func (r *docRepository) CountChunks(docID string) (int, error) {
	var count int64
	err := r.db.Model(&models.ChunkRecord{}).
		Where("document_id = ?", docID).
		Count(&count).Error
	return int(count), err
}

// DeleteChunks 删除文档的所有分块
func (r *docRepository) DeleteChunks(docID string) error {
	return r.db.Where("document_id = ?", docID).
		Delete(&models.ChunkRecord{}).Error
}

// WithContext 创建带有上下文的仓储
func (r *docRepository) WithContext(ctx context.Context) DocumentRepository {
	return &docRepository{
		db:        r.db.WithContext(ctx),
		taskQueue: r.taskQueue,
		ctx:       ctx,
	}
}

// getContext 获取仓储的上下文，如果未设置则使用背景上下文
func (r *docRepository) getContext() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}
