package taskqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ChunkProcessor 分块任务的实际执行者
// 由服务层实现，处理器只负责任务编排和状态维护
type ChunkProcessor interface {
	// ChunkMarkdown 执行Markdown分块
	ChunkMarkdown(ctx context.Context, payload *MarkdownChunkPayload) (*MarkdownChunkResult, error)

	// ChunkHierarchy 执行带层级结构的Markdown分块
	ChunkHierarchy(ctx context.Context, payload *MarkdownChunkPayload) (*MarkdownChunkResult, error)

	// ProcessDocument 读取存储中的文档并完成分块入库
	ProcessDocument(ctx context.Context, payload *DocumentProcessPayload) (*DocumentProcessResult, error)
}

// ChunkTaskHandler 分块任务处理器
// 将队列中的任务分发给ChunkProcessor，并把结果写回任务存储
type ChunkTaskHandler struct {
	queue     Queue          // 任务队列，用于写回结果
	processor ChunkProcessor // 实际执行分块的服务
	logger    *logrus.Logger // 日志记录器
}

// NewChunkTaskHandler 创建分块任务处理器
func NewChunkTaskHandler(queue Queue, processor ChunkProcessor, logger *logrus.Logger) *ChunkTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &ChunkTaskHandler{
		queue:     queue,
		processor: processor,
		logger:    logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *ChunkTaskHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskMarkdownChunk, TaskChunkHierarchy, TaskDocumentProcess}
}

// ProcessTask 处理任务
func (h *ChunkTaskHandler) ProcessTask(ctx context.Context, task *Task) error {
	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"task_type":   task.Type,
		"document_id": task.DocumentID,
	}).Info("Processing chunk task")

	switch task.Type {
	case TaskMarkdownChunk:
		return h.processMarkdownChunk(ctx, task, false)
	case TaskChunkHierarchy:
		return h.processMarkdownChunk(ctx, task, true)
	case TaskDocumentProcess:
		return h.processDocument(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// processMarkdownChunk 处理Markdown分块任务（可选构建层级）
func (h *ChunkTaskHandler) processMarkdownChunk(ctx context.Context, task *Task, hierarchy bool) error {
	var payload MarkdownChunkPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if payload.Content == "" {
		h.logger.WithField("task_id", task.ID).Warn("Empty markdown content in chunk task")
	}

	var (
		result *MarkdownChunkResult
		err    error
	)
	if hierarchy {
		result, err = h.processor.ChunkHierarchy(ctx, &payload)
	} else {
		result, err = h.processor.ChunkMarkdown(ctx, &payload)
	}
	if err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Error("Chunk task failed")
		return err
	}

	// 结果写回任务存储，状态封口由Worker完成
	if err := h.queue.UpdateTaskStatus(ctx, task.ID, StatusProcessing, result, ""); err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to store chunk result")
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": task.DocumentID,
		"strategy":    result.Strategy,
		"chunk_count": result.ChunkCount,
	}).Info("Chunk task completed")

	return nil
}

// processDocument 处理文档完整处理任务
func (h *ChunkTaskHandler) processDocument(ctx context.Context, task *Task) error {
	var payload DocumentProcessPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	result, err := h.processor.ProcessDocument(ctx, &payload)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"task_id":     task.ID,
			"document_id": payload.DocumentID,
			"file_id":     payload.FileID,
		}).Error("Document process task failed")
		return err
	}

	if err := h.queue.UpdateTaskStatus(ctx, task.ID, StatusProcessing, result, ""); err != nil {
		h.logger.WithError(err).WithField("task_id", task.ID).Error("Failed to store document process result")
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": result.DocumentID,
		"chunk_count": result.ChunkCount,
		"persisted":   result.Persisted,
	}).Info("Document process task completed")

	return nil
}

// RegisterChunkHandlers 在Worker上注册全部分块任务处理器
func RegisterChunkHandlers(w Worker, h *ChunkTaskHandler) {
	for _, taskType := range h.GetTaskTypes() {
		w.RegisterHandler(taskType, h)
	}
}
