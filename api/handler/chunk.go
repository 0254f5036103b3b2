package handler

import (
	"encoding/json"
	"net/http"

	"github.com/asukhodko/dify-markdown-chunker-sub002/api/middleware"
	"github.com/asukhodko/dify-markdown-chunker-sub002/api/model"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/chunker"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/services"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ChunkHandler 处理Markdown分块相关的API请求
type ChunkHandler struct {
	chunks *services.ChunkService // 分块服务
	queue  taskqueue.Queue        // 任务队列，可为nil（禁用异步分块）
	logger *logrus.Logger         // 日志记录器
}

// NewChunkHandler 创建新的分块处理器
func NewChunkHandler(chunks *services.ChunkService, queue taskqueue.Queue) *ChunkHandler {
	return &ChunkHandler{
		chunks: chunks,
		queue:  queue,
		logger: middleware.GetLogger(),
	}
}

// ChunkMarkdown 处理Markdown分块请求
// POST /api/chunk
func (h *ChunkHandler) ChunkMarkdown(c *gin.Context) {
	var req model.ChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid chunk request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	// 异步模式：任务入队后立即返回任务ID
	if req.Async {
		h.enqueueChunkTask(c, &req, taskqueue.TaskMarkdownChunk)
		return
	}

	cfg, err := decodeChunkConfig(req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的分块配置: "+err.Error(),
		))
		return
	}

	result, err := h.chunks.ChunkMarkdown(c.Request.Context(), req.Content, services.ChunkOptions{
		Preset:   req.Preset,
		Config:   cfg,
		Strategy: req.Strategy,
	})
	if err != nil {
		h.logger.WithError(err).Warn("Chunk request failed")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"分块失败: "+err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewChunkResponse(result)))
}

// ChunkHierarchy 处理带层级结构的分块请求
// POST /api/chunk/hierarchy
func (h *ChunkHandler) ChunkHierarchy(c *gin.Context) {
	var req model.ChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid hierarchy chunk request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	if req.Async {
		h.enqueueChunkTask(c, &req, taskqueue.TaskChunkHierarchy)
		return
	}

	cfg, err := decodeChunkConfig(req.Config)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的分块配置: "+err.Error(),
		))
		return
	}

	result, err := h.chunks.ChunkHierarchical(c.Request.Context(), req.Content, services.ChunkOptions{
		Preset:   req.Preset,
		Config:   cfg,
		Strategy: req.Strategy,
	})
	if err != nil {
		h.logger.WithError(err).Warn("Hierarchy chunk request failed")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"层级分块失败: "+err.Error(),
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.HierarchyResponse{
		Chunks:     result.Chunks,
		RootID:     result.RootID,
		ChunkCount: len(result.Chunks),
	}))
}

// ListPresets 返回可用的预设配置名称
// GET /api/presets
func (h *ChunkHandler) ListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.PresetsResponse{
		Presets: h.chunks.Presets(),
	}))
}

// enqueueChunkTask 将分块请求作为异步任务入队
func (h *ChunkHandler) enqueueChunkTask(c *gin.Context, req *model.ChunkRequest, taskType taskqueue.TaskType) {
	if h.queue == nil {
		c.JSON(http.StatusServiceUnavailable, model.NewErrorResponse(
			http.StatusServiceUnavailable,
			"异步处理不可用，任务队列未配置",
		))
		return
	}

	payload := taskqueue.MarkdownChunkPayload{
		DocumentID: req.DocID,
		Content:    req.Content,
		Preset:     req.Preset,
		Config:     req.Config,
		Strategy:   req.Strategy,
	}

	taskID, err := h.queue.Enqueue(c.Request.Context(), taskType, req.DocID, payload)
	if err != nil {
		h.logger.WithError(err).Error("Failed to enqueue chunk task")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"创建分块任务失败",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": taskType,
	}).Info("Chunk task enqueued")

	c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.TaskEnqueueResponse{
		TaskID:     taskID,
		DocumentID: req.DocID,
		Status:     string(taskqueue.StatusPending),
	}))
}

// decodeChunkConfig 解析请求中的配置覆盖
// 空配置返回nil，部分配置在默认值基础上覆盖
func decodeChunkConfig(raw json.RawMessage) (*chunker.ChunkConfig, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	cfg := chunker.DefaultChunkConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
