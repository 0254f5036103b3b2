package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/api/middleware"
	"github.com/asukhodko/dify-markdown-chunker-sub002/api/model"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/models"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/services"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	documentService *services.DocumentService // 文档服务
	logger          *logrus.Logger            // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// UploadDocument 处理文档上传请求
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid document upload request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	if req.File == nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"未提供文件",
		))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithError(err).WithField("filename", req.File.Filename).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"无法打开上传的文件",
		))
		return
	}
	defer file.Close()

	doc, err := h.documentService.Upload(c.Request.Context(), file, req.File.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedFileType) {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(
				http.StatusBadRequest,
				"不支持的文件类型，仅支持Markdown文档",
			))
			return
		}

		h.logger.WithError(err).WithField("filename", req.File.Filename).Error("Failed to save document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"保存文件失败",
		))
		return
	}

	// 记录标签
	if req.Tags != "" {
		doc.Tags = req.Tags
		if err := h.documentService.UpdateDocument(c.Request.Context(), doc); err != nil {
			h.logger.WithError(err).Warn("Failed to record document tags")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": doc.FileName,
		"size":     doc.FileSize,
	}).Info("File uploaded successfully")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentUploadResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		FileSize:   doc.FileSize,
		Status:     string(doc.Status),
	}))
}

// ProcessDocument 触发文档分块处理
// POST /api/documents/:id/process
func (h *DocumentHandler) ProcessDocument(c *gin.Context) {
	var uri model.DocumentIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	// 请求体可为空，全部使用默认选项
	var req model.DocumentProcessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的请求参数"))
			return
		}
	}

	err := h.documentService.ProcessDocument(c.Request.Context(), uri.ID, services.ProcessOptions{
		Preset:    req.Preset,
		Strategy:  req.Strategy,
		Hierarchy: req.Hierarchy,
		Persist:   req.Persist,
	})
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到文档"))
			return
		}

		h.logger.WithError(err).WithField("doc_id", uri.ID).Error("Failed to process document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"处理文档失败: "+err.Error(),
		))
		return
	}

	doc, err := h.documentService.GetDocument(c.Request.Context(), uri.ID)
	if err != nil {
		h.logger.WithError(err).WithField("doc_id", uri.ID).Warn("Failed to reload document after processing")
		c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"document_id": uri.ID}))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(documentStatusResponse(doc)))
}

// GetDocumentStatus 获取文档处理状态
// GET /api/documents/:id/status
func (h *DocumentHandler) GetDocumentStatus(c *gin.Context) {
	var uri model.DocumentIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	doc, err := h.documentService.GetDocument(c.Request.Context(), uri.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到文档"))
			return
		}

		h.logger.WithError(err).WithField("doc_id", uri.ID).Error("Failed to get document info")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取文档信息失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(documentStatusResponse(doc)))
}

// ListDocuments 获取文档列表
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.Strategy != "" {
		filters["strategy"] = req.Strategy
	}
	if req.FileName != "" {
		filters["file_name"] = req.FileName
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), offset, req.GetPageSize(), filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取文档列表失败",
		))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.NewDocumentInfo(doc)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Documents: infos,
	}))
}

// GetDocumentChunks 获取文档的分块结果
// GET /api/documents/:id/chunks
func (h *DocumentHandler) GetDocumentChunks(c *gin.Context) {
	var uri model.DocumentIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	chunks, err := h.documentService.GetChunks(c.Request.Context(), uri.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到文档"))
			return
		}

		h.logger.WithError(err).WithField("doc_id", uri.ID).Error("Failed to get document chunks")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取分块列表失败",
		))
		return
	}

	infos := make([]model.ChunkRecordInfo, len(chunks))
	for i, ch := range chunks {
		infos[i] = model.ChunkRecordInfo{
			ChunkID:     ch.ChunkID,
			ParentID:    ch.ParentID,
			Position:    ch.Position,
			Content:     ch.Content,
			StartLine:   ch.StartLine,
			EndLine:     ch.EndLine,
			Size:        ch.Size,
			Strategy:    ch.Strategy,
			SectionPath: ch.SectionPath,
			Level:       ch.Level,
		}
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentChunksResponse{
		DocumentID: uri.ID,
		Total:      len(infos),
		Chunks:     infos,
	}))
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var uri model.DocumentIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), uri.ID); err != nil {
		h.logger.WithError(err).WithField("doc_id", uri.ID).Error("Failed to delete document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"删除文档失败",
		))
		return
	}

	h.logger.WithField("doc_id", uri.ID).Info("Document deleted successfully")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentDeleteResponse{
		Success:    true,
		DocumentID: uri.ID,
	}))
}

// documentStatusResponse 构建文档状态响应
func documentStatusResponse(doc *models.Document) model.DocumentStatusResponse {
	return model.DocumentStatusResponse{
		DocumentID: doc.ID,
		Status:     string(doc.Status),
		FileName:   doc.FileName,
		Progress:   doc.Progress,
		Stage:      string(doc.CurrentStage),
		TaskID:     doc.CurrentTaskID,
		ChunkCount: doc.ChunkCount,
		Strategy:   doc.Strategy,
		Error:      doc.Error,
		UploadedAt: doc.UploadedAt.Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt.Format(time.RFC3339),
	}
}
