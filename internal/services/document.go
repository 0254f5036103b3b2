package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/chunker"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/models"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/repository"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/storage"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/taskqueue"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DocumentService 文档服务
// 负责协调文档上传、分块和分块结果入库
type DocumentService struct {
	storage       storage.Storage               // 文件存储服务
	chunks        *ChunkService                 // 分块服务
	repo          repository.DocumentRepository // 文档元数据存储
	statusManager *DocumentStatusManager        // 文档状态管理器
	taskQueue     taskqueue.Queue               // 任务队列
	asyncEnabled  bool                          // 是否启用异步处理
	timeout       time.Duration                 // 处理超时时间
	defaults      ProcessOptions                // 服务级默认处理选项
	logger        *logrus.Logger                // 日志记录器
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建一个新的文档服务
func NewDocumentService(
	store storage.Storage,
	chunks *ChunkService,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage:      store,
		chunks:       chunks,
		timeout:      time.Minute * 5, // 默认超时时间
		logger:       logrus.New(),
		asyncEnabled: false,
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDocumentRepository 设置文档仓储
func WithDocumentRepository(repo repository.DocumentRepository) DocumentOption {
	return func(s *DocumentService) {
		s.repo = repo
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *DocumentStatusManager) DocumentOption {
	return func(s *DocumentService) {
		s.statusManager = manager
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// WithProcessDefaults 设置服务级默认处理选项
// 请求未指定预设或策略时使用这里的值；默认入库开启后处理结果始终入库
func WithProcessDefaults(defaults ProcessOptions) DocumentOption {
	return func(s *DocumentService) {
		s.defaults = defaults
	}
}

// Init 初始化文档服务
// 确保必要的依赖都已设置
func (s *DocumentService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewDocumentRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewDocumentStatusManager(s.repo, s.logger)
	}

	return nil
}

// ProcessOptions 文档处理选项
type ProcessOptions struct {
	Preset    string // 预设配置名称
	Strategy  string // 策略覆盖
	Hierarchy bool   // 是否构建层级结构
	Persist   bool   // 是否将分块写入数据库
}

// Upload 保存上传的Markdown文档并创建元数据记录
func (s *DocumentService) Upload(ctx context.Context, reader io.Reader, filename string) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	if !storage.IsMarkdownFile(filename) {
		return nil, storage.ErrUnsupportedFileType
	}

	info, err := s.storage.Save(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	if err := s.statusManager.MarkAsUploaded(ctx, info.ID, info.Name, info.Path, info.Size); err != nil {
		// 元数据写入失败时回滚已保存的文件
		_ = s.storage.Delete(info.ID)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":   info.ID,
		"filename": info.Name,
		"size":     info.Size,
	}).Info("Document uploaded")

	return s.repo.GetByID(info.ID)
}

// ProcessDocument 处理文档（读取、分块、入库）
func (s *DocumentService) ProcessDocument(ctx context.Context, docID string, opts ProcessOptions) error {
	if err := s.Init(); err != nil {
		return err
	}

	if docID == "" {
		return errors.New("document ID cannot be empty")
	}

	opts = s.applyDefaults(opts)

	s.logger.WithFields(logrus.Fields{
		"doc_id":    docID,
		"preset":    opts.Preset,
		"strategy":  opts.Strategy,
		"hierarchy": opts.Hierarchy,
	}).Info("Starting document processing")

	// 如果启用异步处理并且任务队列已配置，使用任务队列处理
	if s.asyncEnabled && s.taskQueue != nil {
		return s.processDocumentAsync(ctx, docID, opts)
	}

	return s.processDocumentSync(ctx, docID, opts)
}

// processDocumentAsync 异步处理文档
// 将任务加入队列并立即返回
func (s *DocumentService) processDocumentAsync(ctx context.Context, docID string, opts ProcessOptions) error {
	doc, err := s.repo.GetByID(docID)
	if err != nil {
		return err
	}

	if err := s.statusManager.MarkAsProcessing(ctx, docID); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as processing")
		// 继续处理，不中断
	}

	payload := taskqueue.DocumentProcessPayload{
		DocumentID: docID,
		FileID:     docID,
		FileName:   doc.FileName,
		Preset:     opts.Preset,
		Strategy:   opts.Strategy,
		Hierarchy:  opts.Hierarchy,
		Persist:    opts.Persist,
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskDocumentProcess, docID, payload)
	if err != nil {
		s.failDocument(ctx, docID, fmt.Sprintf("failed to create processing task: %v", err))
		return fmt.Errorf("failed to create processing task: %w", err)
	}

	// 记录当前任务，便于状态查询
	doc.CurrentTaskID = taskID
	doc.CurrentStage = models.StageChunking
	doc.Preset = opts.Preset
	if err := s.repo.Update(doc); err != nil {
		s.logger.WithError(err).Warn("Failed to record current task on document")
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":  docID,
		"task_id": taskID,
	}).Info("Document processing task created successfully")

	return nil
}

// processDocumentSync 同步处理文档
// 直接在当前进程中完成分块和入库
func (s *DocumentService) processDocumentSync(ctx context.Context, docID string, opts ProcessOptions) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.statusManager.MarkAsProcessing(ctx, docID); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as processing")
		// 继续处理，不中断
	}

	content, err := s.readDocument(docID)
	if err != nil {
		s.failDocument(ctx, docID, fmt.Sprintf("failed to read document: %v", err))
		return fmt.Errorf("failed to read document: %w", err)
	}

	if err := s.statusManager.UpdateProgress(ctx, docID, 20); err != nil {
		s.logger.WithError(err).Warn("Failed to update document progress")
	}

	chunkOpts := ChunkOptions{Preset: opts.Preset, Strategy: opts.Strategy}

	var (
		outChunks []*chunker.Chunk
		strategy  string
	)
	if opts.Hierarchy {
		result, err := s.chunks.ChunkHierarchical(ctx, content, chunkOpts)
		if err != nil {
			s.failDocument(ctx, docID, fmt.Sprintf("failed to chunk document: %v", err))
			return fmt.Errorf("failed to chunk document: %w", err)
		}
		outChunks = result.Chunks
		strategy = strategyOfChunks(result.Chunks)
	} else {
		result, err := s.chunks.ChunkMarkdown(ctx, content, chunkOpts)
		if err != nil {
			s.failDocument(ctx, docID, fmt.Sprintf("failed to chunk document: %v", err))
			return fmt.Errorf("failed to chunk document: %w", err)
		}
		outChunks = result.Chunks
		strategy = result.StrategyUsed
	}

	if err := s.statusManager.UpdateProgress(ctx, docID, 70); err != nil {
		s.logger.WithError(err).Warn("Failed to update document progress")
	}

	if opts.Persist {
		if err := s.persistChunks(docID, "", outChunks); err != nil {
			s.failDocument(ctx, docID, fmt.Sprintf("failed to persist chunks: %v", err))
			return fmt.Errorf("failed to persist chunks: %w", err)
		}
	}

	if err := s.statusManager.MarkAsCompleted(ctx, docID, len(outChunks), strategy); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as completed")
		// 状态更新失败但处理已成功，不返回错误
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":      docID,
		"chunk_count": len(outChunks),
		"strategy":    strategy,
	}).Info("Document processing completed successfully")

	return nil
}

// applyDefaults 用服务级默认值补全处理选项
func (s *DocumentService) applyDefaults(opts ProcessOptions) ProcessOptions {
	if opts.Preset == "" {
		opts.Preset = s.defaults.Preset
	}
	if opts.Strategy == "" {
		opts.Strategy = s.defaults.Strategy
	}
	opts.Persist = opts.Persist || s.defaults.Persist
	return opts
}

// readDocument 从存储读取文档全文
func (s *DocumentService) readDocument(docID string) (string, error) {
	reader, err := s.storage.Get(docID)
	if err != nil {
		return "", fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read file content: %w", err)
	}

	return string(data), nil
}

// persistChunks 将分块结果写入数据库
func (s *DocumentService) persistChunks(docID, taskID string, chunks []*chunker.Chunk) error {
	// 覆盖旧的分块结果
	if err := s.repo.DeleteChunks(docID); err != nil {
		return err
	}

	records := make([]*models.ChunkRecord, 0, len(chunks))
	for i, ch := range chunks {
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}

		records = append(records, &models.ChunkRecord{
			DocumentID:  docID,
			ChunkID:     ch.Metadata.ChunkID,
			ParentID:    ch.Metadata.ParentID,
			Position:    i,
			Content:     ch.Content,
			StartLine:   ch.StartLine,
			EndLine:     ch.EndLine,
			Size:        ch.Size(),
			Strategy:    ch.Metadata.Strategy,
			SectionPath: joinSectionPath(ch.Metadata.SectionPath),
			Level:       ch.Metadata.HierarchyLevel,
			Metadata:    datatypes.JSON(meta),
			TaskID:      taskID,
		})
	}

	return s.repo.SaveChunks(records)
}

// UpdateDocument 更新文档元数据
func (s *DocumentService) UpdateDocument(ctx context.Context, doc *models.Document) error {
	if err := s.Init(); err != nil {
		return err
	}
	return s.repo.Update(doc)
}

// GetDocument 获取文档元数据
func (s *DocumentService) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(docID)
}

// ListDocuments 列出文档
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	if err := s.Init(); err != nil {
		return nil, 0, err
	}
	return s.repo.List(offset, limit, filters)
}

// GetChunks 获取文档的分块记录
func (s *DocumentService) GetChunks(ctx context.Context, docID string) ([]*models.ChunkRecord, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	// 确认文档存在
	if _, err := s.repo.GetByID(docID); err != nil {
		return nil, err
	}

	return s.repo.GetChunks(docID)
}

// DeleteDocument 删除文档及其分块
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	if err := s.storage.Delete(docID); err != nil {
		// 文件可能已不存在，记录但继续删除元数据
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to delete stored file")
	}

	return s.repo.Delete(docID)
}

// failDocument 标记文档处理失败
func (s *DocumentService) failDocument(ctx context.Context, docID string, errorMsg string) {
	if err := s.statusManager.MarkAsFailed(ctx, docID, errorMsg); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Error("Failed to mark document as failed")
	}
}

// strategyOfChunks 从分块元数据提取策略名称
// 层级结果没有整体策略字段，取首个内容块的策略
func strategyOfChunks(chunks []*chunker.Chunk) string {
	for _, ch := range chunks {
		if ch.Metadata.IsRoot {
			continue
		}
		if ch.Metadata.Strategy != "" {
			return ch.Metadata.Strategy
		}
	}
	return ""
}

// joinSectionPath 将section path列表拼接为可读字符串
func joinSectionPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " > "
		}
		out += p
	}
	return out
}
