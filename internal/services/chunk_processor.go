package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/chunker"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// ChunkTaskProcessor 分块任务执行器
// 实现taskqueue.ChunkProcessor，在Worker进程内完成实际分块
type ChunkTaskProcessor struct {
	chunks *ChunkService    // 分块服务
	docs   *DocumentService // 文档服务，处理文档级任务
	logger *logrus.Logger   // 日志记录器
}

// NewChunkTaskProcessor 创建分块任务执行器
func NewChunkTaskProcessor(chunks *ChunkService, docs *DocumentService, logger *logrus.Logger) *ChunkTaskProcessor {
	if logger == nil {
		logger = logrus.New()
	}

	return &ChunkTaskProcessor{
		chunks: chunks,
		docs:   docs,
		logger: logger,
	}
}

// ChunkMarkdown 执行Markdown分块任务
func (p *ChunkTaskProcessor) ChunkMarkdown(ctx context.Context, payload *taskqueue.MarkdownChunkPayload) (*taskqueue.MarkdownChunkResult, error) {
	opts, err := p.chunkOptions(payload)
	if err != nil {
		return nil, err
	}

	result, err := p.chunks.ChunkMarkdown(ctx, payload.Content, opts)
	if err != nil {
		return nil, err
	}

	out := &taskqueue.MarkdownChunkResult{
		DocumentID:     payload.DocumentID,
		Strategy:       result.StrategyUsed,
		FallbackUsed:   result.FallbackUsed,
		ChunkCount:     len(result.Chunks),
		TotalChars:     result.TotalChars,
		Chunks:         chunkSummaries(result.Chunks),
		Warnings:       result.Warnings,
		ProcessingTime: result.ProcessingTime,
	}
	if len(result.Errors) > 0 {
		out.Error = result.Errors[0]
	}

	return out, nil
}

// ChunkHierarchy 执行带层级结构的分块任务
func (p *ChunkTaskProcessor) ChunkHierarchy(ctx context.Context, payload *taskqueue.MarkdownChunkPayload) (*taskqueue.MarkdownChunkResult, error) {
	opts, err := p.chunkOptions(payload)
	if err != nil {
		return nil, err
	}

	result, err := p.chunks.ChunkHierarchical(ctx, payload.Content, opts)
	if err != nil {
		return nil, err
	}

	totalChars := 0
	for _, ch := range result.Chunks {
		if !ch.Metadata.IsRoot {
			totalChars += ch.Size()
		}
	}

	return &taskqueue.MarkdownChunkResult{
		DocumentID: payload.DocumentID,
		Strategy:   strategyOfChunks(result.Chunks),
		ChunkCount: len(result.Chunks),
		TotalChars: totalChars,
		Chunks:     chunkSummaries(result.Chunks),
		RootID:     result.RootID,
	}, nil
}

// ProcessDocument 执行文档完整处理任务
func (p *ChunkTaskProcessor) ProcessDocument(ctx context.Context, payload *taskqueue.DocumentProcessPayload) (*taskqueue.DocumentProcessResult, error) {
	started := time.Now()

	opts := ProcessOptions{
		Preset:    payload.Preset,
		Strategy:  payload.Strategy,
		Hierarchy: payload.Hierarchy,
		Persist:   payload.Persist,
	}

	// Worker内始终同步处理，避免任务再次入队
	if err := p.docs.processDocumentSync(ctx, payload.DocumentID, opts); err != nil {
		return nil, err
	}

	doc, err := p.docs.GetDocument(ctx, payload.DocumentID)
	if err != nil {
		return nil, err
	}

	return &taskqueue.DocumentProcessResult{
		DocumentID:  payload.DocumentID,
		ChunkCount:  doc.ChunkCount,
		Strategy:    doc.Strategy,
		Persisted:   payload.Persist,
		ElapsedSecs: time.Since(started).Seconds(),
	}, nil
}

// chunkOptions 将任务载荷转换为分块选项
func (p *ChunkTaskProcessor) chunkOptions(payload *taskqueue.MarkdownChunkPayload) (ChunkOptions, error) {
	opts := ChunkOptions{
		Preset:   payload.Preset,
		Strategy: payload.Strategy,
	}

	// 配置覆盖以默认配置为基底反序列化
	if len(payload.Config) > 0 {
		cfg := chunker.DefaultChunkConfig()
		if err := json.Unmarshal(payload.Config, cfg); err != nil {
			return ChunkOptions{}, fmt.Errorf("%w: %v", taskqueue.ErrInvalidPayload, err)
		}
		opts.Config = cfg
	}

	return opts, nil
}

// chunkSummaries 将分块转换为任务结果摘要
func chunkSummaries(chunks []*chunker.Chunk) []taskqueue.ChunkSummary {
	out := make([]taskqueue.ChunkSummary, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, taskqueue.ChunkSummary{
			Index:       ch.Metadata.ChunkIndex,
			StartLine:   ch.StartLine,
			EndLine:     ch.EndLine,
			Size:        ch.Size(),
			Strategy:    ch.Metadata.Strategy,
			SectionPath: joinSectionPath(ch.Metadata.SectionPath),
			ChunkID:     ch.Metadata.ChunkID,
			Oversize:    ch.Metadata.AllowOversize,
			SmallChunk:  ch.Metadata.SmallChunk,
		})
	}
	return out
}
