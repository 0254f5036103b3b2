package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue 内存实现的任务队列，只用于测试处理器逻辑
type fakeQueue struct {
	mu    sync.Mutex
	tasks map[string]*Task
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{tasks: make(map[string]*Task)}
}

func (q *fakeQueue) put(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks[task.ID] = task
}

func (q *fakeQueue) Enqueue(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error) {
	data, err := MarshalPayload(payload)
	if err != nil {
		return "", err
	}
	task := &Task{
		ID:         "fake-" + string(taskType),
		Type:       taskType,
		DocumentID: documentID,
		Status:     StatusPending,
		Payload:    data,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	q.put(task)
	return task.ID, nil
}

func (q *fakeQueue) EnqueueAt(ctx context.Context, taskType TaskType, documentID string, payload interface{}, processAt time.Time) (string, error) {
	return q.Enqueue(ctx, taskType, documentID, payload)
}

func (q *fakeQueue) EnqueueIn(ctx context.Context, taskType TaskType, documentID string, payload interface{}, delay time.Duration) (string, error) {
	return q.Enqueue(ctx, taskType, documentID, payload)
}

func (q *fakeQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (q *fakeQueue) GetTasksByDocument(ctx context.Context, documentID string) ([]*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var tasks []*Task
	for _, task := range q.tasks {
		if task.DocumentID == documentID {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (q *fakeQueue) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	return q.GetTask(ctx, taskID)
}

func (q *fakeQueue) DeleteTask(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.tasks, taskID)
	return nil
}

func (q *fakeQueue) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errorMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	task.Status = status
	task.Error = errorMsg
	task.UpdatedAt = time.Now()
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		task.Result = data
	}
	return nil
}

func (q *fakeQueue) NotifyTaskUpdate(ctx context.Context, taskID string) error { return nil }

func (q *fakeQueue) Close() error { return nil }

// fakeProcessor 记录调用并返回预设结果的处理器
type fakeProcessor struct {
	chunkCalls     int
	hierarchyCalls int
	documentCalls  int
	lastPayload    *MarkdownChunkPayload
	chunkResult    *MarkdownChunkResult
	docResult      *DocumentProcessResult
	err            error
}

func (p *fakeProcessor) ChunkMarkdown(ctx context.Context, payload *MarkdownChunkPayload) (*MarkdownChunkResult, error) {
	p.chunkCalls++
	p.lastPayload = payload
	return p.chunkResult, p.err
}

func (p *fakeProcessor) ChunkHierarchy(ctx context.Context, payload *MarkdownChunkPayload) (*MarkdownChunkResult, error) {
	p.hierarchyCalls++
	p.lastPayload = payload
	return p.chunkResult, p.err
}

func (p *fakeProcessor) ProcessDocument(ctx context.Context, payload *DocumentProcessPayload) (*DocumentProcessResult, error) {
	p.documentCalls++
	return p.docResult, p.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestChunkTaskHandler_GetTaskTypes(t *testing.T) {
	handler := NewChunkTaskHandler(newFakeQueue(), &fakeProcessor{}, testLogger())

	types := handler.GetTaskTypes()
	assert.Len(t, types, 3, "Handler should support three task types")
	assert.Contains(t, types, TaskMarkdownChunk)
	assert.Contains(t, types, TaskChunkHierarchy)
	assert.Contains(t, types, TaskDocumentProcess)
}

func TestChunkTaskHandler_ProcessMarkdownChunk(t *testing.T) {
	queue := newFakeQueue()
	processor := &fakeProcessor{
		chunkResult: &MarkdownChunkResult{
			DocumentID: "doc1",
			Strategy:   "structural",
			ChunkCount: 3,
			Chunks: []ChunkSummary{
				{Index: 0, Size: 120, Strategy: "structural"},
				{Index: 1, Size: 240, Strategy: "structural"},
				{Index: 2, Size: 90, Strategy: "structural"},
			},
		},
	}
	handler := NewChunkTaskHandler(queue, processor, testLogger())

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskMarkdownChunk, "doc1", &MarkdownChunkPayload{
		DocumentID: "doc1",
		Content:    "# Title\n\nSome content here.",
		Preset:     "rag",
	})
	require.NoError(t, err, "Enqueue should not fail")

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	err = handler.ProcessTask(ctx, task)
	require.NoError(t, err, "ProcessTask should not fail")
	assert.Equal(t, 1, processor.chunkCalls, "ChunkMarkdown should be called once")
	assert.Equal(t, 0, processor.hierarchyCalls, "ChunkHierarchy should not be called")
	require.NotNil(t, processor.lastPayload)
	assert.Equal(t, "rag", processor.lastPayload.Preset, "Payload preset should be forwarded")

	// 结果写回任务存储
	stored, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	var result MarkdownChunkResult
	require.NoError(t, json.Unmarshal(stored.Result, &result))
	assert.Equal(t, "structural", result.Strategy)
	assert.Equal(t, 3, result.ChunkCount)
}

func TestChunkTaskHandler_ProcessHierarchy(t *testing.T) {
	queue := newFakeQueue()
	processor := &fakeProcessor{
		chunkResult: &MarkdownChunkResult{
			DocumentID: "doc2",
			Strategy:   "structural",
			ChunkCount: 5,
			RootID:     "root-1",
		},
	}
	handler := NewChunkTaskHandler(queue, processor, testLogger())

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskChunkHierarchy, "doc2", &MarkdownChunkPayload{
		DocumentID: "doc2",
		Content:    "# A\n\n## B\n\ntext",
	})
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	err = handler.ProcessTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, 1, processor.hierarchyCalls, "ChunkHierarchy should be called once")
	assert.Equal(t, 0, processor.chunkCalls, "ChunkMarkdown should not be called")

	stored, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	var result MarkdownChunkResult
	require.NoError(t, json.Unmarshal(stored.Result, &result))
	assert.Equal(t, "root-1", result.RootID, "Hierarchy result should carry the root chunk ID")
}

func TestChunkTaskHandler_ProcessDocument(t *testing.T) {
	queue := newFakeQueue()
	processor := &fakeProcessor{
		docResult: &DocumentProcessResult{
			DocumentID: "doc3",
			ChunkCount: 8,
			Strategy:   "mixed",
			Persisted:  true,
		},
	}
	handler := NewChunkTaskHandler(queue, processor, testLogger())

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskDocumentProcess, "doc3", &DocumentProcessPayload{
		DocumentID: "doc3",
		FileID:     "file3",
		FileName:   "guide.md",
		Persist:    true,
	})
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	err = handler.ProcessTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, 1, processor.documentCalls, "ProcessDocument should be called once")

	stored, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	var result DocumentProcessResult
	require.NoError(t, json.Unmarshal(stored.Result, &result))
	assert.True(t, result.Persisted)
	assert.Equal(t, 8, result.ChunkCount)
}

func TestChunkTaskHandler_ProcessorError(t *testing.T) {
	queue := newFakeQueue()
	wantErr := errors.New("chunking exploded")
	processor := &fakeProcessor{err: wantErr}
	handler := NewChunkTaskHandler(queue, processor, testLogger())

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskMarkdownChunk, "doc4", &MarkdownChunkPayload{
		DocumentID: "doc4",
		Content:    "# x",
	})
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	err = handler.ProcessTask(ctx, task)
	assert.ErrorIs(t, err, wantErr, "Processor error should propagate for retry")

	// 失败时不写结果
	stored, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Empty(t, stored.Result, "Failed task should not have a stored result")
}

func TestChunkTaskHandler_InvalidPayload(t *testing.T) {
	queue := newFakeQueue()
	handler := NewChunkTaskHandler(queue, &fakeProcessor{}, testLogger())

	task := &Task{
		ID:      "bad-payload",
		Type:    TaskMarkdownChunk,
		Status:  StatusPending,
		Payload: json.RawMessage(`{not json`),
	}
	queue.put(task)

	err := handler.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, ErrInvalidPayload, "Malformed payload should be rejected")
}

func TestChunkTaskHandler_UnsupportedType(t *testing.T) {
	handler := NewChunkTaskHandler(newFakeQueue(), &fakeProcessor{}, testLogger())

	task := &Task{
		ID:      "weird",
		Type:    TaskType("unknown_type"),
		Payload: json.RawMessage(`{}`),
	}

	err := handler.ProcessTask(context.Background(), task)
	assert.Error(t, err, "Unknown task type should be rejected")
	assert.Contains(t, err.Error(), "unsupported task type")
}

func TestRegisterChunkHandlers(t *testing.T) {
	registered := make(map[TaskType]Handler)
	w := &fakeWorker{handlers: registered}
	handler := NewChunkTaskHandler(newFakeQueue(), &fakeProcessor{}, testLogger())

	RegisterChunkHandlers(w, handler)
	assert.Len(t, registered, 3, "All task types should be registered")
	assert.Equal(t, handler, registered[TaskMarkdownChunk])
	assert.Equal(t, handler, registered[TaskDocumentProcess])
}

// fakeWorker 仅记录注册情况
type fakeWorker struct {
	handlers map[TaskType]Handler
}

func (w *fakeWorker) RegisterHandler(taskType TaskType, handler Handler) {
	w.handlers[taskType] = handler
}

func (w *fakeWorker) Start() error { return nil }

func (w *fakeWorker) Stop() {}
