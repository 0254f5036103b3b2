package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// 任务键前缀
	taskKeyPrefix = "chunktask:"
	// 文档任务集合键前缀
	documentTasksKeyPrefix = "chunkdoc:"
	// 任务状态变更通知频道前缀
	taskStatusChannelPrefix = "chunktask_status:"
	// 默认任务过期时间（3天，分块任务结果不需要长期保留）
	defaultTaskExpiry = 3 * 24 * time.Hour
)

// RedisQueue Redis任务队列实现
type RedisQueue struct {
	client      *asynq.Client    // 用于添加任务
	inspector   *asynq.Inspector // 用于检查任务状态
	redisClient *redis.Client    // Redis客户端，用于存储任务数据
	cfg         *Config          // 队列配置
	logger      *logrus.Logger   // 日志记录器
}

// NewRedisQueue 创建Redis任务队列实例
func NewRedisQueue(cfg *Config) (Queue, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(opt)
	inspector := asynq.NewInspector(opt)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// 测试Redis连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &RedisQueue{
		client:      client,
		inspector:   inspector,
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Enqueue 将任务加入队列
func (q *RedisQueue) Enqueue(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error) {
	taskID, err := q.createTask(ctx, taskType, documentID, payload)
	if err != nil {
		return "", err
	}

	// asynq任务的负载只携带任务ID，任务数据保存在Redis中
	asynqTask := asynq.NewTask(string(taskType), []byte(taskID))
	_, err = q.client.EnqueueContext(ctx, asynqTask, asynq.MaxRetry(q.cfg.RetryLimit))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"task_id":     taskID,
		"task_type":   taskType,
		"document_id": documentID,
	}).Info("Task enqueued successfully")

	return taskID, nil
}

// EnqueueAt 在指定时间将任务加入队列
func (q *RedisQueue) EnqueueAt(ctx context.Context, taskType TaskType, documentID string, payload interface{}, processAt time.Time) (string, error) {
	taskID, err := q.createTask(ctx, taskType, documentID, payload)
	if err != nil {
		return "", err
	}

	asynqTask := asynq.NewTask(string(taskType), []byte(taskID))
	_, err = q.client.EnqueueContext(ctx, asynqTask, asynq.ProcessAt(processAt), asynq.MaxRetry(q.cfg.RetryLimit))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task with delay: %w", err)
	}

	return taskID, nil
}

// EnqueueIn 在指定延迟后将任务加入队列
func (q *RedisQueue) EnqueueIn(ctx context.Context, taskType TaskType, documentID string, payload interface{}, delay time.Duration) (string, error) {
	return q.EnqueueAt(ctx, taskType, documentID, payload, time.Now().Add(delay))
}

// createTask 构建任务结构并保存到Redis
func (q *RedisQueue) createTask(ctx context.Context, taskType TaskType, documentID string, payload interface{}) (string, error) {
	taskID := uuid.New().String()

	payloadBytes, err := MarshalPayload(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := &Task{
		ID:         taskID,
		Type:       taskType,
		DocumentID: documentID,
		Status:     StatusPending,
		Payload:    payloadBytes,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		MaxRetries: q.cfg.RetryLimit,
	}

	if err := q.saveTaskToRedis(ctx, task); err != nil {
		return "", fmt.Errorf("failed to save task to redis: %w", err)
	}

	return taskID, nil
}

// GetTask 获取任务信息
func (q *RedisQueue) GetTask(ctx context.Context, taskID string) (*Task, error) {
	data, err := q.redisClient.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task from redis: %w", err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task data: %w", err)
	}

	return &task, nil
}

// GetTasksByDocument 获取文档相关的所有任务
func (q *RedisQueue) GetTasksByDocument(ctx context.Context, documentID string) ([]*Task, error) {
	taskIDs, err := q.redisClient.SMembers(ctx, documentTasksKeyPrefix+documentID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get document tasks: %w", err)
	}

	tasks := make([]*Task, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				// 任务可能已过期被删除，跳过
				continue
			}
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// WaitForTask 等待任务完成并返回结果
func (q *RedisQueue) WaitForTask(ctx context.Context, taskID string, timeout time.Duration) (*Task, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 初始检查任务状态
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.Status == StatusCompleted || task.Status == StatusFailed {
		return task, nil
	}

	// 订阅状态变更通知，同时每秒轮询一次兜底
	pubsub := q.redisClient.Subscribe(ctx, taskStatusChannelPrefix+taskID)
	defer pubsub.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ErrTaskTimeout
		case <-pubsub.Channel():
		case <-ticker.C:
		}

		task, err := q.GetTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		if task.Status == StatusCompleted || task.Status == StatusFailed {
			return task, nil
		}
	}
}

// DeleteTask 删除任务
func (q *RedisQueue) DeleteTask(ctx context.Context, taskID string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	// 从文档任务集合中移除
	if task.DocumentID != "" {
		if err := q.redisClient.SRem(ctx, documentTasksKeyPrefix+task.DocumentID, taskID).Err(); err != nil {
			return fmt.Errorf("failed to remove task from document tasks: %w", err)
		}
	}

	if err := q.redisClient.Del(ctx, taskKeyPrefix+taskID).Err(); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	// 尝试从asynq队列中删除任务（已在处理中的任务可能无法删除）
	if err := q.inspector.DeleteTask("default", taskID); err != nil {
		q.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to delete task from asynq queue")
	}

	return nil
}

// Close 关闭队列连接
func (q *RedisQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return err
	}
	return q.redisClient.Close()
}

// saveTaskToRedis 将任务信息保存到Redis
func (q *RedisQueue) saveTaskToRedis(ctx context.Context, task *Task) error {
	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	key := taskKeyPrefix + task.ID
	if err := q.redisClient.Set(ctx, key, taskData, defaultTaskExpiry).Err(); err != nil {
		return fmt.Errorf("failed to save task data: %w", err)
	}

	// 将任务ID添加到文档任务集合
	if task.DocumentID != "" {
		docKey := documentTasksKeyPrefix + task.DocumentID
		if err := q.redisClient.SAdd(ctx, docKey, task.ID).Err(); err != nil {
			return fmt.Errorf("failed to add task to document tasks: %w", err)
		}
		q.redisClient.Expire(ctx, docKey, defaultTaskExpiry)
	}

	return nil
}

// UpdateTaskStatus 更新任务状态
func (q *RedisQueue) UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, result interface{}, errMsg string) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	task.Status = status
	task.UpdatedAt = time.Now()

	if status == StatusProcessing {
		task.Attempts++
		if task.StartedAt == nil {
			now := time.Now()
			task.StartedAt = &now
		}
	}

	if status == StatusCompleted || status == StatusFailed {
		now := time.Now()
		task.CompletedAt = &now
	}

	if result != nil {
		resultBytes, err := MarshalPayload(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		task.Result = resultBytes
	}

	if errMsg != "" {
		task.Error = errMsg
	}

	return q.saveTaskToRedis(ctx, task)
}

// NotifyTaskUpdate 通知任务状态更新
func (q *RedisQueue) NotifyTaskUpdate(ctx context.Context, taskID string) error {
	return q.redisClient.Publish(ctx, taskStatusChannelPrefix+taskID, "updated").Err()
}

// RedisWorker Redis工作者实现
type RedisWorker struct {
	server   *asynq.Server
	queue    *RedisQueue
	handlers map[TaskType]Handler
	logger   *logrus.Logger
}

// NewRedisWorker 创建Redis工作者
func NewRedisWorker(queue *RedisQueue, cfg *Config) Worker {
	if cfg == nil {
		cfg = queue.cfg
	}

	serverConfig := asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      cfg.Queues,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return cfg.RetryDelay
		},
		Logger: queue.logger,
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		serverConfig,
	)

	return &RedisWorker{
		server:   server,
		queue:    queue,
		handlers: make(map[TaskType]Handler),
		logger:   queue.logger,
	}
}

// RegisterHandler 注册任务处理器
func (w *RedisWorker) RegisterHandler(taskType TaskType, handler Handler) {
	w.handlers[taskType] = handler
}

// Start 启动工作者
func (w *RedisWorker) Start() error {
	mux := asynq.NewServeMux()

	for taskType, handler := range w.handlers {
		h := handler
		mux.HandleFunc(string(taskType), func(ctx context.Context, task *asynq.Task) error {
			return w.runTask(ctx, string(task.Payload()), h)
		})
		w.logger.WithField("task_type", taskType).Info("Registered handler for task type")
	}

	return w.server.Start(mux)
}

// runTask 执行单个任务并维护其状态流转
func (w *RedisWorker) runTask(ctx context.Context, taskID string, h Handler) error {
	taskInfo, err := w.queue.GetTask(ctx, taskID)
	if err != nil {
		w.logger.WithError(err).WithField("task_id", taskID).Error("Failed to get task info")
		return err
	}

	if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, ""); err != nil {
		w.logger.WithError(err).WithField("task_id", taskID).Error("Failed to update task status to processing")
	}
	w.queue.NotifyTaskUpdate(ctx, taskID)

	err = h.ProcessTask(ctx, taskInfo)
	if err != nil {
		if updateErr := w.queue.UpdateTaskStatus(ctx, taskID, StatusFailed, nil, err.Error()); updateErr != nil {
			w.logger.WithError(updateErr).WithField("task_id", taskID).Error("Failed to update task status after failure")
		}
		w.queue.NotifyTaskUpdate(ctx, taskID)
		return err
	}

	// 处理器负责在成功时写入结果，这里只封口状态
	if err := w.queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, ""); err != nil {
		w.logger.WithError(err).WithField("task_id", taskID).Error("Failed to update task status after completion")
	}
	w.queue.NotifyTaskUpdate(ctx, taskID)
	return nil
}

// Stop 停止工作者
func (w *RedisWorker) Stop() {
	w.server.Shutdown()
}

func init() {
	RegisterQueueFactory("redis", func(cfg *Config) (Queue, error) {
		return NewRedisQueue(cfg)
	})
}

// RegisterQueueFactory 注册队列工厂函数
func RegisterQueueFactory(name string, factory Factory) {
	queueFactories[name] = factory
}

// 队列工厂函数映射
var queueFactories = make(map[string]Factory)

// NewQueue 根据名称创建队列实例
func NewQueue(name string, cfg *Config) (Queue, error) {
	factory, exists := queueFactories[name]
	if !exists {
		return nil, fmt.Errorf("unknown queue implementation: %s", name)
	}
	return factory(cfg)
}
