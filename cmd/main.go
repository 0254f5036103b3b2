package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asukhodko/dify-markdown-chunker-sub002/api"
	"github.com/asukhodko/dify-markdown-chunker-sub002/api/handler"
	"github.com/asukhodko/dify-markdown-chunker-sub002/api/middleware"
	"github.com/asukhodko/dify-markdown-chunker-sub002/api/model"
	appconfig "github.com/asukhodko/dify-markdown-chunker-sub002/config"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/cache"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/database"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/repository"
	"github.com/asukhodko/dify-markdown-chunker-sub002/internal/services"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/storage"
	"github.com/asukhodko/dify-markdown-chunker-sub002/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 命令行选项
type flags struct {
	Mode         string        // 运行模式 (debug/release)
	LogLevel     string        // 日志级别
	ConfigFile   string        // 配置文件路径
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
	WorkerOnly   bool          // 仅运行任务队列Worker，不启动HTTP服务
}

func main() {
	// 加载.env文件（不存在时忽略）
	_ = godotenv.Load()

	f := parseFlags()

	cfg, err := appconfig.Load(f.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	gin.SetMode(f.Mode)

	logger := setupLogger(f.LogLevel)
	logger.Info("Starting markdown chunker service...")

	// 初始化数据库
	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建缓存服务
	var cacheService cache.Cache
	if cfg.Cache.Enable {
		cacheService, err = setupCache(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	// 初始化仓储层
	var repo repository.DocumentRepository
	if queue != nil {
		repo = repository.NewDocumentRepositoryWithQueue(database.MustDB(), queue)
	} else {
		repo = repository.NewDocumentRepository()
	}
	statusManager := services.NewDocumentStatusManager(repo, logger)

	// 初始化分块服务
	chunkServiceOptions := []services.ChunkServiceOption{
		services.WithChunkLogger(logger),
	}
	if cacheService != nil {
		ttl := time.Duration(cfg.Chunker.ResultCacheTTL) * time.Second
		chunkServiceOptions = append(chunkServiceOptions, services.WithChunkCache(cacheService, ttl))
	}
	chunkService := services.NewChunkService(chunkServiceOptions...)

	// 初始化文档服务
	documentServiceOptions := []services.DocumentOption{
		services.WithDocumentRepository(repo),
		services.WithStatusManager(statusManager),
		services.WithLogger(logger),
		services.WithTimeout(time.Duration(cfg.Chunker.ProcessTimeout) * time.Second),
		services.WithProcessDefaults(services.ProcessOptions{
			Preset:   cfg.Chunker.Preset,
			Strategy: cfg.Chunker.DefaultStrategy,
			Persist:  cfg.Chunker.PersistChunks,
		}),
	}
	if queue != nil {
		documentServiceOptions = append(documentServiceOptions,
			services.WithTaskQueue(queue),
			services.WithAsyncProcessing(true),
		)
		logger.Info("Document processing will use async task queue")
	}
	documentService := services.NewDocumentService(fileStorage, chunkService, documentServiceOptions...)

	// 启动任务队列Worker（如果启用）
	if queue != nil {
		worker, err := setupWorker(queue, chunkService, documentService, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task worker: %v", err)
		}
		defer worker.Stop()
	}

	if f.WorkerOnly {
		logger.Info("Running in worker-only mode")
		waitForShutdown(logger, nil)
		return
	}

	// 初始化API处理器
	model.RegisterValidators()
	chunkHandler := handler.NewChunkHandler(chunkService, queue)
	docHandler := handler.NewDocumentHandler(documentService)
	var taskHandler *handler.TaskHandler
	if queue != nil {
		taskHandler = handler.NewTaskHandler(queue)
	}

	r := api.SetupRouter(chunkHandler, docHandler, taskHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  f.ReadTimeout,
		WriteTimeout: f.WriteTimeout,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	waitForShutdown(logger, srv)
}

// waitForShutdown 等待终止信号并优雅关闭
func waitForShutdown(logger *logrus.Logger, srv *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Fatalf("Server forced to shutdown: %v", err)
		}
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	f := flags{}

	flag.StringVar(&f.Mode, "mode", "debug", "Run mode (debug/release)")
	flag.StringVar(&f.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	flag.StringVar(&f.ConfigFile, "config", "", "Path to config file")
	flag.DurationVar(&f.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")
	flag.DurationVar(&f.WriteTimeout, "write-timeout", 60*time.Second, "Write timeout")
	flag.BoolVar(&f.WorkerOnly, "worker", false, "Run task queue worker without HTTP server")

	flag.Parse()
	return f
}

// setupLogger 设置日志系统
func setupLogger(level string) *logrus.Logger {
	logger := middleware.GetLogger()

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// setupDatabase 设置数据库
func setupDatabase(cfg *appconfig.Config, logger *logrus.Logger) error {
	dbConfig := database.DefaultConfig()
	if cfg.Database.Type != "" {
		dbConfig.Type = cfg.Database.Type
	}
	if cfg.Database.DSN != "" {
		dbConfig.DSN = cfg.Database.DSN
	}

	return database.Setup(dbConfig, logger)
}

// setupStorage 设置文件存储服务
func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	default:
		if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %v", err)
		}

		return storage.NewLocalStorage(storage.LocalConfig{
			Path: cfg.Storage.Path,
		})
	}
}

// setupCache 设置缓存服务
func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Cache.Type,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg *appconfig.Config, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.Queue.RedisAddr,
		RedisPassword: cfg.Queue.RedisPassword,
		RedisDB:       cfg.Queue.RedisDB,
		Concurrency:   cfg.Queue.Concurrency,
		RetryLimit:    cfg.Queue.RetryLimit,
		RetryDelay:    time.Duration(cfg.Queue.RetryDelay) * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.Queue.Type,
		"redis_addr":  cfg.Queue.RedisAddr,
		"concurrency": cfg.Queue.Concurrency,
		"retry_limit": cfg.Queue.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Queue.Type, queueConfig)
}

// setupWorker 创建并启动任务队列Worker
func setupWorker(
	queue taskqueue.Queue,
	chunkService *services.ChunkService,
	documentService *services.DocumentService,
	logger *logrus.Logger,
) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("unsupported queue type for worker: %T", queue)
	}

	worker := taskqueue.NewRedisWorker(redisQueue, nil)

	processor := services.NewChunkTaskProcessor(chunkService, documentService, logger)
	chunkHandler := taskqueue.NewChunkTaskHandler(queue, processor, logger)
	taskqueue.RegisterChunkHandlers(worker, chunkHandler)

	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %v", err)
	}

	logger.Info("Task worker started")
	return worker, nil
}
