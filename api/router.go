package api

import (
	"github.com/asukhodko/dify-markdown-chunker-sub002/api/handler"
	"github.com/asukhodko/dify-markdown-chunker-sub002/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	chunkHandler *handler.ChunkHandler,
	docHandler *handler.DocumentHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	// 创建默认的Gin路由引擎
	router := gin.New()
	router.Use(gin.Recovery())

	// 应用全局中间件，追踪ID最先分配以便后续日志携带
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 分块API
		api.POST("/chunk", chunkHandler.ChunkMarkdown)
		api.POST("/chunk/hierarchy", chunkHandler.ChunkHierarchy)
		api.GET("/presets", chunkHandler.ListPresets)

		// 文档管理API
		docGroup := api.Group("/documents")
		{
			// 上传文档 - POST /api/documents
			docGroup.POST("", docHandler.UploadDocument)

			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// 触发文档处理 - POST /api/documents/:id/process
			docGroup.POST("/:id/process", docHandler.ProcessDocument)

			// 获取文档状态 - GET /api/documents/:id/status
			docGroup.GET("/:id/status", docHandler.GetDocumentStatus)

			// 获取文档分块 - GET /api/documents/:id/chunks
			docGroup.GET("/:id/chunks", docHandler.GetDocumentChunks)

			// 删除文档 - DELETE /api/documents/:id
			docGroup.DELETE("/:id", docHandler.DeleteDocument)
		}

		// 任务API（任务队列未配置时跳过）
		if taskHandler != nil {
			taskGroup := api.Group("/tasks")
			{
				// 获取任务状态 - GET /api/tasks/:id
				taskGroup.GET("/:id", taskHandler.GetTaskStatus)

				// 等待任务完成 - GET /api/tasks/:id/wait
				taskGroup.GET("/:id/wait", taskHandler.WaitTask)
			}

			// 文档任务列表 - GET /api/documents/:id/tasks
			api.GET("/documents/:id/tasks", taskHandler.GetDocumentTasks)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
