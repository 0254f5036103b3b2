package middleware

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// 请求体日志的截断上限，分块请求可能携带整篇Markdown文档
const maxLoggedBodyBytes = 4096

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// GetLogger 返回全局日志记录器
func GetLogger() *logrus.Logger {
	return log
}

// Logger 请求日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency":     time.Since(start).String(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		}
		if traceID, exists := c.Get("TraceID"); exists {
			fields["trace_id"] = traceID
		}
		log.WithFields(fields).Info("HTTP request")
	}
}

// RequestBodyLog 请求体日志中间件
// 仅在debug级别记录，且对大文档截断
func RequestBodyLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if log.Level >= logrus.DebugLevel && c.Request.Body != nil {
			var buf bytes.Buffer
			body, _ := io.ReadAll(io.TeeReader(c.Request.Body, &buf))
			c.Request.Body = io.NopCloser(&buf)

			if len(body) > 0 {
				logged := body
				truncated := false
				if len(logged) > maxLoggedBodyBytes {
					logged = logged[:maxLoggedBodyBytes]
					truncated = true
				}
				log.WithFields(logrus.Fields{
					"method":    c.Request.Method,
					"path":      c.Request.URL.Path,
					"body":      string(logged),
					"truncated": truncated,
				}).Debug("Request body")
			}
		}

		c.Next()
	}
}

// SetTraceID 为每个请求分配追踪ID并透传到响应头
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set("TraceID", traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}
