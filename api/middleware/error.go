package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/asukhodko/dify-markdown-chunker-sub002/api/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorMiddleware 统一错误兜底中间件
// 处理器自行返回业务错误响应，这里只负责panic恢复和漏网的上下文错误
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(logrus.Fields{
					"error": err,
					"stack": string(debug.Stack()),
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errResp := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)
				if gin.Mode() == gin.DebugMode {
					errResp.Message = fmt.Sprintf("Panic: %v", err)
				}
				if traceID, exists := c.Get("TraceID"); exists {
					errResp.TraceID = traceID.(string)
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
			}
		}()

		c.Next()

		// 处理器通过c.Error上报但未自行响应的错误
		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last().Err

			traceID := ""
			if v, exists := c.Get("TraceID"); exists {
				traceID = v.(string)
			}

			log.WithFields(logrus.Fields{
				"trace_id": traceID,
				"path":     c.Request.URL.Path,
			}).Error(err.Error())

			errResp := model.NewErrorResponse(
				http.StatusInternalServerError,
				"Internal server error",
			)
			errResp.TraceID = traceID
			if gin.Mode() == gin.DebugMode {
				errResp.Message = err.Error()
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
		}
	}
}
