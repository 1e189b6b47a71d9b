package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/skate-game/internal/errors"
	"github.com/wfunc/skate-game/internal/logger"
	"go.uber.org/zap"
)

// HeaderRequestID 请求ID头
const HeaderRequestID = "X-Request-ID"

// RequestID 为每个请求分配ID并回写到响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *gin.Context) string {
	return c.GetString("requestID")
}

// RequestLogger 使用zap记录请求日志；5xx的AppError附带调用栈
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logger.RequestEntry{
			Method:    c.Request.Method,
			Path:      path,
			Status:    c.Writer.Status(),
			Latency:   time.Since(start),
			ClientIP:  c.ClientIP(),
			RequestID: GetRequestID(c),
		}
		entry.PlayerID, _ = GetPlayerID(c)
		if last := c.Errors.Last(); last != nil {
			entry.Errors = c.Errors.String()
			if appErr, ok := errors.As(last.Err); ok && entry.Status >= http.StatusInternalServerError {
				entry.Fields = append(entry.Fields, zap.Any("stack", appErr.Stack))
			}
		}
		logger.LogRequest(log, entry)
	}
}

// Recovery 捕获panic，记录堆栈并返回统一错误结构
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(log, r, debug.Stack(),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", GetRequestID(c)),
				)
				appErr := errors.New(errors.ErrUnknown)
				c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, GetRequestID(c)))
			}
		}()
		c.Next()
	}
}
