package middleware

import (
	"keyshop/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderTraceID = "X-Trace-ID"
	ctxTraceID    = "traceID"
)

// TraceMiddleware 透传或生成链路 ID，写入 gin 上下文、请求 ctx 和响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" || len(traceID) > 64 {
			traceID = uuid.NewString()
		}

		c.Set(ctxTraceID, traceID)
		c.Header(HeaderTraceID, traceID)
		c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), traceID))

		c.Next()
	}
}
