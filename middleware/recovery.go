package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 carrying the trace id. If the
// handler already started a response (SSE, WebSocket upgrade) the request
// is only aborted.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Error("handler panic",
				zap.Any("panic", r),
				TraceField(c),
				zap.String("route", c.FullPath()),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "internal server error",
				"trace_id": GetTraceID(c),
			})
		}()
		c.Next()
	}
}
