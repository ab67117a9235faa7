package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zest/productapi/internal/actorctx"
)

const requestIDHeader = "X-Request-Id"

// RequestID accepts a caller-supplied X-Request-Id or mints one, and stores it
// on both the gin and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Header(requestIDHeader, id)
		c.Set(CtxRequestID, id)
		c.Request = c.Request.WithContext(actorctx.WithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// RequestLogger emits one record per request. The logger's context handler
// adds request id and actor, so they are not repeated here.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status == 401 || status == 403:
			level = slog.LevelWarn
		}

		log.Log(c.Request.Context(), level, "http_request",
			"method", c.Request.Method,
			"route", route,
			"path", c.Request.URL.Path,
			"status", status,
			"bytes", c.Writer.Size(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}
