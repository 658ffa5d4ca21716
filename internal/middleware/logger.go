package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware attaches a request-scoped logger and emits one access
// line per request. Runner polling makes the queue endpoint chatty, so
// successful GETs log at debug.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := logger
		if reqID := c.GetString("request_id"); reqID != "" {
			log = log.With("request_id", reqID)
		}
		c.Set("logger", log)
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error("request failed", attrs...)
		case status >= 400:
			log.Warn("request rejected", attrs...)
		case c.Request.Method == "GET":
			log.Debug("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}
