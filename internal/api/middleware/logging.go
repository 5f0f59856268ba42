package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

type RequestRecorder interface {
	RecordHTTPRequest(method, route string, statusCode int, d time.Duration)
}

// RequestLogger emits one http_request line per request and feeds the
// request counters when rec is set.
func RequestLogger(logger *slog.Logger, rec RequestRecorder) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if identity := CurrentIdentity(c); identity != nil {
			attrs = append(attrs, "user_id", identity.ID)
		}

		switch {
		case status >= 500:
			logger.Error("http_request", attrs...)
		case status >= 400:
			logger.Warn("http_request", attrs...)
		default:
			logger.Info("http_request", attrs...)
		}

		if rec != nil {
			rec.RecordHTTPRequest(c.Request.Method, c.FullPath(), status, elapsed)
		}
	}
}
