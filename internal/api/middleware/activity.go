package middleware

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

type ActivityWriter interface {
	Log(ctx context.Context, e services.LogEntry) (*models.ActivityLog, error)
}

// AuditErrorRecorder counts audit writes that failed.
type AuditErrorRecorder interface {
	RecordActivityLogError()
}

// ActivityLogger writes one audit entry per request once the handler has
// finished. Failures are logged and never change the response.
func ActivityLogger(module string, logs ActivityWriter, rec AuditErrorRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		result := models.LogStatusSuccess
		if status >= 400 {
			result = models.LogStatusFailed
		}

		var userID *string
		if identity := CurrentIdentity(c); identity != nil {
			id := identity.ID
			userID = &id
		}

		ctx := context.WithoutCancel(c.Request.Context())
		_, err := logs.Log(ctx, services.LogEntry{
			UserID:      userID,
			ActionType:  c.Request.Method,
			Module:      module,
			Description: c.Request.Method + " " + c.Request.URL.RequestURI(),
			Status:      result,
			IPAddress:   c.ClientIP(),
			Metadata:    map[string]any{"statusCode": status},
		})
		if err != nil {
			slog.Error("activity log write failed", "module", module, "error", err)
			if rec != nil {
				rec.RecordActivityLogError()
			}
		}
	}
}
