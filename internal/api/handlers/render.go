package handlers

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/api/middleware"
	"aq-panel/internal/services"
)

// render executes a page template with the title and current identity added
// to data.
func render(c *gin.Context, status int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["User"] = middleware.CurrentIdentity(c)
	c.HTML(status, page, data)
}

// logEvent writes an audit entry outside the request middleware. Failures
// are logged only.
func logEvent(c *gin.Context, logs *services.ActivityLogService, e services.LogEntry) {
	if logs == nil {
		return
	}
	if e.IPAddress == "" {
		e.IPAddress = c.ClientIP()
	}
	if _, err := logs.Log(c.Request.Context(), e); err != nil {
		slog.Error("activity log write failed", "action", e.ActionType, "module", e.Module, "error", err)
	}
}

func userIDPtr(c *gin.Context) *string {
	identity := middleware.CurrentIdentity(c)
	if identity == nil {
		return nil
	}
	id := identity.ID
	return &id
}

// wantsJSON reports whether the client prefers JSON over HTML.
func wantsJSON(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "text/html") {
		return false
	}
	return strings.Contains(accept, "application/json") || strings.HasPrefix(c.Request.URL.Path, "/api/")
}

// NotFound answers unmatched routes.
func NotFound(c *gin.Context) {
	if wantsJSON(c) {
		c.JSON(404, gin.H{"error": "Not found"})
		return
	}
	c.String(404, "Halaman tidak ditemukan")
}
