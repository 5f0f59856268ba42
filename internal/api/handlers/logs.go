package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

const logsPageLimit = 200

type LogsHandler struct {
	logs *services.ActivityLogService
}

func NewLogsHandler(logs *services.ActivityLogService) *LogsHandler {
	return &LogsHandler{logs: logs}
}

// GetLogs shows the newest activity log entries
func (h *LogsHandler) GetLogs(c *gin.Context) {
	logs, err := h.logs.ListLogs(c.Request.Context(), logsPageLimit)
	if err != nil {
		slog.Error("list activity logs failed", "error", err)
		render(c, 500, "logs.html", "Activity Logs", gin.H{
			"Logs":  []models.ActivityLog{},
			"Error": "Gagal memuat logs",
		})
		return
	}
	render(c, 200, "logs.html", "Activity Logs", gin.H{"Logs": logs})
}

type SettingsHandler struct {
	cfg *config.Config
}

func NewSettingsHandler(cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{cfg: cfg}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	render(c, 200, "settings.html", "Settings", gin.H{
		"DefaultDevice": h.cfg.Monitoring.DefaultDevice,
		"Timezone":      h.cfg.Monitoring.Timezone,
	})
}
