package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/config"
	"aq-panel/internal/services"
)

type ExportHandler struct {
	export       *services.ExportService
	measurements *services.MeasurementService
	users        *services.UserService
	cfg          *config.Config
}

func NewExportHandler(export *services.ExportService, measurements *services.MeasurementService, users *services.UserService, cfg *config.Config) *ExportHandler {
	return &ExportHandler{export: export, measurements: measurements, users: users, cfg: cfg}
}

// ExportMonitoring streams recent readings of one device as CSV
func (h *ExportHandler) ExportMonitoring(c *gin.Context) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		deviceID = h.cfg.Monitoring.DefaultDevice
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = services.DefaultExportLimit
	}

	rows, err := h.measurements.GetRecentMeasurements(c.Request.Context(), deviceID, limit)
	if err != nil {
		slog.Error("export monitoring failed", "device_id", deviceID, "error", err)
		c.String(500, "Gagal mengekspor data")
		return
	}

	var buf bytes.Buffer
	if err := h.export.WriteMeasurementsCSV(&buf, rows); err != nil {
		slog.Error("render monitoring csv failed", "error", err)
		c.String(500, "Gagal mengekspor data")
		return
	}
	sendCSV(c, h.export.MeasurementsFilename(deviceID), buf.Bytes())
}

// ExportUsers streams the user directory as CSV
func (h *ExportHandler) ExportUsers(c *gin.Context) {
	users, err := h.users.GetUsers(c.Request.Context())
	if err != nil {
		slog.Error("export users failed", "error", err)
		c.String(500, "Gagal mengekspor data pengguna")
		return
	}

	var buf bytes.Buffer
	if err := h.export.WriteUsersCSV(&buf, users); err != nil {
		slog.Error("render users csv failed", "error", err)
		c.String(500, "Gagal mengekspor data pengguna")
		return
	}
	sendCSV(c, h.export.UsersFilename(), buf.Bytes())
}

func sendCSV(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, "text/csv; charset=utf-8", body)
}
