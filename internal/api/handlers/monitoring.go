package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

const (
	sampleIntervalMinutes = 10
	dashboardPoints       = 24
	monitoringPoints      = 144
	dashboardTableRows    = 50
)

type MonitoringHandler struct {
	measurements *services.MeasurementService
	cfg          *config.Config
}

func NewMonitoringHandler(measurements *services.MeasurementService, cfg *config.Config) *MonitoringHandler {
	return &MonitoringHandler{measurements: measurements, cfg: cfg}
}

// Dashboard shows the latest reading and a short history
func (h *MonitoringHandler) Dashboard(c *gin.Context) {
	deviceID := h.deviceID(c)

	data, err := h.measurements.GetAggregatedData(c.Request.Context(), deviceID, sampleIntervalMinutes, dashboardPoints)
	if err != nil {
		slog.Error("dashboard query failed", "device_id", deviceID, "error", err)
		render(c, 500, "dashboard.html", "Dashboard", gin.H{
			"DeviceID":     deviceID,
			"Latest":       (*models.Measurement)(nil),
			"Measurements": []models.Measurement{},
			"Error":        "Gagal memuat data",
		})
		return
	}

	var latest *models.Measurement
	if len(data) > 0 {
		latest = &data[0]
	}
	rows := data
	if len(rows) > dashboardTableRows {
		rows = rows[:dashboardTableRows]
	}

	render(c, 200, "dashboard.html", "Dashboard", gin.H{
		"DeviceID":     deviceID,
		"Latest":       latest,
		"Measurements": rows,
	})
}

// Monitoring lists the longer reading history
func (h *MonitoringHandler) Monitoring(c *gin.Context) {
	deviceID := h.deviceID(c)

	data, err := h.measurements.GetAggregatedData(c.Request.Context(), deviceID, sampleIntervalMinutes, monitoringPoints)
	if err != nil {
		slog.Error("monitoring query failed", "device_id", deviceID, "error", err)
		render(c, 500, "monitoring.html", "Monitoring Data", gin.H{
			"DeviceID":     deviceID,
			"Measurements": []models.Measurement{},
			"Error":        "Gagal memuat data",
		})
		return
	}

	render(c, 200, "monitoring.html", "Monitoring Data", gin.H{
		"DeviceID":     deviceID,
		"Measurements": data,
	})
}

func (h *MonitoringHandler) deviceID(c *gin.Context) string {
	if id := c.Query("deviceId"); id != "" {
		return id
	}
	return h.cfg.Monitoring.DefaultDevice
}
