package handlers

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"aq-panel/internal/services"
)

const (
	measurementSource    = "api"
	missingFieldsMessage = "deviceId, pm25, dan pm10 wajib diisi"
)

type MeasurementHandler struct {
	measurements *services.MeasurementService
}

func NewMeasurementHandler(measurements *services.MeasurementService) *MeasurementHandler {
	return &MeasurementHandler{measurements: measurements}
}

// CreateMeasurement stores one sensor reading
func (h *MeasurementHandler) CreateMeasurement(c *gin.Context) {
	var req services.MeasurementPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": missingFieldsMessage})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(400, gin.H{"error": missingFieldsMessage})
		return
	}

	saved, err := h.measurements.SaveMeasurement(c.Request.Context(), req.DeviceID, req.Input(), measurementSource)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMeasurement) {
			c.JSON(400, gin.H{"error": "deviceId tidak valid"})
			return
		}
		slog.Error("save measurement failed", "device_id", req.DeviceID, "error", err)
		c.JSON(500, gin.H{"error": "Gagal menyimpan data"})
		return
	}

	c.JSON(200, gin.H{"success": true, "data": saved})
}
