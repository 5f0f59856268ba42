package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/store"
)

const (
	measurementsRoot = "measurements"

	DefaultLocation = "Tanjung Selor"
)

var ErrInvalidMeasurement = errors.New("invalid measurement")

// Notifier is told about every stored measurement. Failures are logged and
// never undo the write.
type Notifier interface {
	MeasurementRecorded(ctx context.Context, m *models.Measurement, source string) error
}

// Recorder counts stored measurements; internal/metrics implements it.
type Recorder interface {
	ObserveMeasurement(status, source string)
}

type MeasurementInput struct {
	PM25      *float64
	PM10      *float64
	Location  string
	Timestamp int64 // epoch ms; zero means now
	Status    string
}

type MeasurementService struct {
	store           store.Store
	defaultLocation string
	notifier        Notifier
	recorder        Recorder
	now             func() time.Time
}

func NewMeasurementService(st store.Store, cfg config.MonitoringConfig) *MeasurementService {
	loc := cfg.DefaultLocation
	if loc == "" {
		loc = DefaultLocation
	}
	return &MeasurementService{store: st, defaultLocation: loc, now: time.Now}
}

// SetNotifier installs the event publisher used after each save.
func (s *MeasurementService) SetNotifier(n Notifier) { s.notifier = n }

func (s *MeasurementService) SetRecorder(r Recorder) { s.recorder = r }

// StatusFromPM25 classifies a PM2.5 reading: up to 55 is BAIK, up to 150 is
// SEDANG, anything above is TIDAK SEHAT. A missing reading is UNKNOWN.
func StatusFromPM25(pm25 *float64) string {
	switch {
	case pm25 == nil || math.IsNaN(*pm25):
		return models.StatusUnknown
	case *pm25 <= 55:
		return models.StatusGood
	case *pm25 <= 150:
		return models.StatusModerate
	default:
		return models.StatusUnhealthy
	}
}

// SaveMeasurement stores a reading under measurements/{device}/{timestamp}.
// A second reading with the same device and timestamp replaces the first.
func (s *MeasurementService) SaveMeasurement(ctx context.Context, deviceID string, in MeasurementInput, source string) (*models.Measurement, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" || strings.Contains(deviceID, "/") {
		return nil, fmt.Errorf("%w: device id %q", ErrInvalidMeasurement, deviceID)
	}

	ts := in.Timestamp
	if ts == 0 {
		ts = nowMillis(s.now)
	}
	location := in.Location
	if location == "" {
		location = s.defaultLocation
	}
	status := in.Status
	if status == "" {
		status = StatusFromPM25(in.PM25)
	}

	m := models.Measurement{
		DeviceID:  deviceID,
		Timestamp: ts,
		PM25:      in.PM25,
		PM10:      in.PM10,
		Location:  location,
		Status:    status,
		CreatedAt: ts,
	}
	path := store.Join(measurementsRoot, deviceID, strconv.FormatInt(ts, 10))
	if err := s.store.Set(ctx, path, m); err != nil {
		return nil, fmt.Errorf("save measurement: %w", err)
	}

	if s.recorder != nil {
		s.recorder.ObserveMeasurement(status, source)
	}
	if s.notifier != nil {
		if err := s.notifier.MeasurementRecorded(ctx, &m, source); err != nil {
			slog.Warn("measurement notification failed", "device_id", deviceID, "timestamp", ts, "error", err)
		}
	}
	return &m, nil
}

// GetRecentMeasurements returns up to limit readings for deviceID, newest
// first.
func (s *MeasurementService) GetRecentMeasurements(ctx context.Context, deviceID string, limit int) ([]models.Measurement, error) {
	if deviceID == "" || strings.Contains(deviceID, "/") {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	children, err := s.store.Children(ctx, store.Join(measurementsRoot, deviceID), limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.Measurement, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		var m models.Measurement
		if err := children[i].Decode(&m); err != nil {
			return nil, fmt.Errorf("decode measurement %s/%s: %w", deviceID, children[i].Key, err)
		}
		if m.DeviceID == "" {
			m.DeviceID = deviceID
		}
		out = append(out, m)
	}
	return out, nil
}

// GetAggregatedData returns the raw readings covering points buckets of
// intervalMinutes each. No bucketing is applied.
func (s *MeasurementService) GetAggregatedData(ctx context.Context, deviceID string, intervalMinutes, points int) ([]models.Measurement, error) {
	return s.GetRecentMeasurements(ctx, deviceID, intervalMinutes*points)
}

// MeasurementPayload is the wire shape accepted from sensors over HTTP and
// MQTT.
type MeasurementPayload struct {
	DeviceID  string   `json:"deviceId"`
	PM25      *float64 `json:"pm25"`
	PM10      *float64 `json:"pm10"`
	Location  string   `json:"location,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// Validate requires a device id and both readings. Zero readings are valid.
func (p MeasurementPayload) Validate() error {
	if strings.TrimSpace(p.DeviceID) == "" || p.PM25 == nil || p.PM10 == nil {
		return fmt.Errorf("%w: deviceId, pm25, pm10", ErrMissingFields)
	}
	return nil
}

func (p MeasurementPayload) Input() MeasurementInput {
	return MeasurementInput{
		PM25:      p.PM25,
		PM10:      p.PM10,
		Location:  p.Location,
		Timestamp: p.Timestamp,
	}
}
