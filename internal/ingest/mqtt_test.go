package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

type fakeSaver struct {
	devices []string
	inputs  []services.MeasurementInput
	err     error
}

func (f *fakeSaver) SaveMeasurement(_ context.Context, deviceID string, in services.MeasurementInput, source string) (*models.Measurement, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.devices = append(f.devices, deviceID)
	f.inputs = append(f.inputs, in)
	return &models.Measurement{DeviceID: deviceID, Timestamp: in.Timestamp, PM25: in.PM25, PM10: in.PM10}, nil
}

type fakeRejects struct {
	reasons []string
}

func (f *fakeRejects) RecordIngestRejected(_, reason string) {
	f.reasons = append(f.reasons, reason)
}

func newTestSubscriber(saver MeasurementSaver) (*Subscriber, *fakeRejects) {
	s := NewSubscriber(config.MQTTConfig{Broker: "tcp://localhost:1883"}, saver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := &fakeRejects{}
	s.SetRejectRecorder(r)
	return s, r
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		topic      string
		payload    string
		wantDevice string
		wantErr    error
		wantReject string
	}{
		{
			name:       "device from payload",
			topic:      "aqmonitor/ignored/measurements",
			payload:    `{"deviceId":"dev-1","pm25":12.5,"pm10":30,"timestamp":1700000000000}`,
			wantDevice: "dev-1",
		},
		{
			name:       "device from topic",
			topic:      "aqmonitor/dev-9/measurements",
			payload:    `{"pm25":0,"pm10":0}`,
			wantDevice: "dev-9",
		},
		{
			name:       "missing pm10",
			topic:      "aqmonitor/dev-1/measurements",
			payload:    `{"pm25":10}`,
			wantErr:    ErrInvalidPayload,
			wantReject: "missing_fields",
		},
		{
			name:       "not json",
			topic:      "aqmonitor/dev-1/measurements",
			payload:    `pm25=10`,
			wantErr:    ErrInvalidPayload,
			wantReject: "decode",
		},
		{
			name:       "no device anywhere",
			topic:      "measurements",
			payload:    `{"pm25":1,"pm10":2}`,
			wantErr:    ErrInvalidPayload,
			wantReject: "missing_fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saver := &fakeSaver{}
			s, rejects := newTestSubscriber(saver)

			err := s.HandleMessage(ctx, tt.topic, []byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, saver.devices)
				assert.Equal(t, []string{tt.wantReject}, rejects.reasons)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.wantDevice}, saver.devices)
			assert.Empty(t, rejects.reasons)
		})
	}
}

func TestHandleMessage_KeepsReadings(t *testing.T) {
	saver := &fakeSaver{}
	s, _ := newTestSubscriber(saver)

	err := s.HandleMessage(context.Background(), "aqmonitor/dev-1/measurements",
		[]byte(`{"pm25":40.2,"pm10":61,"location":"Tarakan","timestamp":1700000000000}`))
	require.NoError(t, err)
	require.Len(t, saver.inputs, 1)

	in := saver.inputs[0]
	assert.Equal(t, 40.2, *in.PM25)
	assert.Equal(t, 61.0, *in.PM10)
	assert.Equal(t, "Tarakan", in.Location)
	assert.Equal(t, int64(1700000000000), in.Timestamp)
}

func TestHandleMessage_StoreError(t *testing.T) {
	saver := &fakeSaver{err: errors.New("disk full")}
	s, rejects := newTestSubscriber(saver)

	err := s.HandleMessage(context.Background(), "aqmonitor/dev-1/measurements", []byte(`{"pm25":1,"pm10":2}`))
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{"store"}, rejects.reasons)
}

func TestDeviceFromTopic(t *testing.T) {
	assert.Equal(t, "dev-1", DeviceFromTopic("aqmonitor/dev-1/measurements"))
	assert.Equal(t, "", DeviceFromTopic("aqmonitor"))
	assert.Equal(t, "", DeviceFromTopic("aqmonitor//measurements"))
}

func TestNewSubscriber_Defaults(t *testing.T) {
	s := NewSubscriber(config.MQTTConfig{}, &fakeSaver{}, nil)
	assert.Equal(t, DefaultTopic, s.cfg.Topic)
	assert.NotEmpty(t, s.cfg.ClientID)
}

type fakeToken struct {
	acked bool
	err   error
}

func (f *fakeToken) Wait() bool                     { return f.acked }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return f.acked }
func (f *fakeToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (f *fakeToken) Error() error                   { return f.err }

func TestAwaitToken(t *testing.T) {
	brokerErr := errors.New("not authorized")

	tests := []struct {
		name  string
		token *fakeToken
		want  error
	}{
		{"acked", &fakeToken{acked: true}, nil},
		{"acked with error", &fakeToken{acked: true, err: brokerErr}, brokerErr},
		{"no ack", &fakeToken{}, ErrAckTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := awaitToken(tt.token, time.Millisecond)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
