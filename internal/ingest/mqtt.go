// Package ingest feeds sensor readings published over MQTT into the
// measurement store.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"aq-panel/internal/config"
	"aq-panel/internal/models"
	"aq-panel/internal/services"
)

const (
	DefaultTopic = "aqmonitor/+/measurements"
	Source       = "mqtt"
)

var (
	ErrInvalidPayload = errors.New("invalid measurement payload")
	ErrAckTimeout     = errors.New("broker did not acknowledge in time")
)

type MeasurementSaver interface {
	SaveMeasurement(ctx context.Context, deviceID string, in services.MeasurementInput, source string) (*models.Measurement, error)
}

// RejectRecorder counts dropped messages; metrics.Collector implements it.
type RejectRecorder interface {
	RecordIngestRejected(source, reason string)
}

type Subscriber struct {
	cfg      config.MQTTConfig
	saver    MeasurementSaver
	rejects  RejectRecorder
	logger   *slog.Logger
	client   mqtt.Client
	timeout  time.Duration
	rootCtx  context.Context
	cancelFn context.CancelFunc
}

func NewSubscriber(cfg config.MQTTConfig, saver MeasurementSaver, logger *slog.Logger) *Subscriber {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("aq-panel-%d", time.Now().UnixNano())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{cfg: cfg, saver: saver, logger: logger, timeout: 5 * time.Second}
}

func (s *Subscriber) SetRejectRecorder(r RejectRecorder) { s.rejects = r }

// Start connects to the broker and subscribes. Subscriptions are restored on
// every reconnect. ctx bounds the lifetime of in-flight saves.
func (s *Subscriber) Start(ctx context.Context) error {
	s.rootCtx, s.cancelFn = context.WithCancel(ctx)

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(10 * time.Second)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := awaitToken(c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onMessage), s.timeout); err != nil {
			s.logger.Error("mqtt subscribe failed", "topic", s.cfg.Topic, "error", err)
			return
		}
		s.logger.Info("mqtt subscribed", "broker", s.cfg.Broker, "topic", s.cfg.Topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	if err := awaitToken(s.client.Connect(), 15*time.Second); err != nil {
		return fmt.Errorf("connect to mqtt broker %s: %w", s.cfg.Broker, err)
	}
	return nil
}

// awaitToken waits for a broker acknowledgement. A missing ack is an error.
func awaitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrAckTimeout
	}
	return token.Error()
}

// Stop disconnects and cancels pending saves.
func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(s.timeout)
		s.client.Disconnect(250)
	}
	if s.cancelFn != nil {
		s.cancelFn()
	}
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx := s.rootCtx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.HandleMessage(ctx, msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn("mqtt message dropped", "topic", msg.Topic(), "error", err)
	}
}

// HandleMessage decodes one payload and stores it. The device id comes from
// the payload, or from the second topic segment when the payload has none.
func (s *Subscriber) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	var p services.MeasurementPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.reject("decode")
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(p.DeviceID) == "" {
		p.DeviceID = DeviceFromTopic(topic)
	}
	if err := p.Validate(); err != nil {
		s.reject("missing_fields")
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	m, err := s.saver.SaveMeasurement(ctx, p.DeviceID, p.Input(), Source)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMeasurement) {
			s.reject("invalid_device")
		} else {
			s.reject("store")
		}
		return err
	}

	s.logger.Debug("mqtt measurement stored", "device_id", m.DeviceID, "timestamp", m.Timestamp, "status", m.Status)
	return nil
}

// DeviceFromTopic returns the second segment of a topic such as
// "aqmonitor/{device}/measurements".
func DeviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func (s *Subscriber) reject(reason string) {
	if s.rejects != nil {
		s.rejects.RecordIngestRejected(Source, reason)
	}
}
