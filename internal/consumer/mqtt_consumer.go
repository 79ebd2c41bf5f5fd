// Package consumer 自动传感器实时数据的 MQTT 消费者
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	mqttcommon "twin-data/common/mqtt"
	"twin-data/internal/domain"
	"twin-data/internal/journal"
	"twin-data/internal/metrics"
	"twin-data/internal/store"
)

// Subscriber MQTT 订阅能力（common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// livePayload 自动传感器实时数据
// 主题格式: twin/sensors/{sensor_id}/value
// 载荷: {"value": 85.3, "timestamp": "2024-01-01T10:00:00Z"}，也接受裸数字
type livePayload struct {
	Value     json.RawMessage `json:"value"`
	Timestamp string          `json:"timestamp"`
}

// MQTTConsumer 把实时数据写入 liveSensorData_<id>，由变更通知推送到 twin-data
type MQTTConsumer struct {
	sub     Subscriber
	kv      store.KV
	topic   string
	qos     byte
	known   map[string]bool
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Option 配置 MQTTConsumer
type Option func(*MQTTConsumer)

// WithKnownSensors 只接受列出的传感器；为空时接受全部
func WithKnownSensors(ids []string) Option {
	return func(c *MQTTConsumer) {
		if len(ids) == 0 {
			return
		}
		c.known = make(map[string]bool, len(ids))
		for _, id := range ids {
			c.known[id] = true
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *MQTTConsumer) { c.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *MQTTConsumer) { c.metrics = m }
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(sub Subscriber, kv store.KV, topic string, qos byte, logger *zap.Logger, opts ...Option) *MQTTConsumer {
	c := &MQTTConsumer{
		sub:    sub,
		kv:     kv,
		topic:  topic,
		qos:    qos,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start 订阅并阻塞到 ctx 结束
func (c *MQTTConsumer) Start(ctx context.Context) error {
	handler := func(topic string, payload []byte) error {
		return c.handleMessage(ctx, topic, payload)
	}
	if err := c.sub.Subscribe(c.topic, c.qos, handler); err != nil {
		return fmt.Errorf("failed to subscribe to live topic: %w", err)
	}

	c.logger.Info("MQTT consumer started", zap.String("topic", c.topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.sub.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
}

func (c *MQTTConsumer) handleMessage(ctx context.Context, topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	sensorID, err := SensorIDFromTopic(topic)
	if err != nil {
		c.metrics.IncLiveUpdate("bad_topic")
		return err
	}
	if c.known != nil && !c.known[sensorID] {
		c.metrics.IncLiveUpdate("unknown_sensor")
		c.logger.Warn("Live value for unknown sensor", zap.String("sensor_id", sensorID))
		return nil
	}

	value, at, err := c.decode(payload)
	if err != nil {
		c.metrics.IncLiveUpdate("bad_payload")
		return fmt.Errorf("sensor %s: %w", sensorID, err)
	}

	reading := domain.Reading{
		Timestamp: domain.FormatTimestamp(at),
		Value:     value,
		EnteredBy: "mqtt",
		EntryDate: domain.FormatTimestamp(c.now()),
	}
	if err := store.SaveJSON(ctx, c.kv, store.LiveSensorKey(sensorID), reading); err != nil {
		c.metrics.IncLiveUpdate(metrics.ResultError)
		return fmt.Errorf("failed to store live value: %w", err)
	}
	c.metrics.IncLiveUpdate(metrics.ResultSuccess)
	return nil
}

// SensorIDFromTopic 取倒数第二段作为传感器 ID
func SensorIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("invalid topic format: %s", topic)
	}
	return parts[len(parts)-2], nil
}

func (c *MQTTConsumer) decode(payload []byte) (float64, time.Time, error) {
	now := c.now()
	trimmed := strings.TrimSpace(string(payload))
	if v, ok := journal.ParseValue(trimmed); ok {
		return v, now, nil
	}

	var p livePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if len(p.Value) == 0 {
		return 0, time.Time{}, errors.New("missing value")
	}

	raw := string(p.Value)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	v, ok := journal.ParseValue(raw)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("invalid value %s", string(p.Value))
	}

	at := now
	if p.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("invalid timestamp %q: %w", p.Timestamp, err)
		}
		at = t
	}
	return v, at, nil
}
