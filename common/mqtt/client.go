package mqtt

import (
	"fmt"
	"sync"
	"time"

	"twin-data/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout   = 10 * time.Second
	operationTimeout = 5 * time.Second
	disconnectQuiesc = 250 // ms
)

// MessageHandler 消息处理函数类型
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client MQTT客户端封装
// CleanSession 下重连会丢失订阅，OnConnect 时按记录重新订阅
type Client struct {
	client mqtt.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient 连接 broker；连接失败返回错误
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{logger: logger, subs: make(map[string]subscription)}
	c.client = mqtt.NewClient(c.options(cfg))

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return c, nil
}

func (c *Client) options(cfg *config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", zap.String("broker", cfg.Broker), zap.Error(err))
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.resubscribe()
	})
	return opts
}

// resubscribe 重连后恢复订阅
func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		if err := c.subscribe(topic, s); err != nil {
			c.logger.Error("Failed to resubscribe", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// Subscribe 订阅主题；handler 返回的错误只记录日志
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	s := subscription{qos: qos, handler: handler}
	if err := c.subscribe(topic, s); err != nil {
		return err
	}
	c.mu.Lock()
	c.subs[topic] = s
	c.mu.Unlock()
	return nil
}

func (c *Client) subscribe(topic string, s subscription) error {
	token := c.client.Subscribe(topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Error("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	})
	return wait(token, "subscribe to topic "+topic)
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	c.mu.Unlock()
	return wait(c.client.Unsubscribe(topics...), "unsubscribe")
}

// Disconnect 断开连接
func (c *Client) Disconnect() {
	c.client.Disconnect(disconnectQuiesc)
}

func wait(token mqtt.Token, op string) error {
	if !token.WaitTimeout(operationTimeout) {
		return fmt.Errorf("timed out trying to %s", op)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}
