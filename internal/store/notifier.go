package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	rediscommon "twin-data/common/redis"
)

// DefaultChangeChannel 跨进程变更通知频道
const DefaultChangeChannel = "twin:changes"

// Change 一次键变更
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
	At     string `json:"at"`
}

// Notifier 发布/订阅键变更
// 订阅回调同步执行；发布方不得在持有自身锁时调用 Publish
type Notifier interface {
	Origin() string
	Publish(ctx context.Context, key string) error
	Subscribe(fn func(Change)) (unsubscribe func())
}

// LocalNotifier 进程内通知总线
type LocalNotifier struct {
	origin string
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{
		origin: uuid.NewString(),
		subs:   make(map[int]func(Change)),
	}
}

func (n *LocalNotifier) Origin() string { return n.origin }

func (n *LocalNotifier) Publish(ctx context.Context, key string) error {
	n.deliver(Change{Key: key, Origin: n.origin, At: time.Now().UTC().Format(time.RFC3339Nano)})
	return nil
}

func (n *LocalNotifier) Subscribe(fn func(Change)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *LocalNotifier) deliver(c Change) {
	n.mu.RLock()
	fns := make([]func(Change), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

// RedisNotifier 本地投递 + Redis Pub/Sub 扇出到其它进程
type RedisNotifier struct {
	local   *LocalNotifier
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChangeChannel
	}
	return &RedisNotifier{
		local:   NewLocalNotifier(),
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

func (r *RedisNotifier) Origin() string { return r.local.origin }

func (r *RedisNotifier) Publish(ctx context.Context, key string) error {
	c := Change{Key: key, Origin: r.local.origin, At: time.Now().UTC().Format(time.RFC3339Nano)}
	r.local.deliver(c)
	return rediscommon.PublishJSON(ctx, r.client, r.channel, c)
}

func (r *RedisNotifier) Subscribe(fn func(Change)) func() {
	return r.local.Subscribe(fn)
}

// Run 接收其它进程的变更并在本地投递，直到 ctx 取消
// ready 在订阅确认后关闭（可为 nil）
func (r *RedisNotifier) Run(ctx context.Context, ready chan<- struct{}) error {
	ps, err := rediscommon.SubscribeChannel(ctx, r.client, r.channel)
	if err != nil {
		return err
	}
	defer ps.Close()
	if ready != nil {
		close(ready)
	}

	r.logger.Info("Change notifier subscribed", zap.String("channel", r.channel))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				r.logger.Warn("Invalid change notification", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if c.Origin == r.local.origin {
				continue
			}
			r.local.deliver(c)
		}
	}
}

// NotifyingKV 每次写入/删除成功后发布变更
type NotifyingKV struct {
	KV
	notifier Notifier
	logger   *zap.Logger
}

func NewNotifyingKV(kv KV, notifier Notifier, logger *zap.Logger) *NotifyingKV {
	return &NotifyingKV{KV: kv, notifier: notifier, logger: logger}
}

func (n *NotifyingKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := n.KV.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	n.publish(ctx, key)
	return nil
}

func (n *NotifyingKV) Delete(ctx context.Context, key string) error {
	if err := n.KV.Delete(ctx, key); err != nil {
		return err
	}
	n.publish(ctx, key)
	return nil
}

// 通知失败不影响写入结果
func (n *NotifyingKV) publish(ctx context.Context, key string) {
	if err := n.notifier.Publish(ctx, key); err != nil {
		n.logger.Warn("Failed to publish change", zap.String("key", key), zap.Error(err))
	}
}
