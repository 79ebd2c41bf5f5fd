package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// PublishJSON 序列化为 JSON 并发布到 Redis Pub/Sub 频道
func PublishJSON(ctx context.Context, client *redis.Client, channel string, data interface{}) error {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := client.Publish(ctx, channel, jsonBytes).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// SubscribeChannel 订阅频道，等待订阅确认后返回
// 调用方负责 Close 返回的 PubSub
func SubscribeChannel(ctx context.Context, client *redis.Client, channel string) (*redis.PubSub, error) {
	ps := client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}
	return ps, nil
}
