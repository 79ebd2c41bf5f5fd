package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrMiss 键不存在或已过期
var ErrMiss = errors.New("cache miss")

// KV 键值存储抽象：每个键保存一个独立的 JSON 文档
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	// Set ttl 为 0 表示不过期
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// ScanKeys 按 glob 模式列出键，结果按字典序排列
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// scanBatch 每次 SCAN 建议返回的键数量
const scanBatch = 200

// RedisKV 每个键对应一个 Redis 字符串
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV { return &RedisKV{client: client} }

// Get 键不存在时返回 ErrMiss
func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return val, nil
	case errors.Is(err, redis.Nil):
		return "", ErrMiss
	default:
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete 删除不存在的键不算错误
func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// ScanKeys 用 SCAN 游标遍历，避免 KEYS 阻塞服务端
// SCAN 在 rehash 期间可能重复返回同一个键，这里去重
func (r *RedisKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		for _, k := range batch {
			seen[k] = struct{}{}
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
