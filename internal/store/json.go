package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt 持久化内容无法解析（损坏或格式不兼容）
var ErrCorrupt = errors.New("corrupt stored value")

// LoadJSON 读取并反序列化；键不存在返回 ErrMiss，内容损坏返回 ErrCorrupt
func LoadJSON(ctx context.Context, kv KV, key string, out any) error {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: key %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

// SaveJSON 序列化后整体写入（无过期时间）
func SaveJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(data), 0); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
