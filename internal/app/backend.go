// Package app 进程启动时的存储后端、通知总线与初始数据装配
package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"twin-data/common/database"
	rediscommon "twin-data/common/redis"
	"twin-data/internal/config"
	"twin-data/internal/metrics"
	"twin-data/internal/store"
)

// Backend 已打开的存储与变更通知
type Backend struct {
	// KV 写入/删除会发布变更通知
	KV       store.KV
	Notifier store.Notifier
	// Checks 健康检查（内存后端为空）
	Checks map[string]func(ctx context.Context) error

	redis  *redis.Client
	db     *sql.DB
	logger *zap.Logger
}

// OpenBackend 按 STORAGE_BACKEND 打开存储
// redis 后端使用 Redis Pub/Sub 跨进程通知；postgres / memory 只在进程内通知
func OpenBackend(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Backend, error) {
	b := &Backend{Checks: map[string]func(ctx context.Context) error{}, logger: logger}

	var kv store.KV
	switch cfg.StorageBackend {
	case config.BackendRedis:
		b.redis = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, b.redis); err != nil {
			_ = b.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		kv = store.NewRedisKV(b.redis)
		b.Notifier = store.NewRedisNotifier(b.redis, cfg.ChangeChannel, logger)
		client := b.redis
		b.Checks["redis"] = func(ctx context.Context) error { return rediscommon.Ping(ctx, client) }
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresKV(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to prepare kv schema: %w", err)
		}
		b.db = db
		kv = pg
		b.Notifier = store.NewLocalNotifier()
		b.Checks["database"] = db.PingContext
	default:
		kv = store.NewMemoryKV()
		b.Notifier = store.NewLocalNotifier()
	}

	b.Notifier.Subscribe(func(c store.Change) {
		m.IncChange(KeyFamily(c.Key))
	})

	b.KV = store.NewNotifyingKV(metrics.InstrumentKV(kv, m), b.Notifier, logger)
	logger.Info("Storage backend ready", zap.String("backend", cfg.StorageBackend))
	return b, nil
}

// Run 跨进程通知循环，阻塞到 ctx 结束
func (b *Backend) Run(ctx context.Context) error {
	if rn, ok := b.Notifier.(*store.RedisNotifier); ok {
		return rn.Run(ctx, nil)
	}
	<-ctx.Done()
	return nil
}

func (b *Backend) Close() {
	if b.redis != nil {
		if err := rediscommon.Close(b.redis); err != nil {
			b.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if b.db != nil {
		if err := database.Close(b.db); err != nil {
			b.logger.Warn("Failed to close database", zap.Error(err))
		}
	}
}

// KeyFamily 指标标签：把按传感器区分的键归并为一类
func KeyFamily(key string) string {
	switch {
	case strings.HasPrefix(key, store.KeyManualSensorPrefix):
		return "manual_sensor_data"
	case strings.HasPrefix(key, store.KeyLiveSensorPrefix):
		return "live_sensor_data"
	case key == store.KeyMappingData:
		return "mapping"
	case key == store.KeyManualSensors:
		return "manual_sensors"
	case key == store.KeyLabResearchData:
		return "lab"
	case key == store.KeyManualEntryHistory:
		return "history"
	default:
		return "other"
	}
}
