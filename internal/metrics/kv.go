package metrics

import (
	"context"
	"errors"
	"time"

	"twin-data/internal/store"
)

// InstrumentedKV 为任意 store.KV 记录操作次数与耗时
type InstrumentedKV struct {
	next    store.KV
	metrics *Metrics
}

func InstrumentKV(kv store.KV, m *Metrics) store.KV {
	if m == nil {
		return kv
	}
	return &InstrumentedKV{next: kv, metrics: m}
}

func (i *InstrumentedKV) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	v, err := i.next.Get(ctx, key)
	i.metrics.ObserveKV("get", result(err), time.Since(start))
	return v, err
}

func (i *InstrumentedKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	start := time.Now()
	err := i.next.Set(ctx, key, value, ttl)
	i.metrics.ObserveKV("set", result(err), time.Since(start))
	return err
}

func (i *InstrumentedKV) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, key)
	i.metrics.ObserveKV("delete", result(err), time.Since(start))
	return err
}

func (i *InstrumentedKV) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := i.next.ScanKeys(ctx, pattern)
	i.metrics.ObserveKV("scan", result(err), time.Since(start))
	return keys, err
}

func result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, store.ErrMiss):
		return ResultMiss
	default:
		return ResultError
	}
}
