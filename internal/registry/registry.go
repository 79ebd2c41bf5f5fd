// Package registry 传感器注册表：进程级的自动传感器 + 持久化的手动传感器
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/store"
)

var (
	ErrSensorNotFound = errors.New("sensor not found")
	ErrNotManual      = errors.New("sensor is not a manual sensor")
	ErrNotAutomatic   = errors.New("sensor is not an automatic sensor")
)

// maxLiveHistory 自动传感器保留的实时历史条数
const maxLiveHistory = 1000

// Registry 传感器注册表；所有修改都经由方法完成
type Registry struct {
	kv       store.KV
	notifier store.Notifier
	logger   *zap.Logger
	now      func() time.Time

	// persistMu 串行化 "修改 + 落盘"，mu 保护内存状态
	persistMu sync.Mutex
	mu        sync.RWMutex
	automatic []domain.Sensor
	manual    []domain.Sensor

	unsubscribe func()
}

// Option 可选配置
type Option func(*Registry)

// WithClock 替换时钟（测试）
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithNotifier 订阅远端变更（其它进程写入的手动传感器/实时数据）
func WithNotifier(n store.Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// New 创建注册表并从存储加载手动传感器
func New(ctx context.Context, kv store.KV, automatic []domain.Sensor, logger *zap.Logger, opts ...Option) (*Registry, error) {
	r := &Registry{
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range automatic {
		s = s.Clone()
		s.Kind = domain.SensorKindAutomatic
		s.IsManual = false
		r.automatic = append(r.automatic, s)
	}
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	if r.notifier != nil {
		r.unsubscribe = r.notifier.Subscribe(r.onChange)
	}
	return r, nil
}

// Close 取消变更订阅
func (r *Registry) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// All 自动传感器在前，手动传感器在后
func (r *Registry) All() []domain.Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Sensor, 0, len(r.automatic)+len(r.manual))
	for _, s := range r.automatic {
		out = append(out, s.Clone())
	}
	for _, s := range r.manual {
		out = append(out, s.Clone())
	}
	return out
}

func (r *Registry) Automatic() []domain.Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.automatic)
}

func (r *Registry) Manual() []domain.Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAll(r.manual)
}

// Get 按 ID 查找
func (r *Registry) Get(id string) (domain.Sensor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := indexOf(r.automatic, id); i >= 0 {
		return r.automatic[i].Clone(), true
	}
	if i := indexOf(r.manual, id); i >= 0 {
		return r.manual[i].Clone(), true
	}
	return domain.Sensor{}, false
}

// Filter 传感器列表过滤条件
type Filter struct {
	Kind  domain.SensorKind // 空 = 全部
	Type  string            // 空或 "all" = 全部
	Query string            // 名称/编码/位置子串，不区分大小写
}

// List 按条件过滤
func (r *Registry) List(f Filter) []domain.Sensor {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	var out []domain.Sensor
	for _, s := range r.All() {
		if f.Kind != "" && kindOf(s) != f.Kind {
			continue
		}
		if f.Type != "" && f.Type != "all" && string(s.Type) != f.Type {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(s.Name), q) &&
			!strings.Contains(strings.ToLower(s.Code), q) &&
			!strings.Contains(strings.ToLower(s.Location), q) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ApplyReadings 手动传感器的读数已保存：刷新 manualData / currentValue / lastUpdate / status
// currentValue 取最后追加的读数（不一定是时间最新的）
func (r *Registry) ApplyReadings(id string, readings []domain.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := indexOf(r.manual, id)
	if i < 0 {
		if indexOf(r.automatic, id) >= 0 {
			return ErrNotManual
		}
		return ErrSensorNotFound
	}
	applyReadings(&r.manual[i], readings)
	return nil
}

// UpdateLive 自动传感器收到实时值
func (r *Registry) UpdateLive(id string, value float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := indexOf(r.automatic, id)
	if i < 0 {
		if indexOf(r.manual, id) >= 0 {
			return ErrNotAutomatic
		}
		return ErrSensorNotFound
	}
	s := &r.automatic[i]
	v := value
	ts := domain.FormatTimestamp(at)
	s.CurrentValue = &v
	s.LastUpdate = ts
	s.Status = domain.SensorStatusNormal
	s.History = append(s.History, domain.Reading{Timestamp: ts, Value: value})
	if n := len(s.History); n > maxLiveHistory {
		s.History = append([]domain.Reading(nil), s.History[n-maxLiveHistory:]...)
	}
	return nil
}

// Reload 重新读取手动传感器及其读数、自动传感器的最新实时值
func (r *Registry) Reload(ctx context.Context) error {
	manual, err := r.loadManual(ctx)
	if err != nil {
		return err
	}
	for i := range manual {
		applyReadings(&manual[i], r.loadReadings(ctx, manual[i].ID))
	}

	r.mu.Lock()
	r.manual = manual
	ids := make([]string, 0, len(r.automatic))
	for _, s := range r.automatic {
		ids = append(ids, s.ID)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.refreshLive(ctx, id)
	}
	return nil
}

func (r *Registry) loadManual(ctx context.Context) ([]domain.Sensor, error) {
	var manual []domain.Sensor
	err := store.LoadJSON(ctx, r.kv, store.KeyManualSensors, &manual)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrMiss):
		return nil, nil
	case errors.Is(err, store.ErrCorrupt):
		r.logger.Warn("Failed to parse manual sensors, starting empty", zap.Error(err))
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to load manual sensors: %w", err)
	}
	for i := range manual {
		manual[i].Kind = domain.SensorKindManual
		manual[i].IsManual = true
	}
	return manual, nil
}

func (r *Registry) loadReadings(ctx context.Context, id string) []domain.Reading {
	var readings []domain.Reading
	if err := store.LoadJSON(ctx, r.kv, store.SensorDataKey(id), &readings); err != nil {
		if !errors.Is(err, store.ErrMiss) {
			r.logger.Warn("Failed to load sensor readings", zap.String("sensor_id", id), zap.Error(err))
		}
		return nil
	}
	return readings
}

func (r *Registry) refreshLive(ctx context.Context, id string) {
	var live domain.Reading
	if err := store.LoadJSON(ctx, r.kv, store.LiveSensorKey(id), &live); err != nil {
		if !errors.Is(err, store.ErrMiss) {
			r.logger.Warn("Failed to load live value", zap.String("sensor_id", id), zap.Error(err))
		}
		return
	}
	at, ok := live.Time()
	if !ok {
		r.logger.Warn("Invalid live value timestamp", zap.String("sensor_id", id), zap.String("timestamp", live.Timestamp))
		return
	}
	if s, found := r.Get(id); found && s.LastUpdate == domain.FormatTimestamp(at) && s.CurrentValue != nil && *s.CurrentValue == live.Value {
		return
	}
	if err := r.UpdateLive(id, live.Value, at); err != nil {
		r.logger.Debug("Live value for unknown sensor", zap.String("sensor_id", id), zap.Error(err))
	}
}

// onChange 其它进程的写入触发重新加载；本进程自身的写入已在内存中生效
func (r *Registry) onChange(c store.Change) {
	if c.Origin == r.notifier.Origin() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch {
	case c.Key == store.KeyManualSensors:
		if err := r.Reload(ctx); err != nil {
			r.logger.Warn("Failed to reload sensors after remote change", zap.Error(err))
		}
	case strings.HasPrefix(c.Key, store.KeyManualSensorPrefix):
		id := strings.TrimPrefix(c.Key, store.KeyManualSensorPrefix)
		if err := r.ApplyReadings(id, r.loadReadings(ctx, id)); err != nil {
			r.logger.Debug("Readings changed for unknown sensor", zap.String("sensor_id", id), zap.Error(err))
		}
	case strings.HasPrefix(c.Key, store.KeyLiveSensorPrefix):
		r.refreshLive(ctx, strings.TrimPrefix(c.Key, store.KeyLiveSensorPrefix))
	}
}

func applyReadings(s *domain.Sensor, readings []domain.Reading) {
	s.ManualData = append([]domain.Reading(nil), readings...)
	if len(readings) == 0 {
		s.CurrentValue = nil
		s.LastUpdate = ""
	} else {
		last := readings[len(readings)-1]
		v := last.Value
		s.CurrentValue = &v
		s.LastUpdate = last.Timestamp
	}
	s.Status = manualStatus(s)
}

func manualStatus(s *domain.Sensor) domain.SensorStatus {
	switch {
	case !s.IsActive:
		return domain.SensorStatusDisabled
	case len(s.ManualData) == 0:
		return domain.SensorStatusInactive
	default:
		return domain.SensorStatusNormal
	}
}

func kindOf(s domain.Sensor) domain.SensorKind {
	if s.IsManualSensor() {
		return domain.SensorKindManual
	}
	return domain.SensorKindAutomatic
}

func indexOf(sensors []domain.Sensor, id string) int {
	for i := range sensors {
		if sensors[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneAll(sensors []domain.Sensor) []domain.Sensor {
	out := make([]domain.Sensor, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.Clone())
	}
	return out
}
