// Package journal 手动传感器读数日志与录入审计记录
package journal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/store"
)

// MaxReadings 每个传感器保留最近追加的读数条数；录入审计记录不受此限制
const MaxReadings = 1000

var (
	ErrSensorNotFound  = errors.New("sensor not found")
	ErrNotManualSensor = errors.New("sensor does not accept manual readings")
	ErrIndexOutOfRange = errors.New("reading index out of range")
	ErrHistoryNotFound = errors.New("history entry not found")
)

// SensorRegistry 日志需要的注册表能力
type SensorRegistry interface {
	Get(id string) (domain.Sensor, bool)
	ApplyReadings(id string, readings []domain.Reading) error
}

// RowRefresher 读数变化后同步映射行
type RowRefresher interface {
	RefreshSensor(ctx context.Context, sensorID string, readings []domain.Reading) error
}

// Journal 读数按追加顺序保存，不做排序与去重
type Journal struct {
	kv      store.KV
	sensors SensorRegistry
	rows    RowRefresher
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time

	// 串行化读-改-写
	mu sync.Mutex
}

// Option 可选配置
type Option func(*Journal)

// WithLocation 录入日期/时间所在时区（默认 UTC）
func WithLocation(loc *time.Location) Option {
	return func(j *Journal) { j.loc = loc }
}

// WithClock 替换时钟（测试）
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// New 创建日志；rows 可以为 nil
func New(kv store.KV, sensors SensorRegistry, rows RowRefresher, logger *zap.Logger, opts ...Option) *Journal {
	j := &Journal{
		kv:      kv,
		sensors: sensors,
		rows:    rows,
		logger:  logger,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Entry 单个传感器的录入表单
type Entry struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Value     string `json:"value"`
	Notes     string `json:"notes"`
	EnteredBy string `json:"enteredBy"`
}

// Result 录入结果；超出传感器量程的值照常保存并给出提示
type Result struct {
	SensorID string         `json:"sensorId"`
	Reading  domain.Reading `json:"reading"`
	Warnings []string       `json:"warnings,omitempty"`
}

// GetReadings 读取传感器日志；数据损坏时返回空
func (j *Journal) GetReadings(ctx context.Context, sensorID string) []domain.Reading {
	readings, err := j.load(ctx, sensorID)
	if err != nil {
		j.logger.Warn("Failed to load sensor readings", zap.String("sensor_id", sensorID), zap.Error(err))
		return []domain.Reading{}
	}
	return readings
}

// AddReading 校验并追加一条读数
func (j *Journal) AddReading(ctx context.Context, sensorID string, e Entry) (Result, error) {
	if strings.TrimSpace(e.Date) == "" || strings.TrimSpace(e.Time) == "" || strings.TrimSpace(e.Value) == "" {
		return Result{}, domain.NewValidationError("Заполните дату, время и значение")
	}
	sensor, err := j.manualSensor(sensorID)
	if err != nil {
		return Result{}, err
	}
	value, ok := ParseValue(e.Value)
	if !ok {
		return Result{}, domain.NewValidationError("Пожалуйста, введите корректное значение для датчика \"%s\"", sensor.Name)
	}
	at, err := j.combine(e.Date, e.Time)
	if err != nil {
		return Result{}, err
	}

	reading := j.newReading(at, value, e.Notes, e.EnteredBy)
	if err := j.append(ctx, sensor, []domain.Reading{reading}); err != nil {
		return Result{}, err
	}
	return Result{SensorID: sensorID, Reading: reading, Warnings: rangeWarnings(sensor, value)}, nil
}

// BatchEntry 多个传感器共用一个时间戳的录入
type BatchEntry struct {
	Date   string            `json:"date"`
	Time   string            `json:"time"`
	Notes  string            `json:"notes"`
	Values map[string]string `json:"values"`
}

// BatchResult 批量录入结果
type BatchResult struct {
	Timestamp string   `json:"timestamp"`
	Saved     []Result `json:"saved"`
	Skipped   []string `json:"skipped,omitempty"`
}

// AddBatch 空值或非数字的条目跳过，至少需要一条有效值
func (j *Journal) AddBatch(ctx context.Context, b BatchEntry) (BatchResult, error) {
	if strings.TrimSpace(b.Date) == "" || strings.TrimSpace(b.Time) == "" {
		return BatchResult{}, domain.NewValidationError("Пожалуйста, укажите дату и время для группового сохранения")
	}
	at, err := j.combine(b.Date, b.Time)
	if err != nil {
		return BatchResult{}, err
	}

	ids := make([]string, 0, len(b.Values))
	for id := range b.Values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type pending struct {
		sensor domain.Sensor
		value  float64
	}
	var todo []pending
	var skipped []string
	for _, id := range ids {
		raw := strings.TrimSpace(b.Values[id])
		if raw == "" {
			continue
		}
		value, ok := ParseValue(raw)
		if !ok {
			skipped = append(skipped, id)
			continue
		}
		sensor, err := j.manualSensor(id)
		if err != nil || !sensor.IsActive {
			skipped = append(skipped, id)
			continue
		}
		todo = append(todo, pending{sensor: sensor, value: value})
	}
	if len(todo) == 0 {
		return BatchResult{}, domain.NewValidationError("Нет данных для сохранения. Введите значения для хотя бы одного датчика.")
	}

	res := BatchResult{Timestamp: domain.FormatTimestamp(at), Skipped: skipped}
	for _, p := range todo {
		reading := j.newReading(at, p.value, b.Notes, "")
		if err := j.append(ctx, p.sensor, []domain.Reading{reading}); err != nil {
			return res, err
		}
		res.Saved = append(res.Saved, Result{
			SensorID: p.sensor.ID,
			Reading:  reading,
			Warnings: rangeWarnings(p.sensor, p.value),
		})
	}
	return res, nil
}

// RemoveReading 按位置删除
func (j *Journal) RemoveReading(ctx context.Context, sensorID string, index int) error {
	j.mu.Lock()
	readings, err := j.load(ctx, sensorID)
	if err != nil {
		j.logger.Warn("Failed to load sensor readings", zap.String("sensor_id", sensorID), zap.Error(err))
		readings = nil
	}
	if index < 0 || index >= len(readings) {
		j.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	readings = append(readings[:index:index], readings[index+1:]...)
	err = store.SaveJSON(ctx, j.kv, store.SensorDataKey(sensorID), readings)
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save readings: %w", err)
	}
	j.refresh(ctx, sensorID, readings)
	return nil
}

// Clear 删除传感器全部读数
func (j *Journal) Clear(ctx context.Context, sensorID string) error {
	j.mu.Lock()
	err := j.kv.Delete(ctx, store.SensorDataKey(sensorID))
	j.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to clear readings: %w", err)
	}
	j.refresh(ctx, sensorID, []domain.Reading{})
	return nil
}

// append 追加并截断到最近 MaxReadings 条，写审计记录，刷新注册表与映射行
func (j *Journal) append(ctx context.Context, sensor domain.Sensor, added []domain.Reading) error {
	j.mu.Lock()
	readings, err := j.load(ctx, sensor.ID)
	if err != nil {
		j.logger.Warn("Discarding unreadable sensor readings", zap.String("sensor_id", sensor.ID), zap.Error(err))
		readings = nil
	}
	readings = append(readings, added...)
	if n := len(readings); n > MaxReadings {
		readings = append([]domain.Reading(nil), readings[n-MaxReadings:]...)
	}
	if err := store.SaveJSON(ctx, j.kv, store.SensorDataKey(sensor.ID), readings); err != nil {
		j.mu.Unlock()
		return fmt.Errorf("failed to save readings: %w", err)
	}
	if err := j.recordHistory(ctx, sensor, added); err != nil {
		// 读数已保存，审计失败只记录日志
		j.logger.Warn("Failed to record entry history", zap.String("sensor_id", sensor.ID), zap.Error(err))
	}
	j.mu.Unlock()

	j.refresh(ctx, sensor.ID, readings)
	j.logger.Debug("Manual readings saved",
		zap.String("sensor_id", sensor.ID),
		zap.Int("added", len(added)),
		zap.Int("total", len(readings)),
	)
	return nil
}

func (j *Journal) refresh(ctx context.Context, sensorID string, readings []domain.Reading) {
	if err := j.sensors.ApplyReadings(sensorID, readings); err != nil {
		j.logger.Debug("Registry not refreshed", zap.String("sensor_id", sensorID), zap.Error(err))
	}
	if j.rows == nil {
		return
	}
	if err := j.rows.RefreshSensor(ctx, sensorID, readings); err != nil {
		j.logger.Warn("Failed to refresh mapping rows", zap.String("sensor_id", sensorID), zap.Error(err))
	}
}

// load ErrMiss 视为空日志；损坏数据返回 ErrCorrupt
func (j *Journal) load(ctx context.Context, sensorID string) ([]domain.Reading, error) {
	var readings []domain.Reading
	err := store.LoadJSON(ctx, j.kv, store.SensorDataKey(sensorID), &readings)
	if errors.Is(err, store.ErrMiss) {
		return []domain.Reading{}, nil
	}
	if err != nil {
		return nil, err
	}
	if readings == nil {
		readings = []domain.Reading{}
	}
	return readings, nil
}

func (j *Journal) manualSensor(id string) (domain.Sensor, error) {
	sensor, ok := j.sensors.Get(id)
	if !ok {
		return domain.Sensor{}, fmt.Errorf("%w: %s", ErrSensorNotFound, id)
	}
	if !sensor.IsManualSensor() {
		return domain.Sensor{}, fmt.Errorf("%w: %s", ErrNotManualSensor, id)
	}
	return sensor, nil
}

func (j *Journal) newReading(at time.Time, value float64, notes, enteredBy string) domain.Reading {
	if strings.TrimSpace(enteredBy) == "" {
		enteredBy = domain.DefaultOperator
	}
	return domain.Reading{
		Timestamp: domain.FormatTimestamp(at),
		Value:     value,
		Notes:     notes,
		EnteredBy: enteredBy,
		EntryDate: domain.FormatTimestamp(j.now()),
	}
}

// combine date + "T" + time，秒可省略，按配置时区解释
func (j *Journal) combine(date, clock string) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, date+"T"+clock, j.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.NewValidationError("Некорректная дата или время: %s %s", date, clock)
}

// ParseValue 数值解析；允许逗号作为小数点，拒绝 NaN/Inf
func ParseValue(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func rangeWarnings(s domain.Sensor, v float64) []string {
	var out []string
	if s.MinValue != nil && v < *s.MinValue {
		out = append(out, fmt.Sprintf("Значение %v для датчика \"%s\" меньше минимального %v", v, s.Name, *s.MinValue))
	}
	if s.MaxValue != nil && v > *s.MaxValue {
		out = append(out, fmt.Sprintf("Значение %v для датчика \"%s\" больше максимального %v", v, s.Name, *s.MaxValue))
	}
	return out
}
