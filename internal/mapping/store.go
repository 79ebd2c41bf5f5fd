// Package mapping 计算参数与分组/传感器的映射行
package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/classifier"
	"twin-data/internal/domain"
	"twin-data/internal/store"
)

var (
	ErrRowNotFound   = errors.New("mapping row not found")
	ErrUnknownField  = errors.New("unknown mapping row field")
	ErrUnknownSensor = errors.New("unknown sensor")
)

// 可通过 UpdateRow 修改的字段
const (
	FieldGroup      = "group"
	FieldSensorID   = "sensorId"
	FieldUnit       = "unit"
	FieldManualData = "manualData"
)

// SensorLookup 注册表的只读视图
type SensorLookup interface {
	Get(id string) (domain.Sensor, bool)
	All() []domain.Sensor
}

// Store 映射行集合；每次修改整体写回 mappingData
type Store struct {
	kv       store.KV
	sensors  SensorLookup
	notifier store.Notifier
	logger   *zap.Logger
	now      func() time.Time

	persistMu sync.Mutex
	mu        sync.RWMutex
	rows      []domain.MappingRow
	lastID    int64

	unsubscribe func()
}

// Option 可选配置
type Option func(*Store)

// WithClock 替换时钟（测试）
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithNotifier 其它进程修改 mappingData 时重新加载
func WithNotifier(n store.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// New 创建映射存储并加载已保存的行
func New(ctx context.Context, kv store.KV, sensors SensorLookup, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		sensors: sensors,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Hydrate(ctx)
	if s.notifier != nil {
		s.unsubscribe = s.notifier.Subscribe(s.onChange)
	}
	return s
}

// Close 取消变更订阅
func (s *Store) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Hydrate 内存为空时从存储加载；数据损坏时记录日志并保持为空
func (s *Store) Hydrate(ctx context.Context) {
	s.mu.RLock()
	empty := len(s.rows) == 0
	s.mu.RUnlock()
	if !empty {
		return
	}
	s.reload(ctx)
}

func (s *Store) reload(ctx context.Context) {
	var rows []domain.MappingRow
	if err := store.LoadJSON(ctx, s.kv, store.KeyMappingData, &rows); err != nil {
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("Failed to load mapping data, starting empty", zap.Error(err))
		}
		rows = nil
	}
	var maxID int64
	for i := range rows {
		rows[i].IsLaboratory = classifier.IsLaboratoryGroup(rows[i].Group)
		if rows[i].ManualData == nil || !s.acceptsManualData(rows[i]) {
			rows[i].ManualData = []domain.Reading{}
		}
		if rows[i].ID > maxID {
			maxID = rows[i].ID
		}
	}

	s.mu.Lock()
	s.rows = rows
	if maxID > s.lastID {
		s.lastID = maxID
	}
	s.mu.Unlock()
}

func (s *Store) onChange(c store.Change) {
	if c.Key != store.KeyMappingData || c.Origin == s.notifier.Origin() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.reload(ctx)
}

// Rows 当前所有映射行（副本）
func (s *Store) Rows() []domain.MappingRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MappingRow, len(s.rows))
	for i, r := range s.rows {
		out[i] = cloneRow(r)
	}
	return out
}

// Row 按 ID 查找
func (s *Store) Row(id int64) (domain.MappingRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.rows, id); i >= 0 {
		return cloneRow(s.rows[i]), true
	}
	return domain.MappingRow{}, false
}

// AddParameter 新增一行，分组与传感器为空；ID 基于毫秒时间戳且严格递增
func (s *Store) AddParameter(ctx context.Context, p domain.Parameter) (domain.MappingRow, error) {
	if strings.TrimSpace(p.Name) == "" {
		return domain.MappingRow{}, domain.NewValidationError("Выберите параметр")
	}
	var row domain.MappingRow
	err := s.mutate(ctx, func(rows []domain.MappingRow) ([]domain.MappingRow, error) {
		row = domain.MappingRow{
			ID:            s.nextID(),
			ParameterID:   p.ID,
			ParameterName: p.Name,
			ParameterType: p.Type,
			Unit:          p.Unit,
			ManualData:    []domain.Reading{},
		}
		return append(rows, row), nil
	})
	if err != nil {
		return domain.MappingRow{}, err
	}
	return cloneRow(row), nil
}

// UpdateRow 按字段名修改（HTTP 层的通用入口）
func (s *Store) UpdateRow(ctx context.Context, id int64, field string, value json.RawMessage) (domain.MappingRow, error) {
	switch field {
	case FieldGroup:
		var g string
		if err := json.Unmarshal(value, &g); err != nil {
			return domain.MappingRow{}, domain.NewValidationError("Некорректное значение группы")
		}
		return s.SetGroup(ctx, id, domain.Group(g))
	case FieldSensorID:
		sensorID, err := decodeID(value)
		if err != nil {
			return domain.MappingRow{}, domain.NewValidationError("Некорректный идентификатор датчика")
		}
		return s.SetSensor(ctx, id, sensorID)
	case FieldUnit:
		var unit string
		if err := json.Unmarshal(value, &unit); err != nil {
			return domain.MappingRow{}, domain.NewValidationError("Некорректная единица измерения")
		}
		return s.SetUnit(ctx, id, unit)
	case FieldManualData:
		var readings []domain.Reading
		if err := json.Unmarshal(value, &readings); err != nil {
			return domain.MappingRow{}, domain.NewValidationError("Некорректные ручные данные")
		}
		return s.SetManualData(ctx, id, readings)
	default:
		return domain.MappingRow{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

// SetGroup 修改分组并维护 isLaboratory / sensorId / manualData 的一致性
func (s *Store) SetGroup(ctx context.Context, id int64, g domain.Group) (domain.MappingRow, error) {
	if !g.IsValid() {
		return domain.MappingRow{}, domain.NewValidationError("Неизвестная группа: %s", g)
	}
	return s.update(ctx, id, func(row *domain.MappingRow) error {
		prev := row.Group
		row.Group = g
		row.IsLaboratory = classifier.IsLaboratoryGroup(g)

		leftManual := classifier.IsManualGroup(prev) && !classifier.IsManualGroup(g)
		leftLab := classifier.IsLaboratoryGroup(prev) && !classifier.IsLaboratoryGroup(g)
		if leftManual || leftLab {
			row.SensorID = ""
			row.ManualData = []domain.Reading{}
		}

		// 已选传感器不再属于新分组的候选时清除
		if row.SensorID != "" && !s.sensorAllowed(*row, g, row.SensorID) {
			row.SensorID = ""
			row.ManualData = []domain.Reading{}
		}

		if !s.acceptsManualData(*row) {
			row.ManualData = []domain.Reading{}
		}
		return nil
	})
}

// SetSensor 绑定传感器；新绑定的手动传感器加载其已保存读数，自动传感器或清空时 manualData 为空
func (s *Store) SetSensor(ctx context.Context, id int64, sensorID string) (domain.MappingRow, error) {
	var sensor domain.Sensor
	if sensorID != "" {
		var ok bool
		if sensor, ok = s.sensors.Get(sensorID); !ok {
			return domain.MappingRow{}, fmt.Errorf("%w: %s", ErrUnknownSensor, sensorID)
		}
	}
	readings := []domain.Reading{}
	if sensorID != "" && sensor.IsManualSensor() {
		readings = s.loadReadings(ctx, sensorID)
	}
	return s.update(ctx, id, func(row *domain.MappingRow) error {
		if row.SensorID == sensorID && sensor.IsManualSensor() {
			return nil
		}
		row.SensorID = sensorID
		row.ManualData = readings
		return nil
	})
}

func (s *Store) SetUnit(ctx context.Context, id int64, unit string) (domain.MappingRow, error) {
	return s.update(ctx, id, func(row *domain.MappingRow) error {
		row.Unit = strings.TrimSpace(unit)
		return nil
	})
}

// SetManualData 只有手动分组的行或绑定了手动传感器的行才能携带读数
func (s *Store) SetManualData(ctx context.Context, id int64, readings []domain.Reading) (domain.MappingRow, error) {
	return s.update(ctx, id, func(row *domain.MappingRow) error {
		if len(readings) > 0 && !s.acceptsManualData(*row) {
			return domain.NewValidationError("Ручные данные доступны только для ручного ввода или ручного датчика")
		}
		row.ManualData = append([]domain.Reading{}, readings...)
		return nil
	})
}

// RefreshSensor 手动传感器读数变化后同步所有引用它的行
func (s *Store) RefreshSensor(ctx context.Context, sensorID string, readings []domain.Reading) error {
	return s.mutate(ctx, func(rows []domain.MappingRow) ([]domain.MappingRow, error) {
		for i := range rows {
			if rows[i].SensorID == sensorID {
				rows[i].ManualData = append([]domain.Reading{}, readings...)
			}
		}
		return rows, nil
	})
}

// RemoveRow 删除一行
func (s *Store) RemoveRow(ctx context.Context, id int64) error {
	return s.mutate(ctx, func(rows []domain.MappingRow) ([]domain.MappingRow, error) {
		i := indexOf(rows, id)
		if i < 0 {
			return nil, ErrRowNotFound
		}
		return append(rows[:i], rows[i+1:]...), nil
	})
}

// Clear 删除全部行
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]domain.MappingRow) ([]domain.MappingRow, error) {
		return []domain.MappingRow{}, nil
	})
}

// LabParameters 实验室分组中有名称的参数
func (s *Store) LabParameters() []domain.LabParameter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LabParameter
	for _, r := range s.rows {
		if !classifier.IsLaboratoryGroup(r.Group) || r.ParameterName == "" {
			continue
		}
		id := r.ParameterID
		if id == "" {
			id = strconv.FormatInt(r.ID, 10)
		}
		out = append(out, domain.LabParameter{
			ID:            id,
			ParameterName: r.ParameterName,
			Unit:          r.Unit,
			Group:         r.Group,
			IsLaboratory:  true,
		})
	}
	return out
}

// SensorOptions 行在其当前分组下可选的传感器
func (s *Store) SensorOptions(id int64) ([]domain.Sensor, error) {
	row, ok := s.Row(id)
	if !ok {
		return nil, ErrRowNotFound
	}
	return classifier.FilterSensorsFor(row, row.Group, s.sensors.All()), nil
}

func (s *Store) update(ctx context.Context, id int64, fn func(row *domain.MappingRow) error) (domain.MappingRow, error) {
	var out domain.MappingRow
	err := s.mutate(ctx, func(rows []domain.MappingRow) ([]domain.MappingRow, error) {
		i := indexOf(rows, id)
		if i < 0 {
			return nil, ErrRowNotFound
		}
		if err := fn(&rows[i]); err != nil {
			return nil, err
		}
		out = cloneRow(rows[i])
		return rows, nil
	})
	return out, err
}

// mutate 在副本上修改，写回成功后才替换内存中的行；写入失败时内存保持不变
// 写入会同步触发通知，因此保存期间不持有 mu
func (s *Store) mutate(ctx context.Context, fn func(rows []domain.MappingRow) ([]domain.MappingRow, error)) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	next := make([]domain.MappingRow, len(s.rows))
	for i, r := range s.rows {
		next[i] = cloneRow(r)
	}
	s.mu.RUnlock()

	next, err := fn(next)
	if err != nil {
		return err
	}
	if err := store.SaveJSON(ctx, s.kv, store.KeyMappingData, next); err != nil {
		return fmt.Errorf("failed to save mapping data: %w", err)
	}

	s.mu.Lock()
	s.rows = next
	s.mu.Unlock()
	return nil
}

// nextID 基于毫秒时间戳且严格递增
func (s *Store) nextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

func (s *Store) acceptsManualData(row domain.MappingRow) bool {
	return classifier.IsManualGroup(row.Group) || s.isManualSensor(row.SensorID)
}

func (s *Store) sensorAllowed(row domain.MappingRow, g domain.Group, sensorID string) bool {
	for _, c := range classifier.FilterSensorsFor(row, g, s.sensors.All()) {
		if c.ID == sensorID {
			return true
		}
	}
	return false
}

func (s *Store) isManualSensor(id string) bool {
	if id == "" {
		return false
	}
	sensor, ok := s.sensors.Get(id)
	return ok && sensor.IsManualSensor()
}

func (s *Store) loadReadings(ctx context.Context, sensorID string) []domain.Reading {
	var readings []domain.Reading
	if err := store.LoadJSON(ctx, s.kv, store.SensorDataKey(sensorID), &readings); err != nil {
		if !errors.Is(err, store.ErrMiss) {
			s.logger.Warn("Failed to load sensor readings", zap.String("sensor_id", sensorID), zap.Error(err))
		}
		return []domain.Reading{}
	}
	if readings == nil {
		return []domain.Reading{}
	}
	return readings
}

func indexOf(rows []domain.MappingRow, id int64) int {
	for i := range rows {
		if rows[i].ID == id {
			return i
		}
	}
	return -1
}

// decodeID 传感器 ID 可以是字符串或数字，null 表示清除
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return "", err
	}
	return num.String(), nil
}

func cloneRow(r domain.MappingRow) domain.MappingRow {
	out := r
	out.ManualData = append([]domain.Reading{}, r.ManualData...)
	return out
}
