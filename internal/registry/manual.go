package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/store"
)

// SensorInput 创建/编辑/导入手动传感器的表单
type SensorInput struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Code             string            `json:"code"`
	Type             domain.SensorType `json:"type"`
	Unit             string            `json:"unit"`
	Location         string            `json:"location"`
	Description      string            `json:"description"`
	MinValue         *float64          `json:"minValue"`
	MaxValue         *float64          `json:"maxValue"`
	Accuracy         *float64          `json:"accuracy"`
	InstallationDate string            `json:"installationDate"`
	LastCalibration  string            `json:"lastCalibration"`
	IsActive         *bool             `json:"isActive"`
	CreatedAt        string            `json:"createdAt"`
}

func (in *SensorInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.TrimSpace(in.Code)
	in.Unit = strings.TrimSpace(in.Unit)
}

func (in *SensorInput) validate() error {
	if in.Name == "" {
		return domain.NewValidationError("Введите название датчика")
	}
	if in.Type == "" {
		return domain.NewValidationError("Выберите тип датчика")
	}
	if !in.Type.IsValid() {
		return domain.NewValidationError("Неизвестный тип датчика: %s", in.Type)
	}
	if in.Code == "" {
		return domain.NewValidationError("Введите код датчика")
	}
	if in.MinValue != nil && in.MaxValue != nil && *in.MinValue > *in.MaxValue {
		return domain.NewValidationError("Минимальное значение больше максимального")
	}
	return nil
}

// CreateManual 新建手动传感器；编码为空时按类型生成，单位为空时取默认单位
// ID 为空时使用编码
func (r *Registry) CreateManual(ctx context.Context, in SensorInput) (domain.Sensor, error) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	in.normalize()
	r.mu.RLock()
	next := cloneAll(r.manual)
	automatic := cloneAll(r.automatic)
	r.mu.RUnlock()

	if in.Code == "" && in.Type.IsValid() {
		in.Code = nextCode(next, in.Type)
	}
	if err := in.validate(); err != nil {
		return domain.Sensor{}, err
	}
	if codeTaken(next, in.Code, "") {
		return domain.Sensor{}, domain.NewValidationError("Датчик с кодом %s уже существует", in.Code)
	}
	id := in.ID
	if id == "" {
		id = in.Code
	}
	if indexOf(next, id) >= 0 || indexOf(automatic, id) >= 0 {
		id = uuid.NewString()
	}

	now := domain.FormatTimestamp(r.now())
	s := domain.Sensor{ID: id, CreatedAt: now}
	fill(&s, in, now)
	applyReadings(&s, r.loadReadings(ctx, id))

	if err := r.commit(ctx, append(next, s)); err != nil {
		return domain.Sensor{}, err
	}
	r.logger.Info("Manual sensor created", zap.String("sensor_id", s.ID), zap.String("code", s.Code))
	return s.Clone(), nil
}

// UpdateManual 按表单整体替换手动传感器属性；createdAt 保留，编码为空时保留原编码
func (r *Registry) UpdateManual(ctx context.Context, id string, in SensorInput) (domain.Sensor, error) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	in.normalize()
	r.mu.RLock()
	next := cloneAll(r.manual)
	r.mu.RUnlock()

	i := indexOf(next, id)
	if i < 0 {
		if _, ok := r.Get(id); ok {
			return domain.Sensor{}, ErrNotManual
		}
		return domain.Sensor{}, ErrSensorNotFound
	}
	current := next[i]
	if in.Code == "" {
		in.Code = current.Code
	}
	if in.IsActive == nil {
		active := current.IsActive
		in.IsActive = &active
	}
	if err := in.validate(); err != nil {
		return domain.Sensor{}, err
	}
	if codeTaken(next, in.Code, id) {
		return domain.Sensor{}, domain.NewValidationError("Датчик с кодом %s уже существует", in.Code)
	}

	now := domain.FormatTimestamp(r.now())
	s := current
	fill(&s, in, now)
	s.Status = manualStatus(&s)
	next[i] = s

	if err := r.commit(ctx, next); err != nil {
		return domain.Sensor{}, err
	}
	return s.Clone(), nil
}

// DeleteManual 删除手动传感器（读数日志保留）
func (r *Registry) DeleteManual(ctx context.Context, id string) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.RLock()
	next := cloneAll(r.manual)
	r.mu.RUnlock()

	i := indexOf(next, id)
	if i < 0 {
		return ErrSensorNotFound
	}
	return r.commit(ctx, append(next[:i], next[i+1:]...))
}

// CleanupInactive 批量删除已停用的手动传感器，返回删除数量
func (r *Registry) CleanupInactive(ctx context.Context) (int, error) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.RLock()
	current := cloneAll(r.manual)
	r.mu.RUnlock()

	kept := make([]domain.Sensor, 0, len(current))
	for _, s := range current {
		if s.IsActive {
			kept = append(kept, s)
		}
	}
	removed := len(current) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := r.commit(ctx, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// ImportResult 导入统计
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// Import 合并导入：缺少 name/code/type 的条目无效，编码已存在的条目跳过
func (r *Registry) Import(ctx context.Context, inputs []SensorInput) (ImportResult, error) {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	valid := make([]SensorInput, 0, len(inputs))
	for _, in := range inputs {
		in.normalize()
		if in.Name != "" && in.Code != "" && in.Type != "" {
			valid = append(valid, in)
		}
	}
	if len(valid) == 0 {
		return ImportResult{}, domain.NewValidationError("В файле нет валидных датчиков")
	}

	res := ImportResult{Skipped: len(inputs) - len(valid)}
	now := domain.FormatTimestamp(r.now())

	r.mu.RLock()
	next := cloneAll(r.manual)
	automatic := cloneAll(r.automatic)
	r.mu.RUnlock()

	for _, in := range valid {
		if codeTaken(next, in.Code, "") {
			res.Skipped++
			continue
		}
		id := in.ID
		if id == "" {
			id = in.Code
		}
		if indexOf(next, id) >= 0 || indexOf(automatic, id) >= 0 {
			id = uuid.NewString()
		}
		createdAt := in.CreatedAt
		if createdAt == "" {
			createdAt = now
		}
		s := domain.Sensor{ID: id, CreatedAt: createdAt}
		fill(&s, in, now)
		applyReadings(&s, r.loadReadings(ctx, id))
		next = append(next, s)
		res.Imported++
	}
	res.Total = len(next)

	if res.Imported == 0 {
		return res, nil
	}
	if err := r.commit(ctx, next); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

// commit 写回成功后才替换内存中的手动传感器；写入失败时内存保持不变
func (r *Registry) commit(ctx context.Context, next []domain.Sensor) error {
	if err := r.save(ctx, next); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// 保存期间 ApplyReadings 可能已刷新读数，以内存中的为准
	for i := range next {
		if j := indexOf(r.manual, next[i].ID); j >= 0 {
			applyReadings(&next[i], r.manual[j].ManualData)
		}
	}
	r.manual = next
	return nil
}

// save 只保存元数据；列表为空时删除键
func (r *Registry) save(ctx context.Context, sensors []domain.Sensor) error {
	if len(sensors) == 0 {
		if err := r.kv.Delete(ctx, store.KeyManualSensors); err != nil {
			return fmt.Errorf("failed to delete manual sensors: %w", err)
		}
		return nil
	}
	meta := make([]domain.Sensor, len(sensors))
	for i, s := range sensors {
		s.ManualData = nil
		s.History = nil
		s.CurrentValue = nil
		s.LastUpdate = ""
		s.Status = ""
		meta[i] = s
	}
	if err := store.SaveJSON(ctx, r.kv, store.KeyManualSensors, meta); err != nil {
		return fmt.Errorf("failed to save manual sensors: %w", err)
	}
	return nil
}

func fill(s *domain.Sensor, in SensorInput, now string) {
	s.Name = in.Name
	s.Code = in.Code
	s.Kind = domain.SensorKindManual
	s.IsManual = true
	s.Type = in.Type
	s.Unit = in.Unit
	if s.Unit == "" {
		s.Unit = domain.DefaultUnit(in.Type)
	}
	s.Location = in.Location
	s.Description = in.Description
	s.MinValue = in.MinValue
	s.MaxValue = in.MaxValue
	s.Accuracy = in.Accuracy
	s.InstallationDate = in.InstallationDate
	s.LastCalibration = in.LastCalibration
	s.IsActive = in.IsActive == nil || *in.IsActive
	s.UpdatedAt = now
}

// nextCode 前缀-NNN，取第一个未被占用的编号
func nextCode(sensors []domain.Sensor, t domain.SensorType) string {
	prefix := domain.CodePrefix(t)
	for n := 1; ; n++ {
		code := fmt.Sprintf("%s-%03d", prefix, n)
		if !codeTaken(sensors, code, "") {
			return code
		}
	}
}

func codeTaken(sensors []domain.Sensor, code, exceptID string) bool {
	for _, s := range sensors {
		if s.Code == code && s.ID != exceptID {
			return true
		}
	}
	return false
}
