package domain

// SensorKind 传感器类别：自动（实时数据）或手动（人工录入）
type SensorKind string

const (
	SensorKindAutomatic SensorKind = "automatic"
	SensorKindManual    SensorKind = "manual"
)

// SensorType 测量类型，同时用作参数的显式类型标签
type SensorType string

const (
	SensorTypeTemperature SensorType = "temperature"
	SensorTypePressure    SensorType = "pressure"
	SensorTypeFlow        SensorType = "flow"
	SensorTypeLevel       SensorType = "level"
	SensorTypeQuality     SensorType = "quality"
	SensorTypeComposition SensorType = "composition"
	SensorTypeOther       SensorType = "other"
)

// SensorTypes 传感器页面可选的类型（顺序即展示顺序）
var SensorTypes = []SensorType{
	SensorTypeTemperature,
	SensorTypePressure,
	SensorTypeFlow,
	SensorTypeLevel,
	SensorTypeQuality,
	SensorTypeComposition,
	SensorTypeOther,
}

// IsValid 是否为已知的传感器类型
func (t SensorType) IsValid() bool {
	for _, known := range SensorTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SensorStatus 传感器状态
type SensorStatus string

const (
	SensorStatusNormal   SensorStatus = "normal"
	SensorStatusWarning  SensorStatus = "warning"
	SensorStatusCritical SensorStatus = "critical"
	SensorStatusInactive SensorStatus = "inactive"
	SensorStatusDisabled SensorStatus = "disabled"
)

// Sensor 传感器（自动/手动两种形态共用一个结构）
// 手动传感器的元数据字段在自动传感器上为空
type Sensor struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Code         string       `json:"code,omitempty"`
	Kind         SensorKind   `json:"kind"`
	Type         SensorType   `json:"type"`
	CurrentValue *float64     `json:"currentValue"`
	Unit         string       `json:"unit"`
	Status       SensorStatus `json:"status"`
	LastUpdate   string       `json:"lastUpdate,omitempty"`
	History      []Reading    `json:"history,omitempty"`
	ManualData   []Reading    `json:"manualData,omitempty"`

	Location         string   `json:"location,omitempty"`
	Description      string   `json:"description,omitempty"`
	MinValue         *float64 `json:"minValue,omitempty"`
	MaxValue         *float64 `json:"maxValue,omitempty"`
	Accuracy         *float64 `json:"accuracy,omitempty"`
	InstallationDate string   `json:"installationDate,omitempty"`
	LastCalibration  string   `json:"lastCalibration,omitempty"`
	IsActive         bool     `json:"isActive"`
	IsManual         bool     `json:"isManual"`
	CreatedAt        string   `json:"createdAt,omitempty"`
	UpdatedAt        string   `json:"updatedAt,omitempty"`
}

// IsManualSensor 是否为手动传感器
func (s *Sensor) IsManualSensor() bool {
	return s.Kind == SensorKindManual || s.IsManual
}

// IsDisabled 手动传感器被停用
func (s *Sensor) IsDisabled() bool {
	return s.IsManualSensor() && (!s.IsActive || s.Status == SensorStatusDisabled)
}

// Series 图表使用的时间序列：优先实时历史，其次人工数据
func (s *Sensor) Series() []Reading {
	if len(s.History) > 0 {
		return s.History
	}
	return s.ManualData
}

// Clone 深拷贝，避免调用方修改注册表内部切片
func (s Sensor) Clone() Sensor {
	out := s
	if s.CurrentValue != nil {
		v := *s.CurrentValue
		out.CurrentValue = &v
	}
	out.History = append([]Reading(nil), s.History...)
	out.ManualData = append([]Reading(nil), s.ManualData...)
	return out
}

// DefaultUnit 各类型的默认计量单位
func DefaultUnit(t SensorType) string {
	switch t {
	case SensorTypeTemperature:
		return "°C"
	case SensorTypePressure:
		return "МПа"
	case SensorTypeFlow:
		return "м³/ч"
	case SensorTypeLevel, SensorTypeComposition:
		return "%"
	default:
		return "ед."
	}
}

// CodePrefix 各类型的传感器编码前缀
func CodePrefix(t SensorType) string {
	switch t {
	case SensorTypeTemperature:
		return "T"
	case SensorTypePressure:
		return "P"
	case SensorTypeFlow:
		return "F"
	case SensorTypeLevel:
		return "L"
	case SensorTypeQuality:
		return "Q"
	case SensorTypeComposition:
		return "C"
	default:
		return "M"
	}
}
