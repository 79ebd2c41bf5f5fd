// Package classifier 映射行分组规则与传感器候选过滤（纯函数，无状态）
package classifier

import (
	"strings"

	"twin-data/internal/domain"
)

// Flags 分组对映射行界面的影响
type Flags struct {
	Manual       bool `json:"manual"`
	Laboratory   bool `json:"laboratory"`
	SensorPicker bool `json:"sensorPicker"`
}

// IsManualGroup 两个手动录入分组
func IsManualGroup(g domain.Group) bool {
	return g == domain.GroupManualInput || g == domain.GroupManualVerification
}

// IsLaboratoryGroup 仅实验室分组
func IsLaboratoryGroup(g domain.Group) bool {
	return g == domain.GroupLaboratory
}

// RequiresSensorPicker 选择了任一已知分组后才需要选择传感器
func RequiresSensorPicker(g domain.Group) bool {
	return g != domain.GroupNone && g.IsValid()
}

// Classify 汇总分组标志
func Classify(g domain.Group) Flags {
	return Flags{
		Manual:       IsManualGroup(g),
		Laboratory:   IsLaboratoryGroup(g),
		SensorPicker: RequiresSensorPicker(g),
	}
}

// 关键词按声明顺序匹配，先匹配者胜出
var typeKeywords = []struct {
	t        domain.SensorType
	keywords []string
}{
	{domain.SensorTypeTemperature, []string{"температур", "temperature", "temp"}},
	{domain.SensorTypePressure, []string{"давлен", "напор", "pressure"}},
	{domain.SensorTypeFlow, []string{"расход", "подача", "flow"}},
	{domain.SensorTypeLevel, []string{"уровен", "уровн", "level"}},
	{domain.SensorTypeQuality, []string{"качеств", "quality"}},
	{domain.SensorTypeComposition, []string{"состав", "composition"}},
}

// InferType 推断参数对应的传感器类型
// 优先使用显式类型标签，其次在参数名称中做关键词匹配
func InferType(row domain.MappingRow) (domain.SensorType, bool) {
	if isInferable(row.ParameterType) {
		return row.ParameterType, true
	}
	return InferTypeFromName(row.ParameterName)
}

// InferTypeFromName 名称关键词匹配（不区分大小写）
func InferTypeFromName(name string) (domain.SensorType, bool) {
	lower := strings.ToLower(name)
	for _, entry := range typeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.t, true
			}
		}
	}
	return "", false
}

func isInferable(t domain.SensorType) bool {
	for _, entry := range typeKeywords {
		if entry.t == t {
			return true
		}
	}
	return false
}

// FilterSensorsFor 返回映射行在指定分组下可选的传感器
func FilterSensorsFor(row domain.MappingRow, group domain.Group, sensors []domain.Sensor) []domain.Sensor {
	switch {
	case IsLaboratoryGroup(group):
		return filterLaboratory(row, sensors)
	case IsManualGroup(group):
		return filter(sensors, func(s domain.Sensor) bool {
			return s.IsManualSensor() && !s.IsDisabled()
		})
	default:
		return filterAutomatic(row, sensors)
	}
}

func filterLaboratory(row domain.MappingRow, sensors []domain.Sensor) []domain.Sensor {
	lab := filter(sensors, func(s domain.Sensor) bool {
		return s.IsManualSensor() &&
			(s.Type == domain.SensorTypeComposition || s.Type == domain.SensorTypeQuality)
	})
	t, ok := InferType(row)
	if !ok || (t != domain.SensorTypeComposition && t != domain.SensorTypeQuality) {
		return lab
	}
	narrowed := filter(lab, func(s domain.Sensor) bool { return s.Type == t })
	if len(narrowed) == 0 {
		return lab
	}
	return narrowed
}

func filterAutomatic(row domain.MappingRow, sensors []domain.Sensor) []domain.Sensor {
	auto := filter(sensors, func(s domain.Sensor) bool { return !s.IsManualSensor() })
	t, ok := InferType(row)
	if !ok {
		return auto
	}
	typed := filter(auto, func(s domain.Sensor) bool { return s.Type == t })
	if len(typed) == 0 {
		return auto
	}
	return typed
}

func filter(sensors []domain.Sensor, keep func(domain.Sensor) bool) []domain.Sensor {
	out := make([]domain.Sensor, 0, len(sensors))
	for _, s := range sensors {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
