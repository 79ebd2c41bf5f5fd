package domain

// Group 映射行分组
type Group string

const (
	GroupNone               Group = ""
	GroupInput              Group = "input"
	GroupVerification       Group = "verification"
	GroupManualInput        Group = "manual_input"
	GroupManualVerification Group = "manual_verification"
	GroupLaboratory         Group = "laboratory"
)

// Groups 所有可选分组
var Groups = []Group{
	GroupInput,
	GroupVerification,
	GroupManualInput,
	GroupManualVerification,
	GroupLaboratory,
}

// IsValid 空分组（未选择）同样合法
func (g Group) IsValid() bool {
	if g == GroupNone {
		return true
	}
	for _, known := range Groups {
		if g == known {
			return true
		}
	}
	return false
}

// MappingRow 计算参数 ↔ 分组 ↔ 传感器 的关联
type MappingRow struct {
	ID            int64      `json:"id"`
	ParameterID   string     `json:"parameterId"`
	ParameterName string     `json:"parameterName"`
	ParameterType SensorType `json:"parameterType,omitempty"`
	Unit          string     `json:"unit"`
	Group         Group      `json:"group"`
	SensorID      string     `json:"sensorId"`
	ManualData    []Reading  `json:"manualData"`
	IsLaboratory  bool       `json:"isLaboratory"`
}

// Parameter 取自参数目录的计算参数，选中后不可变
type Parameter struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Unit string     `json:"unit"`
	Type SensorType `json:"type,omitempty"`
}
