package domain

import "time"

// TimestampLayout 与前端 toISOString() 一致的时间格式（UTC，毫秒）
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultOperator 录入人默认值
const DefaultOperator = "Оператор"

// Reading 一条带时间戳的读数
type Reading struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
	Notes     string  `json:"notes"`
	EnteredBy string  `json:"enteredBy"`
	EntryDate string  `json:"entryDate"`
}

// Time 解析时间戳；无法解析时返回 false
func (r Reading) Time() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp 按统一格式输出时间戳
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// HistoryEntry 手动录入审计记录（跨传感器的平铺列表）
type HistoryEntry struct {
	ID         string  `json:"id"`
	SensorID   string  `json:"sensorId"`
	SensorName string  `json:"sensorName"`
	SensorUnit string  `json:"sensorUnit"`
	Value      float64 `json:"value"`
	Timestamp  string  `json:"timestamp"`
	Notes      string  `json:"notes"`
	EnteredBy  string  `json:"enteredBy"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
}
