package chart

// TimeRange 图表时间窗口
type TimeRange struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Hours float64 `json:"hours"`
}

// DefaultRange 默认 24 小时
const DefaultRange = "24h"

// TimeRanges 可选时间窗口
var TimeRanges = []TimeRange{
	{ID: "1h", Label: "1 час", Hours: 1},
	{ID: "6h", Label: "6 часов", Hours: 6},
	{ID: "24h", Label: "24 часа", Hours: 24},
	{ID: "7d", Label: "7 дней", Hours: 168},
	{ID: "30d", Label: "30 дней", Hours: 720},
}

// ParseRange 未知或空 ID 回退到 24h
func ParseRange(id string) TimeRange {
	for _, r := range TimeRanges {
		if r.ID == id {
			return r
		}
	}
	return TimeRanges[2]
}
