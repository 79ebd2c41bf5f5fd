package chart

import (
	"time"

	"twin-data/internal/domain"
)

// Chart 一次完整的图表计算结果
type Chart struct {
	Range    TimeRange `json:"range"`
	Viewport Viewport  `json:"viewport"`
	Points   []Point   `json:"points"`
	Stats    Stats     `json:"stats"`
	YTicks   []YTick   `json:"yTicks"`
	XTicks   []XTick   `json:"xTicks"`
}

// Build 选取窗口、投影、统计、刻度
func Build(readings []domain.Reading, vp Viewport, tr TimeRange, now time.Time) Chart {
	samples := Select(readings, tr.Hours, now)
	points := Project(samples, vp)
	yTicks, xTicks := Ticks(points, vp)
	return Chart{
		Range:    tr,
		Viewport: vp,
		Points:   points,
		Stats:    Summarize(samples),
		YTicks:   yTicks,
		XTicks:   xTicks,
	}
}
