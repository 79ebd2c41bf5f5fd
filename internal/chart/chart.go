// Package chart 把读数序列投影为图表坐标，并计算统计值与刻度
package chart

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"twin-data/internal/domain"
)

const (
	// MaxPoints 超过该数量时按固定步长抽稀
	MaxPoints = 100
	// HoverRadius 悬停查找的像素半径
	HoverRadius = 30.0

	yTickCount    = 6
	maxXTickCount = 6
	mockPoints    = 25
	defaultBase   = 50.0
)

// Padding 绘图区边距（像素）
type Padding struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Viewport 图表尺寸
type Viewport struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Padding Padding `json:"padding"`
}

// DefaultViewport 700×350，边距 30/40/10/10
func DefaultViewport() Viewport {
	return Viewport{
		Width:   700,
		Height:  350,
		Padding: Padding{Top: 30, Bottom: 40, Left: 10, Right: 10},
	}
}

// maxViewportSize 超过该尺寸视为无效
const maxViewportSize = 10000

// NewViewport 非正数、非有限值或超过 maxViewportSize 时取默认值，其余不小于 500×300
func NewViewport(width, height float64) Viewport {
	vp := DefaultViewport()
	if validSize(width) {
		vp.Width = math.Max(500, width)
	}
	if validSize(height) {
		vp.Height = math.Max(300, height)
	}
	return vp
}

func validSize(v float64) bool {
	// NaN 与任何值比较都为 false，±Inf 超出上限
	return v > 0 && v <= maxViewportSize
}

func (v Viewport) plotWidth() float64  { return v.Width - v.Padding.Left - v.Padding.Right }
func (v Viewport) plotHeight() float64 { return v.Height - v.Padding.Top - v.Padding.Bottom }

// Sample 时间窗口内的一个数据点
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Point 投影后的数据点
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
}

// Stats 窗口内样本的统计值
type Stats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Last    float64 `json:"last"`
	Change  float64 `json:"change"`
	StdDev  float64 `json:"stdDev"`
}

// Select 取 (now - ts) <= rangeHours 的读数，按时间排序，超过 MaxPoints 时抽稀
// 时间戳无法解析的读数被跳过
func Select(readings []domain.Reading, rangeHours float64, now time.Time) []Sample {
	samples := make([]Sample, 0, len(readings))
	for _, r := range readings {
		ts, ok := r.Time()
		if !ok {
			continue
		}
		if now.Sub(ts).Hours() <= rangeHours {
			samples = append(samples, Sample{Timestamp: ts, Value: r.Value})
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return decimate(samples)
}

func decimate(samples []Sample) []Sample {
	n := len(samples)
	if n <= MaxPoints {
		return samples
	}
	stride := (n + MaxPoints - 1) / MaxPoints
	out := make([]Sample, 0, MaxPoints)
	for i := 0; i < n; i += stride {
		out = append(out, samples[i])
	}
	return out
}

// Project 线性映射到绘图区；y 轴反向（值越大 y 越小）
func Project(samples []Sample, vp Viewport) []Point {
	if len(samples) == 0 {
		return []Point{}
	}
	plotW, plotH := vp.plotWidth(), vp.plotHeight()
	if plotW <= 0 || plotH <= 0 {
		return []Point{}
	}

	minV, maxV := samples[0].Value, samples[0].Value
	minT, maxT := samples[0].Timestamp, samples[0].Timestamp
	for _, s := range samples[1:] {
		minV = math.Min(minV, s.Value)
		maxV = math.Max(maxV, s.Value)
		if s.Timestamp.Before(minT) {
			minT = s.Timestamp
		}
		if s.Timestamp.After(maxT) {
			maxT = s.Timestamp
		}
	}

	timeRange := float64(maxT.Sub(minT).Milliseconds())
	if timeRange == 0 {
		timeRange = 1
	}
	pad := (maxV - minV) * 0.1
	adjMin := minV - pad
	valueRange := (maxV + pad) - adjMin
	if valueRange == 0 {
		valueRange = 1
	}

	points := make([]Point, len(samples))
	for i, s := range samples {
		dt := float64(s.Timestamp.Sub(minT).Milliseconds())
		points[i] = Point{
			Timestamp: s.Timestamp,
			Value:     s.Value,
			X:         vp.Padding.Left + dt/timeRange*plotW,
			Y:         vp.Padding.Top + plotH - (s.Value-adjMin)/valueRange*plotH,
		}
	}
	return points
}

// Summarize 总体标准差；change = 最后一个样本 - 第一个样本
func Summarize(samples []Sample) Stats {
	if len(samples) == 0 {
		return Stats{}
	}
	first := samples[0].Value
	st := Stats{Min: first, Max: first, Last: samples[len(samples)-1].Value}

	var sum float64
	for _, s := range samples {
		sum += s.Value
		st.Min = math.Min(st.Min, s.Value)
		st.Max = math.Max(st.Max, s.Value)
	}
	st.Average = sum / float64(len(samples))
	st.Change = st.Last - first

	var sq float64
	for _, s := range samples {
		d := s.Value - st.Average
		sq += d * d
	}
	st.StdDev = math.Sqrt(sq / float64(len(samples)))
	return st
}

// Nearest 像素空间欧氏距离严格小于 radius 的最近点；距离相同时先遇到者胜出
func Nearest(points []Point, x, y, radius float64) (Point, bool) {
	if radius <= 0 {
		radius = HoverRadius
	}
	best := -1
	minDist := radius
	for i, p := range points {
		d := math.Hypot(p.X-x, p.Y-y)
		if d < minDist {
			minDist = d
			best = i
		}
	}
	if best < 0 {
		return Point{}, false
	}
	return points[best], true
}

// YTick 纵轴刻度
type YTick struct {
	Value    float64 `json:"value"`
	Position float64 `json:"position"`
}

// XTick 横轴刻度
type XTick struct {
	Time     time.Time `json:"time"`
	Position float64   `json:"position"`
}

// Ticks 6 个纵轴刻度覆盖 [min,max]（无数据时 [0,100]），最多 6 个横轴刻度均匀取点
func Ticks(points []Point, vp Viewport) ([]YTick, []XTick) {
	yMin, yMax := 0.0, 100.0
	if len(points) > 0 {
		yMin, yMax = points[0].Value, points[0].Value
		for _, p := range points[1:] {
			yMin = math.Min(yMin, p.Value)
			yMax = math.Max(yMax, p.Value)
		}
	}

	steps := float64(yTickCount - 1)
	yTicks := make([]YTick, 0, yTickCount)
	for i := 0; i < yTickCount; i++ {
		f := float64(i) / steps
		yTicks = append(yTicks, YTick{
			Value:    yMin + (yMax-yMin)*f,
			Position: vp.Padding.Top + vp.plotHeight()*(1-f),
		})
	}

	n := len(points)
	count := n
	if count > maxXTickCount {
		count = maxXTickCount
	}
	xTicks := make([]XTick, 0, count)
	for i := 0; i < count; i++ {
		idx := 0
		if count > 1 {
			idx = int(math.Floor(float64(i) / float64(count-1) * float64(n-1)))
		}
		xTicks = append(xTicks, XTick{Time: points[idx].Timestamp, Position: points[idx].X})
	}
	return yTicks, xTicks
}

// MockHistory 生成 25 点的模拟序列：正弦趋势 + 3% 噪声，限制在基准值 ±20%
// base 为空或为 0 时以 50 为基准
func MockHistory(base *float64, rangeHours float64, now time.Time, rnd *rand.Rand) []domain.Reading {
	baseValue := defaultBase
	if base != nil && *base != 0 {
		baseValue = *base
	}
	lo, hi := baseValue*0.8, baseValue*1.2
	if lo > hi {
		lo, hi = hi, lo
	}
	span := hi - lo
	window := time.Duration(rangeHours * float64(time.Hour))

	readings := make([]domain.Reading, mockPoints)
	for i := 0; i < mockPoints; i++ {
		offset := time.Duration(float64(window) * float64(i) / mockPoints)
		trend := math.Sin(float64(i)*0.5) * span * 0.1
		noise := (rnd.Float64() - 0.5) * span * 0.03
		value := math.Max(lo, math.Min(hi, baseValue+trend+noise))
		// 倒序写入使结果按时间升序
		readings[mockPoints-1-i] = domain.Reading{
			Timestamp: domain.FormatTimestamp(now.Add(-offset)),
			Value:     value,
		}
	}
	return readings
}
