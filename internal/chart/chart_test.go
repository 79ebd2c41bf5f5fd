package chart

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin-data/internal/domain"
)

var testNow = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func reading(ago time.Duration, v float64) domain.Reading {
	return domain.Reading{Timestamp: domain.FormatTimestamp(testNow.Add(-ago)), Value: v}
}

func TestSelect_FiltersWindowAndSorts(t *testing.T) {
	readings := []domain.Reading{
		reading(2*time.Hour, 2),
		reading(30*time.Minute, 3),
		reading(5*time.Hour, 1),
		reading(48*time.Hour, 99),
		{Timestamp: "garbage", Value: 7},
	}

	got := Select(readings, 6, testNow)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{got[0].Value, got[1].Value, got[2].Value})

	got = Select(readings, 1, testNow)
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, got[0].Value)
}

func TestSelect_BoundaryIsInclusive(t *testing.T) {
	got := Select([]domain.Reading{reading(time.Hour, 5)}, 1, testNow)
	assert.Len(t, got, 1)
}

func TestSelect_Decimates(t *testing.T) {
	readings := make([]domain.Reading, 250)
	for i := range readings {
		readings[i] = reading(time.Duration(i)*time.Minute, float64(i))
	}

	got := Select(readings, 24, testNow)
	// stride ceil(250/100) = 3
	assert.Len(t, got, 84)
	assert.LessOrEqual(t, len(got), MaxPoints)
	assert.Equal(t, 249.0, got[0].Value)
}

func TestProject_Empty(t *testing.T) {
	assert.Empty(t, Project(nil, DefaultViewport()))
	assert.NotNil(t, Project(nil, DefaultViewport()))

	samples := []Sample{{Timestamp: testNow, Value: 1}}
	assert.Empty(t, Project(samples, Viewport{Width: 10, Height: 10, Padding: Padding{Top: 30, Bottom: 40}}))
}

func TestProject_Mapping(t *testing.T) {
	vp := DefaultViewport()
	samples := []Sample{
		{Timestamp: testNow.Add(-time.Hour), Value: 10},
		{Timestamp: testNow, Value: 20},
	}

	points := Project(samples, vp)
	require.Len(t, points, 2)

	assert.InDelta(t, 10, points[0].X, 1e-9)
	assert.InDelta(t, 690, points[1].X, 1e-9)

	// padded range [9, 21]; plot height 280
	assert.InDelta(t, 30+280-(1.0/12.0)*280, points[0].Y, 1e-9)
	assert.InDelta(t, 30+280-(11.0/12.0)*280, points[1].Y, 1e-9)
	assert.Less(t, points[1].Y, points[0].Y)

	for _, p := range points {
		assert.GreaterOrEqual(t, p.X, vp.Padding.Left)
		assert.LessOrEqual(t, p.X, vp.Width-vp.Padding.Right)
		assert.GreaterOrEqual(t, p.Y, vp.Padding.Top)
		assert.LessOrEqual(t, p.Y, vp.Height-vp.Padding.Bottom)
	}
}

func TestProject_ZeroWidthRanges(t *testing.T) {
	points := Project([]Sample{{Timestamp: testNow, Value: 5}}, DefaultViewport())
	require.Len(t, points, 1)
	assert.Equal(t, 10.0, points[0].X)
	assert.Equal(t, 310.0, points[0].Y)
	assert.False(t, math.IsNaN(points[0].Y))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Stats{}, Summarize(nil))

	single := Summarize([]Sample{{Timestamp: testNow, Value: 21.5}})
	assert.Equal(t, 0.0, single.Change)
	assert.Equal(t, 0.0, single.StdDev)
	assert.Equal(t, 21.5, single.Average)
	assert.Equal(t, 21.5, single.Last)

	st := Summarize([]Sample{
		{Value: 2}, {Value: 4}, {Value: 4}, {Value: 4},
		{Value: 5}, {Value: 5}, {Value: 7}, {Value: 9},
	})
	assert.Equal(t, 5.0, st.Average)
	assert.Equal(t, 2.0, st.StdDev)
	assert.Equal(t, 2.0, st.Min)
	assert.Equal(t, 9.0, st.Max)
	assert.Equal(t, 7.0, st.Change)
}

func TestNearest(t *testing.T) {
	points := []Point{{X: 100, Y: 100, Value: 1}, {X: 120, Y: 100, Value: 2}, {X: 80, Y: 100, Value: 3}}

	p, ok := Nearest(points, 118, 100, 0)
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Value)

	// equidistant: first encountered wins
	p, ok = Nearest(points, 90, 100, HoverRadius)
	require.True(t, ok)
	assert.Equal(t, 1.0, p.Value)

	// exactly on the radius is outside
	_, ok = Nearest([]Point{{X: 0, Y: 0}}, 30, 0, HoverRadius)
	assert.False(t, ok)

	_, ok = Nearest(nil, 0, 0, HoverRadius)
	assert.False(t, ok)
}

func TestTicks(t *testing.T) {
	vp := DefaultViewport()

	yTicks, xTicks := Ticks(nil, vp)
	require.Len(t, yTicks, 6)
	assert.Equal(t, 0.0, yTicks[0].Value)
	assert.Equal(t, 100.0, yTicks[5].Value)
	assert.Equal(t, 310.0, yTicks[0].Position)
	assert.Equal(t, 30.0, yTicks[5].Position)
	assert.Empty(t, xTicks)

	samples := make([]Sample, 10)
	for i := range samples {
		samples[i] = Sample{Timestamp: testNow.Add(time.Duration(i) * time.Minute), Value: float64(i)}
	}
	points := Project(samples, vp)
	_, xTicks = Ticks(points, vp)
	require.Len(t, xTicks, 6)
	assert.Equal(t, points[0].X, xTicks[0].Position)
	assert.Equal(t, points[9].X, xTicks[5].Position)

	_, xTicks = Ticks(points[:1], vp)
	assert.Len(t, xTicks, 1)
}

func TestMockHistory(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	base := 100.0

	got := MockHistory(&base, 24, testNow, rnd)
	require.Len(t, got, 25)

	prev := time.Time{}
	for _, r := range got {
		ts, ok := r.Time()
		require.True(t, ok)
		assert.True(t, ts.After(prev))
		prev = ts
		assert.GreaterOrEqual(t, r.Value, 80.0)
		assert.LessOrEqual(t, r.Value, 120.0)
	}
	last, _ := got[24].Time()
	assert.True(t, last.Equal(testNow))

	fallback := MockHistory(nil, 1, testNow, rnd)
	for _, r := range fallback {
		assert.InDelta(t, 50, r.Value, 10)
	}
}

func TestNewViewportAndRanges(t *testing.T) {
	assert.Equal(t, DefaultViewport(), NewViewport(0, 0))
	vp := NewViewport(320, 200)
	assert.Equal(t, 500.0, vp.Width)
	assert.Equal(t, 300.0, vp.Height)
	assert.Equal(t, 1200.0, NewViewport(1200, 600).Width)

	for _, bad := range []float64{math.Inf(1), math.Inf(-1), math.NaN(), 1e9} {
		assert.Equal(t, DefaultViewport(), NewViewport(bad, bad), "size %v", bad)
	}

	assert.Equal(t, 168.0, ParseRange("7d").Hours)
	assert.Equal(t, 24.0, ParseRange("").Hours)
	assert.Equal(t, 24.0, ParseRange("2y").Hours)
}

func TestBuild(t *testing.T) {
	readings := []domain.Reading{reading(time.Hour, 1), reading(0, 3)}
	c := Build(readings, DefaultViewport(), ParseRange("6h"), testNow)
	assert.Len(t, c.Points, 2)
	assert.Equal(t, 2.0, c.Stats.Change)
	assert.Len(t, c.YTicks, 6)
	assert.Len(t, c.XTicks, 2)

	empty := Build(nil, DefaultViewport(), ParseRange("1h"), testNow)
	assert.Empty(t, empty.Points)
	assert.Equal(t, Stats{}, empty.Stats)
}
