package httpapi

import (
	"bytes"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/chart"
	"twin-data/internal/domain"
	"twin-data/internal/export"
	"twin-data/internal/registry"
)

const chartPrefix = "/api/v1/chart"

// ChartHandler 传感器图表弹窗
type ChartHandler struct {
	registry *registry.Registry
	now      func() time.Time
	logger   *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewChartHandler(reg *registry.Registry, logger *zap.Logger) *ChartHandler {
	return &ChartHandler{
		registry: reg,
		now:      time.Now,
		logger:   logger,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type chartResponse struct {
	Sensor domain.Sensor `json:"sensor"`
	chart.Chart
	Hover *chart.Point `json:"hover,omitempty"`
}

func (h *ChartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parts := pathTail(r.URL.Path, chartPrefix)
	switch {
	case len(parts) == 1:
		h.GetChart(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "export.csv":
		h.ExportCSV(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListRanges GET /api/v1/chart/ranges
func (h *ChartHandler) ListRanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items":   chart.TimeRanges,
		"default": chart.DefaultRange,
	}))
}

// GetChart GET /api/v1/chart/{sensorId}?range=24h&width=&height=&hoverX=&hoverY=
func (h *ChartHandler) GetChart(w http.ResponseWriter, r *http.Request, sensorID string) {
	sensor, ok := h.registry.Get(sensorID)
	if !ok {
		writeError(w, h.logger, "GetChart", registry.ErrSensorNotFound)
		return
	}
	q := r.URL.Query()
	now := h.now()
	tr := chart.ParseRange(q.Get("range"))
	vp := chart.NewViewport(parseFloat(q.Get("width"), 0), parseFloat(q.Get("height"), 0))

	out := chartResponse{Sensor: sensor, Chart: chart.Build(h.series(sensor, tr, now), vp, tr, now)}
	if q.Has("hoverX") && q.Has("hoverY") {
		if p, found := chart.Nearest(out.Points, parseFloat(q.Get("hoverX"), 0), parseFloat(q.Get("hoverY"), 0), chart.HoverRadius); found {
			out.Hover = &p
		}
	}
	out.Sensor.History = nil
	out.Sensor.ManualData = nil
	writeJSON(w, http.StatusOK, Ok(out))
}

// ExportCSV 当前窗口内的数据
func (h *ChartHandler) ExportCSV(w http.ResponseWriter, r *http.Request, sensorID string) {
	sensor, ok := h.registry.Get(sensorID)
	if !ok {
		writeError(w, h.logger, "ExportChartCSV", registry.ErrSensorNotFound)
		return
	}
	now := h.now()
	tr := chart.ParseRange(r.URL.Query().Get("range"))
	samples := chart.Select(h.series(sensor, tr, now), tr.Hours, now)

	var buf bytes.Buffer
	if err := export.WriteSeriesCSV(&buf, samples, sensor.Unit); err != nil {
		writeError(w, h.logger, "ExportChartCSV", err)
		return
	}
	writeFile(w, "text/csv; charset=utf-8", export.SeriesFileName(sensor.Name, now), buf.Bytes())
}

// series 没有任何数据的自动传感器使用模拟历史
func (h *ChartHandler) series(s domain.Sensor, tr chart.TimeRange, now time.Time) []domain.Reading {
	if data := s.Series(); len(data) > 0 || s.IsManualSensor() {
		return data
	}
	h.rndMu.Lock()
	defer h.rndMu.Unlock()
	return chart.MockHistory(s.CurrentValue, tr.Hours, now, h.rnd)
}
