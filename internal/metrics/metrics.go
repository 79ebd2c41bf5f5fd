// Package metrics Prometheus 指标：HTTP 请求、存储操作、手动录入、实时数据
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "twin_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultMiss    = "miss"
	ResultSkipped = "skipped"
)

// Metrics 一组已注册到同一个 Registry 的指标
// nil *Metrics 上的方法均为空操作，测试和未启用指标的组件可以直接传 nil
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	kvOps     *prometheus.CounterVec
	kvLatency *prometheus.HistogramVec

	manualReadings *prometheus.CounterVec
	liveUpdates    *prometheus.CounterVec
	changes        *prometheus.CounterVec
}

// New 创建独立的 Registry 并注册全部指标（附带 Go 运行时与进程指标）
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		kvOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "kv_operations_total",
				Help: "Total key-value store operations by operation and result",
			},
			[]string{"op", "result"},
		),
		kvLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "kv_latency_seconds",
				Help:    "Key-value store latency in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		manualReadings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "manual_readings_total",
				Help: "Manual readings by result",
			},
			[]string{"result"},
		),
		liveUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "live_updates_total",
				Help: "Live feed messages by result",
			},
			[]string{"result"},
		),
		changes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "change_notifications_total",
				Help: "Key change notifications received by key family",
			},
			[]string{"family"},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.kvOps,
		m.kvLatency,
		m.manualReadings,
		m.liveUpdates,
		m.changes,
	)
	return m
}

// Registry 供测试直接采集
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterGauge 注册按需计算的状态量（如传感器数、映射行数）
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: metricPrefix + name, Help: help},
		fn,
	))
}

// ObserveHTTP records request count and latency.
func (m *Metrics) ObserveHTTP(route, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveKV records a store operation.
func (m *Metrics) ObserveKV(op, result string, duration time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = ResultSuccess
	}
	m.kvOps.WithLabelValues(op, result).Inc()
	m.kvLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// AddManualReadings 手动录入计数
func (m *Metrics) AddManualReadings(result string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.manualReadings.WithLabelValues(result).Add(float64(count))
}

// IncLiveUpdate 实时数据消息计数
func (m *Metrics) IncLiveUpdate(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.liveUpdates.WithLabelValues(result).Inc()
}

// IncChange 收到的变更通知
func (m *Metrics) IncChange(family string) {
	if m == nil {
		return
	}
	m.changes.WithLabelValues(family).Inc()
}
