// Package httpapi 数字孪生数据服务的 HTTP JSON API
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/metrics"
)

// Router 使用标准库 http.ServeMux
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRouter(m *metrics.Metrics, logger *zap.Logger) *Router {
	return &Router{
		mux:     http.NewServeMux(),
		metrics: m,
		logger:  logger,
	}
}

// Handle 注册路由；请求计数和耗时以注册的 pattern 为标签
func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.Handle(pattern, r.instrument(pattern, h))
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) instrument(route string, h http.HandlerFunc) http.Handler {
	if r.metrics == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, req)
		r.metrics.ObserveHTTP(route, req.Method, strconv.Itoa(sw.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RegisterCatalogRoutes 参数目录
func (r *Router) RegisterCatalogRoutes(h *CatalogHandler) {
	r.Handle("/api/v1/catalog/parameters", h.ListParameters)
	r.Handle("/api/v1/catalog/tree", h.GetTree)
}

// RegisterMappingRoutes 映射行
func (r *Router) RegisterMappingRoutes(h *MappingHandler) {
	r.Handle("/api/v1/mapping/rows", h.ServeHTTP)
	r.Handle("/api/v1/mapping/rows/", h.ServeHTTP)
	r.Handle("/api/v1/mapping/groups", h.ListGroups)
}

// RegisterSensorRoutes 传感器注册表（含 JSON 导出/导入）
func (r *Router) RegisterSensorRoutes(h *SensorHandler) {
	r.Handle("/api/v1/sensors", h.ServeHTTP)
	r.Handle("/api/v1/sensors/", h.ServeHTTP)
}

// RegisterJournalRoutes 手动录入
func (r *Router) RegisterJournalRoutes(h *JournalHandler) {
	r.Handle("/api/v1/journal/", h.ServeHTTP)
}

// RegisterChartRoutes 图表
func (r *Router) RegisterChartRoutes(h *ChartHandler) {
	r.Handle("/api/v1/chart/ranges", h.ListRanges)
	r.Handle("/api/v1/chart/", h.ServeHTTP)
}

// RegisterExportRoutes XLSX/CSV 导出
func (r *Router) RegisterExportRoutes(h *ExportHandler) {
	r.Handle("/api/v1/export/", h.ServeHTTP)
}

// RegisterLabRoutes 实验室分析
func (r *Router) RegisterLabRoutes(h *LabHandler) {
	r.Handle("/api/v1/lab/parameters", h.ListParameters)
	r.Handle("/api/v1/lab/parse", h.Parse)
	r.Handle("/api/v1/lab/results", h.ServeHTTP)
	r.Handle("/api/v1/lab/results/", h.ServeHTTP)
}

// RegisterDoctorRoutes 健康检查与指标
func (r *Router) RegisterDoctorRoutes(d *DoctorHandler) {
	r.Handle("/health", d.HealthCheck)
	r.Handle("/healthz", d.HealthCheck)
	if r.metrics != nil {
		r.HandleHandler("/metrics", r.metrics.Handler())
	}
}
