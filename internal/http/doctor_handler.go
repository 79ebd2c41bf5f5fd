package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger 依赖服务的连通性检查
type Pinger func(ctx context.Context) error

// DoctorHandler 诊断处理器
type DoctorHandler struct {
	checks map[string]Pinger
	logger *zap.Logger
}

// NewDoctorHandler checks 为空表示只有内存存储
func NewDoctorHandler(checks map[string]Pinger, logger *zap.Logger) *DoctorHandler {
	return &DoctorHandler{checks: checks, logger: logger}
}

// HealthCheckResponse 健康检查响应
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck 健康检查端点
func (d *DoctorHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	status := "healthy"
	services := make(map[string]string, len(d.checks))
	for name, ping := range d.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := ping(ctx)
		cancel()
		if err != nil {
			status = "unhealthy"
			services[name] = "unhealthy: " + err.Error()
			d.logger.Warn("Health check failed", zap.String("service", name), zap.Error(err))
		} else {
			services[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
	})
}
