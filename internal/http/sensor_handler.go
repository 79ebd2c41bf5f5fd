package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/export"
	"twin-data/internal/registry"
)

const sensorsPrefix = "/api/v1/sensors"

// SensorHandler 传感器页面：自动传感器只读，手动传感器可增删改
type SensorHandler struct {
	registry *registry.Registry
	now      func() time.Time
	logger   *zap.Logger
}

func NewSensorHandler(reg *registry.Registry, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{registry: reg, now: time.Now, logger: logger}
}

func (h *SensorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r.URL.Path, sensorsPrefix)
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.ListSensors(w, r)
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.CreateSensor(w, r)
	case len(parts) == 1 && parts[0] == "types" && r.Method == http.MethodGet:
		h.ListTypes(w, r)
	case len(parts) == 1 && parts[0] == "cleanup-inactive" && r.Method == http.MethodPost:
		h.CleanupInactive(w, r)
	case len(parts) == 1 && parts[0] == "export" && r.Method == http.MethodGet:
		h.ExportSensors(w, r)
	case len(parts) == 1 && parts[0] == "import" && r.Method == http.MethodPost:
		h.ImportSensors(w, r)
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s, ok := h.registry.Get(parts[0])
			if !ok {
				writeError(w, h.logger, "GetSensor", registry.ErrSensorNotFound)
				return
			}
			writeJSON(w, http.StatusOK, Ok(s))
		case http.MethodPut:
			h.UpdateSensor(w, r, parts[0])
		case http.MethodDelete:
			if err := h.registry.DeleteManual(r.Context(), parts[0]); err != nil {
				writeError(w, h.logger, "DeleteSensor", err)
				return
			}
			writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
		default:
			methodNotAllowed(w)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListSensors GET /api/v1/sensors?kind=&type=&q=
func (h *SensorHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := h.registry.List(registry.Filter{
		Kind:  domain.SensorKind(q.Get("kind")),
		Type:  q.Get("type"),
		Query: q.Get("q"),
	})
	if items == nil {
		items = []domain.Sensor{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
}

func (h *SensorHandler) CreateSensor(w http.ResponseWriter, r *http.Request) {
	var in registry.SensorInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	s, err := h.registry.CreateManual(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, "CreateSensor", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

func (h *SensorHandler) UpdateSensor(w http.ResponseWriter, r *http.Request, id string) {
	var in registry.SensorInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	s, err := h.registry.UpdateManual(r.Context(), id, in)
	if err != nil {
		writeError(w, h.logger, "UpdateSensor", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(s))
}

func (h *SensorHandler) CleanupInactive(w http.ResponseWriter, r *http.Request) {
	removed, err := h.registry.CleanupInactive(r.Context())
	if err != nil {
		writeError(w, h.logger, "CleanupInactive", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"removed": removed}))
}

type sensorTypeOption struct {
	Value      domain.SensorType `json:"value"`
	Unit       string            `json:"unit"`
	CodePrefix string            `json:"codePrefix"`
}

// ListTypes 类型、默认单位与编码前缀
func (h *SensorHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	out := make([]sensorTypeOption, 0, len(domain.SensorTypes))
	for _, t := range domain.SensorTypes {
		out = append(out, sensorTypeOption{Value: t, Unit: domain.DefaultUnit(t), CodePrefix: domain.CodePrefix(t)})
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// ExportSensors 手动传感器定义 JSON 文件
func (h *SensorHandler) ExportSensors(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteSensorsJSON(&buf, h.registry.Manual()); err != nil {
		writeError(w, h.logger, "ExportSensors", err)
		return
	}
	writeFile(w, "application/json", export.SensorsFileName(h.now()), buf.Bytes())
}

// ImportSensors 接受 JSON 请求体或 multipart 的 file 字段
func (h *SensorHandler) ImportSensors(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = io.LimitReader(r.Body, 10<<20)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("failed to parse form"))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("file not found in request"))
			return
		}
		defer file.Close()
		src = file
	}

	inputs, err := export.ReadSensorsJSON(src)
	if err != nil {
		writeError(w, h.logger, "ImportSensors", err)
		return
	}
	res, err := h.registry.Import(r.Context(), inputs)
	if err != nil {
		writeError(w, h.logger, "ImportSensors", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}
