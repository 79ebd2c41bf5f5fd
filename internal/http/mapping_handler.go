package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"twin-data/internal/catalog"
	"twin-data/internal/classifier"
	"twin-data/internal/domain"
	"twin-data/internal/mapping"
)

const mappingPrefix = "/api/v1/mapping/rows"

var groupLabels = map[domain.Group]string{
	domain.GroupInput:              "Входные данные",
	domain.GroupVerification:       "Верификация и контроль",
	domain.GroupManualInput:        "Ручной ввод",
	domain.GroupManualVerification: "Ручная верификация",
	domain.GroupLaboratory:         "Лабораторные исследования",
}

// MappingHandler 映射表页面
type MappingHandler struct {
	rows    *mapping.Store
	catalog *catalog.Catalog
	logger  *zap.Logger
}

func NewMappingHandler(rows *mapping.Store, c *catalog.Catalog, logger *zap.Logger) *MappingHandler {
	return &MappingHandler{rows: rows, catalog: c, logger: logger}
}

type addParameterRequest struct {
	ParameterID string            `json:"parameterId"`
	Name        string            `json:"name"`
	Unit        string            `json:"unit"`
	Type        domain.SensorType `json:"type"`
}

type updateRowRequest struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

func (h *MappingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r.URL.Path, mappingPrefix)
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		rows := h.rows.Rows()
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": rows, "total": len(rows)}))
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.AddParameter(w, r)
	case len(parts) == 0 && r.Method == http.MethodDelete:
		if err := h.rows.Clear(r.Context()); err != nil {
			writeError(w, h.logger, "ClearMapping", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
	case len(parts) == 1 || (len(parts) == 2 && parts[1] == "sensors"):
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			writeJSON(w, http.StatusNotFound, Fail("invalid row id"))
			return
		}
		if len(parts) == 2 {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			h.SensorOptions(w, r, id)
			return
		}
		switch r.Method {
		case http.MethodGet:
			row, ok := h.rows.Row(id)
			if !ok {
				writeError(w, h.logger, "GetRow", mapping.ErrRowNotFound)
				return
			}
			writeJSON(w, http.StatusOK, Ok(row))
		case http.MethodPut:
			h.UpdateRow(w, r, id)
		case http.MethodDelete:
			if err := h.rows.RemoveRow(r.Context(), id); err != nil {
				writeError(w, h.logger, "RemoveRow", err)
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

// AddParameter 按目录 ID 添加；目录中没有时使用请求中的名称/单位
func (h *MappingHandler) AddParameter(w http.ResponseWriter, r *http.Request) {
	var req addParameterRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	param := domain.Parameter{ID: req.ParameterID, Name: req.Name, Unit: req.Unit, Type: req.Type}
	if p, ok := h.catalog.Find(req.ParameterID); ok {
		param = p
	} else if req.ParameterID != "" && req.Name == "" {
		writeJSON(w, http.StatusNotFound, Fail("parameter not found: "+req.ParameterID))
		return
	}

	row, err := h.rows.AddParameter(r.Context(), param)
	if err != nil {
		writeError(w, h.logger, "AddParameter", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(row))
}

// UpdateRow PUT {field, value}
func (h *MappingHandler) UpdateRow(w http.ResponseWriter, r *http.Request, id int64) {
	var req updateRowRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil || req.Field == "" {
		writeJSON(w, http.StatusBadRequest, Fail("field and value are required"))
		return
	}
	if len(req.Value) == 0 {
		req.Value = json.RawMessage("null")
	}
	row, err := h.rows.UpdateRow(r.Context(), id, req.Field, req.Value)
	if err != nil {
		writeError(w, h.logger, "UpdateRow", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(row))
}

// SensorOptions 行当前分组下可选的传感器
func (h *MappingHandler) SensorOptions(w http.ResponseWriter, r *http.Request, id int64) {
	sensors, err := h.rows.SensorOptions(id)
	if err != nil {
		writeError(w, h.logger, "SensorOptions", err)
		return
	}
	if sensors == nil {
		sensors = []domain.Sensor{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": sensors, "total": len(sensors)}))
}

type groupOption struct {
	Value domain.Group `json:"value"`
	Label string       `json:"label"`
	classifier.Flags
}

// ListGroups GET /api/v1/mapping/groups
func (h *MappingHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	out := make([]groupOption, 0, len(domain.Groups))
	for _, g := range domain.Groups {
		out = append(out, groupOption{Value: g, Label: groupLabels[g], Flags: classifier.Classify(g)})
	}
	writeJSON(w, http.StatusOK, Ok(out))
}
