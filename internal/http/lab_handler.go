package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/lab"
)

const labResultsPrefix = "/api/v1/lab/results"

// LabHandler 实验室分析页面
type LabHandler struct {
	lab    *lab.Service
	logger *zap.Logger
}

func NewLabHandler(s *lab.Service, logger *zap.Logger) *LabHandler {
	return &LabHandler{lab: s, logger: logger}
}

type parseRequest struct {
	ParameterID string `json:"parameterId"`
	FileName    string `json:"fileName"`
}

func (h *LabHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r.URL.Path, labResultsPrefix)
	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		items := h.lab.List(r.Context())
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": items, "total": len(items)}))
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			res, ok := h.lab.Get(r.Context(), parts[0])
			if !ok {
				writeError(w, h.logger, "GetLabResult", lab.ErrResultNotFound)
				return
			}
			writeJSON(w, http.StatusOK, Ok(res))
		case http.MethodPost, http.MethodPut:
			h.Save(w, r, parts[0])
		case http.MethodDelete:
			if err := h.lab.Delete(r.Context(), parts[0]); err != nil {
				writeError(w, h.logger, "DeleteLabResult", err)
				return
			}
			writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 0:
		methodNotAllowed(w)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListParameters GET /api/v1/lab/parameters
func (h *LabHandler) ListParameters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	params := h.lab.Parameters()
	if params == nil {
		params = []domain.LabParameter{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": params, "total": len(params)}))
}

// Save 新建或合并参数的化验结果
func (h *LabHandler) Save(w http.ResponseWriter, r *http.Request, parameterID string) {
	var in lab.ResultInput
	if err := readBodyJSON(r, maxBodyBytes, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	res, err := h.lab.CreateOrUpdate(r.Context(), parameterID, in)
	if err != nil {
		writeError(w, h.logger, "SaveLabResult", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// Parse POST /api/v1/lab/parse {parameterId, fileName}；客户端断开即取消解析
func (h *LabHandler) Parse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req parseRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	res, err := h.lab.ParseFile(r.Context(), req.ParameterID, req.FileName)
	if err != nil {
		if r.Context().Err() != nil {
			h.logger.Info("Lab file parse cancelled", zap.String("parameter_id", req.ParameterID))
			return
		}
		writeError(w, h.logger, "ParseLabFile", err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}
