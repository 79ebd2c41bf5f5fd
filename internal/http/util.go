package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/journal"
	"twin-data/internal/lab"
	"twin-data/internal/mapping"
	"twin-data/internal/registry"
)

const maxBodyBytes = 1 << 20

// writeJSON 先编码再写状态码；编码失败时返回 500
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("Failed to encode response", zap.Error(err))
		status = http.StatusInternalServerError
		data, _ = json.Marshal(Fail("internal error"))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// writeFile 以附件形式返回导出文件
func writeFile(w http.ResponseWriter, contentType, fileName string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// writeError 校验错误 400，找不到 404，其余 500
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Fail(verr.Message))
	case errors.Is(err, registry.ErrSensorNotFound),
		errors.Is(err, journal.ErrSensorNotFound),
		errors.Is(err, journal.ErrHistoryNotFound),
		errors.Is(err, mapping.ErrRowNotFound),
		errors.Is(err, lab.ErrParameterNotFound),
		errors.Is(err, lab.ErrResultNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	case errors.Is(err, registry.ErrNotManual),
		errors.Is(err, journal.ErrNotManualSensor),
		errors.Is(err, journal.ErrIndexOutOfRange),
		errors.Is(err, mapping.ErrUnknownField),
		errors.Is(err, mapping.ErrUnknownSensor):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	default:
		logger.Error(op+" failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}

// pathTail 去掉前缀后的剩余路径段
func pathTail(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func methodNotAllowed(w http.ResponseWriter) {
	w.WriteHeader(http.StatusMethodNotAllowed)
}
