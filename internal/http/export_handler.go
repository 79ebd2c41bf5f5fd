package httpapi

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/export"
	"twin-data/internal/journal"
	"twin-data/internal/registry"
)

const (
	exportPrefix = "/api/v1/export"
	xlsxType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ExportHandler 读数日志与录入记录的文件导出
type ExportHandler struct {
	registry *registry.Registry
	journal  *journal.Journal
	now      func() time.Time
	logger   *zap.Logger
}

func NewExportHandler(reg *registry.Registry, j *journal.Journal, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{registry: reg, journal: j, now: time.Now, logger: logger}
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parts := pathTail(r.URL.Path, exportPrefix)
	switch {
	case len(parts) == 1 && parts[0] == "history.csv":
		h.HistoryCSV(w, r)
	case len(parts) == 1 && parts[0] == "history.xlsx":
		h.HistoryXLSX(w, r)
	case len(parts) == 2 && parts[0] == "journal" && strings.HasSuffix(parts[1], ".xlsx"):
		h.JournalXLSX(w, r, strings.TrimSuffix(parts[1], ".xlsx"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ExportHandler) HistoryCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteHistoryCSV(&buf, h.journal.History(r.Context())); err != nil {
		writeError(w, h.logger, "ExportHistoryCSV", err)
		return
	}
	writeFile(w, "text/csv; charset=utf-8", export.HistoryFileName(h.now(), "csv"), buf.Bytes())
}

func (h *ExportHandler) HistoryXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := export.HistoryWorkbook(h.journal.History(r.Context()))
	if err != nil {
		writeError(w, h.logger, "ExportHistoryXLSX", err)
		return
	}
	writeFile(w, xlsxType, export.HistoryFileName(h.now(), "xlsx"), data)
}

func (h *ExportHandler) JournalXLSX(w http.ResponseWriter, r *http.Request, sensorID string) {
	sensor, ok := h.registry.Get(sensorID)
	if !ok {
		writeError(w, h.logger, "ExportJournalXLSX", registry.ErrSensorNotFound)
		return
	}
	data, err := export.JournalWorkbook(sensor, h.journal.GetReadings(r.Context(), sensorID))
	if err != nil {
		writeError(w, h.logger, "ExportJournalXLSX", err)
		return
	}
	name := sensor.Code
	if name == "" {
		name = sensor.ID
	}
	writeFile(w, xlsxType, name+"_"+h.now().UTC().Format("2006-01-02")+".xlsx", data)
}
