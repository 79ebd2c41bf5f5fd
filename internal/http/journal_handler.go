package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"twin-data/internal/journal"
	"twin-data/internal/metrics"
)

const journalPrefix = "/api/v1/journal"

// JournalHandler 手动数据录入页面
type JournalHandler struct {
	journal *journal.Journal
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewJournalHandler(j *journal.Journal, m *metrics.Metrics, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{journal: j, metrics: m, logger: logger}
}

func (h *JournalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r.URL.Path, journalPrefix)
	switch {
	case len(parts) == 0:
		w.WriteHeader(http.StatusNotFound)
	case parts[0] == "history":
		h.serveHistory(w, r, parts[1:])
	case parts[0] == "batch" && len(parts) == 1:
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.AddBatch(w, r)
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			readings := h.journal.GetReadings(r.Context(), parts[0])
			writeJSON(w, http.StatusOK, Ok(map[string]any{"items": readings, "total": len(readings)}))
		case http.MethodPost:
			h.AddReading(w, r, parts[0])
		case http.MethodDelete:
			if err := h.journal.Clear(r.Context(), parts[0]); err != nil {
				writeError(w, h.logger, "ClearJournal", err)
				return
			}
			writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 2 && r.Method == http.MethodDelete:
		index, err := strconv.Atoi(parts[1])
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid reading index"))
			return
		}
		if err := h.journal.RemoveReading(r.Context(), parts[0], index); err != nil {
			writeError(w, h.logger, "RemoveReading", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// AddReading POST {date, time, value, notes}
func (h *JournalHandler) AddReading(w http.ResponseWriter, r *http.Request, sensorID string) {
	var e journal.Entry
	if err := readBodyJSON(r, maxBodyBytes, &e); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	res, err := h.journal.AddReading(r.Context(), sensorID, e)
	if err != nil {
		h.metrics.AddManualReadings(metrics.ResultError, 1)
		writeError(w, h.logger, "AddReading", err)
		return
	}
	h.metrics.AddManualReadings(metrics.ResultSuccess, 1)
	if len(res.Warnings) > 0 {
		writeJSON(w, http.StatusOK, Warn(res, strings.Join(res.Warnings, "\n")))
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// AddBatch 分组录入，共用一个时间戳
func (h *JournalHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var b journal.BatchEntry
	if err := readBodyJSON(r, maxBodyBytes, &b); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	res, err := h.journal.AddBatch(r.Context(), b)
	if err != nil {
		writeError(w, h.logger, "AddBatch", err)
		return
	}
	h.metrics.AddManualReadings(metrics.ResultSuccess, len(res.Saved))
	h.metrics.AddManualReadings(metrics.ResultSkipped, len(res.Skipped))

	var warnings []string
	for _, s := range res.Saved {
		warnings = append(warnings, s.Warnings...)
	}
	if len(warnings) > 0 {
		writeJSON(w, http.StatusOK, Warn(res, strings.Join(warnings, "\n")))
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

func (h *JournalHandler) serveHistory(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		entries := h.journal.History(r.Context())
		writeJSON(w, http.StatusOK, Ok(map[string]any{"items": entries, "total": len(entries)}))
	case len(rest) == 0 && r.Method == http.MethodDelete:
		if err := h.journal.ClearHistory(r.Context()); err != nil {
			writeError(w, h.logger, "ClearHistory", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
	case len(rest) == 1 && r.Method == http.MethodDelete:
		if err := h.journal.RemoveHistoryEntry(r.Context(), rest[0]); err != nil {
			writeError(w, h.logger, "RemoveHistoryEntry", err)
			return
		}
		writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
	case len(rest) <= 1:
		methodNotAllowed(w)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
