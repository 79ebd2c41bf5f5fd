package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/store"
)

// History 审计记录，最新在前
func (j *Journal) History(ctx context.Context) []domain.HistoryEntry {
	entries, err := j.loadHistory(ctx)
	if err != nil {
		j.logger.Warn("Failed to load entry history", zap.Error(err))
		return []domain.HistoryEntry{}
	}
	return entries
}

// RemoveHistoryEntry 删除一条审计记录（不影响传感器读数）
func (j *Journal) RemoveHistoryEntry(ctx context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.loadHistory(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entry history: %w", err)
	}
	for i, e := range entries {
		if e.ID == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			return j.saveHistory(ctx, entries)
		}
	}
	return fmt.Errorf("%w: %s", ErrHistoryNotFound, id)
}

// ClearHistory 清空审计记录
func (j *Journal) ClearHistory(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.saveHistory(ctx, []domain.HistoryEntry{})
}

// recordHistory 调用方持有 j.mu
func (j *Journal) recordHistory(ctx context.Context, sensor domain.Sensor, added []domain.Reading) error {
	entries, err := j.loadHistory(ctx)
	if err != nil {
		j.logger.Warn("Discarding unreadable entry history", zap.Error(err))
		entries = nil
	}

	fresh := make([]domain.HistoryEntry, 0, len(added)+len(entries))
	for i := len(added) - 1; i >= 0; i-- {
		r := added[i]
		at, _ := r.Time()
		local := at.In(j.loc)
		fresh = append(fresh, domain.HistoryEntry{
			ID:         uuid.NewString(),
			SensorID:   sensor.ID,
			SensorName: sensor.Name,
			SensorUnit: sensor.Unit,
			Value:      r.Value,
			Timestamp:  r.Timestamp,
			Notes:      r.Notes,
			EnteredBy:  r.EnteredBy,
			Date:       local.Format("02.01.2006"),
			Time:       local.Format("15:04"),
		})
	}
	return j.saveHistory(ctx, append(fresh, entries...))
}

func (j *Journal) loadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := store.LoadJSON(ctx, j.kv, store.KeyManualEntryHistory, &entries)
	if errors.Is(err, store.ErrMiss) {
		return []domain.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func (j *Journal) saveHistory(ctx context.Context, entries []domain.HistoryEntry) error {
	if err := store.SaveJSON(ctx, j.kv, store.KeyManualEntryHistory, entries); err != nil {
		return fmt.Errorf("failed to save entry history: %w", err)
	}
	return nil
}
