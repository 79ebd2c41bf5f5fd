package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/mapping"
	"twin-data/internal/registry"
	"twin-data/internal/store"
)

var testNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	kv       *store.MemoryKV
	registry *registry.Registry
	mapping  *mapping.Store
	journal  *Journal
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := store.NewMemoryKV()
	clock := func() time.Time { return testNow }

	reg, err := registry.New(ctx, kv, []domain.Sensor{
		{ID: "T-101", Name: "Датчик T-101", Type: domain.SensorTypeTemperature},
	}, zap.NewNop(), registry.WithClock(clock))
	require.NoError(t, err)

	lo, hi := 0.0, 50.0
	_, err = reg.CreateManual(ctx, registry.SensorInput{
		Name: "Ручной термометр", Code: "T-005", Type: domain.SensorTypeTemperature,
		MinValue: &lo, MaxValue: &hi,
	})
	require.NoError(t, err)
	inactive := false
	_, err = reg.CreateManual(ctx, registry.SensorInput{
		Name: "Старый манометр", Code: "P-001", Type: domain.SensorTypePressure, IsActive: &inactive,
	})
	require.NoError(t, err)
	_, err = reg.CreateManual(ctx, registry.SensorInput{Name: "Уровнемер", Code: "L-001", Type: domain.SensorTypeLevel})
	require.NoError(t, err)

	rows := mapping.New(ctx, kv, reg, zap.NewNop(), mapping.WithClock(clock))
	opts = append([]Option{WithClock(clock)}, opts...)
	return &fixture{
		kv:       kv,
		registry: reg,
		mapping:  rows,
		journal:  New(kv, reg, rows, zap.NewNop(), opts...),
	}
}

func TestScenario_AddReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "09:00", Value: "21.5"})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "2024-01-01T09:00:00.000Z", res.Reading.Timestamp)
	assert.Equal(t, domain.DefaultOperator, res.Reading.EnteredBy)
	assert.Equal(t, "2024-01-01T12:00:00.000Z", res.Reading.EntryDate)

	readings := f.journal.GetReadings(ctx, "T-005")
	require.Len(t, readings, 1)
	assert.Equal(t, 21.5, readings[0].Value)
	assert.Equal(t, "2024-01-01T09:00:00.000Z", readings[0].Timestamp)

	s, ok := f.registry.Get("T-005")
	require.True(t, ok)
	require.NotNil(t, s.CurrentValue)
	assert.Equal(t, 21.5, *s.CurrentValue)
	assert.Equal(t, "2024-01-01T09:00:00.000Z", s.LastUpdate)
	assert.Equal(t, domain.SensorStatusNormal, s.Status)

	history := f.journal.History(ctx)
	require.Len(t, history, 1)
	assert.Equal(t, "01.01.2024", history[0].Date)
	assert.Equal(t, "09:00", history[0].Time)
	assert.Equal(t, "Ручной термометр", history[0].SensorName)
	assert.NotEmpty(t, history[0].ID)
}

func TestAddReading_InvalidValueLeavesJournalUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "09:00", Value: "1"})
	require.NoError(t, err)

	for _, e := range []Entry{
		{Date: "2024-01-01", Time: "09:00", Value: ""},
		{Date: "2024-01-01", Time: "09:00", Value: "abc"},
		{Date: "", Time: "09:00", Value: "1"},
		{Date: "2024-01-01", Time: "", Value: "1"},
		{Date: "01/01/2024", Time: "09:00", Value: "1"},
	} {
		_, err := f.journal.AddReading(ctx, "T-005", e)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr, "%+v", e)
		assert.NotEmpty(t, verr.Message)
	}
	assert.Len(t, f.journal.GetReadings(ctx, "T-005"), 1)
	assert.Len(t, f.journal.History(ctx), 1)
}

func TestAddReading_UnknownOrAutomaticSensor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := Entry{Date: "2024-01-01", Time: "09:00", Value: "1"}

	_, err := f.journal.AddReading(ctx, "X-1", e)
	assert.ErrorIs(t, err, ErrSensorNotFound)
	_, err = f.journal.AddReading(ctx, "T-101", e)
	assert.ErrorIs(t, err, ErrNotManualSensor)
}

func TestAddReading_LocationSecondsAndComma(t *testing.T) {
	f := newFixture(t, WithLocation(time.FixedZone("MSK", 3*3600)))
	ctx := context.Background()

	res, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "09:00:30", Value: "21,5"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T06:00:30.000Z", res.Reading.Timestamp)
	assert.Equal(t, 21.5, res.Reading.Value)
	assert.Equal(t, "09:00", f.journal.History(ctx)[0].Time)
}

func TestAddReading_AppendOrderAndRangeWarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-02", Time: "10:00", Value: "10"})
	require.NoError(t, err)
	// older timestamp appended later becomes the current value
	res, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "10:00", Value: "60"})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "больше максимального")

	_, err = f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "10:00", Value: "60"})
	require.NoError(t, err)

	readings := f.journal.GetReadings(ctx, "T-005")
	require.Len(t, readings, 3)
	assert.Equal(t, []float64{10, 60, 60}, []float64{readings[0].Value, readings[1].Value, readings[2].Value})

	s, _ := f.registry.Get("T-005")
	assert.Equal(t, 60.0, *s.CurrentValue)
	assert.Equal(t, "2024-01-01T10:00:00.000Z", s.LastUpdate)

	res, err = f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "11:00", Value: "-1"})
	require.NoError(t, err)
	assert.Contains(t, res.Warnings[0], "меньше минимального")
}

func TestAddReading_CapsAtMaxReadings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := make([]domain.Reading, MaxReadings)
	for i := range existing {
		existing[i] = domain.Reading{Timestamp: "2023-12-01T00:00:00.000Z", Value: float64(i)}
	}
	require.NoError(t, store.SaveJSON(ctx, f.kv, store.SensorDataKey("T-005"), existing))

	_, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "09:00", Value: "5000"})
	require.NoError(t, err)

	readings := f.journal.GetReadings(ctx, "T-005")
	require.Len(t, readings, MaxReadings)
	assert.Equal(t, 1.0, readings[0].Value)
	assert.Equal(t, 5000.0, readings[MaxReadings-1].Value)
}

func TestAddReading_RefreshesMappingRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	row, err := f.mapping.AddParameter(ctx, domain.Parameter{Name: "Температура входа", Unit: "°C"})
	require.NoError(t, err)
	_, err = f.mapping.SetGroup(ctx, row.ID, domain.GroupManualInput)
	require.NoError(t, err)
	_, err = f.mapping.SetSensor(ctx, row.ID, "T-005")
	require.NoError(t, err)

	_, err = f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "09:00", Value: "21.5"})
	require.NoError(t, err)

	got, ok := f.mapping.Row(row.ID)
	require.True(t, ok)
	require.Len(t, got.ManualData, 1)
	assert.Equal(t, 21.5, got.ManualData[0].Value)
}

func TestAddBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.journal.AddBatch(ctx, BatchEntry{
		Date:  "2024-01-01",
		Time:  "08:30",
		Notes: "обход",
		Values: map[string]string{
			"T-005": "20",
			"L-001": "55.5",
			"P-001": "1.2", // inactive
			"X-404": "3",
			"T-101": "4", // automatic
			"Q-1":   "",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T08:30:00.000Z", res.Timestamp)
	require.Len(t, res.Saved, 2)
	assert.Equal(t, "L-001", res.Saved[0].SensorID)
	assert.Equal(t, "T-005", res.Saved[1].SensorID)
	assert.ElementsMatch(t, []string{"P-001", "X-404", "T-101"}, res.Skipped)

	assert.Equal(t, "обход", f.journal.GetReadings(ctx, "L-001")[0].Notes)
	assert.Len(t, f.journal.History(ctx), 2)

	_, err = f.journal.AddBatch(ctx, BatchEntry{Date: "2024-01-01", Time: "08:30", Values: map[string]string{"T-005": "abc"}})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.journal.AddBatch(ctx, BatchEntry{Time: "08:30", Values: map[string]string{"T-005": "1"}})
	assert.ErrorAs(t, err, &verr)
}

func TestRemoveReadingAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: fmt.Sprintf("0%d:00", i), Value: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	require.NoError(t, f.journal.RemoveReading(ctx, "T-005", 2))
	readings := f.journal.GetReadings(ctx, "T-005")
	assert.Equal(t, []float64{0, 1}, []float64{readings[0].Value, readings[1].Value})
	s, _ := f.registry.Get("T-005")
	assert.Equal(t, 1.0, *s.CurrentValue)

	assert.ErrorIs(t, f.journal.RemoveReading(ctx, "T-005", 2), ErrIndexOutOfRange)
	assert.ErrorIs(t, f.journal.RemoveReading(ctx, "T-005", -1), ErrIndexOutOfRange)

	require.NoError(t, f.journal.Clear(ctx, "T-005"))
	assert.Empty(t, f.journal.GetReadings(ctx, "T-005"))
	s, _ = f.registry.Get("T-005")
	assert.Nil(t, s.CurrentValue)
	assert.Equal(t, domain.SensorStatusInactive, s.Status)
}

func TestHistoryRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, v := range []string{"1", "2"} {
		_, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "09:00", Value: v})
		require.NoError(t, err)
	}

	history := f.journal.History(ctx)
	require.Len(t, history, 2)
	assert.Equal(t, 2.0, history[0].Value)

	require.NoError(t, f.journal.RemoveHistoryEntry(ctx, history[0].ID))
	assert.Len(t, f.journal.History(ctx), 1)
	assert.ErrorIs(t, f.journal.RemoveHistoryEntry(ctx, "missing"), ErrHistoryNotFound)
	// readings are untouched by the audit list
	assert.Len(t, f.journal.GetReadings(ctx, "T-005"), 2)

	require.NoError(t, f.journal.ClearHistory(ctx))
	assert.Empty(t, f.journal.History(ctx))
}

func TestHistory_KeepsEveryEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := make([]domain.HistoryEntry, 2*MaxReadings*10)
	for i := range old {
		old[i] = domain.HistoryEntry{ID: fmt.Sprintf("h-%d", i), SensorID: "T-005", Value: float64(i)}
	}
	require.NoError(t, store.SaveJSON(ctx, f.kv, store.KeyManualEntryHistory, old))

	_, err := f.journal.AddReading(ctx, "T-005", Entry{Date: "2024-01-01", Time: "09:00", Value: "7"})
	require.NoError(t, err)

	history := f.journal.History(ctx)
	require.Len(t, history, len(old)+1)
	assert.Equal(t, 7.0, history[0].Value)
	assert.Equal(t, "h-0", history[1].ID)
}

func TestGetReadings_CorruptData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, store.SensorDataKey("T-005"), "{{", 0))

	assert.Empty(t, f.journal.GetReadings(ctx, "T-005"))
	assert.NotNil(t, f.journal.GetReadings(ctx, "T-005"))
}

func TestParseValue(t *testing.T) {
	for raw, want := range map[string]float64{"21.5": 21.5, " -3 ": -3, "1e3": 1000, "0,25": 0.25} {
		v, ok := ParseValue(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, v, raw)
	}
	for _, raw := range []string{"", "abc", "NaN", "Inf", "1.2.3"} {
		_, ok := ParseValue(raw)
		assert.False(t, ok, raw)
	}
}
