package lab

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/store"
)

var testNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type staticParams []domain.LabParameter

func (p staticParams) LabParameters() []domain.LabParameter { return p }

func newTestService(kv store.KV, opts ...Option) *Service {
	params := staticParams{
		{ID: "stream-1-composition", ParameterName: "Состав", Unit: "мольн.доли", Group: domain.GroupLaboratory, IsLaboratory: true},
		{ID: "stream-3-quality", ParameterName: "Качество", Unit: "%", Group: domain.GroupLaboratory, IsLaboratory: true},
	}
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithRandom(func() float64 { return 0.5 }),
		WithParseDelay(10 * time.Millisecond),
	}, opts...)
	return NewService(kv, params, zap.NewNop(), opts...)
}

func ptr(v float64) *float64 { return &v }

func TestCreateOrUpdate(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestService(kv)
	ctx := context.Background()

	created, err := s.CreateOrUpdate(ctx, "stream-1-composition", ResultInput{
		Value: ptr(0.92), Unit: "ignored", LabName: "ЦЗЛ", Analyst: "Иванов",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Состав", created.ParameterName)
	assert.Equal(t, "мольн.доли", created.Unit)
	assert.Equal(t, domain.LabSourceManual, created.Source)
	assert.Equal(t, "2024-03-01T08:00:00.000Z", created.AnalysisDate)

	updated, err := s.CreateOrUpdate(ctx, "stream-1-composition", ResultInput{Value: ptr(0.95), Method: "ГОСТ 31371"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 0.95, updated.Value)
	assert.Equal(t, "ЦЗЛ", updated.LabName)
	assert.Equal(t, "ГОСТ 31371", updated.Method)

	assert.Len(t, s.List(ctx), 1)
	got, ok := s.Get(ctx, "stream-1-composition")
	require.True(t, ok)
	assert.Equal(t, 0.95, got.Value)
}

func TestCreateOrUpdate_Errors(t *testing.T) {
	s := newTestService(store.NewMemoryKV())
	ctx := context.Background()

	_, err := s.CreateOrUpdate(ctx, "missing", ResultInput{Value: ptr(1)})
	assert.ErrorIs(t, err, ErrParameterNotFound)

	_, err = s.CreateOrUpdate(ctx, "stream-3-quality", ResultInput{})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDelete(t *testing.T) {
	kv := store.NewMemoryKV()
	s := newTestService(kv)
	ctx := context.Background()

	_, err := s.CreateOrUpdate(ctx, "stream-3-quality", ResultInput{Value: ptr(99)})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "stream-3-quality"))
	assert.ErrorIs(t, s.Delete(ctx, "stream-3-quality"), ErrResultNotFound)

	_, err = kv.Get(ctx, store.KeyLabResearchData)
	assert.ErrorIs(t, err, store.ErrMiss)
}

func TestList_CorruptData(t *testing.T) {
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), store.KeyLabResearchData, "nope", 0))
	assert.Empty(t, newTestService(kv).List(context.Background()))
}

func TestParseFile(t *testing.T) {
	s := newTestService(store.NewMemoryKV())
	ctx := context.Background()

	r, err := s.ParseFile(ctx, "stream-3-quality", "protocol.pdf")
	require.NoError(t, err)
	assert.Equal(t, 50.0, r.Value)
	assert.Equal(t, domain.LabSourceFile, r.Source)
	assert.Equal(t, "protocol.pdf", r.FileName)
	assert.Equal(t, "Лаборатория из файла", r.LabName)
	assert.Equal(t, "Данные из файла: protocol.pdf", r.Notes)
	assert.Equal(t, "%", r.Unit)

	_, err = s.ParseFile(ctx, "stream-3-quality", " ")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseFile_ContextCancelled(t *testing.T) {
	s := newTestService(store.NewMemoryKV(), WithParseDelay(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.ParseFile(ctx, "stream-3-quality", "protocol.pdf")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, s.List(context.Background()))
}

func TestParseTask_CancelPreventsCallback(t *testing.T) {
	var calls int32
	task := StartParse(context.Background(), domain.LabParameter{Unit: "%"}, "a.xlsx", 50*time.Millisecond,
		func() float64 { return 0.1 }, func() time.Time { return testNow },
		func(ParsedData) { atomic.AddInt32(&calls, 1) })

	assert.True(t, task.Cancel())
	task.Wait()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.True(t, task.Cancel())
}

func TestParseTask_Completes(t *testing.T) {
	got := make(chan ParsedData, 1)
	task := StartParse(context.Background(), domain.LabParameter{Unit: "%"}, "a.xlsx", time.Millisecond,
		func() float64 { return 0.25 }, func() time.Time { return testNow },
		func(d ParsedData) { got <- d })

	task.Wait()
	select {
	case d := <-got:
		assert.Equal(t, 25.0, d.Value)
		assert.Equal(t, "2024-03-01T08:00:00.000Z", d.AnalysisDate)
	default:
		t.Fatal("callback not called")
	}
	assert.False(t, task.Cancel())
}
