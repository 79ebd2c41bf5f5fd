// Package lab 实验室分析结果（每个实验室参数一条）
package lab

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"twin-data/internal/domain"
	"twin-data/internal/store"
)

// DefaultParseDelay 模拟文件解析耗时
const DefaultParseDelay = time.Second

var (
	ErrParameterNotFound = errors.New("laboratory parameter not found")
	ErrResultNotFound    = errors.New("laboratory result not found")
)

// ParameterSource 实验室分组中的参数（来自映射行）
type ParameterSource interface {
	LabParameters() []domain.LabParameter
}

// ResultInput 手动录入或解析得到的结果；空字段不覆盖已有值
type ResultInput struct {
	Value        *float64         `json:"value"`
	Unit         string           `json:"unit"`
	Source       domain.LabSource `json:"source"`
	FileName     string           `json:"fileName"`
	AnalysisDate string           `json:"analysisDate"`
	LabName      string           `json:"labName"`
	Method       string           `json:"method"`
	Notes        string           `json:"notes"`
	Analyst      string           `json:"analyst"`
}

// Service 结果存储在 labResearchData
type Service struct {
	kv         store.KV
	params     ParameterSource
	logger     *zap.Logger
	now        func() time.Time
	random     func() float64
	parseDelay time.Duration

	mu sync.Mutex
}

// Option 可选配置
type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom 模拟解析值的随机源，返回 [0,1)
func WithRandom(random func() float64) Option {
	return func(s *Service) { s.random = random }
}

func WithParseDelay(d time.Duration) Option {
	return func(s *Service) { s.parseDelay = d }
}

func NewService(kv store.KV, params ParameterSource, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		kv:         kv,
		params:     params,
		logger:     logger,
		now:        time.Now,
		random:     rand.Float64,
		parseDelay: DefaultParseDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parameters 当前实验室参数
func (s *Service) Parameters() []domain.LabParameter {
	params := s.params.LabParameters()
	if params == nil {
		return []domain.LabParameter{}
	}
	return params
}

// List 所有结果；数据损坏时返回空
func (s *Service) List(ctx context.Context) []domain.LabResult {
	results, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("Failed to load lab results", zap.Error(err))
		return []domain.LabResult{}
	}
	return results
}

// Get 参数的结果
func (s *Service) Get(ctx context.Context, parameterID string) (domain.LabResult, bool) {
	for _, r := range s.List(ctx) {
		if r.ParameterID == parameterID {
			return r, true
		}
	}
	return domain.LabResult{}, false
}

// CreateOrUpdate 已有结果时合并，否则新增；名称与单位以参数为准
func (s *Service) CreateOrUpdate(ctx context.Context, parameterID string, in ResultInput) (domain.LabResult, error) {
	param, ok := s.parameter(parameterID)
	if !ok {
		return domain.LabResult{}, fmt.Errorf("%w: %s", ErrParameterNotFound, parameterID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("Discarding unreadable lab results", zap.Error(err))
		results = nil
	}
	now := domain.FormatTimestamp(s.now())

	idx := -1
	for i := range results {
		if results[i].ParameterID == parameterID {
			idx = i
			break
		}
	}

	var r domain.LabResult
	if idx >= 0 {
		r = results[idx]
	} else {
		if in.Value == nil {
			return domain.LabResult{}, domain.NewValidationError("Введите значение")
		}
		r = domain.LabResult{ID: uuid.NewString(), ParameterID: parameterID, CreatedAt: now}
	}
	merge(&r, in)
	if r.Source == "" {
		r.Source = domain.LabSourceManual
	}
	if r.AnalysisDate == "" {
		r.AnalysisDate = now
	}
	r.ParameterName = firstNonEmpty(param.ParameterName, r.ParameterName)
	r.Unit = firstNonEmpty(param.Unit, r.Unit)
	r.UpdatedAt = now

	if idx >= 0 {
		results[idx] = r
	} else {
		results = append(results, r)
	}
	if err := s.save(ctx, results); err != nil {
		return domain.LabResult{}, err
	}
	return r, nil
}

// Delete 删除参数的结果
func (s *Service) Delete(ctx context.Context, parameterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load lab results: %w", err)
	}
	for i := range results {
		if results[i].ParameterID == parameterID {
			return s.save(ctx, append(results[:i:i], results[i+1:]...))
		}
	}
	return fmt.Errorf("%w: %s", ErrResultNotFound, parameterID)
}

// ParseFile 模拟解析上传的化验文件并保存结果；ctx 取消时放弃解析
func (s *Service) ParseFile(ctx context.Context, parameterID, fileName string) (domain.LabResult, error) {
	if strings.TrimSpace(fileName) == "" {
		return domain.LabResult{}, domain.NewValidationError("Выберите файл для загрузки")
	}
	param, ok := s.parameter(parameterID)
	if !ok {
		return domain.LabResult{}, fmt.Errorf("%w: %s", ErrParameterNotFound, parameterID)
	}

	parsed := make(chan ParsedData, 1)
	task := StartParse(ctx, param, fileName, s.parseDelay, s.random, s.now, func(d ParsedData) {
		parsed <- d
	})

	select {
	case d := <-parsed:
		value := d.Value
		return s.CreateOrUpdate(ctx, parameterID, ResultInput{
			Value:        &value,
			Unit:         d.Unit,
			Source:       domain.LabSourceFile,
			FileName:     d.FileName,
			AnalysisDate: d.AnalysisDate,
			LabName:      d.LabName,
			Method:       d.Method,
			Notes:        d.Notes,
		})
	case <-ctx.Done():
		task.Cancel()
		return domain.LabResult{}, ctx.Err()
	}
}

func (s *Service) parameter(id string) (domain.LabParameter, bool) {
	for _, p := range s.params.LabParameters() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.LabParameter{}, false
}

func (s *Service) load(ctx context.Context) ([]domain.LabResult, error) {
	var results []domain.LabResult
	err := store.LoadJSON(ctx, s.kv, store.KeyLabResearchData, &results)
	if errors.Is(err, store.ErrMiss) {
		return []domain.LabResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// save 列表为空时删除键
func (s *Service) save(ctx context.Context, results []domain.LabResult) error {
	if len(results) == 0 {
		if err := s.kv.Delete(ctx, store.KeyLabResearchData); err != nil {
			return fmt.Errorf("failed to delete lab results: %w", err)
		}
		return nil
	}
	if err := store.SaveJSON(ctx, s.kv, store.KeyLabResearchData, results); err != nil {
		return fmt.Errorf("failed to save lab results: %w", err)
	}
	return nil
}

func merge(r *domain.LabResult, in ResultInput) {
	if in.Value != nil {
		r.Value = *in.Value
	}
	if in.Source != "" {
		r.Source = in.Source
	}
	r.Unit = firstNonEmpty(in.Unit, r.Unit)
	r.FileName = firstNonEmpty(in.FileName, r.FileName)
	r.AnalysisDate = firstNonEmpty(in.AnalysisDate, r.AnalysisDate)
	r.LabName = firstNonEmpty(in.LabName, r.LabName)
	r.Method = firstNonEmpty(in.Method, r.Method)
	r.Notes = firstNonEmpty(in.Notes, r.Notes)
	r.Analyst = firstNonEmpty(in.Analyst, r.Analyst)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
