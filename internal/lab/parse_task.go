package lab

import (
	"context"
	"sync"
	"time"

	"twin-data/internal/domain"
)

// ParsedData 模拟解析的结果
type ParsedData struct {
	Value        float64 `json:"value"`
	Unit         string  `json:"unit"`
	FileName     string  `json:"fileName"`
	AnalysisDate string  `json:"analysisDate"`
	LabName      string  `json:"labName"`
	Method       string  `json:"method"`
	Notes        string  `json:"notes"`
}

// ParseTask 延迟完成的模拟解析任务
// Cancel 返回后回调保证不会再被调用；回调内不得调用 Cancel
type ParseTask struct {
	mu        sync.Mutex
	cancelled bool
	fired     bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// StartParse delay 后以 ParsedData 调用 onDone，除非 ctx 结束或任务被取消
func StartParse(ctx context.Context, param domain.LabParameter, fileName string, delay time.Duration,
	random func() float64, now func() time.Time, onDone func(ParsedData)) *ParseTask {
	t := &ParseTask{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-timer.C:
		}

		data := ParsedData{
			Value:        random() * 100,
			Unit:         param.Unit,
			FileName:     fileName,
			AnalysisDate: domain.FormatTimestamp(now()),
			LabName:      "Лаборатория из файла",
			Method:       "Анализ из файла",
			Notes:        "Данные из файла: " + fileName,
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if t.cancelled {
			return
		}
		t.fired = true
		onDone(data)
	}()

	return t
}

// Cancel 取消任务；回调尚未执行时返回 true
func (t *ParseTask) Cancel() bool {
	t.mu.Lock()
	t.cancelled = true
	fired := t.fired
	t.mu.Unlock()

	t.stopOnce.Do(func() { close(t.stop) })
	return !fired
}

// Wait 等待任务结束（完成或取消）
func (t *ParseTask) Wait() {
	<-t.done
}

// Done 任务结束时关闭
func (t *ParseTask) Done() <-chan struct{} {
	return t.done
}
