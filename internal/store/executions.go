package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

// DefaultRetention — сколько завершённых executions хранится
// на один pipeline, прежде чем старые вытесняются.
const DefaultRetention = 100

// ExecutionStore — in-memory хранилище executions.
//
// Хранилище держит живые Recorder'ы: движок пишет в execution через
// Recorder, читатели получают консистентные копии через Get/List.
// Retention вытесняет только завершённые executions; идущий запуск не
// вытесняется никогда.
type ExecutionStore struct {
	mu        sync.RWMutex
	recorders map[uuid.UUID]*tracker.Recorder
	retention int
}

// ExecutionStoreConfig — конфигурация ExecutionStore.
type ExecutionStoreConfig struct {
	// Retention — максимум завершённых executions на pipeline
	// (default: DefaultRetention).
	Retention int
}

// NewExecutionStore создаёт хранилище executions.
func NewExecutionStore(cfg ExecutionStoreConfig) *ExecutionStore {
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &ExecutionStore{
		recorders: make(map[uuid.UUID]*tracker.Recorder),
		retention: retention,
	}
}

// Put регистрирует execution и применяет retention
// к завершённым executions того же pipeline.
func (s *ExecutionStore) Put(rec *tracker.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recorders[rec.ExecutionID()] = rec
	s.evictLocked(rec.PipelineID())
}

// Recorder возвращает живой Recorder execution.
// Используется движком и для отмены; читатели берут Get.
func (s *ExecutionStore) Recorder(id uuid.UUID) (*tracker.Recorder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recorders[id]
	if !ok {
		return nil, fmt.Errorf("%w: execution %s", ErrNotFound, id)
	}
	return rec, nil
}

// Get возвращает копию execution по ID.
func (s *ExecutionStore) Get(id uuid.UUID) (*domain.Execution, error) {
	rec, err := s.Recorder(id)
	if err != nil {
		return nil, err
	}
	return rec.Execution(), nil
}

// List возвращает executions pipeline'а, новые первыми.
// pipelineID == uuid.Nil означает все pipelines; limit <= 0 — без лимита.
func (s *ExecutionStore) List(pipelineID uuid.UUID, limit int) []*domain.Execution {
	s.mu.RLock()
	recs := make([]*tracker.Recorder, 0, len(s.recorders))
	for _, rec := range s.recorders {
		if pipelineID != uuid.Nil && rec.PipelineID() != pipelineID {
			continue
		}
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]*domain.Execution, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Execution())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Running возвращает Recorder'ы незавершённых executions pipeline'а.
func (s *ExecutionStore) Running(pipelineID uuid.UUID) []*tracker.Recorder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*tracker.Recorder
	for _, rec := range s.recorders {
		if rec.PipelineID() != pipelineID {
			continue
		}
		if !rec.Status().IsTerminal() {
			out = append(out, rec)
		}
	}
	return out
}

// HasRunning проверяет, есть ли у pipeline незавершённый execution.
func (s *ExecutionStore) HasRunning(pipelineID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.recorders {
		if rec.PipelineID() == pipelineID && !rec.Status().IsTerminal() {
			return true
		}
	}
	return false
}

// DeleteByPipeline удаляет все executions pipeline'а.
// Вызывается после того, как живые executions отменены.
func (s *ExecutionStore) DeleteByPipeline(pipelineID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.recorders {
		if rec.PipelineID() == pipelineID {
			delete(s.recorders, id)
		}
	}
}

// PipelineStats — агрегированная статистика запусков pipeline.
type PipelineStats struct {
	TotalExecutions int                    `json:"total_executions"`
	Completed       int                    `json:"completed"`
	Failed          int                    `json:"failed"`
	Cancelled       int                    `json:"cancelled"`
	Running         int                    `json:"running"`
	SuccessRate     float64                `json:"success_rate"`
	AvgDurationMs   int64                  `json:"avg_duration_ms"`
	LastRun         *time.Time             `json:"last_run,omitempty"`
	LastStatus      domain.ExecutionStatus `json:"last_status,omitempty"`
}

// Stats считает статистику по сохранённым executions pipeline'а.
//
// SuccessRate и средняя длительность считаются по завершённым
// запускам; идущие учитываются только в Running.
func (s *ExecutionStore) Stats(pipelineID uuid.UUID) PipelineStats {
	execs := s.List(pipelineID, 0)

	var stats PipelineStats
	var totalDuration time.Duration
	finished := 0

	for _, exec := range execs {
		stats.TotalExecutions++
		switch exec.Status {
		case domain.ExecutionStatusCompleted:
			stats.Completed++
		case domain.ExecutionStatusFailed:
			stats.Failed++
		case domain.ExecutionStatusCancelled:
			stats.Cancelled++
		default:
			stats.Running++
			continue
		}
		finished++
		totalDuration += exec.Duration
	}

	if finished > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(finished)
		stats.AvgDurationMs = (totalDuration / time.Duration(finished)).Milliseconds()
	}
	if len(execs) > 0 {
		// List отдаёт новые первыми
		stats.LastRun = &execs[0].StartTime
		stats.LastStatus = execs[0].Status
	}
	return stats
}

// evictLocked вытесняет самые старые завершённые executions pipeline'а
// сверх retention. Вызывается под write-lock.
func (s *ExecutionStore) evictLocked(pipelineID uuid.UUID) {
	var finished []*tracker.Recorder
	for _, rec := range s.recorders {
		if rec.PipelineID() == pipelineID && rec.Status().IsTerminal() {
			finished = append(finished, rec)
		}
	}
	if len(finished) <= s.retention {
		return
	}

	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartedAt().Before(finished[j].StartedAt())
	})
	for _, rec := range finished[:len(finished)-s.retention] {
		delete(s.recorders, rec.ExecutionID())
	}
}
