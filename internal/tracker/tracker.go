package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/engine"
)

// Recorder — потокобезопасная обёртка над execution record.
//
// Все мутации execution во время запуска идут через Recorder:
// stage runner и движок пишут статусы, логи и ошибки конкурентно,
// а API-читатели получают консистентные снимки через Snapshot().
type Recorder struct {
	exec   *domain.Execution
	logger *slog.Logger

	mu sync.RWMutex
}

// NewRecorder создаёт Recorder для execution.
func NewRecorder(exec *domain.Execution, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{exec: exec, logger: logger}
}

// ExecutionID возвращает ID execution.
func (r *Recorder) ExecutionID() uuid.UUID {
	return r.exec.ID
}

// PipelineID возвращает ID pipeline.
func (r *Recorder) PipelineID() uuid.UUID {
	return r.exec.PipelineID
}

// StartedAt возвращает время старта execution.
func (r *Recorder) StartedAt() time.Time {
	return r.exec.StartTime
}

// Status возвращает текущий статус execution.
func (r *Recorder) Status() domain.ExecutionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exec.Status
}

// Cancelled проверяет, отменён ли execution.
// Движок обязан проверять это в начале каждой итерации/скана.
func (r *Recorder) Cancelled() bool {
	return r.Status() == domain.ExecutionStatusCancelled
}

// MarkRunning переводит execution в running.
func (r *Recorder) MarkRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exec.Status = domain.ExecutionStatusRunning
	r.exec.StartTime = time.Now()
}

// Cancel переводит execution в cancelled.
// Новые stage runs после этого не стартуют; уже идущие handlers
// могут доработать, но их результат не влияет на планирование.
func (r *Recorder) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exec.Status.IsTerminal() {
		return false
	}
	r.exec.Status = domain.ExecutionStatusCancelled
	return true
}

// StageStatus возвращает статус stage.
func (r *Recorder) StageStatus(stageID string) domain.ExecutionStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if se := r.exec.Stage(stageID); se != nil {
		return se.Status
	}
	return ""
}

// StageRetryCount возвращает количество retry stage.
func (r *Recorder) StageRetryCount(stageID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if se := r.exec.Stage(stageID); se != nil {
		return se.RetryCount
	}
	return 0
}

// MarkStageRunning переводит stage в running.
func (r *Recorder) MarkStageRunning(stageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if se := r.exec.Stage(stageID); se != nil {
		se.MarkRunning()
	}
}

// MarkStageCompleted переводит stage в completed с результатом.
func (r *Recorder) MarkStageCompleted(stageID string, output map[string]any, metrics domain.StageMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if se := r.exec.Stage(stageID); se != nil {
		se.MarkCompleted(output, metrics)
	}
}

// MarkStageFailed переводит stage в failed и добавляет запись об ошибке.
func (r *Recorder) MarkStageFailed(stageID, errMsg, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	se := r.exec.Stage(stageID)
	if se == nil {
		return
	}
	se.MarkFailed(errMsg, kind)

	r.exec.Errors = append(r.exec.Errors, domain.ErrorEntry{
		Time:    time.Now(),
		StageID: stageID,
		Kind:    kind,
		Message: errMsg,
		Attempt: se.RetryCount + 1,
	})
}

// MarkStageSkipped переводит stage в skipped.
func (r *Recorder) MarkStageSkipped(stageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if se := r.exec.Stage(stageID); se != nil {
		se.MarkSkipped()
	}
}

// MarkStageCancelled переводит stage в cancelled.
func (r *Recorder) MarkStageCancelled(stageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if se := r.exec.Stage(stageID); se != nil && !se.Status.IsTerminal() {
		se.MarkCancelled()
	}
}

// IncrementRetry увеличивает счётчик retry stage.
func (r *Recorder) IncrementRetry(stageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if se := r.exec.Stage(stageID); se != nil {
		se.RetryCount++
	}
}

// Log добавляет запись в лог execution и дублирует в slog.
func (r *Recorder) Log(level, stageID, message string) {
	r.mu.Lock()
	r.exec.Logs = append(r.exec.Logs, domain.LogEntry{
		Time:    time.Now(),
		Level:   level,
		StageID: stageID,
		Message: message,
	})
	r.mu.Unlock()

	attrs := []any{"execution_id", r.exec.ID, "stage_id", stageID}
	switch level {
	case "error":
		r.logger.Error(message, attrs...)
	case "warn":
		r.logger.Warn(message, attrs...)
	case "debug":
		r.logger.Debug(message, attrs...)
	default:
		r.logger.Info(message, attrs...)
	}
}

// RecordError добавляет запись в список ошибок без смены статуса stage.
func (r *Recorder) RecordError(stageID, kind, message string, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.exec.Errors = append(r.exec.Errors, domain.ErrorEntry{
		Time:    time.Now(),
		StageID: stageID,
		Kind:    kind,
		Message: message,
		Attempt: attempt,
	})
}

// ConditionEnv собирает срез состояния execution для вычисления условий.
// Предикаты видят только эти поля (sandbox языка условий).
func (r *Recorder) ConditionEnv() engine.ConditionInput {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[string]domain.ExecutionStatus, len(r.exec.Stages))
	retries := make(map[string]int, len(r.exec.Stages))
	for id, se := range r.exec.Stages {
		statuses[id] = se.Status
		retries[id] = se.RetryCount
	}

	return engine.ConditionInput{
		Status:        r.exec.Status,
		TriggeredBy:   r.exec.TriggeredBy,
		Environment:   r.exec.Context.Environment,
		Params:        r.exec.Context.Parameters,
		StageStatuses: statuses,
		RetryCounts:   retries,
	}
}

// Context возвращает контекст выполнения (разделяемый resource bag).
func (r *Recorder) Context() *domain.ExecutionContext {
	return r.exec.Context
}

// Snapshot возвращает список stages, зафиксированный при старте.
func (r *Recorder) Snapshot() []domain.Stage {
	return r.exec.Snapshot
}

// Finalize завершает execution: помечает незапущенные stages cancelled,
// ставит endTime и duration, агрегирует метрики и выставляет
// терминальный статус.
func (r *Recorder) Finalize(status domain.ExecutionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Ни одна запись stage не должна остаться в неоднозначном pending
	for _, se := range r.exec.Stages {
		if !se.Status.IsTerminal() {
			se.MarkCancelled()
		}
	}

	now := time.Now()
	r.exec.EndTime = &now
	r.exec.Duration = now.Sub(r.exec.StartTime)

	// Отмена, выставленная во время выполнения, не перетирается
	if r.exec.Status != domain.ExecutionStatusCancelled {
		r.exec.Status = status
	}

	r.exec.Metrics = aggregateMetrics(r.exec)
}

// Execution возвращает копию execution record для чтения.
//
// Слайсы логов/ошибок и записи stages копируются, чтобы читатель
// не гонялся с идущим выполнением.
func (r *Recorder) Execution() *domain.Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := *r.exec
	cp.Logs = append([]domain.LogEntry(nil), r.exec.Logs...)
	cp.Errors = append([]domain.ErrorEntry(nil), r.exec.Errors...)

	cp.Stages = make(map[string]*domain.StageExecution, len(r.exec.Stages))
	for id, se := range r.exec.Stages {
		seCopy := *se
		cp.Stages[id] = &seCopy
	}

	return &cp
}

// aggregateMetrics агрегирует per-stage метрики в ExecutionMetrics.
//
// Performance score стартует со 100 и убывает на 15 за каждую запись
// об ошибке, не опускаясь ниже нуля.
func aggregateMetrics(exec *domain.Execution) domain.ExecutionMetrics {
	m := domain.ExecutionMetrics{
		TotalStages: len(exec.Snapshot),
		ErrorCount:  len(exec.Errors),
	}

	for _, se := range exec.Stages {
		switch se.Status {
		case domain.ExecutionStatusCompleted:
			m.CompletedStages++
		case domain.ExecutionStatusFailed:
			m.FailedStages++
		case domain.ExecutionStatusSkipped:
			m.SkippedStages++
		}
		m.RecordsProcessed += se.Metrics.RecordsProcessed
		m.BytesProcessed += se.Metrics.BytesProcessed
	}

	score := 100.0 - 15.0*float64(m.ErrorCount)
	if score < 0 {
		score = 0
	}
	m.PerformanceScore = score

	return m
}
