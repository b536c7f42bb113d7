package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Execution — один запуск pipeline.
//
// Execution создаётся когда:
// - Пользователь запускает pipeline вручную (API/CLI)
// - Scheduler срабатывает по interval/cron
// - Внешнее событие проходит trigger guard
//
// Execution снимает snapshot списка stages на момент запуска:
// последующая правка pipeline не меняет уже идущий execution.
// Мутирует execution только движок и stage runner, ведущие этот запуск.
type Execution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// PipelineID — ссылка на pipeline (weak reference: удаление pipeline
	// сначала отменяет живые executions).
	PipelineID uuid.UUID `json:"pipeline_id"`

	// PipelineVersion — версия определения, против которой шёл запуск.
	PipelineVersion int `json:"pipeline_version"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// TriggeredBy — источник запуска: "manual", "scheduled", "event".
	TriggeredBy string `json:"triggered_by"`

	// Snapshot — разрешённый (топологически отсортированный) список stages
	// на момент старта. Используется весь жизненный цикл execution.
	Snapshot []Stage `json:"snapshot"`

	// Stages — StageExecution для каждого stage из Snapshot.
	// Создаются в pending при создании execution.
	Stages map[string]*StageExecution `json:"stages"`

	// StartTime — время начала.
	StartTime time.Time `json:"start_time"`

	// EndTime — время завершения. Nil, пока execution идёт.
	EndTime *time.Time `json:"end_time,omitempty"`

	// Duration — длительность (заполняется при финализации).
	Duration time.Duration `json:"duration"`

	// Metrics — агрегированные метрики (заполняются при финализации).
	Metrics ExecutionMetrics `json:"metrics"`

	// Logs — append-only лог выполнения, упорядочен по времени записи.
	Logs []LogEntry `json:"logs"`

	// Errors — append-only список ошибок.
	Errors []ErrorEntry `json:"errors"`

	// Context — окружение, параметры и resource bag, разделяемый stages.
	Context *ExecutionContext `json:"context"`
}

// NewExecution создаёт execution для snapshot'а stages:
// StageExecution в pending для каждого stage.
func NewExecution(pipelineID uuid.UUID, version int, snapshot []Stage, triggeredBy string, execCtx *ExecutionContext) *Execution {
	if execCtx == nil {
		execCtx = NewExecutionContext("", nil)
	}

	stages := make(map[string]*StageExecution, len(snapshot))
	for i := range snapshot {
		stages[snapshot[i].ID] = &StageExecution{
			StageID: snapshot[i].ID,
			Status:  ExecutionStatusPending,
		}
	}

	return &Execution{
		ID:              uuid.New(),
		PipelineID:      pipelineID,
		PipelineVersion: version,
		Status:          ExecutionStatusPending,
		TriggeredBy:     triggeredBy,
		Snapshot:        snapshot,
		Stages:          stages,
		StartTime:       time.Now(),
		Context:         execCtx,
	}
}

// Stage возвращает StageExecution по ID stage.
func (e *Execution) Stage(stageID string) *StageExecution {
	return e.Stages[stageID]
}

// IsFinished возвращает true, если execution завершён.
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// StageExecution — состояние одного stage внутри execution.
//
// Переходами статуса управляет исключительно stage runner.
type StageExecution struct {
	// StageID — ID stage из snapshot.
	StageID string `json:"stage_id"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// StartTime — время начала выполнения.
	StartTime *time.Time `json:"start_time,omitempty"`

	// EndTime — время завершения.
	EndTime *time.Time `json:"end_time,omitempty"`

	// RetryCount — количество выполненных повторов.
	RetryCount int `json:"retry_count"`

	// Output — результат handler'а при успехе.
	Output map[string]any `json:"output,omitempty"`

	// Error — текст последней ошибки.
	Error string `json:"error,omitempty"`

	// ErrorKind — вид последней ошибки (timeout, handler_error, ...).
	ErrorKind string `json:"error_kind,omitempty"`

	// Metrics — метрики stage.
	Metrics StageMetrics `json:"metrics"`
}

// MarkRunning переводит stage в running.
func (s *StageExecution) MarkRunning() {
	now := time.Now()
	s.Status = ExecutionStatusRunning
	s.StartTime = &now
}

// MarkCompleted переводит stage в completed с результатом.
func (s *StageExecution) MarkCompleted(output map[string]any, metrics StageMetrics) {
	now := time.Now()
	s.Status = ExecutionStatusCompleted
	s.EndTime = &now
	s.Output = output
	s.Metrics = metrics
	s.Error = ""
	s.ErrorKind = ""
}

// MarkFailed переводит stage в failed с терминальной ошибкой.
func (s *StageExecution) MarkFailed(errMsg, kind string) {
	now := time.Now()
	s.Status = ExecutionStatusFailed
	s.EndTime = &now
	s.Error = errMsg
	s.ErrorKind = kind
	if s.StartTime != nil {
		s.Metrics.DurationMs = now.Sub(*s.StartTime).Milliseconds()
	}
}

// MarkSkipped переводит stage в skipped.
func (s *StageExecution) MarkSkipped() {
	now := time.Now()
	s.Status = ExecutionStatusSkipped
	s.EndTime = &now
}

// MarkCancelled переводит stage в cancelled.
// Применяется к незапущенным stages при остановке execution,
// чтобы ни одна запись не осталась в неоднозначном pending.
func (s *StageExecution) MarkCancelled() {
	now := time.Now()
	s.Status = ExecutionStatusCancelled
	s.EndTime = &now
}

// StageMetrics — метрики выполнения одного stage.
//
// Длительность заполняется runner'ом всегда; throughput-поля
// опциональны и приходят от handler'а.
type StageMetrics struct {
	// DurationMs — время выполнения в миллисекундах.
	DurationMs int64 `json:"duration_ms"`

	// RecordsProcessed — количество обработанных записей.
	RecordsProcessed int64 `json:"records_processed,omitempty"`

	// BytesProcessed — объём обработанных данных.
	BytesProcessed int64 `json:"bytes_processed,omitempty"`
}

// ExecutionMetrics — агрегированные метрики execution.
type ExecutionMetrics struct {
	// TotalStages — общее количество stages в snapshot.
	TotalStages int `json:"total_stages"`

	// CompletedStages — количество успешно завершённых.
	CompletedStages int `json:"completed_stages"`

	// FailedStages — количество упавших.
	FailedStages int `json:"failed_stages"`

	// SkippedStages — количество пропущенных.
	SkippedStages int `json:"skipped_stages"`

	// RecordsProcessed — сумма записей по всем stages.
	RecordsProcessed int64 `json:"records_processed"`

	// BytesProcessed — сумма байтов по всем stages.
	BytesProcessed int64 `json:"bytes_processed"`

	// ErrorCount — количество записей в Errors.
	ErrorCount int `json:"error_count"`

	// PerformanceScore — 0..100, убывает с количеством ошибок.
	PerformanceScore float64 `json:"performance_score"`
}

// LogEntry — запись структурированного лога execution.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	StageID string    `json:"stage_id,omitempty"`
	Message string    `json:"message"`
}

// ErrorEntry — запись об ошибке execution.
type ErrorEntry struct {
	Time    time.Time `json:"time"`
	StageID string    `json:"stage_id,omitempty"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Attempt int       `json:"attempt,omitempty"`
}

// ExecutionContext — окружение одного запуска.
//
// Resources — единственное состояние, разделяемое между stages одного
// execution. Ключи определяются handler'ами; при параллельном выполнении
// конкурентная запись одного ключа — ответственность вызывающего.
// Namespaced-доступ через Resource(stageID, key) — точка расширения
// для будущего race-free варианта.
type ExecutionContext struct {
	// Environment — окружение запуска ("prod", "backtest", ...).
	Environment string `json:"environment,omitempty"`

	// Parameters — параметры запуска (read-only для stages).
	Parameters map[string]any `json:"parameters,omitempty"`

	// Resources — разделяемый resource bag.
	Resources map[string]any `json:"resources,omitempty"`

	mu sync.RWMutex
}

// NewExecutionContext создаёт контекст запуска.
func NewExecutionContext(environment string, params map[string]any) *ExecutionContext {
	if params == nil {
		params = make(map[string]any)
	}
	return &ExecutionContext{
		Environment: environment,
		Parameters:  params,
		Resources:   make(map[string]any),
	}
}

// Param возвращает параметр запуска.
func (c *ExecutionContext) Param(key string) (any, bool) {
	v, ok := c.Parameters[key]
	return v, ok
}

// SetResource записывает значение в resource bag.
func (c *ExecutionContext) SetResource(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resources[key] = value
}

// GetResource читает значение из resource bag.
func (c *ExecutionContext) GetResource(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.Resources[key]
	return v, ok
}

// Resource читает значение по namespaced-ключу "stageID.key".
func (c *ExecutionContext) Resource(stageID, key string) (any, bool) {
	return c.GetResource(stageID + "." + key)
}

// SetStageResource записывает значение по namespaced-ключу "stageID.key".
func (c *ExecutionContext) SetStageResource(stageID, key string, value any) {
	c.SetResource(stageID+"."+key, value)
}
