package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/store"
)

// Pipeline DTOs

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Stages      []domain.Stage        `json:"stages"`
	Config      domain.PipelineConfig `json:"config"`
	Schedule    *domain.Schedule      `json:"schedule,omitempty"`
}

// UpdatePipelineRequest — запрос на обновление pipeline.
type UpdatePipelineRequest struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	Stages      []domain.Stage         `json:"stages,omitempty"`
	Config      *domain.PipelineConfig `json:"config,omitempty"`
	Schedule    *domain.Schedule       `json:"schedule,omitempty"`
}

// SetStatusRequest — запрос на переход статуса pipeline.
type SetStatusRequest struct {
	Status domain.PipelineStatus `json:"status"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID          uuid.UUID             `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Version     int                   `json:"version"`
	Status      domain.PipelineStatus `json:"status"`
	Stages      []domain.Stage        `json:"stages"`
	Config      domain.PipelineConfig `json:"config"`
	Schedule    *domain.Schedule      `json:"schedule,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p *domain.Pipeline) PipelineResponse {
	return PipelineResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Version:     p.Version,
		Status:      p.Status,
		Stages:      p.Stages,
		Config:      p.Config,
		Schedule:    p.Schedule,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Execution DTOs

// ExecuteRequest — запрос на запуск pipeline.
type ExecuteRequest struct {
	Environment string         `json:"environment,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ExecutionSummary — краткий ответ с execution (для списков).
type ExecutionSummary struct {
	ID              uuid.UUID               `json:"id"`
	PipelineID      uuid.UUID               `json:"pipeline_id"`
	PipelineVersion int                     `json:"pipeline_version"`
	Status          domain.ExecutionStatus  `json:"status"`
	TriggeredBy     string                  `json:"triggered_by"`
	StartTime       time.Time               `json:"start_time"`
	EndTime         *time.Time              `json:"end_time,omitempty"`
	DurationMs      int64                   `json:"duration_ms"`
	Metrics         domain.ExecutionMetrics `json:"metrics"`
}

// ExecutionResponse — полный ответ с execution.
type ExecutionResponse struct {
	ExecutionSummary

	Stages map[string]*domain.StageExecution `json:"stages"`
	Logs   []domain.LogEntry                 `json:"logs,omitempty"`
	Errors []domain.ErrorEntry               `json:"errors,omitempty"`
}

// ExecutionSummaryFromDomain конвертирует domain.Execution в ExecutionSummary.
func ExecutionSummaryFromDomain(e *domain.Execution) ExecutionSummary {
	return ExecutionSummary{
		ID:              e.ID,
		PipelineID:      e.PipelineID,
		PipelineVersion: e.PipelineVersion,
		Status:          e.Status,
		TriggeredBy:     e.TriggeredBy,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		DurationMs:      e.Duration.Milliseconds(),
		Metrics:         e.Metrics,
	}
}

// ExecutionFromDomain конвертирует domain.Execution в ExecutionResponse.
func ExecutionFromDomain(e *domain.Execution) ExecutionResponse {
	return ExecutionResponse{
		ExecutionSummary: ExecutionSummaryFromDomain(e),
		Stages:           e.Stages,
		Logs:             e.Logs,
		Errors:           e.Errors,
	}
}

// StatsResponse — ответ со статистикой pipeline.
type StatsResponse struct {
	store.PipelineStats
}

// Event DTOs

// EventRequest — внешнее событие для event-триггеров.
type EventRequest struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload,omitempty"`
}

// EventResponse — результат обработки события.
type EventResponse struct {
	Launched int `json:"launched"`
}
