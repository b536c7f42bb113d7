package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// ListPipelines обрабатывает GET /api/v1/pipelines.
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines := h.orch.ListPipelines()

	out := make([]PipelineResponse, 0, len(pipelines))
	for _, p := range pipelines {
		out = append(out, PipelineFromDomain(p))
	}

	List(w, out, len(out))
}

// CreatePipeline обрабатывает POST /api/v1/pipelines.
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	p := &domain.Pipeline{
		Name:        req.Name,
		Description: req.Description,
		Stages:      req.Stages,
		Config:      req.Config,
		Schedule:    req.Schedule,
	}

	if err := h.orch.CreatePipeline(p); err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	Created(w, PipelineFromDomain(p))
}

// GetPipeline обрабатывает GET /api/v1/pipelines/{id}.
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	p, err := h.orch.GetPipeline(id)
	if err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	Success(w, PipelineFromDomain(p))
}

// UpdatePipeline обрабатывает PUT /api/v1/pipelines/{id}.
//
// Частичное обновление: не переданные поля остаются как были.
// Версия pipeline поднимается, идущие executions не затрагиваются.
func (h *Handler) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	var req UpdatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	p, err := h.orch.GetPipeline(id)
	if err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Stages != nil {
		p.Stages = req.Stages
	}
	if req.Config != nil {
		p.Config = *req.Config
	}
	if req.Schedule != nil {
		p.Schedule = req.Schedule
	}

	if err := h.orch.UpdatePipeline(p); err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	Success(w, PipelineFromDomain(p))
}

// DeletePipeline обрабатывает DELETE /api/v1/pipelines/{id}.
func (h *Handler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	if err := h.orch.DeletePipeline(id); err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	NoContent(w)
}

// SetPipelineStatus обрабатывает POST /api/v1/pipelines/{id}/status.
func (h *Handler) SetPipelineStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if !req.Status.IsValid() {
		BadRequest(w, "unknown pipeline status: "+string(req.Status))
		return
	}

	if err := h.orch.SetPipelineStatus(id, req.Status); err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	p, err := h.orch.GetPipeline(id)
	if err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	Success(w, PipelineFromDomain(p))
}

// GetPipelineStats обрабатывает GET /api/v1/pipelines/{id}/stats.
func (h *Handler) GetPipelineStats(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	stats, err := h.orch.GetPipelineStats(id)
	if err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	Success(w, StatsResponse{PipelineStats: stats})
}

// GetPipelineSchedule обрабатывает GET /api/v1/pipelines/{id}/schedule.
// Возвращает расписание с runtime-bookkeeping (next_run, last_run),
// если pipeline сейчас стоит в планировщике.
func (h *Handler) GetPipelineSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	p, err := h.orch.GetPipeline(id)
	if err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	if h.sched != nil {
		if sched, scheduled := h.sched.Schedule(id); scheduled {
			Success(w, sched)
			return
		}
	}
	if p.Schedule == nil {
		NotFound(w, "pipeline has no schedule")
		return
	}

	Success(w, p.Schedule)
}

// pipelineID разбирает {id} из пути запроса.
func (h *Handler) pipelineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return uuid.Nil, false
	}
	return id, true
}
