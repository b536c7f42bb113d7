package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// ExecutePipeline обрабатывает POST /api/v1/pipelines/{id}/executions.
func (h *Handler) ExecutePipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	var req ExecuteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid JSON body: "+err.Error())
			return
		}
	}

	execCtx := domain.NewExecutionContext(req.Environment, req.Parameters)
	exec, err := h.orch.ExecutePipeline(id, "manual", execCtx)
	if err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	Created(w, ExecutionSummaryFromDomain(exec))
}

// ListPipelineExecutions обрабатывает GET /api/v1/pipelines/{id}/executions.
//
// Query-параметр limit ограничивает число записей (по умолчанию все).
func (h *Handler) ListPipelineExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pipelineID(w, r)
	if !ok {
		return
	}

	if _, err := h.orch.GetPipeline(id); err != nil {
		HandleError(w, h.logger, err, "pipeline not found")
		return
	}

	h.writeExecutionList(w, id, r.URL.Query().Get("limit"))
}

// ListExecutions обрабатывает GET /api/v1/executions.
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	h.writeExecutionList(w, uuid.Nil, r.URL.Query().Get("limit"))
}

func (h *Handler) writeExecutionList(w http.ResponseWriter, pipelineID uuid.UUID, rawLimit string) {
	limit := 0
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 0 {
			BadRequest(w, "invalid limit parameter")
			return
		}
		limit = n
	}

	execs := h.orch.ListExecutions(pipelineID, limit)

	out := make([]ExecutionSummary, 0, len(execs))
	for _, e := range execs {
		out = append(out, ExecutionSummaryFromDomain(e))
	}

	List(w, out, len(out))
}

// GetExecution обрабатывает GET /api/v1/executions/{id}.
// Возвращает полный execution: snapshot stages, логи и ошибки.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := h.executionID(w, r)
	if !ok {
		return
	}

	exec, err := h.orch.GetExecution(id)
	if err != nil {
		HandleError(w, h.logger, err, "execution not found")
		return
	}

	Success(w, ExecutionFromDomain(exec))
}

// CancelExecution обрабатывает POST /api/v1/executions/{id}/cancel.
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := h.executionID(w, r)
	if !ok {
		return
	}

	if err := h.orch.CancelExecution(id); err != nil {
		HandleError(w, h.logger, err, "execution not found")
		return
	}

	exec, err := h.orch.GetExecution(id)
	if err != nil {
		HandleError(w, h.logger, err, "execution not found")
		return
	}

	Success(w, ExecutionSummaryFromDomain(exec))
}

// InjectEvent обрабатывает POST /api/v1/events.
//
// Пробрасывает внешнее событие в event-триггеры. Тот же путь, что
// и у сообщений из очереди, но через HTTP: удобно для интеграций
// без брокера и для ручной проверки trigger guard'ов.
func (h *Handler) InjectEvent(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		InvalidState(w, "event triggers are not enabled")
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Event == "" {
		BadRequest(w, "event name is required")
		return
	}

	launched := h.sched.HandleEvent(req.Event, req.Payload)
	Success(w, EventResponse{Launched: launched})
}

// executionID разбирает {id} из пути запроса.
func (h *Handler) executionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return uuid.Nil, false
	}
	return id, true
}
