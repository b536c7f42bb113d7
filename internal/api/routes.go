package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("PUT /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.UpdatePipeline)))
	mux.Handle("DELETE /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.DeletePipeline)))
	mux.Handle("POST /api/v1/pipelines/{id}/status", chain(http.HandlerFunc(h.SetPipelineStatus)))
	mux.Handle("GET /api/v1/pipelines/{id}/stats", chain(http.HandlerFunc(h.GetPipelineStats)))
	mux.Handle("GET /api/v1/pipelines/{id}/schedule", chain(http.HandlerFunc(h.GetPipelineSchedule)))

	// Executions
	mux.Handle("POST /api/v1/pipelines/{id}/executions", chain(http.HandlerFunc(h.ExecutePipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}/executions", chain(http.HandlerFunc(h.ListPipelineExecutions)))
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))
	mux.Handle("POST /api/v1/executions/{id}/cancel", chain(http.HandlerFunc(h.CancelExecution)))

	// Events
	mux.Handle("POST /api/v1/events", chain(http.HandlerFunc(h.InjectEvent)))
	mux.Handle("GET /api/v1/events/ws", http.HandlerFunc(h.StreamEvents))
}
