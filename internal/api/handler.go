package api

import (
	"log/slog"

	"github.com/daninithi/alphintra-pipelines/internal/orchestrator"
	"github.com/daninithi/alphintra-pipelines/internal/scheduler"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orch   *orchestrator.Orchestrator
	sched  *scheduler.Scheduler
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		orch:   cfg.Orchestrator,
		sched:  cfg.Scheduler,
		logger: logger,
	}
}
