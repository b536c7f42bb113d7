// Pipeline API — сервис оркестрации торговых data-pipelines.
//
// Поднимает in-memory оркестратор со scheduler'ом, HTTP API для
// управления pipelines/executions, prometheus-метрики на /metrics
// и (опционально) приём trigger-событий из RabbitMQ.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daninithi/alphintra-pipelines/internal/alert"
	"github.com/daninithi/alphintra-pipelines/internal/api"
	"github.com/daninithi/alphintra-pipelines/internal/config"
	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/events"
	"github.com/daninithi/alphintra-pipelines/internal/orchestrator"
	"github.com/daninithi/alphintra-pipelines/internal/runner"
	"github.com/daninithi/alphintra-pipelines/internal/scheduler"
	"github.com/daninithi/alphintra-pipelines/internal/store"
	"github.com/daninithi/alphintra-pipelines/internal/telemetry"
	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting pipeline-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Реестр handlers: встроенные simulation handlers для всех
	// известных типов stage.
	registry := runner.NewRegistry()
	runner.RegisterBuiltin(registry, logger)

	stageRunner := runner.New(runner.Config{
		Registry: registry,
		Logger:   logger,
	})

	bus := tracker.NewBus(logger)
	notifier := alert.NewLogNotifier(logger)

	pipelines := store.NewPipelineStore()
	executions := store.NewExecutionStore(store.ExecutionStoreConfig{
		Retention: cfg.Engine.ExecutionRetention,
	})

	orch := orchestrator.New(orchestrator.Config{
		Pipelines:               pipelines,
		Executions:              executions,
		Runner:                  stageRunner,
		Bus:                     bus,
		Notifier:                notifier,
		MaxConcurrentExecutions: cfg.Engine.MaxConcurrentExecutions,
		Logger:                  logger,
	})

	sched := scheduler.New(scheduler.Config{
		Launcher: orch,
		Notifier: notifier,
		// Неустранимая ошибка расписания переводит pipeline в error.
		OnScheduleError: func(pipelineID uuid.UUID, schedErr error) {
			if err := orch.SetPipelineStatus(pipelineID, domain.PipelineStatusError); err != nil {
				logger.Error("failed to mark pipeline as errored",
					"pipeline_id", pipelineID, "error", err)
			}
		},
		Logger: logger,
	})
	orch.SetScheduler(sched)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	orch.Start(ctx)

	// RabbitMQ: внешние trigger-события и трансляция lifecycle-событий
	var amqpConn *events.Connection
	var source *events.Source
	if cfg.AMQP.Enabled {
		amqpConn, err = events.NewConnection(cfg.AMQP.URL, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		if err := events.SetupTopology(amqpConn); err != nil {
			logger.Error("failed to setup RabbitMQ topology", "error", err)
			os.Exit(1)
		}

		source = events.NewSource(events.SourceConfig{
			Conn:     amqpConn,
			Sink:     sched,
			Prefetch: cfg.AMQP.Prefetch,
			Logger:   logger,
		})
		go func() {
			if err := source.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("trigger source stopped", "error", err)
			}
		}()

		relay := events.NewRelay(amqpConn, bus, logger)
		go func() {
			if err := relay.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("event relay stopped", "error", err)
			}
		}()

		logger.Info("connected to RabbitMQ")
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Orchestrator: orch,
		Scheduler:    sched,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Останавливаем в обратном порядке: сначала источники новых
	// запусков, затем оркестратор с живыми executions.
	sched.Stop()
	if source != nil {
		source.Stop()
	}
	orch.Stop()
	if amqpConn != nil {
		amqpConn.Close()
	}

	logger.Info("stopped")
}
