package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики движка. Регистрируются в default registry
// и экспортируются через promhttp на /metrics.
var (
	// ExecutionsStarted — количество запущенных executions по источнику запуска.
	ExecutionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_executions_started_total",
		Help: "Total pipeline executions started, by trigger source",
	}, []string{"triggered_by"})

	// ExecutionsFinished — количество завершённых executions по статусу.
	ExecutionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_executions_finished_total",
		Help: "Total pipeline executions finished, by terminal status",
	}, []string{"status"})

	// ExecutionDuration — длительность executions в секундах.
	ExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_execution_duration_seconds",
		Help:    "Pipeline execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// StagesFinished — количество завершённых stages по типу и статусу.
	StagesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stages_finished_total",
		Help: "Total pipeline stages finished, by stage type and terminal status",
	}, []string{"stage_type", "status"})

	// StageRetries — количество выполненных повторов stages.
	StageRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_stage_retries_total",
		Help: "Total stage retry attempts",
	})

	// ExecutionsRunning — количество executions, идущих прямо сейчас.
	ExecutionsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_executions_running",
		Help: "Number of pipeline executions currently running",
	})

	// ScheduledTriggersSkipped — срабатывания расписания, пропущенные
	// из-за ещё идущего execution.
	ScheduledTriggersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_scheduled_triggers_skipped_total",
		Help: "Scheduled triggers skipped because a previous execution was still running",
	})
)
