package orchestrator

import (
	"context"
	"time"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/runner"
	"github.com/daninithi/alphintra-pipelines/internal/telemetry"
	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

// runExecution выполняет execution до терминального статуса.
//
// Порядок stages уже разрешён (snapshot отсортирован топологически).
// Режим выбирается конфигурацией pipeline: последовательный или
// параллельный с ограничением maxConcurrentStages.
func (o *Orchestrator) runExecution(ctx context.Context, p *domain.Pipeline, rec *tracker.Recorder) {
	if rec.Cancelled() {
		o.finalize(p, rec)
		return
	}

	rec.MarkRunning()
	rec.Log("info", "", "execution started")

	if p.Config.EnableMetrics {
		telemetry.ExecutionsStarted.WithLabelValues(rec.Execution().TriggeredBy).Inc()
		telemetry.ExecutionsRunning.Inc()
		defer telemetry.ExecutionsRunning.Dec()
	}

	if p.Config.ParallelExecution {
		o.runParallel(ctx, p, rec)
	} else {
		o.runSequential(ctx, p, rec)
	}

	o.finalize(p, rec)
}

// runSequential выполняет stages по одному в разрешённом порядке.
//
// Политика ошибок применяется после каждого stage:
//   - stop: оставшиеся stages помечаются cancelled, execution прерывается
//   - continue: выполнение продолжается
//   - retry: повторы уже исчерпаны runner'ом, на уровне движка
//     эквивалентно continue
func (o *Orchestrator) runSequential(ctx context.Context, p *domain.Pipeline, rec *tracker.Recorder) {
	snapshot := rec.Snapshot()

	for i := range snapshot {
		// Safe point: отмена наблюдается в начале каждой итерации
		if rec.Cancelled() || ctx.Err() != nil {
			return
		}

		stage := &snapshot[i]
		outcome := o.runner.Run(ctx, rec, stage)
		o.recordStageOutcome(p, rec, stage, outcome)

		if outcome.Status == domain.ExecutionStatusFailed &&
			p.Config.ErrorHandling == domain.ErrorPolicyStop {
			rec.Log("warn", "", "stopping execution: stage "+stage.ID+" failed")
			for j := i + 1; j < len(snapshot); j++ {
				rec.MarkStageCancelled(snapshot[j].ID)
			}
			return
		}
	}
}

// stageResult — итог одного stage в параллельном режиме.
type stageResult struct {
	stage   *domain.Stage
	outcome runner.Outcome
}

// runParallel выполняет независимые stages параллельными волнами.
//
// Цикл: допустить к запуску все stages, чьи зависимости удовлетворены,
// в пределах бюджета maxConcurrentStages; дождаться первого завершения;
// пересканировать. Running set никогда не превышает лимит, а
// разблокированный stage стартует как только освободился слот.
//
// После падения stage при политике stop новые stages не допускаются;
// уже идущие дорабатывают, их результаты записываются. Недопущенные
// stages остаются pending и помечаются cancelled при финализации.
func (o *Orchestrator) runParallel(ctx context.Context, p *domain.Pipeline, rec *tracker.Recorder) {
	snapshot := rec.Snapshot()
	limit := p.Config.MaxConcurrentStages
	policy := p.Config.ErrorHandling

	results := make(chan stageResult, len(snapshot))
	started := make(map[string]bool, len(snapshot))
	running := 0
	stopAdmitting := false

	for {
		// Safe point: отмена наблюдается перед каждым сканом
		if rec.Cancelled() || ctx.Err() != nil {
			stopAdmitting = true
		}

		if !stopAdmitting {
			for i := range snapshot {
				if running >= limit {
					break
				}
				stage := &snapshot[i]
				if started[stage.ID] || !o.depsSatisfied(rec, stage, policy) {
					continue
				}

				started[stage.ID] = true
				running++
				go func(st *domain.Stage) {
					results <- stageResult{stage: st, outcome: o.runner.Run(ctx, rec, st)}
				}(stage)
			}
		}

		// Ничего не идёт и нечего допускать: либо все stages
		// завершены, либо оставшиеся заблокированы упавшей
		// зависимостью — их пометит финализация
		if running == 0 {
			return
		}

		res := <-results
		running--
		o.recordStageOutcome(p, rec, res.stage, res.outcome)

		if res.outcome.Status == domain.ExecutionStatusFailed && policy == domain.ErrorPolicyStop {
			rec.Log("warn", "", "stopping execution: stage "+res.stage.ID+" failed")
			stopAdmitting = true
		}
	}
}

// depsSatisfied проверяет готовность зависимостей stage.
//
// Зависимость удовлетворена, если она completed или skipped.
// При политике continue/retry любой терминальный статус зависимости
// разблокирует stage (его собственное условие решает, выполняться ли).
func (o *Orchestrator) depsSatisfied(rec *tracker.Recorder, stage *domain.Stage, policy domain.ErrorPolicy) bool {
	for _, depID := range stage.DependsOn {
		switch rec.StageStatus(depID) {
		case domain.ExecutionStatusCompleted, domain.ExecutionStatusSkipped:
		case domain.ExecutionStatusFailed, domain.ExecutionStatusCancelled:
			if policy == domain.ErrorPolicyStop {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// recordStageOutcome пишет per-stage телеметрию.
func (o *Orchestrator) recordStageOutcome(p *domain.Pipeline, rec *tracker.Recorder, stage *domain.Stage, outcome runner.Outcome) {
	if !p.Config.EnableMetrics {
		return
	}
	telemetry.StagesFinished.WithLabelValues(string(stage.Type), string(outcome.Status)).Inc()
	if retries := rec.StageRetryCount(stage.ID); retries > 0 {
		telemetry.StageRetries.Add(float64(retries))
	}
}

// finalize завершает execution: терминальный статус, агрегация метрик,
// терминальное событие, критический alert при падении.
func (o *Orchestrator) finalize(p *domain.Pipeline, rec *tracker.Recorder) {
	status := o.terminalStatus(rec)
	rec.Finalize(status)

	exec := rec.Execution()
	rec.Log("info", "", "execution finished: "+string(exec.Status))

	if p.Config.EnableMetrics {
		telemetry.ExecutionsFinished.WithLabelValues(string(exec.Status)).Inc()
		telemetry.ExecutionDuration.Observe(exec.Duration.Seconds())
	}

	o.bus.Publish(tracker.Event{
		Type:        terminalEventType(exec.Status),
		PipelineID:  exec.PipelineID,
		ExecutionID: exec.ID,
		Time:        time.Now(),
		Data: map[string]any{
			"status":      string(exec.Status),
			"duration_ms": exec.Duration.Milliseconds(),
			"failed":      exec.Metrics.FailedStages,
		},
	})

	if exec.Status == domain.ExecutionStatusFailed && p.Config.EnableAlerts {
		o.notifier.AlertCritical(
			"pipeline execution failed",
			"pipeline "+p.Name+" execution failed",
			"orchestrator",
			map[string]any{
				"pipeline_id":   exec.PipelineID.String(),
				"execution_id":  exec.ID.String(),
				"failed_stages": exec.Metrics.FailedStages,
				"error_count":   exec.Metrics.ErrorCount,
			},
		)
	}
}

// terminalStatus выводит терминальный статус execution из статусов stages.
//
// Отмена побеждает; упавший stage при любой политике означает failed
// (политика continue доводит остальные stages, но не делает запуск
// успешным); иначе completed.
func (o *Orchestrator) terminalStatus(rec *tracker.Recorder) domain.ExecutionStatus {
	if rec.Cancelled() {
		return domain.ExecutionStatusCancelled
	}
	for _, st := range rec.Snapshot() {
		if rec.StageStatus(st.ID) == domain.ExecutionStatusFailed {
			return domain.ExecutionStatusFailed
		}
	}
	return domain.ExecutionStatusCompleted
}

// terminalEventType сопоставляет терминальному статусу тип события.
func terminalEventType(status domain.ExecutionStatus) tracker.EventType {
	switch status {
	case domain.ExecutionStatusFailed:
		return tracker.EventExecutionFailed
	case domain.ExecutionStatusCancelled:
		return tracker.EventExecutionCancelled
	default:
		return tracker.EventExecutionCompleted
	}
}
