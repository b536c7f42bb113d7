package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/engine"
	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

// Runner выполняет отдельные stages.
//
// Runner:
//   - Проверяет enabled-флаг и условие запуска stage
//   - Находит handler по типу stage в Registry
//   - Гонит вызов handler'а против таймаута stage
//   - Реализует retry с exponential backoff (отменяемым)
//   - Пишет переходы статусов, логи и ошибки через Recorder
type Runner struct {
	registry *Registry
	logger   *slog.Logger
}

// Config — конфигурация Runner.
type Config struct {
	// Registry — реестр handlers (обязателен).
	Registry *Registry

	// Logger — logger (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Runner{
		registry: registry,
		logger:   logger,
	}
}

// Registry возвращает реестр handlers.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Outcome — итог выполнения одного stage.
type Outcome struct {
	// Status — терминальный статус stage:
	// completed, failed, skipped или cancelled.
	Status domain.ExecutionStatus

	// Err — терминальная ошибка (для failed).
	Err error

	// ErrKind — вид терминальной ошибки.
	ErrKind string
}

// Run выполняет один stage внутри execution.
//
// Переходами статуса StageExecution управляет только Run:
//   - disabled stage → skipped (info-лог, не ошибка)
//   - условие false → skipped
//   - ошибка вычисления условия → warning, условие считается false
//   - успех → completed, output и метрики записаны
//   - исчерпанные retry → failed, терминальная ошибка записана
//   - отмена execution → cancelled
func (r *Runner) Run(ctx context.Context, rec *tracker.Recorder, stage *domain.Stage) Outcome {
	if !stage.Enabled {
		rec.Log("info", stage.ID, "stage disabled, skipping")
		rec.MarkStageSkipped(stage.ID)
		return Outcome{Status: domain.ExecutionStatusSkipped}
	}

	proceed, err := engine.EvaluateCondition(stage.Condition, rec.ConditionEnv())
	if err != nil {
		// Ошибка вычисления условия — не ошибка stage
		rec.Log("warn", stage.ID, fmt.Sprintf("condition evaluation failed: %v", err))
		rec.RecordError(stage.ID, ErrorKindCondition, err.Error(), 0)
		proceed = false
	}
	if !proceed {
		rec.Log("info", stage.ID, "condition not met, skipping")
		rec.MarkStageSkipped(stage.ID)
		return Outcome{Status: domain.ExecutionStatusSkipped}
	}

	handler, err := r.registry.Get(stage.Type)
	if err != nil {
		rec.Log("error", stage.ID, err.Error())
		rec.MarkStageFailed(stage.ID, err.Error(), ErrorKindHandler)
		return Outcome{Status: domain.ExecutionStatusFailed, Err: err, ErrKind: ErrorKindHandler}
	}

	rec.MarkStageRunning(stage.ID)
	rec.Log("info", stage.ID, fmt.Sprintf("stage started (type=%s)", stage.Type))
	started := time.Now()

	result, runErr := r.runWithRetry(ctx, rec, stage, handler)

	if runErr == nil {
		metrics := domain.StageMetrics{
			DurationMs: time.Since(started).Milliseconds(),
		}
		var output map[string]any
		if result != nil {
			output = result.Output
			metrics.RecordsProcessed = result.RecordsProcessed
			metrics.BytesProcessed = result.BytesProcessed
		}
		rec.MarkStageCompleted(stage.ID, output, metrics)
		rec.Log("info", stage.ID, fmt.Sprintf("stage completed in %s", time.Since(started).Round(time.Millisecond)))
		return Outcome{Status: domain.ExecutionStatusCompleted}
	}

	if errors.Is(runErr, ErrStageCancelled) || errors.Is(runErr, context.Canceled) {
		rec.Log("info", stage.ID, "stage cancelled")
		rec.MarkStageCancelled(stage.ID)
		return Outcome{Status: domain.ExecutionStatusCancelled, Err: runErr}
	}

	kind := errorKind(runErr)
	rec.Log("error", stage.ID, fmt.Sprintf("stage failed: %v", runErr))
	rec.MarkStageFailed(stage.ID, runErr.Error(), kind)
	return Outcome{Status: domain.ExecutionStatusFailed, Err: runErr, ErrKind: kind}
}

// runWithRetry выполняет handler с retry согласно RetryPolicy stage.
//
// Для RetryPolicy с maxRetries = N handler вызывается ровно N+1 раз
// (если все попытки падают и все ошибки retryable).
func (r *Runner) runWithRetry(ctx context.Context, rec *tracker.Recorder, stage *domain.Stage, handler Handler) (*Result, error) {
	maxRetries := 0
	if stage.Retry != nil {
		maxRetries = stage.Retry.MaxRetries
	}

	var lastErr error

	for attempt := 1; ; attempt++ {
		result, err := r.invoke(ctx, rec, stage, handler)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrStageCancelled) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		lastErr = err
		kind := errorKind(err)

		// Retry только если лимит не исчерпан и вид ошибки в allow-list
		if attempt > maxRetries || (stage.Retry != nil && !stage.Retry.Retryable(kind)) {
			break
		}

		delay := stage.Retry.Delay(attempt)
		rec.IncrementRetry(stage.ID)
		rec.Log("warn", stage.ID,
			fmt.Sprintf("attempt %d failed (%s), retrying in %s: %v", attempt, kind, delay, err))

		// Backoff не должен блокировать неотменяемо
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrStageCancelled, ctx.Err())
		}
	}

	if maxRetries > 0 {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, rec.StageRetryCount(stage.ID)+1, lastErr)
	}
	return nil, lastErr
}

// invokeResult — результат одного вызова handler'а.
type invokeResult struct {
	result *Result
	err    error
}

// invoke вызывает handler, гоня его против таймаута stage.
//
// Таймаут и отмена компонуются: runCtx наследует внешний ctx,
// поэтому отмена execution наблюдается и без срабатывания таймаута.
// Handler, переживший таймаут, дорабатывает в фоне, но его результат
// не используется.
func (r *Runner) invoke(ctx context.Context, rec *tracker.Recorder, stage *domain.Stage, handler Handler) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, stage.Timeout())
	defer cancel()

	done := make(chan invokeResult, 1)
	go func() {
		result, err := handler.Execute(runCtx, rec.Context(), stage.Config)
		done <- invokeResult{result: result, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			// Таймаут, пойманный самим handler'ом
			if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("%w after %s", ErrStageTimeout, stage.Timeout())
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrStageCancelled, ctx.Err())
			}
			return nil, res.err
		}
		return res.result, nil

	case <-runCtx.Done():
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrStageCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w after %s", ErrStageTimeout, stage.Timeout())
	}
}
