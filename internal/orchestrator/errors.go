package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrPipelineStopped — запуск невозможен: pipeline остановлен.
	ErrPipelineStopped = errors.New("pipeline is stopped")

	// ErrInvalidTransition — недопустимый переход статуса pipeline.
	ErrInvalidTransition = errors.New("invalid pipeline status transition")

	// ErrExecutionFinished — execution уже завершён.
	ErrExecutionFinished = errors.New("execution already finished")

	// ErrExecutionRunning — у pipeline уже есть идущий execution.
	ErrExecutionRunning = errors.New("pipeline has a running execution")

	// ErrStopped — оркестратор остановлен и не принимает новые запуски.
	ErrStopped = errors.New("orchestrator is stopped")
)
