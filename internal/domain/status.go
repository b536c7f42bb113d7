package domain

// PipelineStatus — статус жизненного цикла pipeline.
//
// Жизненный цикл:
//
//	draft → active ⇄ paused → stopped
//	        active → error (при невосстановимой ошибке расписания)
//	error/stopped → active (явная реактивация с повторной валидацией расписания)
type PipelineStatus string

const (
	// PipelineStatusDraft — pipeline создан, но ещё не активирован.
	PipelineStatusDraft PipelineStatus = "draft"

	// PipelineStatusActive — pipeline активен, расписание работает.
	PipelineStatusActive PipelineStatus = "active"

	// PipelineStatusPaused — расписание приостановлено, ручной запуск доступен.
	PipelineStatusPaused PipelineStatus = "paused"

	// PipelineStatusStopped — pipeline остановлен, таймеры и listeners сняты.
	PipelineStatusStopped PipelineStatus = "stopped"

	// PipelineStatusError — расписание упало с невосстановимой ошибкой.
	PipelineStatusError PipelineStatus = "error"

	// PipelineStatusCompleted — одноразовый pipeline завершил работу.
	PipelineStatusCompleted PipelineStatus = "completed"
)

// ExecutionStatus — статус выполнения execution или отдельного stage.
//
// Жизненный цикл execution:
//
//	pending → running → completed
//	                  ↘ failed
//	          (или) → cancelled (из pending или running)
//
// Для stage дополнительно возможен skipped — stage выключен
// или его условие запуска не выполнено.
type ExecutionStatus string

const (
	// ExecutionStatusPending — создан, ещё не начал выполняться.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning — в процессе выполнения.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusCompleted — успешно завершён.
	ExecutionStatusCompleted ExecutionStatus = "completed"

	// ExecutionStatusFailed — завершён с ошибкой.
	ExecutionStatusFailed ExecutionStatus = "failed"

	// ExecutionStatusCancelled — отменён пользователем или политикой stop.
	ExecutionStatusCancelled ExecutionStatus = "cancelled"

	// ExecutionStatusPaused — приостановлен (зарезервировано для ручной паузы).
	ExecutionStatusPaused ExecutionStatus = "paused"

	// ExecutionStatusSkipped — stage пропущен (disabled или условие false).
	// Применяется только к StageExecution, не к Execution целиком.
	ExecutionStatusSkipped ExecutionStatus = "skipped"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed,
		ExecutionStatusCancelled, ExecutionStatusSkipped:
		return true
	default:
		return false
	}
}

// IsValid возвращает true, если статус является известным значением.
func (s PipelineStatus) IsValid() bool {
	switch s {
	case PipelineStatusDraft, PipelineStatusActive, PipelineStatusPaused,
		PipelineStatusStopped, PipelineStatusError, PipelineStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransition проверяет допустимость перехода статуса pipeline.
func (s PipelineStatus) CanTransition(target PipelineStatus) bool {
	switch s {
	case PipelineStatusDraft:
		return target == PipelineStatusActive || target == PipelineStatusStopped
	case PipelineStatusActive:
		return target == PipelineStatusPaused || target == PipelineStatusStopped ||
			target == PipelineStatusError || target == PipelineStatusCompleted
	case PipelineStatusPaused:
		return target == PipelineStatusActive || target == PipelineStatusStopped
	case PipelineStatusStopped, PipelineStatusError:
		return target == PipelineStatusActive
	case PipelineStatusCompleted:
		return target == PipelineStatusActive
	default:
		return false
	}
}
