package engine

import (
	"errors"
	"fmt"
)

// Ошибки валидации определения pipeline.
var (
	// ErrEmptyPipelineName — pipeline не имеет имени.
	ErrEmptyPipelineName = errors.New("pipeline has empty name")

	// ErrEmptyStages — pipeline не содержит stages.
	ErrEmptyStages = errors.New("pipeline has no stages")

	// ErrEmptyStageID — stage не имеет ID.
	ErrEmptyStageID = errors.New("stage has empty ID")

	// ErrDuplicateStageID — несколько stages с одинаковым ID.
	ErrDuplicateStageID = errors.New("duplicate stage ID")

	// ErrUnknownStageType — для типа stage нет зарегистрированного handler'а.
	ErrUnknownStageType = errors.New("unknown stage type")

	// ErrSelfDependency — stage зависит от самого себя.
	ErrSelfDependency = errors.New("stage depends on itself")

	// ErrMissingDependency — stage зависит от несуществующего stage.
	ErrMissingDependency = errors.New("stage depends on unknown stage")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrInvalidCondition — условие запуска некорректно.
	ErrInvalidCondition = errors.New("invalid stage condition")

	// ErrInvalidRetryPolicy — политика retry некорректна.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")
)

// Ошибки вычисления предикатов.
var (
	// ErrConditionEval — предикат не удалось вычислить.
	// Вызывающий обязан трактовать это как condition=false с warning,
	// не как ошибку stage.
	ErrConditionEval = errors.New("condition evaluation failed")

	// ErrUnknownField — предикат ссылается на неизвестное поле.
	ErrUnknownField = errors.New("unknown condition field")

	// ErrUnknownOperator — неизвестный оператор сравнения.
	ErrUnknownOperator = errors.New("unknown compare operator")
)

// CycleError — обнаружен цикл зависимостей.
//
// StageID — первый (в порядке входного списка) stage, повторно
// вошедший в собственное множество visiting при обходе.
type CycleError struct {
	StageID string
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected at stage %s", e.StageID)
}

// Unwrap возвращает базовую ошибку.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// DanglingError — зависимость ссылается на несуществующий stage.
type DanglingError struct {
	StageID   string // stage с некорректной зависимостью
	MissingID string // отсутствующий ID
}

// Error реализует интерфейс error.
func (e *DanglingError) Error() string {
	return fmt.Sprintf("stage %s depends on unknown stage %s", e.StageID, e.MissingID)
}

// Unwrap возвращает базовую ошибку.
func (e *DanglingError) Unwrap() error {
	return ErrMissingDependency
}

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StageID string // ID stage, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StageID != "" {
		return "stage " + e.StageID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stageID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StageID: stageID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
