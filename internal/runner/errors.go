package runner

import "errors"

// Ошибки stage runner'а.
var (
	// ErrUnknownStageType — нет handler'а для данного типа stage.
	ErrUnknownStageType = errors.New("unknown stage type")

	// ErrStageTimeout — выполнение stage превысило таймаут.
	// Трактуется как обычная ошибка handler'а и проходит через retry.
	ErrStageTimeout = errors.New("stage timeout")

	// ErrStageCancelled — выполнение прервано отменой execution.
	ErrStageCancelled = errors.New("stage cancelled")

	// ErrRetryExhausted — все попытки retry исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// Виды ошибок stage (используются в RetryPolicy.RetryableErrors
// и в ErrorEntry.Kind).
const (
	// ErrorKindTimeout — handler не уложился в таймаут.
	ErrorKindTimeout = "timeout"

	// ErrorKindHandler — handler вернул ошибку.
	ErrorKindHandler = "handler_error"

	// ErrorKindCondition — не удалось вычислить кастомное условие
	// (warning, не ошибка stage).
	ErrorKindCondition = "condition_error"
)

// StageError — ошибка handler'а с видом для retry allow-list.
//
// Handlers могут возвращать StageError, чтобы пометить ошибку
// собственным видом ("rate_limited", "upstream_unavailable", ...);
// любая другая ошибка получает вид handler_error.
type StageError struct {
	// Kind — вид ошибки.
	Kind string

	// Err — исходная ошибка.
	Err error
}

// Error реализует интерфейс error.
func (e *StageError) Error() string {
	return e.Err.Error()
}

// Unwrap возвращает исходную ошибку.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError создаёт StageError с видом kind.
func NewStageError(kind string, err error) *StageError {
	return &StageError{Kind: kind, Err: err}
}

// errorKind классифицирует ошибку выполнения stage.
func errorKind(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr.Kind != "" {
		return stageErr.Kind
	}
	if errors.Is(err, ErrStageTimeout) {
		return ErrorKindTimeout
	}
	return ErrorKindHandler
}
