package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// Result — результат выполнения handler'а.
type Result struct {
	// Output — выходные данные stage, сохраняются в StageExecution.
	Output map[string]any

	// RecordsProcessed — количество обработанных записей (опционально).
	RecordsProcessed int64

	// BytesProcessed — объём обработанных данных (опционально).
	BytesProcessed int64
}

// Handler — обработчик одного типа stage.
//
// Оркестратору безразлично, что делает data_ingestion или
// strategy_execution внутри: handler — единственная точка, где
// подключаются внешние подсистемы.
//
// Handler обязан уважать ctx: по нему приходят и таймаут stage,
// и отмена execution.
type Handler interface {
	Execute(ctx context.Context, execCtx *domain.ExecutionContext, config map[string]any) (*Result, error)
}

// HandlerFunc — адаптер функции под интерфейс Handler.
type HandlerFunc func(ctx context.Context, execCtx *domain.ExecutionContext, config map[string]any) (*Result, error)

// Execute реализует интерфейс Handler.
func (f HandlerFunc) Execute(ctx context.Context, execCtx *domain.ExecutionContext, config map[string]any) (*Result, error) {
	return f(ctx, execCtx, config)
}

// Registry — реестр handlers по типу stage.
//
// Разрешается один раз при конструировании движка; добавление нового
// типа stage — это регистрация, а не новая ветка кода в движке.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.StageType]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.StageType]Handler)}
}

// Register добавляет handler для типа stage.
func (r *Registry) Register(stageType domain.StageType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[stageType] = handler
}

// Get возвращает handler для типа stage.
func (r *Registry) Get(stageType domain.StageType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[stageType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStageType, stageType)
	}
	return handler, nil
}

// Has проверяет, зарегистрирован ли handler для типа stage.
func (r *Registry) Has(stageType domain.StageType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[stageType]
	return ok
}

// Types возвращает список зарегистрированных типов.
func (r *Registry) Types() []domain.StageType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.StageType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
