package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/alert"
	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/engine"
	"github.com/daninithi/alphintra-pipelines/internal/runner"
	"github.com/daninithi/alphintra-pipelines/internal/store"
	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

// Default configuration values.
const defaultMaxConcurrentExecutions = 10

// ScheduleSyncer — часть scheduler'а, нужная оркестратору:
// синхронизация расписания после правок pipeline и синхронный
// teardown при удалении/остановке.
type ScheduleSyncer interface {
	Sync(p *domain.Pipeline) error
	Remove(pipelineID uuid.UUID)
}

// Orchestrator — фасад движка pipelines.
//
// Orchestrator:
//   - Валидирует и хранит определения pipeline (CRUD)
//   - Ведёт жизненный цикл pipeline (draft → active ⇄ paused → stopped)
//   - Запускает executions (вручную, по расписанию, по событию)
//   - Ограничивает количество одновременных executions
//   - Финализирует executions и публикует события жизненного цикла
type Orchestrator struct {
	pipelines  *store.PipelineStore
	executions *store.ExecutionStore
	runner     *runner.Runner
	bus        *tracker.Bus
	notifier   alert.Notifier
	sched      ScheduleSyncer

	// Глобальный лимит одновременных executions
	sem chan struct{}

	// Отмена идущих executions (executionID → cancel)
	cancels map[uuid.UUID]context.CancelFunc
	mu      sync.Mutex

	// Lifecycle
	logger    *slog.Logger
	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Pipelines — хранилище определений (обязательно).
	Pipelines *store.PipelineStore

	// Executions — хранилище executions (обязательно).
	Executions *store.ExecutionStore

	// Runner — stage runner с реестром handlers (обязательно).
	Runner *runner.Runner

	// Bus — шина событий жизненного цикла (опционально).
	Bus *tracker.Bus

	// Notifier — приёмник критических алертов (default: лог).
	Notifier alert.Notifier

	// MaxConcurrentExecutions — глобальный лимит одновременных
	// executions (default: 10).
	MaxConcurrentExecutions int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = alert.NewLogNotifier(logger)
	}

	bus := cfg.Bus
	if bus == nil {
		bus = tracker.NewBus(logger)
	}

	maxConcurrent := cfg.MaxConcurrentExecutions
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentExecutions
	}

	return &Orchestrator{
		pipelines:  cfg.Pipelines,
		executions: cfg.Executions,
		runner:     cfg.Runner,
		bus:        bus,
		notifier:   notifier,
		sem:        make(chan struct{}, maxConcurrent),
		cancels:    make(map[uuid.UUID]context.CancelFunc),
		logger:     logger,
		baseCtx:    context.Background(),
	}
}

// SetScheduler подключает scheduler. Вызывается один раз при сборке
// сервиса, до Start (scheduler и оркестратор ссылаются друг на друга).
func (o *Orchestrator) SetScheduler(sched ScheduleSyncer) {
	o.sched = sched
}

// Bus возвращает шину событий.
func (o *Orchestrator) Bus() *tracker.Bus {
	return o.bus
}

// Start запускает Orchestrator: с этого момента принимаются executions.
func (o *Orchestrator) Start(ctx context.Context) {
	o.baseCtx, o.cancelAll = context.WithCancel(ctx)
	o.logger.Info("orchestrator started",
		"max_concurrent_executions", cap(o.sem),
	)
}

// Stop останавливает Orchestrator: отменяет идущие executions
// и дожидается их завершения.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelAll != nil {
		o.cancelAll()
	}
	o.wg.Wait()
	o.bus.Close()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// --- Pipeline CRUD ---

// CreatePipeline валидирует и сохраняет новый pipeline в статусе draft.
func (o *Orchestrator) CreatePipeline(p *domain.Pipeline) error {
	if err := engine.ValidatePipeline(p, o.runner.Registry().Has); err != nil {
		return err
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.Version = 1
	p.Status = domain.PipelineStatusDraft
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Config.Normalize()

	if err := o.pipelines.Create(p); err != nil {
		return err
	}

	o.logger.Info("pipeline created", "pipeline_id", p.ID, "name", p.Name)
	o.bus.Publish(tracker.Event{
		Type:       tracker.EventPipelineCreated,
		PipelineID: p.ID,
		Time:       now,
		Data:       map[string]any{"name": p.Name},
	})
	return nil
}

// UpdatePipeline валидирует и заменяет определение pipeline,
// поднимая его версию. Идущие executions не затрагиваются:
// они работают по снятому при старте snapshot'у.
func (o *Orchestrator) UpdatePipeline(p *domain.Pipeline) error {
	if err := engine.ValidatePipeline(p, o.runner.Registry().Has); err != nil {
		return err
	}

	old, err := o.pipelines.Get(p.ID)
	if err != nil {
		return err
	}

	p.Version = old.Version + 1
	p.Status = old.Status
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = time.Now()
	p.Config.Normalize()

	if err := o.pipelines.Update(p); err != nil {
		return err
	}

	// Расписание могло измениться
	if o.sched != nil {
		if err := o.sched.Sync(p); err != nil {
			o.logger.Error("failed to sync schedule after update",
				"pipeline_id", p.ID, "error", err)
		}
	}

	o.logger.Info("pipeline updated",
		"pipeline_id", p.ID, "version", p.Version)
	o.bus.Publish(tracker.Event{
		Type:       tracker.EventPipelineUpdated,
		PipelineID: p.ID,
		Time:       p.UpdatedAt,
		Data:       map[string]any{"version": p.Version},
	})
	return nil
}

// DeletePipeline удаляет pipeline: снимает расписание, отменяет
// живые executions и чистит историю запусков.
func (o *Orchestrator) DeletePipeline(id uuid.UUID) error {
	p, err := o.pipelines.Get(id)
	if err != nil {
		return err
	}

	// Teardown расписания синхронный: после возврата Remove
	// новые scheduled-запуски невозможны
	if o.sched != nil {
		o.sched.Remove(id)
	}

	o.cancelRunning(id)

	o.executions.DeleteByPipeline(id)
	if err := o.pipelines.Delete(id); err != nil {
		return err
	}

	o.logger.Info("pipeline deleted", "pipeline_id", id, "name", p.Name)
	o.bus.Publish(tracker.Event{
		Type:       tracker.EventPipelineDeleted,
		PipelineID: id,
		Time:       time.Now(),
		Data:       map[string]any{"name": p.Name},
	})
	return nil
}

// GetPipeline возвращает pipeline по ID.
func (o *Orchestrator) GetPipeline(id uuid.UUID) (*domain.Pipeline, error) {
	return o.pipelines.Get(id)
}

// ListPipelines возвращает все pipelines, новые первыми.
func (o *Orchestrator) ListPipelines() []*domain.Pipeline {
	return o.pipelines.List()
}

// GetPipelineStats возвращает агрегированную статистику запусков.
func (o *Orchestrator) GetPipelineStats(id uuid.UUID) (store.PipelineStats, error) {
	if _, err := o.pipelines.Get(id); err != nil {
		return store.PipelineStats{}, err
	}
	return o.executions.Stats(id), nil
}

// --- Lifecycle ---

// SetPipelineStatus переводит pipeline в новый статус жизненного цикла.
//
// Переходы проверяются state machine (draft → active ⇄ paused → stopped,
// error/stopped/completed → active). Активация включает расписание,
// pause/stop — снимает; stop дополнительно отменяет идущие executions.
func (o *Orchestrator) SetPipelineStatus(id uuid.UUID, target domain.PipelineStatus) error {
	p, err := o.pipelines.Get(id)
	if err != nil {
		return err
	}

	if !p.Status.CanTransition(target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, target)
	}

	prev := p.Status
	p.Status = target
	p.UpdatedAt = time.Now()
	if err := o.pipelines.Update(p); err != nil {
		return err
	}

	if o.sched != nil {
		switch target {
		case domain.PipelineStatusActive:
			if err := o.sched.Sync(p); err != nil {
				// Активация с невалидным расписанием переводит в error
				p.Status = domain.PipelineStatusError
				if uerr := o.pipelines.Update(p); uerr != nil {
					o.logger.Error("failed to persist error status",
						"pipeline_id", id, "error", uerr)
				}
				return fmt.Errorf("activate schedule: %w", err)
			}
		default:
			o.sched.Remove(id)
		}
	}

	if target == domain.PipelineStatusStopped {
		o.cancelRunning(id)
	}

	o.logger.Info("pipeline status changed",
		"pipeline_id", id, "from", prev, "to", target)
	return nil
}

// --- Executions ---

// ExecutePipeline запускает pipeline: снимает snapshot stages,
// разрешает порядок через Graph Resolver и стартует выполнение в фоне.
// Возвращает созданный execution (статус pending или running).
func (o *Orchestrator) ExecutePipeline(pipelineID uuid.UUID, triggeredBy string, execCtx *domain.ExecutionContext) (*domain.Execution, error) {
	if o.IsStopped() {
		return nil, ErrStopped
	}

	p, err := o.pipelines.Get(pipelineID)
	if err != nil {
		return nil, err
	}
	if p.Status == domain.PipelineStatusStopped {
		return nil, ErrPipelineStopped
	}

	// Порядок разрешается один раз; правки pipeline не влияют
	// на уже идущий запуск
	snapshot, err := engine.Resolve(p.Stages)
	if err != nil {
		return nil, err
	}

	exec := domain.NewExecution(p.ID, p.Version, snapshot, triggeredBy, execCtx)
	rec := tracker.NewRecorder(exec, o.logger.With(
		"pipeline_id", p.ID,
		"execution_id", exec.ID,
	))
	o.executions.Put(rec)

	execCtx2, cancel := context.WithCancel(o.baseCtx)
	o.mu.Lock()
	o.cancels[exec.ID] = cancel
	o.mu.Unlock()

	o.bus.Publish(tracker.Event{
		Type:        tracker.EventExecutionStarted,
		PipelineID:  p.ID,
		ExecutionID: exec.ID,
		Time:        time.Now(),
		Data:        map[string]any{"triggered_by": triggeredBy},
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		defer func() {
			o.mu.Lock()
			delete(o.cancels, exec.ID)
			o.mu.Unlock()
		}()

		// Глобальный лимит: execution ждёт слот в pending
		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-execCtx2.Done():
			rec.Cancel()
			o.finalize(p, rec)
			return
		}

		o.runExecution(execCtx2, p, rec)
	}()

	return rec.Execution(), nil
}

// CancelExecution отменяет идущий execution.
func (o *Orchestrator) CancelExecution(id uuid.UUID) error {
	rec, err := o.executions.Recorder(id)
	if err != nil {
		return err
	}

	if !rec.Cancel() {
		return fmt.Errorf("%w: execution %s", ErrExecutionFinished, id)
	}

	o.mu.Lock()
	cancel := o.cancels[id]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	o.logger.Info("execution cancelled", "execution_id", id)
	return nil
}

// GetExecution возвращает копию execution по ID.
func (o *Orchestrator) GetExecution(id uuid.UUID) (*domain.Execution, error) {
	return o.executions.Get(id)
}

// ListExecutions возвращает executions pipeline'а, новые первыми.
// pipelineID == uuid.Nil означает все pipelines.
func (o *Orchestrator) ListExecutions(pipelineID uuid.UUID, limit int) []*domain.Execution {
	return o.executions.List(pipelineID, limit)
}

// HasRunning проверяет, есть ли у pipeline незавершённый execution.
// Используется scheduler'ом для overlap-политики skip.
func (o *Orchestrator) HasRunning(pipelineID uuid.UUID) bool {
	return o.executions.HasRunning(pipelineID)
}

// cancelRunning отменяет все живые executions pipeline'а.
func (o *Orchestrator) cancelRunning(pipelineID uuid.UUID) {
	for _, rec := range o.executions.Running(pipelineID) {
		if !rec.Cancel() {
			continue
		}
		o.mu.Lock()
		cancel := o.cancels[rec.ExecutionID()]
		o.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		o.logger.Info("execution cancelled",
			"pipeline_id", pipelineID,
			"execution_id", rec.ExecutionID(),
		)
	}
}
