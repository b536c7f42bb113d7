package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/alert"
	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/engine"
	"github.com/daninithi/alphintra-pipelines/internal/telemetry"
)

// Ошибки scheduler'а.
var (
	// ErrInvalidSchedule — расписание не проходит валидацию.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Launcher — часть оркестратора, нужная scheduler'у:
// запуск executions и проверка overlap.
type Launcher interface {
	ExecutePipeline(pipelineID uuid.UUID, triggeredBy string, execCtx *domain.ExecutionContext) (*domain.Execution, error)
	HasRunning(pipelineID uuid.UUID) bool
}

// entry — активное расписание одного pipeline.
type entry struct {
	sched *domain.Schedule

	// Управление таймер-горутиной (interval/cron)
	stop chan struct{}
	done chan struct{}
}

// Scheduler запускает pipelines по расписанию.
//
// Scheduler:
//   - Держит таймер-горутину на каждый активный interval/cron pipeline
//   - Регистрирует event-триггеры и проверяет их guards по payload
//   - Применяет overlap-политику skip: тик при идущем execution
//     пропускается, не ставится в очередь
//   - Снимает таймеры и подписки синхронно: после возврата Remove
//     новые запуски этого pipeline невозможны
type Scheduler struct {
	launcher Launcher
	notifier alert.Notifier
	logger   *slog.Logger

	// OnScheduleError вызывается при неустранимой ошибке расписания
	// (pipeline переводится в error вызывающей стороной).
	onError func(pipelineID uuid.UUID, err error)

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	// Индекс event-триггеров: имя события → pipelineID → triggers
	triggers map[string]map[uuid.UUID][]domain.TriggerDef
}

// Config — конфигурация Scheduler.
type Config struct {
	// Launcher — оркестратор (обязателен).
	Launcher Launcher

	// Notifier — приёмник критических алертов (default: лог).
	Notifier alert.Notifier

	// OnScheduleError — callback неустранимой ошибки расписания.
	OnScheduleError func(pipelineID uuid.UUID, err error)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = alert.NewLogNotifier(logger)
	}

	return &Scheduler{
		launcher: cfg.Launcher,
		notifier: notifier,
		logger:   logger,
		onError:  cfg.OnScheduleError,
		entries:  make(map[uuid.UUID]*entry),
		triggers: make(map[string]map[uuid.UUID][]domain.TriggerDef),
	}
}

// Sync приводит расписание pipeline в соответствие с определением.
//
// Старое расписание снимается; новое ставится, только если pipeline
// активен, расписание задано и включено. Ошибка валидации оставляет
// pipeline без расписания.
func (s *Scheduler) Sync(p *domain.Pipeline) error {
	s.Remove(p.ID)

	if p.Status != domain.PipelineStatusActive || p.Schedule == nil || !p.Schedule.Enabled {
		return nil
	}
	if err := ValidateSchedule(p.Schedule); err != nil {
		return err
	}

	sched := *p.Schedule
	e := &entry{
		sched: &sched,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	s.entries[p.ID] = e
	s.mu.Unlock()

	switch sched.Kind {
	case domain.ScheduleKindInterval:
		go s.runInterval(p.ID, e)
	case domain.ScheduleKindCron:
		go s.runCron(p.ID, e)
	case domain.ScheduleKindEvent:
		// Event-расписанию не нужна горутина
		close(e.done)
		s.registerTriggers(p.ID, sched.Triggers)
	}

	s.logger.Info("schedule activated",
		"pipeline_id", p.ID,
		"kind", sched.Kind,
	)
	return nil
}

// Remove снимает расписание pipeline.
//
// Teardown синхронный: таймер-горутина останавливается и дожидается,
// event-триггеры удаляются из индекса до возврата.
func (s *Scheduler) Remove(pipelineID uuid.UUID) {
	s.mu.Lock()
	e, ok := s.entries[pipelineID]
	if ok {
		delete(s.entries, pipelineID)
	}
	for event, byPipeline := range s.triggers {
		delete(byPipeline, pipelineID)
		if len(byPipeline) == 0 {
			delete(s.triggers, event)
		}
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	close(e.stop)
	<-e.done

	s.logger.Info("schedule removed", "pipeline_id", pipelineID)
}

// Stop снимает все расписания.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Remove(id)
	}
	s.logger.Info("scheduler stopped")
}

// Schedule возвращает копию активного расписания pipeline
// с bookkeeping срабатываний.
func (s *Scheduler) Schedule(pipelineID uuid.UUID) (*domain.Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[pipelineID]
	if !ok {
		return nil, false
	}
	sched := *e.sched
	return &sched, true
}

// HandleEvent обрабатывает внешнее событие: запускает все pipelines,
// чьи триггеры подписаны на это событие и чьи guards истинны на payload.
// Возвращает количество стартовавших executions.
func (s *Scheduler) HandleEvent(event string, payload map[string]any) int {
	s.mu.Lock()
	byPipeline := make(map[uuid.UUID][]domain.TriggerDef, len(s.triggers[event]))
	for id, trigs := range s.triggers[event] {
		byPipeline[id] = trigs
	}
	s.mu.Unlock()

	launched := 0
	for pipelineID, trigs := range byPipeline {
		for _, trig := range trigs {
			if trig.Guard != nil {
				ok, err := engine.EvaluatePredicate(trig.Guard, engine.ConditionInput{Payload: payload})
				if err != nil {
					s.logger.Warn("trigger guard evaluation failed",
						"pipeline_id", pipelineID,
						"event", event,
						"error", err,
					)
					continue
				}
				if !ok {
					continue
				}
			}

			params := make(map[string]any, len(trig.Params)+len(payload))
			for k, v := range payload {
				params[k] = v
			}
			for k, v := range trig.Params {
				params[k] = v
			}

			if s.fire(pipelineID, "event", params) {
				launched++
			}
			break // один execution на событие, даже при нескольких guards
		}
	}
	return launched
}

// registerTriggers добавляет event-триггеры pipeline в индекс.
func (s *Scheduler) registerTriggers(pipelineID uuid.UUID, trigs []domain.TriggerDef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, trig := range trigs {
		byPipeline := s.triggers[trig.Event]
		if byPipeline == nil {
			byPipeline = make(map[uuid.UUID][]domain.TriggerDef)
			s.triggers[trig.Event] = byPipeline
		}
		byPipeline[pipelineID] = append(byPipeline[pipelineID], trig)
	}
}

// runInterval — таймер-горутина interval-расписания.
func (s *Scheduler) runInterval(pipelineID uuid.UUID, e *entry) {
	defer close(e.done)

	interval := time.Duration(e.sched.IntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.recordNext(e, time.Now().Add(interval))

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			s.tick(pipelineID, e, time.Now().Add(interval))
		}
	}
}

// runCron — таймер-горутина cron-расписания.
func (s *Scheduler) runCron(pipelineID uuid.UUID, e *entry) {
	defer close(e.done)

	for {
		next, err := CalculateNext(e.sched, time.Now())
		if err != nil {
			// Расписание валидировалось при активации; ошибка здесь
			// неустранима
			s.logger.Error("cron schedule failed",
				"pipeline_id", pipelineID,
				"error", err,
			)
			s.notifier.AlertCritical(
				"schedule failure",
				"cron schedule failed, pipeline moved to error",
				"scheduler",
				map[string]any{"pipeline_id": pipelineID.String(), "error": err.Error()},
			)

			// Entry снимается до callback: onError обычно переводит
			// pipeline в error, и этот переход синхронно возвращается
			// сюда через Remove того же pipeline. Remove не должен
			// ждать e.done из-под ещё идущего callback'а.
			s.mu.Lock()
			if s.entries[pipelineID] == e {
				delete(s.entries, pipelineID)
			}
			s.mu.Unlock()

			if s.onError != nil {
				s.onError(pipelineID, err)
			}
			return
		}
		s.recordNext(e, next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-e.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.tick(pipelineID, e, time.Time{})
		}
	}
}

// tick — одно срабатывание расписания.
func (s *Scheduler) tick(pipelineID uuid.UUID, e *entry, next time.Time) {
	// Overlap-политика skip: при идущем execution тик пропускается
	if s.launcher.HasRunning(pipelineID) {
		s.logger.Info("scheduled trigger skipped: execution still running",
			"pipeline_id", pipelineID,
		)
		telemetry.ScheduledTriggersSkipped.Inc()
		return
	}

	exec, err := s.launcher.ExecutePipeline(pipelineID, "scheduled", nil)
	if err != nil {
		s.logger.Error("scheduled execution failed to start",
			"pipeline_id", pipelineID,
			"error", err,
		)
		return
	}

	s.mu.Lock()
	e.sched.RecordRun(exec.ID, next)
	s.mu.Unlock()

	s.logger.Info("scheduled execution started",
		"pipeline_id", pipelineID,
		"execution_id", exec.ID,
	)
}

// fire запускает pipeline по событию с overlap-политикой skip.
func (s *Scheduler) fire(pipelineID uuid.UUID, triggeredBy string, params map[string]any) bool {
	if s.launcher.HasRunning(pipelineID) {
		s.logger.Info("event trigger skipped: execution still running",
			"pipeline_id", pipelineID,
		)
		telemetry.ScheduledTriggersSkipped.Inc()
		return false
	}

	execCtx := domain.NewExecutionContext("", params)
	exec, err := s.launcher.ExecutePipeline(pipelineID, triggeredBy, execCtx)
	if err != nil {
		s.logger.Error("event execution failed to start",
			"pipeline_id", pipelineID,
			"error", err,
		)
		return false
	}

	s.mu.Lock()
	if e, ok := s.entries[pipelineID]; ok {
		e.sched.RecordRun(exec.ID, time.Time{})
	}
	s.mu.Unlock()

	s.logger.Info("event execution started",
		"pipeline_id", pipelineID,
		"execution_id", exec.ID,
	)
	return true
}

// recordNext пишет время следующего срабатывания в bookkeeping.
func (s *Scheduler) recordNext(e *entry, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.sched.NextRun = &next
}
