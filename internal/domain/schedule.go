package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleKind — способ автоматического запуска pipeline.
type ScheduleKind string

const (
	// ScheduleKindInterval — запуск каждые N секунд.
	ScheduleKindInterval ScheduleKind = "interval"

	// ScheduleKindCron — запуск по cron-выражению.
	ScheduleKindCron ScheduleKind = "cron"

	// ScheduleKindEvent — запуск по внешнему событию через trigger.
	ScheduleKindEvent ScheduleKind = "event"
)

// Schedule — расписание автоматического запуска pipeline.
//
// Таймеры и event-listeners принадлежат Scheduler'у и снимаются
// синхронно при остановке или удалении pipeline: после возврата
// Stop/Delete ни один новый execution не стартует.
type Schedule struct {
	// Kind — interval, cron или event.
	Kind ScheduleKind `json:"kind"`

	// IntervalSec — интервал в секундах (для kind=interval).
	IntervalSec int `json:"interval_sec,omitempty"`

	// CronExpr — cron-выражение (для kind=cron).
	// Формат: "минуты часы дни месяцы дни_недели".
	CronExpr string `json:"cron_expr,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию UTC.
	Timezone string `json:"timezone,omitempty"`

	// Triggers — подписки на внешние события (для kind=event).
	Triggers []TriggerDef `json:"triggers,omitempty"`

	// Enabled — выключенное расписание игнорируется Scheduler'ом.
	Enabled bool `json:"enabled"`

	// NextRun — время следующего срабатывания (bookkeeping Scheduler'а).
	NextRun *time.Time `json:"next_run,omitempty"`

	// LastRun — время последнего срабатывания.
	LastRun *time.Time `json:"last_run,omitempty"`

	// LastExecutionID — ID последнего созданного execution.
	LastExecutionID *uuid.UUID `json:"last_execution_id,omitempty"`
}

// TriggerDef — подписка на внешнее событие.
type TriggerDef struct {
	// Event — имя события (например, "market.open", "quote.gap").
	Event string `json:"event"`

	// Guard — предикат над payload события. Execution стартует только
	// если guard истинен. Nil — событие всегда запускает pipeline.
	Guard *Predicate `json:"guard,omitempty"`

	// Params — параметры, передаваемые в execution при срабатывании.
	Params map[string]any `json:"params,omitempty"`
}

// RecordRun записывает срабатывание расписания.
func (s *Schedule) RecordRun(executionID uuid.UUID, next time.Time) {
	now := time.Now()
	s.LastRun = &now
	s.LastExecutionID = &executionID
	if !next.IsZero() {
		s.NextRun = &next
	}
}
