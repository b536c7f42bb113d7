package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// cronParser — парсер cron-выражений.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CalculateNext вычисляет следующее время срабатывания расписания.
// Для интервалов просто добавляет IntervalSec к текущему времени.
//
// Учитывает timezone расписания.
func CalculateNext(sched *domain.Schedule, from time.Time) (time.Time, error) {
	// Загружаем timezone
	loc, err := time.LoadLocation(sched.Timezone)
	if err != nil {
		// Fallback на UTC если timezone невалидный
		loc = time.UTC
	}

	fromInTz := from.In(loc)

	switch sched.Kind {
	case domain.ScheduleKindCron:
		return calculateNextCron(sched.CronExpr, fromInTz)
	case domain.ScheduleKindInterval:
		return calculateNextInterval(sched.IntervalSec, fromInTz), nil
	default:
		return time.Time{}, fmt.Errorf("%w: kind %q has no next-run time", ErrInvalidSchedule, sched.Kind)
	}
}

// calculateNextCron вычисляет следующее время по cron-выражению.
func calculateNextCron(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}

	next := schedule.Next(from)
	return next.UTC(), nil
}

// calculateNextInterval вычисляет следующее время по интервалу.
func calculateNextInterval(intervalSec int, from time.Time) time.Time {
	next := from.Add(time.Duration(intervalSec) * time.Second)
	return next.UTC()
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// ValidateSchedule проверяет расписание перед активацией.
func ValidateSchedule(sched *domain.Schedule) error {
	if sched == nil {
		return nil
	}

	switch sched.Kind {
	case domain.ScheduleKindInterval:
		if sched.IntervalSec < 1 {
			return fmt.Errorf("%w: interval_sec must be >= 1", ErrInvalidSchedule)
		}
	case domain.ScheduleKindCron:
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		if sched.Timezone != "" {
			if _, err := time.LoadLocation(sched.Timezone); err != nil {
				return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, sched.Timezone)
			}
		}
	case domain.ScheduleKindEvent:
		if len(sched.Triggers) == 0 {
			return fmt.Errorf("%w: event schedule has no triggers", ErrInvalidSchedule)
		}
		for _, trig := range sched.Triggers {
			if trig.Event == "" {
				return fmt.Errorf("%w: trigger with empty event name", ErrInvalidSchedule)
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSchedule, sched.Kind)
	}
	return nil
}
