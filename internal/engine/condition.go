package engine

import (
	"fmt"
	"strings"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// ConditionInput — срез состояния execution для вычисления условий.
//
// Предикаты видят только эти поля — никакого доступа наружу execution
// (и никакого выполнения произвольного кода) язык условий не даёт.
type ConditionInput struct {
	// Status — статус execution.
	Status domain.ExecutionStatus

	// TriggeredBy — источник запуска.
	TriggeredBy string

	// Environment — environment контекста.
	Environment string

	// Params — параметры запуска.
	Params map[string]any

	// StageStatuses — статусы stages (stageID → статус).
	StageStatuses map[string]domain.ExecutionStatus

	// RetryCounts — количество retry по stages.
	RetryCounts map[string]int

	// Payload — payload внешнего события (только для trigger guards).
	Payload map[string]any
}

// EvaluateCondition вычисляет условие запуска stage.
//
// Семантика:
//   - nil / always — true
//   - success — ни один из обработанных stages не failed и не cancelled.
//     skipped и running не мешают условию: пропуск — не сбой, а в
//     параллельном режиме сосед может ещё выполняться, когда stage
//     допущен по своим зависимостям; блокировать его чужой
//     незавершённой работой нельзя.
//   - failure — хотя бы один stage failed
//   - custom — значение предиката
//
// Ошибка вычисления предиката не является ошибкой stage:
// вызывающий логирует warning и трактует условие как false.
func EvaluateCondition(cond *domain.Condition, in ConditionInput) (bool, error) {
	if cond == nil || cond.Kind == domain.ConditionAlways {
		return true, nil
	}

	switch cond.Kind {
	case domain.ConditionSuccess:
		for _, status := range in.StageStatuses {
			if status == domain.ExecutionStatusFailed || status == domain.ExecutionStatusCancelled {
				return false, nil
			}
		}
		return true, nil

	case domain.ConditionFailure:
		for _, status := range in.StageStatuses {
			if status == domain.ExecutionStatusFailed {
				return true, nil
			}
		}
		return false, nil

	case domain.ConditionCustom:
		if cond.Custom == nil {
			return false, fmt.Errorf("%w: custom condition has no predicate", ErrConditionEval)
		}
		return EvaluatePredicate(cond.Custom, in)

	default:
		return false, fmt.Errorf("%w: unknown condition kind %q", ErrConditionEval, cond.Kind)
	}
}

// EvaluatePredicate интерпретирует предикат над ConditionInput.
func EvaluatePredicate(p *domain.Predicate, in ConditionInput) (bool, error) {
	switch {
	case p.Compare != nil:
		return evaluateCompare(p.Compare, in)

	case len(p.And) > 0:
		for i := range p.And {
			ok, err := EvaluatePredicate(&p.And[i], in)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case len(p.Or) > 0:
		for i := range p.Or {
			ok, err := EvaluatePredicate(&p.Or[i], in)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case p.Not != nil:
		ok, err := EvaluatePredicate(p.Not, in)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, fmt.Errorf("%w: empty predicate", ErrConditionEval)
	}
}

// evaluateCompare вычисляет сравнение поля с константой.
func evaluateCompare(c *domain.CompareField, in ConditionInput) (bool, error) {
	value, exists, err := resolveField(c.Field, in)
	if err != nil {
		return false, err
	}

	if c.Op == domain.OpExists {
		return exists, nil
	}
	if !exists {
		return false, nil
	}

	switch c.Op {
	case domain.OpEq:
		return compareEqual(value, c.Value), nil
	case domain.OpNe:
		return !compareEqual(value, c.Value), nil
	case domain.OpGt, domain.OpGte, domain.OpLt, domain.OpLte:
		return compareOrdered(value, c.Value, c.Op)
	case domain.OpContains:
		return compareContains(value, c.Value)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, c.Op)
	}
}

// resolveField разрешает путь поля в ConditionInput.
// Возвращает (значение, найдено ли, ошибка пути).
func resolveField(field string, in ConditionInput) (any, bool, error) {
	parts := strings.Split(field, ".")

	switch parts[0] {
	case "status":
		return string(in.Status), true, nil

	case "triggered_by":
		return in.TriggeredBy, true, nil

	case "environment":
		return in.Environment, true, nil

	case "params":
		if len(parts) != 2 {
			return nil, false, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		v, ok := in.Params[parts[1]]
		return v, ok, nil

	case "payload":
		if len(parts) != 2 {
			return nil, false, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		v, ok := in.Payload[parts[1]]
		return v, ok, nil

	case "stages":
		if len(parts) != 3 {
			return nil, false, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		stageID, attr := parts[1], parts[2]
		switch attr {
		case "status":
			status, ok := in.StageStatuses[stageID]
			return string(status), ok, nil
		case "retry_count":
			count, ok := in.RetryCounts[stageID]
			return count, ok, nil
		default:
			return nil, false, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}

	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

// compareEqual сравнивает значения с числовой коэрцией.
func compareEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareOrdered сравнивает упорядочиваемые значения.
func compareOrdered(a, b any, op domain.CompareOp) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		// Строковое сравнение как fallback
		as, bs := fmt.Sprint(a), fmt.Sprint(b)
		switch op {
		case domain.OpGt:
			return as > bs, nil
		case domain.OpGte:
			return as >= bs, nil
		case domain.OpLt:
			return as < bs, nil
		case domain.OpLte:
			return as <= bs, nil
		}
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}

	switch op {
	case domain.OpGt:
		return af > bf, nil
	case domain.OpGte:
		return af >= bf, nil
	case domain.OpLt:
		return af < bf, nil
	case domain.OpLte:
		return af <= bf, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
}

// compareContains проверяет вхождение подстроки или элемента слайса.
func compareContains(a, b any) (bool, error) {
	switch v := a.(type) {
	case string:
		return strings.Contains(v, fmt.Sprint(b)), nil
	case []any:
		for _, item := range v {
			if compareEqual(item, b) {
				return true, nil
			}
		}
		return false, nil
	case []string:
		for _, item := range v {
			if item == fmt.Sprint(b) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: contains requires string or list, got %T", ErrConditionEval, a)
	}
}

// toFloat приводит числовые типы к float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
