package engine

import (
	"fmt"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// TypeChecker сообщает, зарегистрирован ли handler для типа stage.
// Nil-checker пропускает проверку типов.
type TypeChecker func(domain.StageType) bool

// ValidatePipeline выполняет полную валидацию определения pipeline.
//
// Ошибки определения (циклы, dangling-зависимости, дубликаты ID)
// обнаруживаются здесь — при создании и обновлении, никогда в рантайме.
func ValidatePipeline(p *domain.Pipeline, known TypeChecker) error {
	if p.Name == "" {
		return NewValidationError("", "name", "pipeline has empty name", ErrEmptyPipelineName)
	}
	return ValidateStages(p.Stages, known)
}

// ValidateStages валидирует набор stages.
//
// Проверяет:
//   - Наличие stages
//   - Уникальность и непустоту ID
//   - Известность типов stages (через known)
//   - Отсутствие self-dependency
//   - Валидность depends_on и отсутствие циклов (делегируется Resolve)
//   - Корректность условий и retry-политик
func ValidateStages(stages []domain.Stage, known TypeChecker) error {
	if len(stages) == 0 {
		return ErrEmptyStages
	}

	seen := make(map[string]bool, len(stages))
	for i := range stages {
		stage := &stages[i]

		if err := validateStage(stage, seen, known); err != nil {
			return err
		}
	}

	// Dangling-зависимости и циклы
	if _, err := Resolve(stages); err != nil {
		return err
	}

	return nil
}

// validateStage валидирует один stage.
func validateStage(stage *domain.Stage, seen map[string]bool, known TypeChecker) error {
	if stage.ID == "" {
		return NewValidationError("", "id", "stage has empty ID", ErrEmptyStageID)
	}

	if seen[stage.ID] {
		return NewValidationError(stage.ID, "id",
			fmt.Sprintf("duplicate stage ID: %s", stage.ID), ErrDuplicateStageID)
	}
	seen[stage.ID] = true

	if stage.Type == "" {
		return NewValidationError(stage.ID, "type",
			"stage has empty type", ErrUnknownStageType)
	}
	if known != nil && !known(stage.Type) {
		return NewValidationError(stage.ID, "type",
			fmt.Sprintf("no handler registered for stage type: %s", stage.Type), ErrUnknownStageType)
	}

	for _, dep := range stage.DependsOn {
		if dep == stage.ID {
			return NewValidationError(stage.ID, "depends_on",
				"stage depends on itself", ErrSelfDependency)
		}
	}

	if err := validateCondition(stage.ID, stage.Condition); err != nil {
		return err
	}

	if err := validateRetryPolicy(stage.ID, stage.Retry); err != nil {
		return err
	}

	return nil
}

// validateCondition проверяет корректность условия запуска.
func validateCondition(stageID string, cond *domain.Condition) error {
	if cond == nil {
		return nil
	}

	switch cond.Kind {
	case domain.ConditionAlways, domain.ConditionSuccess, domain.ConditionFailure:
		return nil
	case domain.ConditionCustom:
		if cond.Custom == nil {
			return NewValidationError(stageID, "condition",
				"custom condition has no predicate", ErrInvalidCondition)
		}
		return validatePredicate(stageID, cond.Custom)
	default:
		return NewValidationError(stageID, "condition",
			fmt.Sprintf("unknown condition kind: %s", cond.Kind), ErrInvalidCondition)
	}
}

// validatePredicate проверяет, что предикат — корректный tagged union:
// заполнено ровно одно поле, вложенные предикаты валидны.
func validatePredicate(stageID string, p *domain.Predicate) error {
	set := 0
	if p.Compare != nil {
		set++
	}
	if len(p.And) > 0 {
		set++
	}
	if len(p.Or) > 0 {
		set++
	}
	if p.Not != nil {
		set++
	}
	if set != 1 {
		return NewValidationError(stageID, "condition",
			fmt.Sprintf("predicate must set exactly one branch, got %d", set), ErrInvalidCondition)
	}

	switch {
	case p.Compare != nil:
		if p.Compare.Field == "" {
			return NewValidationError(stageID, "condition",
				"compare predicate has empty field", ErrInvalidCondition)
		}
		switch p.Compare.Op {
		case domain.OpEq, domain.OpNe, domain.OpGt, domain.OpGte,
			domain.OpLt, domain.OpLte, domain.OpContains, domain.OpExists:
		default:
			return NewValidationError(stageID, "condition",
				fmt.Sprintf("unknown compare operator: %s", p.Compare.Op), ErrInvalidCondition)
		}
	case len(p.And) > 0:
		for i := range p.And {
			if err := validatePredicate(stageID, &p.And[i]); err != nil {
				return err
			}
		}
	case len(p.Or) > 0:
		for i := range p.Or {
			if err := validatePredicate(stageID, &p.Or[i]); err != nil {
				return err
			}
		}
	case p.Not != nil:
		return validatePredicate(stageID, p.Not)
	}

	return nil
}

// validateRetryPolicy проверяет корректность политики retry.
func validateRetryPolicy(stageID string, p *domain.RetryPolicy) error {
	if p == nil {
		return nil
	}
	if p.MaxRetries < 0 {
		return NewValidationError(stageID, "retry",
			"max_retries must be >= 0", ErrInvalidRetryPolicy)
	}
	if p.BackoffMs < 0 || p.MaxBackoffMs < 0 {
		return NewValidationError(stageID, "retry",
			"backoff delays must be >= 0", ErrInvalidRetryPolicy)
	}
	if p.MaxBackoffMs > 0 && p.BackoffMs > p.MaxBackoffMs {
		return NewValidationError(stageID, "retry",
			"backoff_ms exceeds max_backoff_ms", ErrInvalidRetryPolicy)
	}
	return nil
}
