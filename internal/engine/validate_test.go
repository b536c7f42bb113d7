package engine

import (
	"errors"
	"testing"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

func knownAll(domain.StageType) bool { return true }

func TestValidateStages_Valid(t *testing.T) {
	stages := []domain.Stage{
		stage("ingest"),
		stage("quality", "ingest"),
	}

	if err := ValidateStages(stages, knownAll); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateStages_Errors(t *testing.T) {
	tests := []struct {
		name    string
		stages  []domain.Stage
		wantErr error
	}{
		{
			name:    "empty",
			stages:  nil,
			wantErr: ErrEmptyStages,
		},
		{
			name:    "empty stage id",
			stages:  []domain.Stage{{Type: domain.StageTypeTransform}},
			wantErr: ErrEmptyStageID,
		},
		{
			name: "duplicate id",
			stages: []domain.Stage{
				stage("a"),
				stage("a"),
			},
			wantErr: ErrDuplicateStageID,
		},
		{
			name: "empty type",
			stages: []domain.Stage{
				{ID: "a"},
			},
			wantErr: ErrUnknownStageType,
		},
		{
			name: "self dependency",
			stages: []domain.Stage{
				stage("a", "a"),
			},
			wantErr: ErrSelfDependency,
		},
		{
			name: "dangling dependency",
			stages: []domain.Stage{
				stage("a", "ghost"),
			},
			wantErr: ErrMissingDependency,
		},
		{
			name: "cycle",
			stages: []domain.Stage{
				stage("a", "b"),
				stage("b", "a"),
			},
			wantErr: ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStages(tt.stages, knownAll)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateStages_UnknownType(t *testing.T) {
	stages := []domain.Stage{stage("a")}

	err := ValidateStages(stages, func(domain.StageType) bool { return false })
	if !errors.Is(err, ErrUnknownStageType) {
		t.Errorf("expected ErrUnknownStageType, got %v", err)
	}
}

func TestValidateStages_Condition(t *testing.T) {
	custom := func(p *domain.Predicate) []domain.Stage {
		s := stage("a")
		s.Condition = &domain.Condition{Kind: domain.ConditionCustom, Custom: p}
		return []domain.Stage{s}
	}

	// custom без предиката
	s := stage("a")
	s.Condition = &domain.Condition{Kind: domain.ConditionCustom}
	if err := ValidateStages([]domain.Stage{s}, knownAll); !errors.Is(err, ErrInvalidCondition) {
		t.Errorf("expected ErrInvalidCondition for missing predicate, got %v", err)
	}

	// пустой предикат
	err := ValidateStages(custom(&domain.Predicate{}), knownAll)
	if !errors.Is(err, ErrInvalidCondition) {
		t.Errorf("expected ErrInvalidCondition for empty predicate, got %v", err)
	}

	// несколько веток сразу
	err = ValidateStages(custom(&domain.Predicate{
		Not: &domain.Predicate{Compare: &domain.CompareField{Field: "status", Op: domain.OpEq}},
		And: []domain.Predicate{{Compare: &domain.CompareField{Field: "status", Op: domain.OpEq}}},
	}), knownAll)
	if !errors.Is(err, ErrInvalidCondition) {
		t.Errorf("expected ErrInvalidCondition for multi-branch predicate, got %v", err)
	}

	// неизвестный оператор
	err = ValidateStages(custom(&domain.Predicate{
		Compare: &domain.CompareField{Field: "status", Op: "like"},
	}), knownAll)
	if !errors.Is(err, ErrInvalidCondition) {
		t.Errorf("expected ErrInvalidCondition for unknown operator, got %v", err)
	}

	// корректный вложенный предикат
	err = ValidateStages(custom(&domain.Predicate{
		And: []domain.Predicate{
			{Compare: &domain.CompareField{Field: "status", Op: domain.OpEq, Value: "running"}},
			{Not: &domain.Predicate{Compare: &domain.CompareField{Field: "params.dry_run", Op: domain.OpExists}}},
		},
	}), knownAll)
	if err != nil {
		t.Errorf("unexpected error for valid predicate: %v", err)
	}
}

func TestValidateStages_RetryPolicy(t *testing.T) {
	withRetry := func(p domain.RetryPolicy) []domain.Stage {
		s := stage("a")
		s.Retry = &p
		return []domain.Stage{s}
	}

	err := ValidateStages(withRetry(domain.RetryPolicy{MaxRetries: -1}), knownAll)
	if !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Errorf("expected ErrInvalidRetryPolicy for negative retries, got %v", err)
	}

	err = ValidateStages(withRetry(domain.RetryPolicy{BackoffMs: 5000, MaxBackoffMs: 100}), knownAll)
	if !errors.Is(err, ErrInvalidRetryPolicy) {
		t.Errorf("expected ErrInvalidRetryPolicy for backoff above ceiling, got %v", err)
	}

	err = ValidateStages(withRetry(domain.RetryPolicy{MaxRetries: 3, BackoffMs: 100, MaxBackoffMs: 1000}), knownAll)
	if err != nil {
		t.Errorf("unexpected error for valid retry policy: %v", err)
	}
}

func TestValidatePipeline_EmptyName(t *testing.T) {
	p := &domain.Pipeline{Stages: []domain.Stage{stage("a")}}
	if err := ValidatePipeline(p, knownAll); err == nil {
		t.Error("expected error for empty pipeline name")
	}
}
