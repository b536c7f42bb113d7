package engine

import (
	"errors"
	"testing"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

func TestEvaluateCondition_NilAndAlways(t *testing.T) {
	in := ConditionInput{}

	ok, err := EvaluateCondition(nil, in)
	if err != nil || !ok {
		t.Errorf("nil condition should be true, got %v / %v", ok, err)
	}

	ok, err = EvaluateCondition(&domain.Condition{Kind: domain.ConditionAlways}, in)
	if err != nil || !ok {
		t.Errorf("always condition should be true, got %v / %v", ok, err)
	}
}

func TestEvaluateCondition_Success(t *testing.T) {
	cond := &domain.Condition{Kind: domain.ConditionSuccess}

	tests := []struct {
		name     string
		statuses map[string]domain.ExecutionStatus
		want     bool
	}{
		{
			name: "all completed",
			statuses: map[string]domain.ExecutionStatus{
				"a": domain.ExecutionStatusCompleted,
				"b": domain.ExecutionStatusCompleted,
			},
			want: true,
		},
		{
			name: "pending allowed",
			statuses: map[string]domain.ExecutionStatus{
				"a": domain.ExecutionStatusCompleted,
				"b": domain.ExecutionStatusPending,
			},
			want: true,
		},
		{
			name: "skipped allowed",
			statuses: map[string]domain.ExecutionStatus{
				"a": domain.ExecutionStatusSkipped,
			},
			want: true,
		},
		{
			name: "failure blocks",
			statuses: map[string]domain.ExecutionStatus{
				"a": domain.ExecutionStatusCompleted,
				"b": domain.ExecutionStatusFailed,
			},
			want: false,
		},
		{
			name: "cancelled blocks",
			statuses: map[string]domain.ExecutionStatus{
				"a": domain.ExecutionStatusCancelled,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := EvaluateCondition(cond, ConditionInput{StageStatuses: tt.statuses})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("expected %v, got %v", tt.want, ok)
			}
		})
	}
}

func TestEvaluateCondition_Failure(t *testing.T) {
	cond := &domain.Condition{Kind: domain.ConditionFailure}

	ok, err := EvaluateCondition(cond, ConditionInput{
		StageStatuses: map[string]domain.ExecutionStatus{
			"a": domain.ExecutionStatusCompleted,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("failure condition should be false without failed stages")
	}

	ok, err = EvaluateCondition(cond, ConditionInput{
		StageStatuses: map[string]domain.ExecutionStatus{
			"a": domain.ExecutionStatusCompleted,
			"b": domain.ExecutionStatusFailed,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("failure condition should be true with a failed stage")
	}
}

func TestEvaluatePredicate_Compare(t *testing.T) {
	in := ConditionInput{
		Status:      domain.ExecutionStatusRunning,
		TriggeredBy: "manual",
		Environment: "backtest",
		Params: map[string]any{
			"symbol":    "BTCUSDT",
			"threshold": 0.75,
		},
		StageStatuses: map[string]domain.ExecutionStatus{
			"ingest": domain.ExecutionStatusCompleted,
		},
		RetryCounts: map[string]int{"ingest": 2},
	}

	tests := []struct {
		name string
		pred domain.Predicate
		want bool
	}{
		{
			name: "status eq",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "status", Op: domain.OpEq, Value: "running"}},
			want: true,
		},
		{
			name: "param eq string",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "params.symbol", Op: domain.OpEq, Value: "BTCUSDT"}},
			want: true,
		},
		{
			name: "param gt float",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "params.threshold", Op: domain.OpGt, Value: 0.5}},
			want: true,
		},
		{
			name: "param lt fails",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "params.threshold", Op: domain.OpLt, Value: 0.5}},
			want: false,
		},
		{
			name: "stage status",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "stages.ingest.status", Op: domain.OpEq, Value: "completed"}},
			want: true,
		},
		{
			name: "retry count gte with int coercion",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "stages.ingest.retry_count", Op: domain.OpGte, Value: 2.0}},
			want: true,
		},
		{
			name: "exists true",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "params.symbol", Op: domain.OpExists}},
			want: true,
		},
		{
			name: "exists false",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "params.absent", Op: domain.OpExists}},
			want: false,
		},
		{
			name: "contains substring",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "params.symbol", Op: domain.OpContains, Value: "USDT"}},
			want: true,
		},
		{
			name: "ne",
			pred: domain.Predicate{Compare: &domain.CompareField{
				Field: "triggered_by", Op: domain.OpNe, Value: "scheduled"}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := EvaluatePredicate(&tt.pred, in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("expected %v, got %v", tt.want, ok)
			}
		})
	}
}

func TestEvaluatePredicate_Boolean(t *testing.T) {
	in := ConditionInput{
		Params: map[string]any{"a": 1, "b": 2},
	}

	eqA := domain.Predicate{Compare: &domain.CompareField{
		Field: "params.a", Op: domain.OpEq, Value: 1}}
	eqBWrong := domain.Predicate{Compare: &domain.CompareField{
		Field: "params.b", Op: domain.OpEq, Value: 99}}

	and := domain.Predicate{And: []domain.Predicate{eqA, eqBWrong}}
	ok, err := EvaluatePredicate(&and, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("and with a false branch should be false")
	}

	or := domain.Predicate{Or: []domain.Predicate{eqBWrong, eqA}}
	ok, err = EvaluatePredicate(&or, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("or with a true branch should be true")
	}

	not := domain.Predicate{Not: &eqBWrong}
	ok, err = EvaluatePredicate(&not, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("not of false should be true")
	}
}

func TestEvaluatePredicate_UnknownField(t *testing.T) {
	pred := domain.Predicate{Compare: &domain.CompareField{
		Field: "secrets.api_key", Op: domain.OpEq, Value: "x"}}

	_, err := EvaluatePredicate(&pred, ConditionInput{})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestEvaluatePredicate_EventPayload(t *testing.T) {
	in := ConditionInput{
		Payload: map[string]any{"severity": "critical", "gap_pct": 3.2},
	}

	pred := domain.Predicate{And: []domain.Predicate{
		{Compare: &domain.CompareField{Field: "payload.severity", Op: domain.OpEq, Value: "critical"}},
		{Compare: &domain.CompareField{Field: "payload.gap_pct", Op: domain.OpGt, Value: 2.0}},
	}}

	ok, err := EvaluatePredicate(&pred, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("guard over event payload should pass")
	}
}
