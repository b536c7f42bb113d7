package engine

import (
	"errors"
	"testing"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

func stage(id string, deps ...string) domain.Stage {
	return domain.Stage{
		ID:        id,
		Type:      domain.StageTypeTransform,
		DependsOn: deps,
		Enabled:   true,
	}
}

func TestResolve_SimpleChain(t *testing.T) {
	stages := []domain.Stage{
		stage("A"),
		stage("B", "A"),
		stage("C", "B"),
	}

	order, err := Resolve(stages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(order))
	}

	want := []string{"A", "B", "C"}
	for i, id := range want {
		if order[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, order[i].ID)
		}
	}
}

func TestResolve_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	stages := []domain.Stage{
		stage("A"),
		stage("B", "A"),
		stage("C", "A"),
		stage("D", "B", "C"),
	}

	order, err := Resolve(stages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	positions := make(map[string]int)
	for i := range order {
		positions[order[i].ID] = i
	}

	if positions["A"] != 0 {
		t.Error("A should come first")
	}
	if positions["D"] != 3 {
		t.Error("D should come last")
	}
	if positions["B"] > positions["D"] || positions["C"] > positions["D"] {
		t.Error("B and C should come before D")
	}
}

func TestResolve_EveryStageAfterDependencies(t *testing.T) {
	// Зависимости объявлены "задом наперёд" относительно входного порядка
	stages := []domain.Stage{
		stage("report", "aggregate"),
		stage("aggregate", "ingest_a", "ingest_b"),
		stage("ingest_b"),
		stage("ingest_a"),
	}

	order, err := Resolve(stages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(order) != len(stages) {
		t.Fatalf("expected permutation of input, got %d stages", len(order))
	}

	positions := make(map[string]int)
	for i := range order {
		positions[order[i].ID] = i
	}

	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if positions[dep] > positions[s.ID] {
				t.Errorf("stage %s appears before its dependency %s", s.ID, dep)
			}
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	stages := []domain.Stage{
		stage("ingest"),
		stage("quality", "ingest"),
		stage("enrich", "ingest"),
		stage("signal", "quality", "enrich"),
		stage("notify", "signal"),
	}

	first, err := Resolve(stages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := Resolve(stages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("non-deterministic order at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestResolve_InputOrderTieBreak(t *testing.T) {
	// B и C независимы — порядок между ними задаётся входным порядком
	stages := []domain.Stage{
		stage("A"),
		stage("C", "A"),
		stage("B", "A"),
	}

	order, err := Resolve(stages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order[1].ID != "C" || order[2].ID != "B" {
		t.Errorf("expected input-order tie break [A C B], got [%s %s %s]",
			order[0].ID, order[1].ID, order[2].ID)
	}
}

func TestResolve_CyclicDependency(t *testing.T) {
	stages := []domain.Stage{
		stage("A", "C"),
		stage("B", "A"),
		stage("C", "B"),
	}

	order, err := Resolve(stages)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
	if order != nil {
		t.Error("partial order must not be returned on cycle")
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %T", err)
	}
	if cycleErr.StageID != "A" {
		t.Errorf("expected cycle reported at A (first in input order), got %s", cycleErr.StageID)
	}
}

func TestResolve_SelfDependency(t *testing.T) {
	stages := []domain.Stage{
		stage("A", "A"),
	}

	_, err := Resolve(stages)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency for self-dependency, got %v", err)
	}
}

func TestResolve_DanglingDependency(t *testing.T) {
	stages := []domain.Stage{
		stage("A"),
		stage("B", "missing"),
	}

	_, err := Resolve(stages)
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}

	var dangling *DanglingError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected DanglingError, got %T", err)
	}
	if dangling.StageID != "B" || dangling.MissingID != "missing" {
		t.Errorf("expected B/missing, got %s/%s", dangling.StageID, dangling.MissingID)
	}
}

func TestResolve_EmptyStages(t *testing.T) {
	_, err := Resolve(nil)
	if !errors.Is(err, ErrEmptyStages) {
		t.Errorf("expected ErrEmptyStages, got %v", err)
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	stages := []domain.Stage{
		stage("B", "A"),
		stage("A"),
	}

	if _, err := Resolve(stages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stages[0].ID != "B" || stages[1].ID != "A" {
		t.Error("Resolve must not mutate input slice")
	}
}
