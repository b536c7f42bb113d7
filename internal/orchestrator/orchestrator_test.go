package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/engine"
	"github.com/daninithi/alphintra-pipelines/internal/runner"
	"github.com/daninithi/alphintra-pipelines/internal/store"
	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

// traceHandler пишет порядок выполнения stages и падает/спит
// по указанию stage config.
type traceHandler struct {
	mu      sync.Mutex
	order   []string
	current int
	maxSeen int
}

func (h *traceHandler) Execute(ctx context.Context, execCtx *domain.ExecutionContext, config map[string]any) (*runner.Result, error) {
	id, _ := config["id"].(string)

	h.mu.Lock()
	h.order = append(h.order, id)
	h.current++
	if h.current > h.maxSeen {
		h.maxSeen = h.current
	}
	h.mu.Unlock()

	if ms, ok := config["sleep_ms"].(int); ok {
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
			h.mu.Lock()
			h.current--
			h.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	h.current--
	h.mu.Unlock()

	if fail, ok := config["fail"].(bool); ok && fail {
		return nil, errors.New("stage failed on purpose")
	}
	return &runner.Result{Output: map[string]any{"id": id}, RecordsProcessed: 1}, nil
}

func (h *traceHandler) Order() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...)
}

func (h *traceHandler) MaxConcurrent() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxSeen
}

func newTestOrchestrator(t *testing.T, handler runner.Handler) *Orchestrator {
	t.Helper()

	registry := runner.NewRegistry()
	registry.Register(domain.StageTypeTransform, handler)
	registry.Register(domain.StageTypeDataIngestion, handler)

	o := New(Config{
		Pipelines:  store.NewPipelineStore(),
		Executions: store.NewExecutionStore(store.ExecutionStoreConfig{}),
		Runner:     runner.New(runner.Config{Registry: registry}),
	})
	o.Start(context.Background())
	t.Cleanup(o.Stop)
	return o
}

// diamondPipeline: A → B, A → C, B/C → D.
func diamondPipeline(name string, cfg domain.PipelineConfig) *domain.Pipeline {
	mk := func(id string, deps ...string) domain.Stage {
		return domain.Stage{
			ID:        id,
			Type:      domain.StageTypeTransform,
			Config:    map[string]any{"id": id, "sleep_ms": 10},
			DependsOn: deps,
			Enabled:   true,
		}
	}
	return &domain.Pipeline{
		Name: name,
		Stages: []domain.Stage{
			mk("A"), mk("B", "A"), mk("C", "A"), mk("D", "B", "C"),
		},
		Config: cfg,
	}
}

func waitTerminal(t *testing.T, o *Orchestrator, execID uuid.UUID) *domain.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exec, err := o.GetExecution(execID)
		if err != nil {
			t.Fatalf("get execution: %v", err)
		}
		if exec.Status.IsTerminal() {
			return exec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("execution did not finish in time")
	return nil
}

func TestExecute_SequentialDiamond(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("diamond-seq", domain.PipelineConfig{})
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	final := waitTerminal(t, o, exec.ID)
	if final.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}

	order := h.Order()
	if len(order) != 4 {
		t.Fatalf("expected 4 stages executed, got %v", order)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos["A"] > pos["B"] || pos["A"] > pos["C"] || pos["B"] > pos["D"] || pos["C"] > pos["D"] {
		t.Errorf("dependency order violated: %v", order)
	}
	if h.MaxConcurrent() != 1 {
		t.Errorf("sequential mode must run one stage at a time, saw %d", h.MaxConcurrent())
	}

	if final.Metrics.CompletedStages != 4 || final.Metrics.RecordsProcessed != 4 {
		t.Errorf("unexpected metrics: %+v", final.Metrics)
	}
}

func TestExecute_ParallelBounded(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("diamond-par", domain.PipelineConfig{
		ParallelExecution:   true,
		MaxConcurrentStages: 2,
	})
	// Независимая пара B/C должна идти одновременно
	for i := range p.Stages {
		p.Stages[i].Config["sleep_ms"] = 40
	}
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	final := waitTerminal(t, o, exec.ID)
	if final.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}

	if got := h.MaxConcurrent(); got > 2 {
		t.Errorf("running set exceeded cap: %d", got)
	}

	pos := map[string]int{}
	for i, id := range h.Order() {
		pos[id] = i
	}
	if pos["A"] > pos["B"] || pos["A"] > pos["C"] || pos["D"] != 3 {
		t.Errorf("dependency order violated: %v", h.Order())
	}
}

func TestExecute_StopPolicyCancelsRemaining(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("stop-policy", domain.PipelineConfig{
		ErrorHandling: domain.ErrorPolicyStop,
	})
	p.Stages[1].Config["fail"] = true // B падает

	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	final := waitTerminal(t, o, exec.ID)
	if final.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}

	if got := final.Stage("B").Status; got != domain.ExecutionStatusFailed {
		t.Errorf("B: expected failed, got %s", got)
	}
	// Ни один stage не остаётся в pending
	for _, id := range []string{"C", "D"} {
		if got := final.Stage(id).Status; got != domain.ExecutionStatusCancelled {
			t.Errorf("%s: expected cancelled after stop, got %s", id, got)
		}
	}
}

func TestExecute_ContinuePolicyRunsAllStages(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("continue-policy", domain.PipelineConfig{
		ErrorHandling: domain.ErrorPolicyContinue,
	})
	p.Stages[1].Config["fail"] = true // B падает

	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	final := waitTerminal(t, o, exec.ID)

	// Упавший stage не делает запуск успешным
	if final.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	for _, id := range []string{"C", "D"} {
		if got := final.Stage(id).Status; got != domain.ExecutionStatusCompleted {
			t.Errorf("%s: expected completed under continue policy, got %s", id, got)
		}
	}
	if final.Metrics.FailedStages != 1 || final.Metrics.CompletedStages != 3 {
		t.Errorf("unexpected metrics: %+v", final.Metrics)
	}
}

func TestExecute_ParallelStopDoesNotAdmitBlocked(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("parallel-stop", domain.PipelineConfig{
		ParallelExecution:   true,
		MaxConcurrentStages: 2,
		ErrorHandling:       domain.ErrorPolicyStop,
	})
	p.Stages[0].Config["fail"] = true // A падает, B/C/D заблокированы

	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	final := waitTerminal(t, o, exec.ID)
	if final.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}

	order := h.Order()
	if len(order) != 1 || order[0] != "A" {
		t.Errorf("only A must run, got %v", order)
	}
	for _, id := range []string{"B", "C", "D"} {
		if got := final.Stage(id).Status; got != domain.ExecutionStatusCancelled {
			t.Errorf("%s: expected cancelled, got %s", id, got)
		}
	}
}

func TestExecute_CancelMidRun(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("cancel-mid", domain.PipelineConfig{})
	for i := range p.Stages {
		p.Stages[i].Config["sleep_ms"] = 200
	}
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Даём стартовать первому stage
	time.Sleep(50 * time.Millisecond)
	if err := o.CancelExecution(exec.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	final := waitTerminal(t, o, exec.ID)
	if final.Status != domain.ExecutionStatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}
	for id, se := range final.Stages {
		if se.Status == domain.ExecutionStatusPending {
			t.Errorf("stage %s left in pending after cancellation", id)
		}
	}

	if err := o.CancelExecution(exec.ID); !errors.Is(err, ErrExecutionFinished) {
		t.Errorf("second cancel: expected ErrExecutionFinished, got %v", err)
	}
}

func TestExecute_SnapshotIsolation(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("snapshot-iso", domain.PipelineConfig{})
	for i := range p.Stages {
		p.Stages[i].Config["sleep_ms"] = 100
	}
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Правим pipeline, пока execution идёт
	updated, _ := o.GetPipeline(p.ID)
	updated.Stages = []domain.Stage{{
		ID: "only", Type: domain.StageTypeTransform,
		Config: map[string]any{"id": "only"}, Enabled: true,
	}}
	if err := o.UpdatePipeline(updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	final := waitTerminal(t, o, exec.ID)
	if final.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if len(final.Stages) != 4 {
		t.Errorf("execution must keep its 4-stage snapshot, got %d", len(final.Stages))
	}
	if final.PipelineVersion != 1 {
		t.Errorf("expected snapshot of version 1, got %d", final.PipelineVersion)
	}

	fresh, _ := o.GetPipeline(p.ID)
	if fresh.Version != 2 {
		t.Errorf("expected pipeline version 2 after update, got %d", fresh.Version)
	}
}

func TestCreatePipeline_RejectsInvalidGraph(t *testing.T) {
	o := newTestOrchestrator(t, &traceHandler{})

	p := &domain.Pipeline{
		Name: "cyclic",
		Stages: []domain.Stage{
			{ID: "a", Type: domain.StageTypeTransform, DependsOn: []string{"b"}, Enabled: true},
			{ID: "b", Type: domain.StageTypeTransform, DependsOn: []string{"a"}, Enabled: true},
		},
	}
	if err := o.CreatePipeline(p); !errors.Is(err, engine.ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}

	p2 := &domain.Pipeline{
		Name: "unknown-type",
		Stages: []domain.Stage{
			{ID: "a", Type: "no_such_handler", Enabled: true},
		},
	}
	if err := o.CreatePipeline(p2); !errors.Is(err, engine.ErrUnknownStageType) {
		t.Errorf("expected ErrUnknownStageType, got %v", err)
	}
}

func TestLifecycle_Transitions(t *testing.T) {
	o := newTestOrchestrator(t, &traceHandler{})

	p := diamondPipeline("lifecycle", domain.PipelineConfig{})
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	// draft → paused недопустим
	if err := o.SetPipelineStatus(p.ID, domain.PipelineStatusPaused); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("draft->paused: expected ErrInvalidTransition, got %v", err)
	}

	steps := []domain.PipelineStatus{
		domain.PipelineStatusActive,
		domain.PipelineStatusPaused,
		domain.PipelineStatusActive,
		domain.PipelineStatusStopped,
		domain.PipelineStatusActive,
	}
	for _, target := range steps {
		if err := o.SetPipelineStatus(p.ID, target); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}

	got, _ := o.GetPipeline(p.ID)
	if got.Status != domain.PipelineStatusActive {
		t.Errorf("expected active, got %s", got.Status)
	}
}

func TestExecute_StoppedPipelineRejected(t *testing.T) {
	o := newTestOrchestrator(t, &traceHandler{})

	p := diamondPipeline("stopped", domain.PipelineConfig{})
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := o.SetPipelineStatus(p.ID, domain.PipelineStatusActive); err != nil {
		t.Fatal(err)
	}
	if err := o.SetPipelineStatus(p.ID, domain.PipelineStatusStopped); err != nil {
		t.Fatal(err)
	}

	if _, err := o.ExecutePipeline(p.ID, "manual", nil); !errors.Is(err, ErrPipelineStopped) {
		t.Errorf("expected ErrPipelineStopped, got %v", err)
	}
}

func TestDeletePipeline_CancelsLiveExecutions(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("delete-live", domain.PipelineConfig{})
	for i := range p.Stages {
		p.Stages[i].Config["sleep_ms"] = 300
	}
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	if err := o.DeletePipeline(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := o.GetPipeline(p.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected pipeline gone, got %v", err)
	}
	if _, err := o.GetExecution(exec.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected executions purged, got %v", err)
	}
}

func TestExecute_TerminalEventPublished(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	sub := o.Bus().Subscribe(16)
	defer sub.Unsubscribe()

	p := diamondPipeline("events", domain.PipelineConfig{})
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	waitTerminal(t, o, exec.ID)

	deadline := time.After(2 * time.Second)
	var seen []tracker.EventType
	for {
		select {
		case ev := <-sub.C:
			seen = append(seen, ev.Type)
			if ev.Type == tracker.EventExecutionCompleted {
				if ev.ExecutionID != exec.ID {
					t.Errorf("terminal event for wrong execution: %s", ev.ExecutionID)
				}
				return
			}
		case <-deadline:
			t.Fatalf("no terminal event, saw %v", seen)
		}
	}
}

func TestGetPipelineStats(t *testing.T) {
	h := &traceHandler{}
	o := newTestOrchestrator(t, h)

	p := diamondPipeline("stats", domain.PipelineConfig{})
	if err := o.CreatePipeline(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	exec, err := o.ExecutePipeline(p.ID, "manual", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	waitTerminal(t, o, exec.ID)

	stats, err := o.GetPipelineStats(p.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalExecutions != 1 || stats.Completed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %f", stats.SuccessRate)
	}
}
