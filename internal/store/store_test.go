package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

func testPipeline(name string) *domain.Pipeline {
	now := time.Now()
	return &domain.Pipeline{
		ID:   uuid.New(),
		Name: name,
		Stages: []domain.Stage{
			{ID: "ingest", Type: domain.StageTypeDataIngestion, Enabled: true},
		},
		Status:    domain.PipelineStatusDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPipelineStore_CRUD(t *testing.T) {
	s := NewPipelineStore()
	p := testPipeline("daily-etl")

	if err := s.Create(p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(testPipeline("daily-etl")); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate name: expected ErrAlreadyExists, got %v", err)
	}

	got, err := s.Get(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "daily-etl" {
		t.Errorf("expected daily-etl, got %s", got.Name)
	}

	byName, err := s.GetByName("daily-etl")
	if err != nil || byName.ID != p.ID {
		t.Errorf("get by name: %v, %v", byName, err)
	}

	got.Name = "renamed"
	if err := s.Update(got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.GetByName("daily-etl"); !errors.Is(err, ErrNotFound) {
		t.Error("old name must be released after rename")
	}
	if _, err := s.GetByName("renamed"); err != nil {
		t.Errorf("new name must resolve: %v", err)
	}

	if err := s.Delete(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPipelineStore_GetReturnsCopy(t *testing.T) {
	s := NewPipelineStore()
	p := testPipeline("etl")
	if err := s.Create(p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := s.Get(p.ID)
	got.Stages[0].ID = "mutated"
	got.Name = "mutated"

	fresh, _ := s.Get(p.ID)
	if fresh.Name != "etl" || fresh.Stages[0].ID != "ingest" {
		t.Error("mutation of returned pipeline must not leak into store")
	}
}

func TestPipelineStore_ListNewestFirst(t *testing.T) {
	s := NewPipelineStore()

	first := testPipeline("first")
	first.CreatedAt = time.Now().Add(-time.Hour)
	second := testPipeline("second")

	if err := s.Create(first); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(second); err != nil {
		t.Fatal(err)
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 pipelines, got %d", len(list))
	}
	if list[0].Name != "second" {
		t.Errorf("expected newest first, got %s", list[0].Name)
	}
}

func newFinishedRecorder(pipelineID uuid.UUID, status domain.ExecutionStatus, started time.Time) *tracker.Recorder {
	exec := domain.NewExecution(pipelineID, 1, []domain.Stage{
		{ID: "ingest", Type: domain.StageTypeDataIngestion, Enabled: true},
	}, "manual", nil)
	exec.StartTime = started

	rec := tracker.NewRecorder(exec, nil)
	rec.MarkRunning()
	switch status {
	case domain.ExecutionStatusCompleted:
		rec.MarkStageCompleted("ingest", nil, domain.StageMetrics{DurationMs: 100})
	case domain.ExecutionStatusFailed:
		rec.MarkStageFailed("ingest", "boom", "handler_error")
	}
	rec.Finalize(status)
	return rec
}

func TestExecutionStore_RetentionEvictsOldestFinished(t *testing.T) {
	s := NewExecutionStore(ExecutionStoreConfig{Retention: 2})
	pipelineID := uuid.New()

	base := time.Now().Add(-time.Hour)
	oldest := newFinishedRecorder(pipelineID, domain.ExecutionStatusCompleted, base)
	s.Put(oldest)
	s.Put(newFinishedRecorder(pipelineID, domain.ExecutionStatusCompleted, base.Add(time.Minute)))
	s.Put(newFinishedRecorder(pipelineID, domain.ExecutionStatusCompleted, base.Add(2*time.Minute)))

	if got := len(s.List(pipelineID, 0)); got != 2 {
		t.Fatalf("expected 2 retained executions, got %d", got)
	}
	if _, err := s.Get(oldest.ExecutionID()); !errors.Is(err, ErrNotFound) {
		t.Error("oldest finished execution must be evicted")
	}
}

func TestExecutionStore_RetentionNeverEvictsRunning(t *testing.T) {
	s := NewExecutionStore(ExecutionStoreConfig{Retention: 1})
	pipelineID := uuid.New()

	running := tracker.NewRecorder(domain.NewExecution(pipelineID, 1, []domain.Stage{
		{ID: "ingest", Type: domain.StageTypeDataIngestion, Enabled: true},
	}, "manual", nil), nil)
	running.MarkRunning()

	s.Put(running)
	base := time.Now().Add(-time.Hour)
	s.Put(newFinishedRecorder(pipelineID, domain.ExecutionStatusCompleted, base))
	s.Put(newFinishedRecorder(pipelineID, domain.ExecutionStatusCompleted, base.Add(time.Minute)))

	if _, err := s.Get(running.ExecutionID()); err != nil {
		t.Error("running execution must survive retention")
	}
	if !s.HasRunning(pipelineID) {
		t.Error("HasRunning must see the live execution")
	}
}

func TestExecutionStore_ListScopedAndLimited(t *testing.T) {
	s := NewExecutionStore(ExecutionStoreConfig{})
	a := uuid.New()
	b := uuid.New()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		s.Put(newFinishedRecorder(a, domain.ExecutionStatusCompleted, base.Add(time.Duration(i)*time.Minute)))
	}
	s.Put(newFinishedRecorder(b, domain.ExecutionStatusFailed, base))

	if got := len(s.List(a, 0)); got != 3 {
		t.Errorf("expected 3 executions for pipeline a, got %d", got)
	}
	if got := len(s.List(uuid.Nil, 0)); got != 4 {
		t.Errorf("expected 4 executions total, got %d", got)
	}

	limited := s.List(a, 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}
	if !limited[0].StartTime.After(limited[1].StartTime) {
		t.Error("expected newest first")
	}
}

func TestExecutionStore_Stats(t *testing.T) {
	s := NewExecutionStore(ExecutionStoreConfig{})
	pipelineID := uuid.New()

	base := time.Now().Add(-time.Hour)
	s.Put(newFinishedRecorder(pipelineID, domain.ExecutionStatusCompleted, base))
	s.Put(newFinishedRecorder(pipelineID, domain.ExecutionStatusCompleted, base.Add(time.Minute)))
	s.Put(newFinishedRecorder(pipelineID, domain.ExecutionStatusFailed, base.Add(2*time.Minute)))

	stats := s.Stats(pipelineID)
	if stats.TotalExecutions != 3 {
		t.Errorf("expected 3 executions, got %d", stats.TotalExecutions)
	}
	if stats.Completed != 2 || stats.Failed != 1 {
		t.Errorf("expected 2 completed / 1 failed, got %d / %d", stats.Completed, stats.Failed)
	}
	want := 2.0 / 3.0
	if diff := stats.SuccessRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected success rate %.3f, got %.3f", want, stats.SuccessRate)
	}
	if stats.LastStatus != domain.ExecutionStatusFailed {
		t.Errorf("expected last status failed, got %s", stats.LastStatus)
	}
}

func TestExecutionStore_DeleteByPipeline(t *testing.T) {
	s := NewExecutionStore(ExecutionStoreConfig{})
	a := uuid.New()
	b := uuid.New()

	s.Put(newFinishedRecorder(a, domain.ExecutionStatusCompleted, time.Now()))
	s.Put(newFinishedRecorder(b, domain.ExecutionStatusCompleted, time.Now()))

	s.DeleteByPipeline(a)

	if got := len(s.List(a, 0)); got != 0 {
		t.Errorf("expected pipeline a executions gone, got %d", got)
	}
	if got := len(s.List(b, 0)); got != 1 {
		t.Errorf("pipeline b executions must remain, got %d", got)
	}
}
