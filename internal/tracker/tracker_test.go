package tracker

import (
	"testing"

	"github.com/google/uuid"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

func newTestRecorder(t *testing.T, stageIDs ...string) *Recorder {
	t.Helper()

	stages := make([]domain.Stage, len(stageIDs))
	for i, id := range stageIDs {
		stages[i] = domain.Stage{
			ID:      id,
			Type:    domain.StageTypeTransform,
			Enabled: true,
		}
	}

	exec := domain.NewExecution(uuid.New(), 1, stages, "manual", nil)
	return NewRecorder(exec, nil)
}

func TestRecorder_FinalizeAggregatesMetrics(t *testing.T) {
	rec := newTestRecorder(t, "a", "b", "c", "d")
	rec.MarkRunning()

	rec.MarkStageRunning("a")
	rec.MarkStageCompleted("a", map[string]any{"ok": true}, domain.StageMetrics{
		RecordsProcessed: 100,
		BytesProcessed:   2048,
	})

	rec.MarkStageRunning("b")
	// MarkStageFailed сам добавляет запись в Errors
	rec.MarkStageFailed("b", "boom", "handler_error")

	rec.MarkStageSkipped("c")
	// "d" остаётся pending: Finalize обязан закрыть его сам

	rec.Finalize(domain.ExecutionStatusFailed)

	exec := rec.Execution()
	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected failed, got %s", exec.Status)
	}
	if exec.EndTime == nil {
		t.Error("expected EndTime to be set")
	}
	if got := exec.Stages["d"].Status; got != domain.ExecutionStatusCancelled {
		t.Errorf("pending stage must end cancelled, got %s", got)
	}

	m := exec.Metrics
	if m.TotalStages != 4 {
		t.Errorf("TotalStages = %d, want 4", m.TotalStages)
	}
	if m.CompletedStages != 1 || m.FailedStages != 1 || m.SkippedStages != 1 {
		t.Errorf("stage counts = %d/%d/%d, want 1/1/1",
			m.CompletedStages, m.FailedStages, m.SkippedStages)
	}
	if m.RecordsProcessed != 100 || m.BytesProcessed != 2048 {
		t.Errorf("records/bytes = %d/%d, want 100/2048",
			m.RecordsProcessed, m.BytesProcessed)
	}
	if m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
	}
	if m.PerformanceScore != 85.0 {
		t.Errorf("PerformanceScore = %v, want 85", m.PerformanceScore)
	}
}

func TestRecorder_PerformanceScoreFloor(t *testing.T) {
	rec := newTestRecorder(t, "a")
	rec.MarkRunning()

	// 8 retry-ошибок плюс терминальная от MarkStageFailed:
	// 100 - 9*15 < 0, score прижимается к нулю
	for i := 0; i < 8; i++ {
		rec.RecordError("a", "handler_error", "boom", i)
	}
	rec.MarkStageFailed("a", "boom", "handler_error")
	rec.Finalize(domain.ExecutionStatusFailed)

	if got := rec.Execution().Metrics.PerformanceScore; got != 0 {
		t.Errorf("PerformanceScore = %v, want 0", got)
	}
}

func TestRecorder_CancelIsIdempotent(t *testing.T) {
	rec := newTestRecorder(t, "a")
	rec.MarkRunning()

	if !rec.Cancel() {
		t.Fatal("first cancel must succeed")
	}
	if rec.Cancel() {
		t.Error("second cancel must report already-cancelled")
	}
	if !rec.Cancelled() {
		t.Error("Cancelled() must be true after Cancel")
	}

	// Finalize не перетирает cancelled другим терминальным статусом
	rec.Finalize(domain.ExecutionStatusCompleted)
	if got := rec.Status(); got != domain.ExecutionStatusCancelled {
		t.Errorf("status = %s, want cancelled", got)
	}
}

func TestRecorder_CancelAfterFinish(t *testing.T) {
	rec := newTestRecorder(t, "a")
	rec.MarkRunning()
	rec.MarkStageRunning("a")
	rec.MarkStageCompleted("a", nil, domain.StageMetrics{})
	rec.Finalize(domain.ExecutionStatusCompleted)

	if rec.Cancel() {
		t.Error("cancel of a finished execution must be rejected")
	}
	if got := rec.Status(); got != domain.ExecutionStatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
}

func TestRecorder_ExecutionCopyIsolation(t *testing.T) {
	rec := newTestRecorder(t, "a")
	rec.MarkRunning()
	rec.Log("info", "a", "first")

	cp := rec.Execution()
	cp.Logs = append(cp.Logs, domain.LogEntry{Message: "mutated"})
	cp.Stages["a"].Status = domain.ExecutionStatusFailed

	if got := len(rec.Execution().Logs); got != 1 {
		t.Errorf("log count = %d, want 1", got)
	}
	if got := rec.StageStatus("a"); got != domain.ExecutionStatusPending {
		t.Errorf("stage status = %s, want pending", got)
	}
}

func TestBus_PublishAndUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	sub := bus.Subscribe(4)

	ev := Event{Type: EventExecutionStarted, PipelineID: uuid.New()}
	bus.Publish(ev)

	got := <-sub.C
	if got.Type != EventExecutionStarted {
		t.Fatalf("event type = %s, want %s", got.Type, EventExecutionStarted)
	}
	if got.Time.IsZero() {
		t.Error("publish must stamp event time")
	}

	sub.Unsubscribe()
	if _, ok := <-sub.C; ok {
		t.Error("channel must be closed after Unsubscribe")
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	sub := bus.Subscribe(1)
	defer sub.Unsubscribe()

	// Буфер на одно событие: второй Publish обязан вернуться сразу,
	// сбросив событие для отставшего подписчика.
	bus.Publish(Event{Type: EventExecutionStarted})
	bus.Publish(Event{Type: EventExecutionCompleted})

	got := <-sub.C
	if got.Type != EventExecutionStarted {
		t.Fatalf("event type = %s, want %s", got.Type, EventExecutionStarted)
	}
	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected buffered event %s", ev.Type)
	default:
	}
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe(1)

	bus.Close()
	bus.Close()

	if _, ok := <-sub.C; ok {
		t.Error("channel must be closed after bus Close")
	}

	// Подписка на закрытую шину сразу возвращает закрытый канал
	late := bus.Subscribe(1)
	if _, ok := <-late.C; ok {
		t.Error("subscription on a closed bus must yield a closed channel")
	}
}
