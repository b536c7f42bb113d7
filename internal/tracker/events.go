package tracker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла.
type EventType string

// События, публикуемые оркестратором.
const (
	EventPipelineCreated    EventType = "pipeline.created"
	EventPipelineUpdated    EventType = "pipeline.updated"
	EventPipelineDeleted    EventType = "pipeline.deleted"
	EventExecutionStarted   EventType = "execution.started"
	EventExecutionCompleted EventType = "execution.completed"
	EventExecutionFailed    EventType = "execution.failed"
	EventExecutionCancelled EventType = "execution.cancelled"
)

// Event — событие жизненного цикла pipeline/execution.
type Event struct {
	// Type — тип события.
	Type EventType `json:"type"`

	// PipelineID — pipeline, к которому относится событие.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// ExecutionID — execution (для execution.* событий).
	ExecutionID uuid.UUID `json:"execution_id,omitempty"`

	// Time — время события.
	Time time.Time `json:"time"`

	// Data — дополнительные данные (статус, длительность и т.д.).
	Data map[string]any `json:"data,omitempty"`
}

// Subscription — подписка на события.
//
// Потребитель читает из C и обязан вызвать Unsubscribe по окончании —
// подписки держатся Bus'ом явно, утечек listeners нет.
type Subscription struct {
	// C — канал событий подписки.
	C <-chan Event

	id  int
	bus *Bus
}

// Unsubscribe снимает подписку и закрывает канал.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

// Bus — шина событий оркестратора (observer pattern).
//
// Оркестратор не знает своих подписчиков: dashboards и alerting
// подписываются сами. Публикация не блокирует выполнение —
// события для переполненных подписчиков отбрасываются с warning.
type Bus struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus создаёт шину событий.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[int]chan Event),
	}
}

// Subscribe создаёт подписку с буфером buffer (минимум 1).
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	id := b.nextID
	b.nextID++

	if b.closed {
		close(ch)
	} else {
		b.subs[id] = ch
	}

	return &Subscription{C: ch, id: id, bus: b}
}

// Publish рассылает событие всем подписчикам без блокировки.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("event subscriber buffer full, dropping event",
				"subscriber", id,
				"event_type", event.Type,
			)
		}
	}
}

// Close закрывает шину и все подписки.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
