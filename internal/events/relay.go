package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/daninithi/alphintra-pipelines/internal/tracker"
)

// Relay подписывается на шину событий оркестратора и публикует
// события жизненного цикла в RabbitMQ.
//
// Routing key — тип события ("execution.completed", "pipeline.deleted"),
// так что внешние подписчики фильтруют topic-binding'ами.
type Relay struct {
	conn   *Connection
	bus    *tracker.Bus
	logger *slog.Logger
}

// NewRelay создаёт новый Relay.
func NewRelay(conn *Connection, bus *tracker.Bus, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{conn: conn, bus: bus, logger: logger}
}

// Start ретранслирует события шины до отмены ctx или закрытия шины.
func (r *Relay) Start(ctx context.Context) error {
	sub := r.bus.Subscribe(64)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := r.publish(ctx, ev); err != nil {
				// Потеря одного lifecycle-события не критична
				r.logger.Warn("failed to relay event",
					"event_type", ev.Type,
					"error", err,
				)
			}
		}
	}
}

// publish публикует одно событие.
func (r *Relay) publish(ctx context.Context, ev tracker.Event) error {
	ch := r.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		ExchangeLifecycle, // exchange
		string(ev.Type),   // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.New().String(),
			Timestamp:    ev.Time,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", ExchangeLifecycle, ev.Type, err)
	}

	r.logger.Debug("relayed event",
		"event_type", ev.Type,
		"pipeline_id", ev.PipelineID,
	)
	return nil
}
