package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TriggerMessage — входящее trigger-событие.
type TriggerMessage struct {
	// Event — имя события ("market.open", "quote.gap", ...).
	Event string `json:"event"`

	// Payload — данные события, доступные guard-предикатам
	// через поля payload.<key>.
	Payload map[string]any `json:"payload,omitempty"`

	// Timestamp — время события у продюсера.
	Timestamp time.Time `json:"timestamp"`
}

// Sink — приёмник trigger-событий (scheduler).
type Sink interface {
	HandleEvent(event string, payload map[string]any) int
}

// Source потребляет trigger-события из RabbitMQ и передаёт их
// scheduler'у.
type Source struct {
	conn     *Connection
	sink     Sink
	logger   *slog.Logger
	prefetch int

	cancelFunc context.CancelFunc
}

// SourceConfig — конфигурация Source.
type SourceConfig struct {
	// Conn — соединение с RabbitMQ (обязательно).
	Conn *Connection

	// Sink — приёмник событий (обязателен).
	Sink Sink

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// NewSource создаёт новый Source.
func NewSource(cfg SourceConfig) *Source {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		conn:     cfg.Conn,
		sink:     cfg.Sink,
		logger:   logger,
		prefetch: prefetch,
	}
}

// Start запускает потребление trigger-событий. Блокирует до отмены ctx.
func (s *Source) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	return s.consume(ctx)
}

// consume — основной цикл потребления.
func (s *Source) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := s.setupConsume()
		if err != nil {
			s.logger.Error("failed to setup consume", "queue", QueueTriggers, "error", err)
			// Ждём переподключения
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.conn.ReconnectNotify():
				s.logger.Info("reconnected, restarting trigger source")
				continue
			}
		}

		s.logger.Info("trigger source started", "queue", QueueTriggers)

		if err := s.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("deliveries channel closed, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// setupConsume настраивает канал и начинает потребление.
func (s *Source) setupConsume() (<-chan amqp.Delivery, error) {
	ch := s.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(s.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		QueueTriggers, // queue
		"",            // consumer tag (auto-generated)
		false,         // auto-ack (мы ack вручную)
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает сообщения из канала.
func (s *Source) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			s.handleDelivery(raw)
		}
	}
}

// handleDelivery обрабатывает одно trigger-событие.
func (s *Source) handleDelivery(raw amqp.Delivery) {
	var msg TriggerMessage
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		s.logger.Error("failed to unmarshal trigger message",
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректное сообщение не станет корректным при redelivery
		raw.Nack(false, false)
		return
	}

	if msg.Event == "" {
		s.logger.Warn("trigger message without event name, dropping")
		raw.Nack(false, false)
		return
	}

	launched := s.sink.HandleEvent(msg.Event, msg.Payload)
	s.logger.Debug("trigger event handled",
		"event", msg.Event,
		"launched", launched,
	)

	raw.Ack(false)
}

// Stop останавливает Source.
func (s *Source) Stop() {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
}
