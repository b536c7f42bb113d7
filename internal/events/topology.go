package events

import (
	"fmt"
)

// Имена exchanges.
const (
	// ExchangeTriggers — входящие внешние события для event-триггеров
	// (market data, риск-сигналы, завершение upstream-загрузок).
	ExchangeTriggers = "pipelines.triggers"

	// ExchangeLifecycle — исходящие события жизненного цикла
	// pipelines и executions.
	ExchangeLifecycle = "pipelines.lifecycle"
)

// QueueTriggers — очередь входящих trigger-событий.
const QueueTriggers = "pipelines.triggers.in"

// SetupTopology объявляет exchanges и очереди.
//
// Triggers — topic exchange: продюсеры публикуют с routing key вида
// "trigger.<event>", очередь подписана на trigger.#. Lifecycle —
// topic exchange без своих очередей: подписчики заводят их сами.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	for _, name := range []string{ExchangeTriggers, ExchangeLifecycle} {
		err := ch.ExchangeDeclare(
			name,    // name
			"topic", // type
			true,    // durable
			false,   // auto-deleted
			false,   // internal
			false,   // no-wait
			nil,     // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}

	_, err := ch.QueueDeclare(
		QueueTriggers, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueTriggers, err)
	}

	err = ch.QueueBind(
		QueueTriggers,     // queue name
		"trigger.#",       // routing key
		ExchangeTriggers,  // exchange
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		return fmt.Errorf("bind queue %s: %w", QueueTriggers, err)
	}

	return nil
}
