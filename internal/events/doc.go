// Package events связывает движок с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges и очередей
//   - source.go     — потребление trigger-событий для event-расписаний
//   - relay.go      — ретрансляция событий жизненного цикла наружу
//
// Exchanges:
//   - pipelines.triggers  — входящие trigger-события (topic, trigger.#)
//   - pipelines.lifecycle — исходящие события pipelines и executions
package events
