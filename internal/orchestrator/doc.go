// Package orchestrator — фасад движка pipelines.
//
// Оркестратор связывает компоненты системы:
//   - CRUD и валидация определений pipeline
//   - Lifecycle state machine pipeline (draft → active ⇄ paused → stopped)
//   - Execution engine: последовательное и параллельное выполнение
//     stages с учётом зависимостей и политики ошибок
//   - Финализация executions: агрегация метрик, события, алерты
//
// Управление течёт сверху вниз (scheduler → engine → stage runner →
// handler), наблюдаемость — снизу вверх (runner/engine → recorder →
// подписчики шины событий).
package orchestrator
