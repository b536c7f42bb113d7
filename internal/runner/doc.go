// Package runner выполняет отдельные stages pipeline.
//
// Runner — это слой между движком выполнения и внешними подсистемами:
//   - Registry отображает тип stage на Handler (единственная точка
//     подключения data ingestion, стратегий, нотификаций и т.д.)
//   - Run гонит вызов handler'а против таймаута stage, реализует
//     retry с exponential backoff и ведёт переходы статусов
//
// Все точки ожидания (работа handler'а, backoff, таймаут) отменяемы
// через context — отмена execution наблюдается без ожидания таймаута.
package runner
