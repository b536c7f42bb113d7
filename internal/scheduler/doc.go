// Package scheduler запускает pipelines по расписанию.
//
// Поддерживаются три вида расписаний:
//   - interval — запуск каждые N секунд
//   - cron — запуск по cron-выражению с учётом timezone
//   - event — запуск по внешнему событию с опциональным guard-предикатом
//     над payload
//
// Overlap-политика: skip. Срабатывание при ещё идущем execution того же
// pipeline пропускается и не ставится в очередь.
//
// Teardown синхронный: Remove возвращается только после остановки
// таймер-горутины и снятия подписок, поэтому после stop/delete pipeline
// ни один новый scheduled-запуск не стартует.
package scheduler
