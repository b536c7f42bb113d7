// Package domain содержит основные сущности оркестратора pipelines:
//
//   - Pipeline и Stage — определение workflow и его единиц работы
//   - PipelineConfig и RetryPolicy — конфигурация выполнения
//   - Schedule и TriggerDef — расписания автоматического запуска
//   - Execution и StageExecution — состояние одного запуска
//   - Condition и Predicate — замкнутый язык условий запуска
//
// Package не содержит бизнес-логики выполнения — только типы данных,
// их инварианты и простые методы переходов статусов.
package domain
