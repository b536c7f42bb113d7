// Package engine содержит чистые алгоритмы над определением pipeline:
//
//   - Resolve — валидация зависимостей и детерминированная
//     топологическая сортировка stages (DFS с grey/black множествами)
//   - ValidatePipeline/ValidateStages — полная валидация определения
//     на этапе создания/обновления, до любого запуска
//   - EvaluateCondition/EvaluatePredicate — интерпретатор замкнутого
//     языка условий запуска stage
//
// Package не имеет side effects и не зависит от рантайма выполнения.
package engine
