package domain

// ConditionKind — вид условия запуска stage.
type ConditionKind string

const (
	// ConditionAlways — stage выполняется безусловно.
	ConditionAlways ConditionKind = "always"

	// ConditionSuccess — выполняется, только если все ранее обработанные
	// stages завершились completed или ещё pending.
	ConditionSuccess ConditionKind = "success"

	// ConditionFailure — выполняется, только если хотя бы один из ранее
	// обработанных stages упал.
	ConditionFailure ConditionKind = "failure"

	// ConditionCustom — выполняется, если кастомный предикат истинен.
	ConditionCustom ConditionKind = "custom"
)

// Condition — условие запуска stage.
//
// Ложное условие переводит stage в skipped, не в failed.
type Condition struct {
	// Kind — вид условия.
	Kind ConditionKind `json:"kind"`

	// Custom — предикат для kind=custom.
	Custom *Predicate `json:"custom,omitempty"`
}

// CompareOp — оператор сравнения в предикате.
type CompareOp string

const (
	OpEq       CompareOp = "eq"
	OpNe       CompareOp = "ne"
	OpGt       CompareOp = "gt"
	OpGte      CompareOp = "gte"
	OpLt       CompareOp = "lt"
	OpLte      CompareOp = "lte"
	OpContains CompareOp = "contains"
	OpExists   CompareOp = "exists"
)

// Predicate — замкнутый язык предикатов для кастомных условий.
//
// Предикат — tagged union: заполнено ровно одно из полей.
// Интерпретируется движком над типизированными полями execution
// (или payload события для trigger guards) — произвольный код
// никогда не выполняется.
type Predicate struct {
	// Compare — сравнение поля с константой.
	Compare *CompareField `json:"compare,omitempty"`

	// And — конъюнкция вложенных предикатов.
	And []Predicate `json:"and,omitempty"`

	// Or — дизъюнкция вложенных предикатов.
	Or []Predicate `json:"or,omitempty"`

	// Not — отрицание вложенного предиката.
	Not *Predicate `json:"not,omitempty"`
}

// CompareField — сравнение поля execution с константой.
//
// Field — путь через точку, ограниченный полями самого execution:
//
//	"status"                  — статус execution
//	"triggered_by"            — источник запуска
//	"environment"             — environment контекста
//	"params.<key>"            — параметр запуска
//	"stages.<id>.status"      — статус stage
//	"stages.<id>.retry_count" — количество retry stage
//	"payload.<key>"           — поле payload (только для trigger guards)
type CompareField struct {
	Field string    `json:"field"`
	Op    CompareOp `json:"op"`
	Value any       `json:"value,omitempty"`
}
