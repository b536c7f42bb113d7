package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageType — тип обработчика stage.
//
// Оркестратор не знает, что именно делает stage конкретного типа —
// он лишь находит зарегистрированный handler и вызывает его.
// Добавление нового типа — это регистрация в runner.Registry,
// а не новая ветка кода внутри движка.
type StageType string

// Известные типы stages торговых pipelines.
const (
	StageTypeDataIngestion     StageType = "data_ingestion"
	StageTypeDataQuality       StageType = "data_quality"
	StageTypeTransform         StageType = "transform"
	StageTypeStrategyExecution StageType = "strategy_execution"
	StageTypeRiskCheck         StageType = "risk_check"
	StageTypeNotification      StageType = "notification"
)

// ErrorPolicy — политика обработки ошибок на уровне pipeline.
type ErrorPolicy string

const (
	// ErrorPolicyStop — первый упавший stage прерывает весь execution,
	// оставшиеся stages помечаются cancelled.
	ErrorPolicyStop ErrorPolicy = "stop"

	// ErrorPolicyContinue — выполнение продолжается несмотря на ошибки.
	ErrorPolicyContinue ErrorPolicy = "continue"

	// ErrorPolicyRetry — retry выполняется на уровне stage (RetryPolicy);
	// к моменту возврата управления движку попытки уже исчерпаны,
	// поэтому на уровне движка ведёт себя как continue.
	ErrorPolicyRetry ErrorPolicy = "retry"
)

// Pipeline — определение многоэтапного workflow.
//
// Pipeline — это "рецепт": набор stages с зависимостями и конфигурацией
// запуска. Каждое выполнение (Execution) снимает snapshot списка stages,
// поэтому правка pipeline не влияет на уже идущие executions.
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// Name — имя pipeline (например, "btc-ingest", "eod-report").
	Name string `json:"name"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// Version — номер версии определения. Инкрементируется при обновлении.
	Version int `json:"version"`

	// Stages — stages, составляющие pipeline.
	// Отношение зависимостей между ними обязано быть DAG —
	// это проверяется при создании и обновлении, не при запуске.
	Stages []Stage `json:"stages"`

	// Config — конфигурация выполнения.
	Config PipelineConfig `json:"config"`

	// Schedule — расписание автоматического запуска (опционально).
	Schedule *Schedule `json:"schedule,omitempty"`

	// Status — статус жизненного цикла.
	Status PipelineStatus `json:"status"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// Stage returns ищет stage по ID. Nil, если не найден.
func (p *Pipeline) Stage(id string) *Stage {
	for i := range p.Stages {
		if p.Stages[i].ID == id {
			return &p.Stages[i]
		}
	}
	return nil
}

// PipelineConfig — конфигурация выполнения pipeline.
type PipelineConfig struct {
	// ParallelExecution — выполнять независимые stages параллельно.
	ParallelExecution bool `json:"parallel_execution"`

	// MaxConcurrentStages — ограничение одновременно выполняемых stages
	// в параллельном режиме. Минимум 1.
	MaxConcurrentStages int `json:"max_concurrent_stages"`

	// ErrorHandling — политика обработки ошибок: stop, continue, retry.
	ErrorHandling ErrorPolicy `json:"error_handling"`

	// EnableMetrics — собирать prometheus-метрики для этого pipeline.
	EnableMetrics bool `json:"enable_metrics"`

	// EnableAlerts — отправлять критический alert при падении execution.
	EnableAlerts bool `json:"enable_alerts"`
}

// Normalize приводит конфигурацию к валидным значениям по умолчанию.
func (c *PipelineConfig) Normalize() {
	if c.MaxConcurrentStages < 1 {
		c.MaxConcurrentStages = 1
	}
	if c.ErrorHandling == "" {
		c.ErrorHandling = ErrorPolicyStop
	}
}

// Stage — единица работы внутри pipeline.
type Stage struct {
	// ID — идентификатор stage, уникальный в рамках pipeline.
	// Используется в depends_on и в записях StageExecution.
	ID string `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name,omitempty"`

	// Type — тип обработчика (ключ в runner.Registry).
	Type StageType `json:"type"`

	// Config — opaque-конфигурация, интерпретируется handler'ом.
	Config map[string]any `json:"config,omitempty"`

	// DependsOn — ID stages, которые должны завершиться до запуска этого.
	// Ссылки только на stages того же pipeline; self-reference и циклы
	// отвергаются при валидации.
	DependsOn []string `json:"depends_on,omitempty"`

	// Condition — условие запуска. Nil означает "always".
	Condition *Condition `json:"condition,omitempty"`

	// Retry — политика повторных попыток. Nil — без retry.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// TimeoutMs — таймаут выполнения handler'а в миллисекундах.
	// 0 — используется DefaultStageTimeout.
	TimeoutMs int `json:"timeout_ms,omitempty"`

	// Enabled — выключенный stage пропускается (skipped), не считается ошибкой.
	Enabled bool `json:"enabled"`
}

// DefaultStageTimeout — таймаут выполнения stage по умолчанию.
const DefaultStageTimeout = 300000 * time.Millisecond

// Timeout возвращает эффективный таймаут stage.
func (s *Stage) Timeout() time.Duration {
	if s.TimeoutMs > 0 {
		return time.Duration(s.TimeoutMs) * time.Millisecond
	}
	return DefaultStageTimeout
}

// RetryPolicy — политика повторных попыток stage.
type RetryPolicy struct {
	// MaxRetries — максимальное количество повторов (без учёта первой попытки).
	MaxRetries int `json:"max_retries"`

	// BackoffMs — базовая задержка перед повтором в миллисекундах.
	BackoffMs int `json:"backoff_ms"`

	// MaxBackoffMs — потолок задержки в миллисекундах.
	MaxBackoffMs int `json:"max_backoff_ms"`

	// RetryableErrors — allow-list видов ошибок, при которых делается retry.
	// Пустой список — retry при любой ошибке.
	RetryableErrors []string `json:"retryable_errors,omitempty"`
}

// Delay вычисляет задержку перед попыткой attempt (начиная с 1):
//
//	delay = min(backoff * 2^(attempt-1), maxBackoff)
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	base := time.Duration(p.BackoffMs) * time.Millisecond
	if base <= 0 {
		base = time.Second
	}

	ceiling := time.Duration(p.MaxBackoffMs) * time.Millisecond
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		delay = ceiling
	}
	return delay
}

// Retryable проверяет, входит ли вид ошибки в allow-list.
func (p *RetryPolicy) Retryable(kind string) bool {
	if len(p.RetryableErrors) == 0 {
		return true
	}
	for _, k := range p.RetryableErrors {
		if k == kind {
			return true
		}
	}
	return false
}
