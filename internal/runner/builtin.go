package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// Встроенные simulation handlers для всех известных типов stage.
//
// Реальные подсистемы (ingestion, стратегии, доставка алертов)
// подключаются через Registry.Register и вытесняют встроенные.
// Встроенные handlers имитируют работу: ctx-aware задержка плюс
// синтетический результат, чтобы pipeline можно было гонять без
// внешних интеграций.

// RegisterBuiltin регистрирует simulation handlers для всех типов stage.
func RegisterBuiltin(reg *Registry, logger *slog.Logger) {
	reg.Register(domain.StageTypeDataIngestion, simulationHandler("data_ingestion", logger,
		func(config map[string]any) map[string]any {
			records := configInt(config, "records", 1000)
			return map[string]any{
				"records_ingested": records,
				"source":           configString(config, "source", "simulated"),
			}
		}))

	reg.Register(domain.StageTypeDataQuality, simulationHandler("data_quality", logger,
		func(config map[string]any) map[string]any {
			return map[string]any{
				"quality_score": 0.95 + rand.Float64()*0.05,
				"checks_run":    configInt(config, "checks", 12),
			}
		}))

	reg.Register(domain.StageTypeTransform, simulationHandler("transform", logger,
		func(config map[string]any) map[string]any {
			return map[string]any{
				"rows_transformed": configInt(config, "rows", 1000),
			}
		}))

	reg.Register(domain.StageTypeStrategyExecution, simulationHandler("strategy_execution", logger,
		func(config map[string]any) map[string]any {
			return map[string]any{
				"strategy": configString(config, "strategy", "noop"),
				"signals":  configInt(config, "signals", 0),
			}
		}))

	reg.Register(domain.StageTypeRiskCheck, simulationHandler("risk_check", logger,
		func(config map[string]any) map[string]any {
			return map[string]any{
				"risk_ok":      true,
				"max_drawdown": configString(config, "max_drawdown", "0.05"),
			}
		}))

	reg.Register(domain.StageTypeNotification, simulationHandler("notification", logger,
		func(config map[string]any) map[string]any {
			return map[string]any{
				"channel": configString(config, "channel", "log"),
				"sent":    true,
			}
		}))
}

// simulationHandler строит handler: ctx-aware задержка sleep_ms,
// управляемый сбой через fail=true, результат через produce.
func simulationHandler(name string, logger *slog.Logger, produce func(config map[string]any) map[string]any) Handler {
	return HandlerFunc(func(ctx context.Context, execCtx *domain.ExecutionContext, config map[string]any) (*Result, error) {
		if delay := configInt(config, "sleep_ms", 0); delay > 0 {
			timer := time.NewTimer(time.Duration(delay) * time.Millisecond)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if fail, _ := config["fail"].(bool); fail {
			kind := configString(config, "fail_kind", ErrorKindHandler)
			return nil, NewStageError(kind, errors.New("simulated failure"))
		}

		output := produce(config)
		if logger != nil {
			logger.Debug("simulation stage done", "handler", name, "environment", execCtx.Environment)
		}

		return &Result{
			Output:           output,
			RecordsProcessed: int64(configInt(config, "records", 0)),
		}, nil
	})
}

// configInt читает числовое значение из config.
// JSON-декодер даёт float64, прямое конструирование — int.
func configInt(config map[string]any, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

// configString читает строковое значение из config.
func configString(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return def
}
