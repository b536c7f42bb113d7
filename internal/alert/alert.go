// Package alert — критические уведомления об инцидентах pipeline.
package alert

import (
	"log/slog"
)

// Notifier получает критические уведомления движка: упавшие executions,
// необрабатываемые ошибки scheduler'а. Реализация решает, куда их
// доставлять (лог, мессенджер, pager).
type Notifier interface {
	AlertCritical(title, message, source string, data map[string]any)
}

// LogNotifier — Notifier, пишущий алерты в structured log.
// Используется по умолчанию, когда внешний канал не настроен.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// AlertCritical пишет алерт уровня error.
func (n *LogNotifier) AlertCritical(title, message, source string, data map[string]any) {
	attrs := []any{"title", title, "source", source}
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	n.logger.Error(message, attrs...)
}

// Noop — Notifier, игнорирующий алерты. Для тестов и
// конфигураций с выключенными алертами.
type Noop struct{}

// AlertCritical ничего не делает.
func (Noop) AlertCritical(title, message, source string, data map[string]any) {}
