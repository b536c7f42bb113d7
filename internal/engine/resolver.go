package engine

import (
	"github.com/daninithi/alphintra-pipelines/internal/domain"
)

// Цвета узлов для DFS-обхода.
const (
	colorWhite = iota // не посещён
	colorGrey         // в процессе обхода (visiting)
	colorBlack        // обход завершён (visited)
)

// Resolve валидирует зависимости stages и возвращает их в топологическом
// порядке: каждый stage идёт после всех своих зависимостей.
//
// Свойства:
//   - Чистая функция: входной slice не модифицируется.
//   - Детерминизм: связи между независимыми stages разрешаются порядком
//     входного списка, повторный вызов даёт идентичный результат.
//   - Зависимость на несуществующий stage — DanglingError.
//   - Цикл — CycleError, частичный порядок никогда не возвращается.
func Resolve(stages []domain.Stage) ([]domain.Stage, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyStages
	}

	index := make(map[string]int, len(stages))
	for i := range stages {
		index[stages[i].ID] = i
	}

	// Все зависимости должны ссылаться на stages из входного набора
	for i := range stages {
		for _, dep := range stages[i].DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, &DanglingError{StageID: stages[i].ID, MissingID: dep}
			}
		}
	}

	// DFS с множествами visiting (grey) и visited (black).
	// Повторный вход в grey-узел замыкает цикл.
	colors := make([]int, len(stages))
	order := make([]domain.Stage, 0, len(stages))

	var visit func(i int) error
	visit = func(i int) error {
		switch colors[i] {
		case colorBlack:
			return nil
		case colorGrey:
			return &CycleError{StageID: stages[i].ID}
		}

		colors[i] = colorGrey
		for _, dep := range stages[i].DependsOn {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		colors[i] = colorBlack

		order = append(order, stages[i])
		return nil
	}

	for i := range stages {
		if err := visit(i); err != nil {
			return nil, err
		}
	}

	return order, nil
}
