package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output — форматирование вывода CLI: таблицы для людей, JSON для pipe.
// Данные идут в stdout, сообщения Success/Error — в stderr, чтобы
// `pipectl ... --json | jq .` получал чистый JSON.
type Output struct {
	jsonOut bool
	data    io.Writer
	msg     io.Writer
}

// NewOutput создаёт Output. При jsonMode=true данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonOut: jsonMode,
		data:    os.Stdout,
		msg:     os.Stderr,
	}
}

// Print выводит данные в активном режиме: JSON или таблицу.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonOut {
		o.JSON(jsonData)
	} else {
		o.Table(headers, rows)
	}
}

// Table печатает заголовок, строку-разделитель и строки данных
// через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	sep := make([]string, len(headers))
	for i := range headers {
		sep[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON печатает значение с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success печатает сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msg, msg)
}

// Error печатает сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.msg, "Error: "+msg)
}
