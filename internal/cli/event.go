package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для работы с событиями.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Inject external events",
	}

	cmd.AddCommand(newEventFireCmd(clientFn, outputFn))

	return cmd
}

func newEventFireCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payload []string

	cmd := &cobra.Command{
		Use:   "fire EVENT",
		Short: "Fire an event against event-triggered pipelines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var data map[string]any
			if len(payload) > 0 {
				data = make(map[string]any)
				for _, kv := range payload {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid payload format %q, expected KEY=VALUE", kv)
					}
					// Числовые значения передаём числами: trigger guards
					// сравнивают payload как числа при Gt/Lt.
					if f, err := strconv.ParseFloat(parts[1], 64); err == nil {
						data[parts[0]] = f
					} else {
						data[parts[0]] = parts[1]
					}
				}
			}

			resp, err := client.InjectEvent(args[0], data)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Event %q fired, %d execution(s) launched", args[0], resp.Launched))
			out.Print(
				[]string{"EVENT", "LAUNCHED"},
				[][]string{{args[0], strconv.Itoa(resp.Launched)}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&payload, "data", nil, "Event payload KEY=VALUE (repeatable)")

	return cmd
}
