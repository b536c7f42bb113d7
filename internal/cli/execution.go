package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewExecutionCmd создаёт группу команд для управления executions.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "execution",
		Aliases: []string{"exec"},
		Short:   "Manage executions",
	}

	cmd.AddCommand(
		newExecutionListCmd(clientFn, outputFn),
		newExecutionStartCmd(clientFn, outputFn),
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionCancelCmd(clientFn, outputFn),
		newExecutionLogsCmd(clientFn, outputFn),
	)

	return cmd
}

func executionRow(e *ExecutionResponse) []string {
	return []string{
		e.ID, e.PipelineID, strconv.Itoa(e.PipelineVersion),
		e.Status, e.TriggeredBy,
		strconv.FormatInt(e.DurationMs, 10), e.StartTime,
	}
}

var executionHeaders = []string{"ID", "PIPELINE_ID", "VERSION", "STATUS", "TRIGGERED_BY", "DURATION_MS", "STARTED"}

func newExecutionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pipelineID string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			execs, err := client.ListExecutions(pipelineID, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(execs))
			for i := range execs {
				rows[i] = executionRow(&execs[i])
			}

			out.Print(executionHeaders, rows, execs)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineID, "pipeline-id", "", "Filter by pipeline ID")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newExecutionStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var environment string
	var params []string

	cmd := &cobra.Command{
		Use:   "start PIPELINE_ID",
		Short: "Start a pipeline execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := ExecuteRequest{Environment: environment}

			if len(params) > 0 {
				req.Parameters = make(map[string]any)
				for _, kv := range params {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid parameter format %q, expected KEY=VALUE", kv)
					}
					req.Parameters[parts[0]] = parts[1]
				}
			}

			exec, err := client.ExecutePipeline(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution started: %s", exec.ID))
			out.Print(executionHeaders, [][]string{executionRow(exec)}, exec)
			return nil
		},
	}

	cmd.Flags().StringVar(&environment, "env", "", "Execution environment name")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Execution parameter KEY=VALUE (repeatable)")

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details with per-stage status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			out.Print(executionHeaders, [][]string{executionRow(exec)}, exec)

			if len(exec.Stages) > 0 && !outputIsJSON(cmd) {
				stageHeaders := []string{"STAGE", "STATUS", "RETRIES", "ERROR"}
				rows := make([][]string, 0, len(exec.Stages))
				for _, s := range exec.Stages {
					rows = append(rows, []string{
						s.StageID, s.Status, strconv.Itoa(s.RetryCount), s.Error,
					})
				}
				out.Table(stageHeaders, rows)
			}
			return nil
		},
	}
}

func newExecutionCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.CancelExecution(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Execution cancelled: %s", exec.ID))
			out.Print(executionHeaders, [][]string{executionRow(exec)}, exec)
			return nil
		},
	}
}

func newExecutionLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs ID",
		Short: "Show execution log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			exec, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TIME", "LEVEL", "STAGE", "MESSAGE"}
			rows := make([][]string, len(exec.Logs))
			for i, l := range exec.Logs {
				rows[i] = []string{l.Time, l.Level, l.StageID, l.Message}
			}

			out.Print(headers, rows, exec.Logs)
			return nil
		},
	}
}

// outputIsJSON проверяет глобальный флаг --json у корневой команды.
func outputIsJSON(cmd *cobra.Command) bool {
	f := cmd.Root().PersistentFlags().Lookup("json")
	return f != nil && f.Value.String() == "true"
}
