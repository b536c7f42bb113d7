package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для управления pipelines.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Manage pipelines",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineCreateCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
		newPipelineUpdateCmd(clientFn, outputFn),
		newPipelineDeleteCmd(clientFn, outputFn),
		newPipelineStatusCmd(clientFn, outputFn),
		newPipelineStatsCmd(clientFn, outputFn),
		newPipelineScheduleCmd(clientFn, outputFn),
	)

	return cmd
}

func pipelineRow(p *PipelineResponse) []string {
	return []string{
		p.ID, p.Name, strconv.Itoa(p.Version), p.Status,
		strconv.Itoa(len(p.Stages)), p.CreatedAt,
	}
}

var pipelineHeaders = []string{"ID", "NAME", "VERSION", "STATUS", "STAGES", "CREATED"}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			rows := make([][]string, len(pipelines))
			for i := range pipelines {
				rows[i] = pipelineRow(&pipelines[i])
			}

			out.Print(pipelineHeaders, rows, pipelines)
			return nil
		},
	}
}

func newPipelineCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var defFile string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline from definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(defFile)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("definition file is not valid JSON")
			}

			p, err := client.CreatePipeline(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline created: %s", p.ID))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&defFile, "file", "", "Path to pipeline definition JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show pipeline details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}
}

func newPipelineUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var defFile string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a pipeline from definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(defFile)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("definition file is not valid JSON")
			}

			p, err := client.UpdatePipeline(args[0], json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline updated to version %d", p.Version))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&defFile, "file", "", "Path to pipeline definition JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newPipelineDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeletePipeline(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline deleted: %s", args[0]))
			return nil
		},
	}
}

func newPipelineStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Transition pipeline status (active, paused, stopped)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.SetPipelineStatus(args[0], args[1])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Pipeline status: %s", p.Status))
			out.Print(pipelineHeaders, [][]string{pipelineRow(p)}, p)
			return nil
		},
	}
}

func newPipelineStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats ID",
		Short: "Show pipeline execution statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetPipelineStats(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TOTAL", "COMPLETED", "FAILED", "CANCELLED", "RUNNING", "SUCCESS_RATE", "AVG_MS", "LAST_STATUS"}
			rows := [][]string{{
				strconv.Itoa(stats.TotalExecutions),
				strconv.Itoa(stats.Completed),
				strconv.Itoa(stats.Failed),
				strconv.Itoa(stats.Cancelled),
				strconv.Itoa(stats.Running),
				fmt.Sprintf("%.1f%%", stats.SuccessRate*100),
				strconv.FormatInt(stats.AvgDurationMs, 10),
				stats.LastStatus,
			}}

			out.Print(headers, rows, stats)
			return nil
		},
	}
}

func newPipelineScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule ID",
		Short: "Show pipeline schedule with next/last run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sched, err := client.GetPipelineSchedule(args[0])
			if err != nil {
				return err
			}

			// Расписание — вложенная структура, выводим всегда JSON'ом.
			out.JSON(sched)
			return nil
		},
	}
}
