package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// NewCountsCmd creates the counts command.
func NewCountsCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show per-status task counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounts(cmd.Context(), refresh)
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "bypass the cache and pull from the API")

	return cmd
}

func runCounts(ctx context.Context, refresh bool) error {
	formatter := GetFormatter()
	svc := GetContainer().Tasks()

	var counts task.StatusCounts
	var err error
	if refresh {
		_, err = svc.Refresh(ctx)
		if err == nil {
			counts, err = svc.Counts(ctx)
		}
	} else {
		counts, err = svc.Counts(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to get task counts: %w", err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(counts)
	}

	err = formatter.Table(output.TableData{
		Columns: []output.TableColumn{
			{Header: "STATUS"},
			{Header: "COUNT", Align: output.AlignRight},
		},
		Rows: [][]string{
			{string(task.StatusOpen), strconv.Itoa(counts.Open)},
			{string(task.StatusInProgress), strconv.Itoa(counts.InProgress)},
			{string(task.StatusDone), strconv.Itoa(counts.Done)},
		},
	})
	if err != nil {
		return err
	}

	return formatter.Println("\n%s", formatter.Dim(fmt.Sprintf("%d task(s) total", counts.Total)))
}
