package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// NewGetCmd creates the get command for displaying a single task.
func NewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return runGet(cmd.Context(), id)
		},
	}
}

// parseTaskID parses a positional task id argument.
func parseTaskID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q: must be a positive integer", arg)
	}
	return id, nil
}

func runGet(ctx context.Context, id int) error {
	formatter := GetFormatter()

	t, err := GetContainer().Tasks().Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get task %d: %w", id, err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(t)
	}

	return renderTask(formatter, t)
}

// renderTask renders one task as key-value lines.
func renderTask(formatter *output.Formatter, t task.Task) error {
	formatter.Header(fmt.Sprintf("Task #%d", t.ID))
	formatter.Item("Title", t.Title)
	formatter.Item("Status", formatter.StatusText(string(t.Status)))
	if t.Description != "" {
		formatter.Item("Description", t.Description)
	}
	formatter.Item("Created", t.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	formatter.Item("Updated", t.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}
