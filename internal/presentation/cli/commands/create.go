package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// NewCreateCmd creates the create command.
func NewCreateCmd() *cobra.Command {
	var description string
	var status string

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new task",
		Long: `Create a new task with the given title.

The title may be passed as several arguments; they are joined with
spaces. New tasks default to the OPEN status.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), strings.Join(args, " "), description, status)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "initial status: open, in_progress, done (default: open)")

	return cmd
}

func runCreate(ctx context.Context, title, description, statusFlag string) error {
	formatter := GetFormatter()

	status, err := parseStatusFlag(statusFlag)
	if err != nil {
		return err
	}

	draft := task.Draft{
		Title:       title,
		Description: description,
		Status:      status,
	}

	created, err := GetContainer().Tasks().Create(ctx, draft)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(created)
	}

	return formatter.Success("Created task #%d: %s", created.ID, created.Title)
}
