package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// NewUpdateCmd creates the update command.
func NewUpdateCmd() *cobra.Command {
	var title string
	var description string
	var status string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Long: `Update fields of an existing task.

Only the fields passed as flags are sent; everything else is left
unchanged by the server. At least one field flag is required.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			patch := task.Patch{}
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("status") {
				parsed, err := parseStatusFlag(status)
				if err != nil {
					return err
				}
				patch.Status = &parsed
			}

			return runUpdate(cmd.Context(), id, patch)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "new status: open, in_progress, done")

	return cmd
}

func runUpdate(ctx context.Context, id int, patch task.Patch) error {
	formatter := GetFormatter()

	updated, err := GetContainer().Tasks().Update(ctx, id, patch)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", id, err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(updated)
	}

	return formatter.Success("Updated task #%d: %s [%s]", updated.ID, updated.Title, updated.Status)
}
