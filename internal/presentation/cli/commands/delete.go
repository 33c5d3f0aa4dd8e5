package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// DeleteResult is the JSON shape of the delete command's output.
type DeleteResult struct {
	ID      int  `json:"id"`
	Deleted bool `json:"deleted"`
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Short:   "Delete a task",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return runDelete(cmd.Context(), id)
		},
	}
}

func runDelete(ctx context.Context, id int) error {
	formatter := GetFormatter()

	if err := GetContainer().Tasks().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(DeleteResult{ID: id, Deleted: true})
	}

	return formatter.Success("Deleted task #%d", id)
}
