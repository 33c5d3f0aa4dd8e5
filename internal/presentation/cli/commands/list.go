package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// queryFlags holds the view selection flags shared by list and watch.
type queryFlags struct {
	status   string
	contains string
	page     int
	size     int
	orderBy  string
	orderDir string
}

// register adds the view selection flags to a command.
func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.status, "status", "s", "", "filter by status: open, in_progress, done")
	cmd.Flags().StringVar(&f.contains, "contains", "", "filter by title substring")
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number")
	cmd.Flags().IntVar(&f.size, "size", task.DefaultPageSize, "page size (max 100)")
	cmd.Flags().StringVar(&f.orderBy, "order-by", task.DefaultOrderBy, "sort field: id, title, status, created_at, updated_at")
	cmd.Flags().StringVar(&f.orderDir, "order-direction", task.DefaultOrderDir, "sort direction: asc, desc")
}

// toQuery converts the flags into a normalized query.
func (f *queryFlags) toQuery() (task.Query, error) {
	status, err := parseStatusFlag(f.status)
	if err != nil {
		return task.Query{}, err
	}

	return task.Query{
		Status:         status,
		TitleContains:  f.contains,
		Page:           f.page,
		Size:           f.size,
		OrderBy:        f.orderBy,
		OrderDirection: f.orderDir,
	}.Normalize(), nil
}

// parseStatusFlag maps a flag value onto a task status. Empty input
// means no filter.
func parseStatusFlag(s string) (task.Status, error) {
	if s == "" {
		return "", nil
	}
	status := task.Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q (valid options: open, in_progress, done)", s)
	}
	return status, nil
}

// TaskListOutput is the JSON shape of the list command's output.
type TaskListOutput struct {
	Items []task.Task `json:"items"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Pages int         `json:"pages"`
}

// NewListCmd creates the list command for displaying a page of tasks.
func NewListCmd() *cobra.Command {
	var flags queryFlags
	var refresh bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long: `Display one page of the task list.

The page is served from the local cache when a fresh entry exists;
use --refresh to force a pull from the API.`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), &flags, refresh)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "bypass the cache and pull from the API")

	return cmd
}

func runList(ctx context.Context, flags *queryFlags, refresh bool) error {
	formatter := GetFormatter()

	query, err := flags.toQuery()
	if err != nil {
		return err
	}

	svc := GetContainer().Tasks()
	svc.SetQuery(query)

	var page task.Page
	if refresh {
		page, err = svc.Refresh(ctx)
	} else {
		page, err = svc.Page(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(TaskListOutput{
			Items: page.Items,
			Total: page.Total,
			Page:  page.Page,
			Size:  page.Size,
			Pages: page.Pages(),
		})
	}

	return renderTaskTable(formatter, page)
}

// renderTaskTable renders a task page as a formatted table.
func renderTaskTable(formatter *output.Formatter, page task.Page) error {
	if len(page.Items) == 0 {
		return formatter.Println("No tasks found.")
	}

	rows := make([][]string, 0, len(page.Items))
	for _, t := range page.Items {
		rows = append(rows, []string{
			strconv.Itoa(t.ID),
			t.Title,
			string(t.Status),
			t.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	err := formatter.Table(output.TableData{
		Columns: []output.TableColumn{
			{Header: "ID", Align: output.AlignRight},
			{Header: "TITLE"},
			{Header: "STATUS"},
			{Header: "UPDATED"},
		},
		Rows: rows,
	})
	if err != nil {
		return err
	}

	return formatter.Println("\n%s", formatter.Dim(fmt.Sprintf(
		"page %d of %d (%d task(s) total)", page.Page, page.Pages(), page.Total)))
}
