package ports

import (
	"context"

	"github.com/preludium/taskwatch/internal/domain/task"
)

// Health describes the API's health endpoint response.
type Health struct {
	Status      string  `json:"status"`
	Timestamp   float64 `json:"timestamp"`
	Environment string  `json:"environment"`
	Version     string  `json:"version,omitempty"`
}

// TaskAPI is the pull/mutate surface of the task backend. The stream
// never flows through this port; pushes arrive via StreamSource.
type TaskAPI interface {
	// List fetches one page of tasks for the query.
	List(ctx context.Context, query task.Query) (task.Page, error)

	// Counts fetches the per-status aggregate counts.
	Counts(ctx context.Context) (task.StatusCounts, error)

	// Get fetches a single task by ID.
	Get(ctx context.Context, id int) (task.Task, error)

	// Create creates a task and returns the server's version of it.
	Create(ctx context.Context, draft task.Draft) (task.Task, error)

	// Update partially updates a task and returns the server's version.
	Update(ctx context.Context, id int, patch task.Patch) (task.Task, error)

	// Delete removes a task.
	Delete(ctx context.Context, id int) error

	// Health reports the backend's health.
	Health(ctx context.Context) (Health, error)
}
