// Package task defines the task entity, its lifecycle events, and the
// paginated view types the client caches locally. The server owns task
// identity and timestamps; this package only validates what the client
// sends and models what the client receives.
package task

import (
	"regexp"
	"strings"
	"time"

	"github.com/preludium/taskwatch/internal/domain/errors"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// Statuses lists all valid task statuses in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusDone}

// Valid reports whether s is a known task status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Field limits enforced by the API; mirrored here so invalid mutations
// fail before a round trip.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

// htmlTagPattern matches anything that looks like an HTML tag. The API
// rejects tag syntax outright rather than sanitizing it.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// Task is the entity managed by the task API. ID and the timestamps are
// assigned by the server, never by this client.
type Task struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Draft holds the client-supplied fields for a create request.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status,omitempty"`
}

// Patch holds the optional fields for a partial update. Nil fields are
// omitted from the request and left unchanged by the server.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// ValidateTitle normalizes and validates a task title.
// Titles are trimmed, must be non-empty, at most MaxTitleLength runes,
// and must not contain HTML tag syntax.
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", errors.NewError(errors.CodeValidation, "title cannot be empty or just whitespace", nil)
	}
	if len([]rune(trimmed)) > MaxTitleLength {
		return "", errors.NewError(errors.CodeValidation, "title exceeds 200 characters", nil)
	}
	if htmlTagPattern.MatchString(trimmed) {
		return "", errors.NewError(errors.CodeValidation, "title must not contain HTML tags", nil)
	}
	return trimmed, nil
}

// ValidateDescription normalizes and validates a task description.
// An empty-after-trim description collapses to the empty string, which
// the API treats as "no description".
func ValidateDescription(description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "", nil
	}
	if len([]rune(trimmed)) > MaxDescriptionLength {
		return "", errors.NewError(errors.CodeValidation, "description exceeds 1000 characters", nil)
	}
	if htmlTagPattern.MatchString(trimmed) {
		return "", errors.NewError(errors.CodeValidation, "description must not contain HTML tags", nil)
	}
	return trimmed, nil
}

// Validate normalizes the draft in place and returns the first
// validation failure, if any.
func (d *Draft) Validate() error {
	title, err := ValidateTitle(d.Title)
	if err != nil {
		return err
	}
	d.Title = title

	description, err := ValidateDescription(d.Description)
	if err != nil {
		return err
	}
	d.Description = description

	if d.Status == "" {
		d.Status = StatusOpen
	}
	if !d.Status.Valid() {
		return errors.NewError(errors.CodeValidation, "invalid task status", nil)
	}
	return nil
}

// Validate normalizes the patch in place and returns the first
// validation failure, if any. A patch with no fields set is valid but
// useless; callers decide whether to reject it.
func (p *Patch) Validate() error {
	if p.Title != nil {
		title, err := ValidateTitle(*p.Title)
		if err != nil {
			return err
		}
		p.Title = &title
	}
	if p.Description != nil {
		description, err := ValidateDescription(*p.Description)
		if err != nil {
			return err
		}
		p.Description = &description
	}
	if p.Status != nil && !p.Status.Valid() {
		return errors.NewError(errors.CodeValidation, "invalid task status", nil)
	}
	return nil
}

// Empty reports whether the patch carries no fields.
func (p *Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil
}

// Merge applies the non-zero fields of incoming onto t, preserving
// everything incoming does not carry. Used by the reconciler when an
// update event arrives for a cached task.
func (t *Task) Merge(incoming Task) {
	if incoming.Title != "" {
		t.Title = incoming.Title
	}
	if incoming.Description != "" {
		t.Description = incoming.Description
	}
	if incoming.Status != "" {
		t.Status = incoming.Status
	}
	if !incoming.CreatedAt.IsZero() {
		t.CreatedAt = incoming.CreatedAt
	}
	if !incoming.UpdatedAt.IsZero() {
		t.UpdatedAt = incoming.UpdatedAt
	}
}
