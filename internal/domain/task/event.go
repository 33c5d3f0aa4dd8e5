package task

// Stream event names emitted by the task API over the SSE channel.
// The first three carry a task payload; the last two are connection
// housekeeping and never reach domain handlers.
const (
	EventTaskCreated           = "task_created"
	EventTaskUpdated           = "task_updated"
	EventTaskDeleted           = "task_deleted"
	EventConnectionEstablished = "connection_established"
	EventHeartbeat             = "heartbeat"
)

// DomainEventNames lists the event names that describe task changes.
var DomainEventNames = []string{EventTaskCreated, EventTaskUpdated, EventTaskDeleted}

// EventKind discriminates the task change a domain event describes.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event is a classified task change notification. Task is the server's
// post-change snapshot; for deletes it is the last known state.
type Event struct {
	Kind EventKind
	Task Task
}
