package tasks

import (
	"bytes"
	"encoding/json"

	"github.com/preludium/taskwatch/internal/domain/task"
)

// Classify interprets one dispatched frame as a task change. It is a
// pure filter, not a validator: anything that is not a well-formed
// domain event (unknown event name, missing or non-object data,
// missing or non-object task, task without an identity) is rejected
// silently. Rejection is not an error condition.
func Classify(name string, data []byte) (task.Event, bool) {
	var kind task.EventKind
	switch name {
	case task.EventTaskCreated:
		kind = task.EventCreated
	case task.EventTaskUpdated:
		kind = task.EventUpdated
	case task.EventTaskDeleted:
		kind = task.EventDeleted
	default:
		return task.Event{}, false
	}

	var envelope struct {
		Task json.RawMessage `json:"task"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return task.Event{}, false
	}

	payload := bytes.TrimSpace(envelope.Task)
	if len(payload) == 0 || payload[0] != '{' {
		return task.Event{}, false
	}

	var t task.Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return task.Event{}, false
	}
	if t.ID <= 0 {
		return task.Event{}, false
	}

	return task.Event{Kind: kind, Task: t}, true
}
