package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Info("connection opened", "endpoint", "/api/v1/sse/tasks")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["msg"] != "connection opened" {
		t.Errorf("msg = %v, want connection opened", entry["msg"])
	}
	if entry["endpoint"] != "/api/v1/sse/tasks" {
		t.Errorf("endpoint = %v, want /api/v1/sse/tasks", entry["endpoint"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("below-level entries were written: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestInfoContext_EnrichesFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	ctx := WithConnectionID(context.Background(), "conn-42")
	ctx = WithEventName(ctx, "task_created")
	logger.InfoContext(ctx, "event dispatched")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["connection_id"] != "conn-42" {
		t.Errorf("connection_id = %v, want conn-42", entry["connection_id"])
	}
	if entry["event"] != "task_created" {
		t.Errorf("event = %v, want task_created", entry["event"])
	}
}

func TestWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background())

	first := ctx.Value(CorrelationIDKey)
	if first == nil || first == "" {
		t.Fatal("correlation ID not set")
	}

	second := WithCorrelationID(context.Background()).Value(CorrelationIDKey)
	if first == second {
		t.Error("correlation IDs are not unique")
	}
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.With("component", "reconciler").Info("applied event")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry["component"] != "reconciler" {
		t.Errorf("component = %v, want reconciler", entry["component"])
	}
}
