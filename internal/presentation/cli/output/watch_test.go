package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func newTestView(buf *bytes.Buffer) *WatchView {
	return NewWatchView(
		WithWatchWriter(buf),
		WithWatchColor(false),
		WithWatchClock(fixedClock),
	)
}

func TestWatchView_Event(t *testing.T) {
	tests := []struct {
		name string
		evt  task.Event
		want string
	}{
		{
			name: "created shows status",
			evt: task.Event{
				Kind: task.EventCreated,
				Task: task.Task{ID: 7, Title: "write report", Status: task.StatusOpen},
			},
			want: "created #7 write report [OPEN]",
		},
		{
			name: "deleted omits status",
			evt: task.Event{
				Kind: task.EventDeleted,
				Task: task.Task{ID: 7, Title: "write report", Status: task.StatusDone},
			},
			want: "deleted #7 write report",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			v := newTestView(&buf)

			v.Event(tt.evt)

			got := buf.String()
			if !strings.Contains(got, tt.want) {
				t.Errorf("Event() output = %q, want it to contain %q", got, tt.want)
			}
			if !strings.HasPrefix(got, "09:26:53") {
				t.Errorf("Event() output missing timestamp prefix: %q", got)
			}
		})
	}
}

func TestWatchView_ConnectionState(t *testing.T) {
	var buf bytes.Buffer
	v := newTestView(&buf)

	v.ConnectionState(ports.ConnectionState{Status: ports.StatusConnecting})
	v.ConnectionState(ports.ConnectionState{Status: ports.StatusConnected})

	out := buf.String()
	if !strings.Contains(out, "connecting...") {
		t.Errorf("output missing connecting line: %q", out)
	}
	if !strings.Contains(out, "• connected") {
		t.Errorf("output missing connected line: %q", out)
	}
}

func TestWatchView_ReconnectingCountdownRedraws(t *testing.T) {
	var buf bytes.Buffer
	v := newTestView(&buf)

	v.ConnectionState(ports.ConnectionState{
		Status:             ports.StatusReconnecting,
		RetryCount:         2,
		NextRetryInSeconds: 4,
		LastError:          "stream closed by server",
	})
	v.ConnectionState(ports.ConnectionState{
		Status:             ports.StatusReconnecting,
		RetryCount:         2,
		NextRetryInSeconds: 3,
	})

	out := buf.String()
	if !strings.Contains(out, "retry 2 in 4s") || !strings.Contains(out, "retry 2 in 3s") {
		t.Errorf("countdown updates missing: %q", out)
	}
	if !strings.Contains(out, "stream closed by server") {
		t.Errorf("last error missing from countdown: %q", out)
	}
	// Countdown redraws use carriage returns, not new lines.
	if strings.Contains(out, "\n") {
		t.Errorf("countdown emitted a newline before resolution: %q", out)
	}

	// A terminal state closes the countdown line before printing.
	v.ConnectionState(ports.ConnectionState{Status: ports.StatusConnected})
	if !strings.Contains(buf.String(), "\n") {
		t.Errorf("connected state did not terminate the countdown line")
	}
}

func TestWatchView_FailedState(t *testing.T) {
	var buf bytes.Buffer
	v := newTestView(&buf)

	v.ConnectionState(ports.ConnectionState{
		Status:    ports.StatusFailed,
		LastError: "connection refused",
	})

	out := buf.String()
	if !strings.Contains(out, "retries exhausted") || !strings.Contains(out, "connection refused") {
		t.Errorf("failed state output = %q", out)
	}
}

func TestWatchView_Summary(t *testing.T) {
	var buf bytes.Buffer
	v := newTestView(&buf)

	v.Summary(12, 95*time.Second)

	out := buf.String()
	if !strings.Contains(out, "watched 12 event(s) over 1m35s") {
		t.Errorf("Summary() output = %q", out)
	}
}
