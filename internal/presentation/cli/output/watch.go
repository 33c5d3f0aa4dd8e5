package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
)

// WatchView renders a live feed of task events and connection state
// transitions for the watch command. Event lines are appended; the
// reconnect countdown is redrawn in place so it does not scroll the
// feed.
type WatchView struct {
	mu            sync.Mutex
	writer        io.Writer
	colored       bool
	clock         func() time.Time
	countdownOpen bool
}

// WatchViewOption is a functional option for configuring a WatchView.
type WatchViewOption func(*WatchView)

// NewWatchView creates a WatchView with the given options.
func NewWatchView(opts ...WatchViewOption) *WatchView {
	v := &WatchView{
		writer:  os.Stdout,
		colored: true,
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// WithWatchWriter sets the output writer.
func WithWatchWriter(w io.Writer) WatchViewOption {
	return func(v *WatchView) {
		v.writer = w
	}
}

// WithWatchColor enables or disables colored output.
func WithWatchColor(enabled bool) WatchViewOption {
	return func(v *WatchView) {
		v.colored = enabled
	}
}

// WithWatchClock overrides the timestamp source, for tests.
func WithWatchClock(clock func() time.Time) WatchViewOption {
	return func(v *WatchView) {
		v.clock = clock
	}
}

// Event renders one classified task event as a feed line.
func (v *WatchView) Event(evt task.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeCountdownLocked()

	var verb string
	var color Color
	switch evt.Kind {
	case task.EventCreated:
		verb, color = "created", ColorGreen
	case task.EventUpdated:
		verb, color = "updated", ColorYellow
	case task.EventDeleted:
		verb, color = "deleted", ColorRed
	default:
		verb, color = string(evt.Kind), ColorWhite
	}

	line := fmt.Sprintf("#%d %s", evt.Task.ID, evt.Task.Title)
	if evt.Kind != task.EventDeleted && evt.Task.Status != "" {
		line += fmt.Sprintf(" [%s]", evt.Task.Status)
	}

	// Error intentionally ignored for terminal output
	_, _ = fmt.Fprintf(v.writer, "%s %s %s\n",
		v.dim(v.clock().Format("15:04:05")),
		v.colorize(fmt.Sprintf("%-7s", verb), color),
		line)
}

// ConnectionState renders a connection state transition. Reconnecting
// states with a pending countdown are redrawn on a single line.
func (v *WatchView) ConnectionState(state ports.ConnectionState) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch state.Status {
	case ports.StatusConnecting:
		v.closeCountdownLocked()
		v.statusLineLocked(ColorCyan, "connecting...")
	case ports.StatusConnected:
		v.closeCountdownLocked()
		v.statusLineLocked(ColorGreen, "connected")
	case ports.StatusReconnecting:
		msg := fmt.Sprintf("connection lost, retry %d in %ds", state.RetryCount, state.NextRetryInSeconds)
		if state.LastError != "" {
			msg += " (" + state.LastError + ")"
		}
		v.redrawCountdownLocked(msg)
	case ports.StatusFailed:
		v.closeCountdownLocked()
		msg := "connection failed, retries exhausted"
		if state.LastError != "" {
			msg += ": " + state.LastError
		}
		v.statusLineLocked(ColorRed, msg)
	case ports.StatusDisconnected:
		v.closeCountdownLocked()
		v.statusLineLocked(ColorDim, "disconnected")
	}
}

// statusLineLocked writes a timestamped connection status line.
func (v *WatchView) statusLineLocked(color Color, msg string) {
	// Error intentionally ignored for terminal output
	_, _ = fmt.Fprintf(v.writer, "%s %s\n",
		v.dim(v.clock().Format("15:04:05")),
		v.colorize("• "+msg, color))
}

// redrawCountdownLocked overwrites the current line with the countdown.
func (v *WatchView) redrawCountdownLocked(msg string) {
	v.countdownOpen = true
	// Trailing spaces clear remnants of a longer previous message.
	_, _ = fmt.Fprintf(v.writer, "\r%s %s    ",
		v.dim(v.clock().Format("15:04:05")),
		v.colorize("• "+msg, ColorYellow))
}

// closeCountdownLocked terminates an in-place countdown line before
// appending normal feed output.
func (v *WatchView) closeCountdownLocked() {
	if !v.countdownOpen {
		return
	}
	v.countdownOpen = false
	_, _ = fmt.Fprintln(v.writer)
}

func (v *WatchView) colorize(text string, color Color) string {
	if !v.colored {
		return text
	}
	return string(color) + text + string(ColorReset)
}

func (v *WatchView) dim(text string) string {
	return v.colorize(text, ColorDim)
}

// Summary prints a closing line when the watch session ends.
func (v *WatchView) Summary(events int, elapsed time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeCountdownLocked()

	elapsed = elapsed.Round(time.Second)
	_, _ = fmt.Fprintf(v.writer, "%s\n",
		v.dim(fmt.Sprintf("watched %d event(s) over %s", events, formatElapsed(elapsed))))
}

// formatElapsed renders a duration as a compact human string.
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return strings.TrimSuffix(d.String(), "0s")
}
