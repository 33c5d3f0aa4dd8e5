package commands

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
	"github.com/preludium/taskwatch/internal/infrastructure/config"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// NewWatchCmd creates the watch command for following live task changes.
func NewWatchCmd() *cobra.Command {
	var flags queryFlags
	var duration time.Duration
	var noInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live task changes",
		Long: `Subscribe to the task event stream and print changes as they
arrive. The local cache is reconciled in place, so a later list
reflects everything seen while watching.

Lost connections are retried with exponential backoff; the pending
retry countdown is shown in place. When the retry budget is exhausted
the command exits with an error.

Runs until interrupted, or until --for elapses when given.`,
		Aliases: []string{"w"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), &flags, duration, noInitial)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&duration, "for", 0, "stop watching after this duration (0 = until interrupted)")
	cmd.Flags().BoolVar(&noInitial, "no-initial", false, "skip printing the current page before watching")

	return cmd
}

func runWatch(ctx context.Context, flags *queryFlags, duration time.Duration, noInitial bool) error {
	formatter := GetFormatter()
	svc := GetContainer().Tasks()

	query, err := flags.toQuery()
	if err != nil {
		return err
	}
	svc.SetQuery(query)

	// Materialize the watched view so stream events have a page to
	// reconcile against.
	page, err := svc.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to load initial view: %w", err)
	}
	if !noInitial && formatter.Format() != output.FormatJSON {
		if err := renderTaskTable(formatter, page); err != nil {
			return err
		}
		formatter.Println("")
	}

	view := output.NewWatchView(
		output.WithWatchColor(formatter.Format() != output.FormatJSON && output.IsColorSupported()),
	)

	var eventCount atomic.Int64
	failedCh := make(chan ports.ConnectionState, 1)

	unsubEvents := svc.OnEvent(func(evt task.Event) {
		eventCount.Add(1)
		view.Event(evt)
	})
	defer unsubEvents()

	unsubState := svc.OnStateChange(func(state ports.ConnectionState) {
		view.ConnectionState(state)
		if state.IsFailed() {
			select {
			case failedCh <- state:
			default:
			}
		}
	})
	defer unsubState()

	// A config edit while watching forces a reconnect, which also
	// recovers a failed subscription. Endpoint changes still need a
	// restart; the container captured them at init.
	if watcher := startConfigWatcher(formatter, svc.ForceReconnect); watcher != nil {
		defer watcher.Close()
	}

	started := time.Now()
	svc.Subscribe()
	defer svc.Unsubscribe()

	var deadline <-chan time.Time
	if duration > 0 {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-ctx.Done():
		view.Summary(int(eventCount.Load()), time.Since(started))
		return nil
	case <-deadline:
		view.Summary(int(eventCount.Load()), time.Since(started))
		return nil
	case state := <-failedCh:
		view.Summary(int(eventCount.Load()), time.Since(started))
		return fmt.Errorf("stream failed after %d retries: %s", state.RetryCount, state.LastError)
	}
}

// startConfigWatcher watches the active config file and fires onChange
// when it changes on disk. Returns nil when no config file exists to
// watch.
func startConfigWatcher(formatter *output.Formatter, onChange func()) *config.Watcher {
	path := globalFlags.ConfigFile
	if path == "" {
		loader, err := config.NewLoader("")
		if err != nil {
			return nil
		}
		path = loader.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher(path, config.DefaultWatcherConfig())
	if err != nil {
		return nil
	}
	if err := watcher.Watch(); err != nil {
		watcher.Close()
		return nil
	}

	go func() {
		for range watcher.Events() {
			formatter.Warning("config file changed, reconnecting stream")
			onChange()
		}
	}()

	return watcher
}
