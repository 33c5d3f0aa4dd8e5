package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// StatusOutput is the JSON shape of the status command's output.
type StatusOutput struct {
	API    APIStatus             `json:"api"`
	Stream ports.ConnectionState `json:"stream"`
	Cache  ports.CacheStats      `json:"cache"`
}

// APIStatus summarizes the backend health probe.
type APIStatus struct {
	Reachable   bool   `json:"reachable"`
	Status      string `json:"status,omitempty"`
	Environment string `json:"environment,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend, stream, and cache status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context) error {
	formatter := GetFormatter()
	container := GetContainer()
	jsonOut := formatter.Format() == output.FormatJSON

	var spinner *output.Spinner
	if !jsonOut {
		spinner = output.NewSpinner("checking backend...",
			output.WithSpinnerColor(output.IsColorSupported()))
		spinner.Start()
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	health, healthErr := container.Tasks().Health(probeCtx)
	cancel()

	if spinner != nil {
		spinner.Stop()
	}

	apiStatus := APIStatus{Reachable: healthErr == nil}
	if healthErr != nil {
		apiStatus.Error = healthErr.Error()
	} else {
		apiStatus.Status = health.Status
		apiStatus.Environment = health.Environment
	}

	streamState := container.Tasks().ConnectionState()

	var cacheStats ports.CacheStats
	if stats, err := container.Cache().Stats(ctx); err == nil && stats != nil {
		cacheStats = *stats
	}

	if jsonOut {
		return formatter.JSON(StatusOutput{
			API:    apiStatus,
			Stream: streamState,
			Cache:  cacheStats,
		})
	}

	formatter.Header("Backend")
	if apiStatus.Reachable {
		formatter.Item("URL", container.Config().API.BaseURL)
		formatter.Item("Status", formatter.Colorize(apiStatus.Status, output.ColorGreen))
		if apiStatus.Environment != "" {
			formatter.Item("Environment", apiStatus.Environment)
		}
	} else {
		formatter.Item("URL", container.Config().API.BaseURL)
		formatter.Item("Status", formatter.Colorize("unreachable", output.ColorRed))
		formatter.Item("Error", apiStatus.Error)
	}

	formatter.Println("")
	formatter.Header("Stream")
	formatter.Item("URL", container.StreamURL())
	formatter.Item("State", string(streamState.Status))
	if streamState.RetryCount > 0 {
		formatter.Item("Retries", fmt.Sprintf("%d", streamState.RetryCount))
	}
	if streamState.LastError != "" {
		formatter.Item("Last error", streamState.LastError)
	}

	formatter.Println("")
	formatter.Header("Cache")
	formatter.Item("Entries", fmt.Sprintf("%d", cacheStats.TotalEntries))
	formatter.Item("Hit rate", fmt.Sprintf("%.1f%% (%d hits / %d misses)",
		cacheStats.HitRate, cacheStats.HitCount, cacheStats.MissCount))
	if cacheStats.EvictionCount > 0 {
		formatter.Item("Evictions", fmt.Sprintf("%d", cacheStats.EvictionCount))
	}

	return nil
}
