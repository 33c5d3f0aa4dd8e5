package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// VersionInfo holds version metadata for display.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(short)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print the version number only")

	return cmd
}

func runVersion(short bool) error {
	if short {
		fmt.Println(Version)
		return nil
	}

	info := VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	formatter := newCommandFormatter()
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(info)
	}

	formatter.Println("%s %s", formatter.Bold("taskwatch"), info.Version)
	formatter.Println("%s", formatter.Dim(fmt.Sprintf("commit: %s", info.GitCommit)))
	formatter.Println("%s", formatter.Dim(fmt.Sprintf("built:  %s", info.BuildDate)))
	formatter.Println("%s", formatter.Dim(fmt.Sprintf("go:     %s (%s)", info.GoVersion, info.Platform)))
	return nil
}

// newCommandFormatter builds a formatter honoring the global output
// flag for commands that may run before app initialization.
func newCommandFormatter() *output.Formatter {
	format := output.FormatText
	if globalFlags.Output == "json" {
		format = output.FormatJSON
	}
	return output.NewFormatter(
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	)
}
