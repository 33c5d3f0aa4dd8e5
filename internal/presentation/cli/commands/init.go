package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/preludium/taskwatch/internal/infrastructure/config"
	"github.com/preludium/taskwatch/internal/presentation/cli/output"
)

// InitResult holds the result of the init command for JSON output.
type InitResult struct {
	ConfigDir   string `json:"config_dir"`
	ConfigFile  string `json:"config_file"`
	Initialized bool   `json:"initialized"`
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize taskwatch configuration",
		Long: `Initialize taskwatch configuration interactively.

This command creates the ~/.taskwatch/ directory and generates a
config.yaml file with the task API endpoints and cache settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// prompter handles interactive user input.
type prompter struct {
	reader    *bufio.Reader
	formatter *output.Formatter
}

func newPrompter(formatter *output.Formatter) *prompter {
	return &prompter{
		reader:    bufio.NewReader(os.Stdin),
		formatter: formatter,
	}
}

// prompt asks a question and returns the answer (or default if empty).
func (p *prompter) prompt(question, defaultValue string) (string, error) {
	if defaultValue != "" {
		p.formatter.Print("%s [%s]: ", question, defaultValue)
	} else {
		p.formatter.Print("%s: ", question)
	}

	answer, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

func runInit(force bool) error {
	formatter := output.NewFormatter(
		output.WithColor(output.IsColorSupported()),
	)

	loader, err := config.NewLoader("")
	if err != nil {
		return fmt.Errorf("failed to create config loader: %w", err)
	}

	configPath := loader.DefaultConfigPath()
	if _, err := os.Stat(configPath); err == nil && !force {
		formatter.Warning("Configuration already exists at %s", configPath)
		formatter.Println("Use --force to overwrite it.")
		return nil
	}

	formatter.Header("taskwatch setup")

	cfg := config.NewDefaultConfig()
	p := newPrompter(formatter)

	baseURL, err := p.prompt("Task API base URL", cfg.API.BaseURL)
	if err != nil {
		return err
	}
	cfg.API.BaseURL = strings.TrimRight(baseURL, "/")

	endpoint, err := p.prompt("Stream endpoint path", cfg.Stream.Endpoint)
	if err != nil {
		return err
	}
	cfg.Stream.Endpoint = endpoint

	snapshot, err := p.prompt("SQLite snapshot path (empty to disable)", cfg.Cache.SnapshotPath)
	if err != nil {
		return err
	}
	cfg.Cache.SnapshotPath = snapshot

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	formatter.Println("")
	formatter.Success("Configuration written to %s", configPath)

	if globalFlags.Output == "json" {
		return newCommandFormatter().JSON(InitResult{
			ConfigDir:   loader.ConfigDir(),
			ConfigFile:  configPath,
			Initialized: true,
		})
	}

	return nil
}
