package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/config"
)

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "capture",
	Short:        "Drive a remote video-capture service through research sessions",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

		// Skip the first-run check for the setup command itself.
		if cmd.Name() == "setup" {
			return nil
		}

		// First run: no global config yet. Only prompt on an interactive terminal.
		if path, err := config.GlobalPath(); err == nil {
			if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) && term.IsTerminal(os.Stdin.Fd()) {
				cmd.Println()
				cmd.Println("  Welcome to capture! Looks like this is your first time.")
				if err := runSetup(cmd, true); err != nil {
					return err
				}
			}
		}

		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		merged, err := config.ApplyEnv(config.Merge(global, project))
		if err != nil {
			return fmt.Errorf("applying environment: %w", err)
		}
		cfg = merged
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log remote calls and sync decisions to stderr")
}
