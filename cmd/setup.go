package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/config"
	"github.com/fakeyudi/capturectl/internal/prompt"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure capture (re-run anytime to edit settings)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetup(cmd, false)
	},
}

// runSetup runs the interactive settings wizard and writes the global config.
// If firstRun is true, a welcome message is shown.
func runSetup(cmd *cobra.Command, firstRun bool) error {
	if firstRun {
		cmd.Println("  Let's point capture at your capture server.")
	}

	existing, err := config.LoadGlobal()
	if err != nil {
		// A broken file is replaced by the wizard's answers.
		d := config.Defaults()
		existing = &d
	}

	a := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
	next, err := prompt.ConfigSetup(a, *existing)
	if err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	path, err := config.GlobalPath()
	if err != nil {
		return err
	}
	if err := config.Save(path, next); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	cmd.Printf("  ✓ Settings saved to %s\n", path)
	cmd.Println("  Run 'capture init' to begin a session.")
	cmd.Println()
	return nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
