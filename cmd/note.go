package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/ledger"
)

var noteCmd = &cobra.Command{
	Use:   "note <trial> <text>",
	Short: "Attach a note to a recorded trial (replaces any earlier note)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.coord.SetNote(args[0], args[1]); err != nil {
			if errors.Is(err, ledger.ErrUnknownTrial) {
				return fmt.Errorf("no trial named %q in this session", args[0])
			}
			return err
		}
		cmd.Println("Note saved.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
}
