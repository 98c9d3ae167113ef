package cmd

import (
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <trial>",
	Short: "Start recording a trial under the current session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		trial, err := a.coord.Start(ctx, args[0])
		if err != nil {
			return describeErr(err)
		}
		cmd.Printf("Recording %q (session %s).\n", trial.Name, trial.SessionID)
		cmd.Println("Run 'capture stop' when the trial is done.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
