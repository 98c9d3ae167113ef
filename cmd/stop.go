package cmd

import (
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the active recording and refresh the video list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		trial := a.coord.Status().ActiveTrial
		resp, err := a.coord.Stop(ctx)
		if err != nil {
			return describeErr(err)
		}
		cmd.Printf("Stopped %q. Saved to %s\n", trial, orDash(resp.Path))

		// The identity may have been edited since start; list what the
		// service holds for the current one.
		inv, ok := a.syncer.Refresh(ctx, a.ids.Snapshot())
		if !ok {
			return nil
		}
		cmd.Printf("Videos (%d):\n", len(inv.Videos))
		for _, v := range inv.Videos {
			cmd.Printf("  %s\n", v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}
