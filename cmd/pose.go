package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/inventory"
)

var poseSelect string

var poseCmd = &cobra.Command{
	Use:   "pose",
	Short: "Run pose estimation on one of the session's videos",
	Long: `Asks the capture service to overlay pose landmarks on the selected video.
Prints where the overlay was written and the URL it is played back from.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if poseSelect == "" {
			return fmt.Errorf("pick a video with --select (see 'capture videos')")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a.syncer.Refresh(ctx, a.ids.Snapshot())
		inv, err := a.syncer.Select(poseSelect)
		if err != nil {
			if errors.Is(err, inventory.ErrNotListed) {
				return fmt.Errorf("%q is not among this session's videos", poseSelect)
			}
			return err
		}
		videoPath, _ := inv.VideoPath()

		cmd.Printf("Running pose estimation on %s...\n", inv.Selected)
		overlay, err := a.client.RunPoseEstimation(ctx, videoPath)
		if err != nil {
			return describeErr(err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Overlay: %s\n", overlay)
		fmt.Fprintf(out, "Play:    %s\n", a.client.CombinedVideoURL())
		return nil
	},
}

func init() {
	poseCmd.Flags().StringVar(&poseSelect, "select", "", "video to run pose estimation on")
	rootCmd.AddCommand(poseCmd)
}
