package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/remote"
)

var calibrateFlags struct {
	duration   int
	rows       int
	cols       int
	squareSize float64
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Record a checkerboard clip and report the reprojection error",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if !a.identity.Complete() {
			return fmt.Errorf("no session (run 'capture init' first)")
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		cmd.Printf("Recording calibration for %ds...\n", calibrateFlags.duration)
		reprojErr, err := a.client.CaptureAndProcessCalibration(ctx, remote.CalibrationRequest{
			StudyID:       a.identity.StudyID,
			SessionID:     a.identity.SessionID,
			DeviceAddress: a.identity.DeviceAddress,
			Duration:      calibrateFlags.duration,
			BoardRows:     calibrateFlags.rows,
			BoardCols:     calibrateFlags.cols,
			SquareSize:    calibrateFlags.squareSize,
			SavePath:      a.identity.FullPath,
		})
		if err != nil {
			return describeErr(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reprojection error: %.4f\n", reprojErr)
		return nil
	},
}

func init() {
	f := calibrateCmd.Flags()
	f.IntVar(&calibrateFlags.duration, "duration", 10, "clip length in seconds")
	f.IntVar(&calibrateFlags.rows, "rows", 5, "inner corners per checkerboard column")
	f.IntVar(&calibrateFlags.cols, "cols", 4, "inner corners per checkerboard row")
	f.Float64Var(&calibrateFlags.squareSize, "square-size", 35, "checkerboard square size in mm")
	rootCmd.AddCommand(calibrateCmd)
}
