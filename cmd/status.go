package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/recording"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session identity, recording state and trials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		st := a.coord.Status()

		printIdentity(cmd, a.identity)
		cmd.Printf("Server:      %s\n", a.cfg.serverURL)

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()
		if host, err := a.client.Host(ctx); err == nil {
			cmd.Printf("Device host: %s\n", orDash(host))
		} else {
			cmd.Printf("Device host: unreachable\n")
		}

		cmd.Printf("State:       %s\n", st.State)
		if st.State == recording.Recording {
			cmd.Printf("Recording:   %s -> %s\n", st.ActiveTrial, orDash(st.SavePath))
		}
		cmd.Printf("Trials:      %d\n", len(st.Trials))
		for i, t := range st.Trials {
			cmd.Printf("  %d. %s  (%s)\n", i+1, t.Name, t.StartedAt.Local().Format("15:04:05"))
			if note, ok := st.Notes[t.Name]; ok && note != "" {
				cmd.Printf("     note: %s\n", note)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
