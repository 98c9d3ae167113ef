package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/archive"
)

var historyFlags struct {
	study string
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List ended sessions from the local archive, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		store, err := a.openArchive(cmd.Context())
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()

		entries, err := store.List(cmd.Context(), historyFlags.study, historyFlags.limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			cmd.Println("No archived sessions.")
			return nil
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "#%-4d %s  %-10s %-32s %2d trials  %2d videos\n",
				e.ID,
				e.EndedAt.Local().Format("2006-01-02 15:04"),
				e.StudyID,
				e.SessionID,
				e.TrialCount,
				e.VideoCount,
			)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one archived session with its trials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		store, err := a.openArchive(cmd.Context())
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()

		e, err := store.Get(cmd.Context(), id)
		if errors.Is(err, archive.ErrNotFound) {
			return fmt.Errorf("no archived session #%d", id)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session:  %s\n", e.SessionID)
		fmt.Fprintf(out, "Study:    %s\n", orDash(e.StudyID))
		fmt.Fprintf(out, "Path:     %s\n", orDash(e.FullPath))
		fmt.Fprintf(out, "Device:   %s\n", orDash(e.DeviceAddress))
		if e.StartedAt != nil {
			fmt.Fprintf(out, "Started:  %s\n", e.StartedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(out, "Ended:    %s\n", e.EndedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "CSV:      %s\n", orDash(e.CSVPath))
		fmt.Fprintf(out, "Bundle:   %s\n", orDash(e.BundlePath))
		if e.Comment != "" {
			fmt.Fprintf(out, "Comment:  %s\n", e.Comment)
		}
		fmt.Fprintf(out, "Trials:   %d\n", len(e.Trials))
		for i, t := range e.Trials {
			fmt.Fprintf(out, "  %d. %s", i+1, t.Name)
			if t.Note != "" {
				fmt.Fprintf(out, "  (%s)", t.Note)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyFlags.study, "study", "", "only sessions of this study")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "maximum sessions to list (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
