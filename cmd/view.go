package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/bundle"
	"github.com/fakeyudi/capturectl/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "View a session bundle file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		var parser bundle.BundleParser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			parser = &bundle.JSONParser{}
		default:
			parser = &bundle.MarkdownParser{}
		}

		b, err := parser.Parse(data)
		if err != nil {
			return err
		}

		if plainOutput {
			printBundle(cmd.OutOrStdout(), b)
			return nil
		}
		return tui.RunViewer(b, path)
	},
}

// printBundle writes a plain-text summary of b.
func printBundle(w io.Writer, b *bundle.SessionBundle) {
	meta := b.Session
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Session:   %s\n", orDash(meta.ID))
	fmt.Fprintf(w, "  Study:     %s\n", orDash(meta.StudyID))
	fmt.Fprintf(w, "  Path:      %s\n", orDash(meta.FullPath))
	fmt.Fprintf(w, "  Device:    %s\n", orDash(meta.DeviceAddress))
	if !meta.StartTime.IsZero() {
		fmt.Fprintf(w, "  Started:   %s\n", meta.StartTime.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(w, "  Ended:     %s\n", meta.EndTime.Format("2006-01-02 15:04:05 MST"))
	if meta.Duration != "" {
		fmt.Fprintf(w, "  Duration:  %s\n", meta.Duration)
	}
	if b.CSVPath != "" {
		fmt.Fprintf(w, "  CSV:       %s\n", b.CSVPath)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Trials")
	if len(b.Trials) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for i, t := range b.Trials {
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, t.StartedAt.Format("15:04:05"), t.Name)
			if t.Note != "" {
				fmt.Fprintf(w, "     %s\n", t.Note)
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Videos")
	if len(b.Videos) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		for _, v := range b.Videos {
			fmt.Fprintf(w, "  %s\n", v)
		}
	}

	if b.Comment != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "## Comment")
		fmt.Fprintln(w, indent(strings.TrimRight(b.Comment, "\n"), "  "))
	}
}

// indent prefixes every line of s with prefix.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print plain text output instead of launching the TUI")
	rootCmd.AddCommand(viewCmd)
}
