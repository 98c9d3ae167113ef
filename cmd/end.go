package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/bundle"
)

var endFlags struct {
	comment   string
	format    string
	noArchive bool
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the session, export trial notes and write a session bundle",
	Long: `Ends the session on the capture service, which writes the session CSV.
A local bundle (markdown or json) is written to the output directory and the
session is recorded in the history archive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		// The listing is taken before the identity is cleared.
		inv, _ := a.syncer.Refresh(ctx, a.ids.Snapshot())

		res, err := a.coord.EndSession(ctx, endFlags.comment)
		if res.SessionID == "" {
			return describeErr(err)
		}
		if err != nil {
			slog.Warn("session ended with cleanup errors", "err", err)
		}
		cmd.Printf("%s. CSV: %s\n", orDash(res.Message), orDash(res.CSVPath))

		b := bundle.FromEnd(res, inv.Videos, a.cfg.serverURL, endFlags.comment)

		format := endFlags.format
		if format == "" {
			format = a.cfg.format
		}
		renderer := bundle.RendererFor(format)
		data, err := renderer.Render(b)
		if err != nil {
			return fmt.Errorf("render bundle: %w", err)
		}

		outputDir := a.cfg.outputDir
		if outputDir == "" {
			outputDir = "."
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return err
		}
		outputPath := filepath.Join(outputDir, bundleFilename(res.SessionID, renderer.Ext()))
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		cmd.Printf("Bundle: %s\n", outputPath)

		if endFlags.noArchive {
			return nil
		}
		store, err := a.openArchive(ctx)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()
		rowID, err := store.Record(ctx, b, outputPath)
		if err != nil {
			return fmt.Errorf("archive session: %w", err)
		}
		cmd.Printf("Archived as #%d (capture history show %d)\n", rowID, rowID)
		return nil
	},
}

// bundleFilename keeps session ids usable as file names.
func bundleFilename(sessionID, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, sessionID)
	return "capture-" + safe + ext
}

func init() {
	f := endCmd.Flags()
	f.StringVarP(&endFlags.comment, "message", "m", "", "free-text session comment")
	f.StringVar(&endFlags.format, "format", "", "bundle format: markdown or json (overrides config)")
	f.BoolVar(&endFlags.noArchive, "no-archive", false, "skip recording the session in the history archive")
	rootCmd.AddCommand(endCmd)
}
