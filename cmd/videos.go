package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/inventory"
)

var videosFlags struct {
	pick     string
	download string
	watch    bool
}

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "List the recordings of the current session",
	Long: `Lists the videos the capture service holds for the current session.

--select prints the playback URL of one video, --download saves it to a file,
and --watch keeps the list live until interrupted, following identity edits
made from other terminals.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		if videosFlags.watch {
			return watchVideos(ctx, cmd, a)
		}

		inv, _ := a.syncer.Refresh(ctx, a.ids.Snapshot())
		if videosFlags.pick == "" {
			if videosFlags.download != "" {
				return fmt.Errorf("--download needs --select <video>")
			}
			printInventory(cmd, inv)
			return nil
		}

		inv, err = a.syncer.Select(videosFlags.pick)
		if err != nil {
			if errors.Is(err, inventory.ErrNotListed) {
				return fmt.Errorf("%q is not among this session's videos", videosFlags.pick)
			}
			return err
		}
		u, ok := inv.VideoURL(a.cfg.serverURL)
		if !ok {
			return nil
		}
		if videosFlags.download == "" {
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		}

		body, err := a.client.GetVideo(ctx, u)
		if err != nil {
			return describeErr(err)
		}
		defer body.Close()
		if err := os.MkdirAll(filepath.Dir(videosFlags.download), 0o755); err != nil {
			return err
		}
		f, err := os.Create(videosFlags.download)
		if err != nil {
			return err
		}
		n, err := io.Copy(f, body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("download %s: %w", inv.Selected, err)
		}
		cmd.Printf("Saved %s (%d bytes) to %s\n", inv.Selected, n, videosFlags.download)
		return nil
	},
}

func printInventory(cmd *cobra.Command, inv inventory.Inventory) {
	if inv.Key.SessionID == "" {
		cmd.Println("No session; run 'capture init' first.")
		return
	}
	if len(inv.Videos) == 0 {
		cmd.Println("No videos yet.")
		return
	}
	out := cmd.OutOrStdout()
	for _, v := range inv.Videos {
		fmt.Fprintln(out, v)
	}
}

// watchVideos prints the listing each time it changes until interrupted.
func watchVideos(ctx context.Context, cmd *cobra.Command, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := a.syncer.Subscribe()
	errc := make(chan error, 2)
	go func() { errc <- a.syncer.Run(ctx, a.ids.Subscribe(), a.counter.Subscribe()) }()
	go func() { errc <- identity.Watch(ctx, a.idPath, a.ids) }()

	var last []string
	lastKey := identity.Key{}
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil {
				cancel()
				return err
			}
		case inv := <-updates:
			if !first && inv.Key == lastKey && slices.Equal(inv.Videos, last) {
				continue
			}
			first = false
			last, lastKey = inv.Videos, inv.Key
			cmd.Printf("-- %s (%d videos)\n", orDash(inv.Key.SessionID), len(inv.Videos))
			printInventory(cmd, inv)
		}
	}
}

func init() {
	f := videosCmd.Flags()
	f.StringVar(&videosFlags.pick, "select", "", "select a video and print its playback URL")
	f.StringVar(&videosFlags.download, "download", "", "with --select, save the video to this file")
	f.BoolVar(&videosFlags.watch, "watch", false, "keep the list live until interrupted")
	rootCmd.AddCommand(videosCmd)
}
