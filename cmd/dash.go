package cmd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/recording"
	"github.com/fakeyudi/capturectl/internal/tui"
)

var dashInterval time.Duration

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Open a live dashboard of the session, its trials and videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		// Stop the sync goroutines as soon as the dashboard closes.
		ctx, stop := context.WithCancel(ctx)
		defer stop()

		identities := a.ids.Subscribe()
		updates := a.syncer.Subscribe()
		go func() {
			if err := a.syncer.Run(ctx, a.ids.Subscribe(), a.counter.Subscribe()); err != nil {
				slog.Warn("video sync stopped", "err", err)
			}
		}()
		go func() {
			if err := identity.Watch(ctx, a.idPath, a.ids); err != nil {
				slog.Warn("identity watch stopped", "err", err)
			}
		}()

		status := refreshOnStop(a.coordinatorStatus, a.counter)

		return tui.RunDashboard(tui.DashOptions{
			Identity:   a.identity,
			Identities: identities,
			Videos:     a.syncer,
			Updates:    updates,
			Status:     status,
			Refresh:    func() { a.counter.Bump() },
			BaseURL:    a.cfg.serverURL,
			Interval:   dashInterval,
		})
	},
}

// refreshOnStop wraps status so that a stop observed between two polls bumps
// r. Recordings are usually stopped from another terminal, so the local
// coordinator never sees the stop itself.
func refreshOnStop(status func() recording.Status, r recording.Refresher) func() recording.Status {
	var mu sync.Mutex
	prev := status()
	return func() recording.Status {
		st := status()
		mu.Lock()
		defer mu.Unlock()
		if stoppedBetween(prev, st) {
			r.Bump()
		}
		prev = st
		return st
	}
}

// stoppedBetween reports whether at least one recording finished between the
// two snapshots.
func stoppedBetween(prev, cur recording.Status) bool {
	if prev.State == recording.Recording {
		return cur.State != recording.Recording || cur.ActiveTrial != prev.ActiveTrial ||
			len(cur.Trials) != len(prev.Trials)
	}
	// A whole start and stop fell inside one interval.
	return cur.State != recording.Recording && len(cur.Trials) > len(prev.Trials)
}

func init() {
	dashCmd.Flags().DurationVar(&dashInterval, "interval", 2*time.Second, "how often recording status is re-read")
	rootCmd.AddCommand(dashCmd)
}
