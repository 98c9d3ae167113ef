package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/devserver"
)

var devserverFlags struct {
	addr string
	root string
	host string
}

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a simulated capture service for local testing",
	Long: `Serves the capture service API from a local directory. Recordings are
written as small placeholder clips, and session CSVs and participant files are
real, so every command can be exercised without a phone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := devserverFlags.root
		if root == "" {
			a, err := newApp()
			if err != nil {
				return err
			}
			root = filepath.Join(a.dataDir, "devserver")
		}
		srv, err := devserver.New(devserver.Options{
			Root:        root,
			Host:        devserverFlags.host,
			LogRequests: verbose,
		})
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		httpSrv := &http.Server{
			Addr:              devserverFlags.addr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errc := make(chan error, 1)
		go func() { errc <- httpSrv.ListenAndServe() }()
		cmd.Printf("Simulated capture service on http://%s (files under %s)\n", devserverFlags.addr, root)

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		slog.Info("shutting down devserver")
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	f := devserverCmd.Flags()
	f.StringVar(&devserverFlags.addr, "addr", "127.0.0.1:8000", "listen address")
	f.StringVar(&devserverFlags.root, "root", "", "directory recordings are written under (default: data dir/devserver)")
	f.StringVar(&devserverFlags.host, "host", "127.0.0.1", "device host reported by /config")
	rootCmd.AddCommand(devserverCmd)
}
