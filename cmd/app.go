package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fakeyudi/capturectl/internal/archive"
	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/inventory"
	"github.com/fakeyudi/capturectl/internal/recording"
	"github.com/fakeyudi/capturectl/internal/remote"
	"github.com/fakeyudi/capturectl/internal/session"
)

// app bundles the collaborators a command needs, built from the data dir
// and the merged config.
type app struct {
	cfg      appConfig
	dataDir  string
	ids      *identity.Manager
	idPath   string
	client   *remote.Client
	counter  *inventory.RefreshCounter
	store    session.SessionStore
	coord    *recording.Coordinator
	syncer   *inventory.Syncer
	identity identity.Identity
}

type appConfig struct {
	serverURL string
	format    string
	outputDir string
	archive   string
}

func newApp() (*app, error) {
	c := GetConfig()
	dataDir, err := session.EnsureDataDir()
	if err != nil {
		return nil, err
	}

	idPath := filepath.Join(dataDir, "identity.json")
	idStore, err := identity.NewDiskStore(idPath)
	if err != nil {
		return nil, err
	}
	ids := identity.NewManager(idStore, identity.Defaults{
		DeviceAddress: c.DeviceAddress,
		BasePath:      c.BaseSavePath,
	})
	id, err := ids.LoadIdentity()
	if err != nil {
		return nil, err
	}

	store, err := session.NewSessionStore()
	if err != nil {
		return nil, err
	}

	client := remote.New(c.ServerURL).WithTimeout(c.RequestTimeout)
	counter := &inventory.RefreshCounter{}
	coord, err := recording.New(recording.Options{
		Remote:   client,
		Identity: ids,
		Store:    store,
		Refresh:  counter,
	})
	if err != nil {
		return nil, err
	}

	archivePath := c.ArchivePath
	if archivePath == "" {
		archivePath = filepath.Join(dataDir, "history.db")
	}

	return &app{
		cfg: appConfig{
			serverURL: c.ServerURL,
			format:    c.DefaultFormat,
			outputDir: c.OutputDir,
			archive:   archivePath,
		},
		dataDir:  dataDir,
		ids:      ids,
		idPath:   idPath,
		client:   client,
		counter:  counter,
		store:    store,
		coord:    coord,
		syncer:   inventory.NewSyncer(client, ids),
		identity: id,
	}, nil
}

// coordinatorStatus rebuilds the coordinator from the stored snapshot so
// long-running views pick up changes made by other invocations.
func (a *app) coordinatorStatus() recording.Status {
	c, err := recording.New(recording.Options{Remote: a.client, Identity: a.ids, Store: a.store})
	if err != nil {
		return a.coord.Status()
	}
	return c.Status()
}

func (a *app) openArchive(ctx context.Context) (*archive.Store, error) {
	return archive.Open(ctx, a.cfg.archive)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// describeErr turns coordinator errors into short operator-facing messages.
func describeErr(err error) error {
	var verr *recording.ValidationError
	var terr *recording.TransitionError
	var rerr *remote.RequestError
	switch {
	case errors.As(err, &verr):
		return fmt.Errorf("%w (run 'capture init' or 'capture set')", err)
	case errors.As(err, &terr):
		return err
	case errors.Is(err, recording.ErrBusy):
		return fmt.Errorf("another request is still in flight")
	case errors.As(err, &rerr):
		return fmt.Errorf("capture service refused: %w", err)
	}
	return err
}
