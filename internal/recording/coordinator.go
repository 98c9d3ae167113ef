// Package recording drives the start/stop/end lifecycle of a capture session
// against the remote service.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/ledger"
	"github.com/fakeyudi/capturectl/internal/remote"
	"github.com/fakeyudi/capturectl/internal/session"
)

// State is the coordinator's lifecycle position.
type State string

const (
	Idle      State = "idle"
	Starting  State = "starting"
	Recording State = "recording"
	Stopping  State = "stopping"
	Ended     State = "ended"
)

// Remote is the subset of the capture service the coordinator calls.
type Remote interface {
	StartRecording(ctx context.Context, req remote.StartRequest) (remote.StartResponse, error)
	StopRecording(ctx context.Context, req remote.StopRequest) (remote.StopResponse, error)
	EndSession(ctx context.Context, req remote.EndRequest) (remote.EndResponse, error)
}

// IdentitySource hands out identity snapshots and clears the identity when
// a session ends. *identity.Manager satisfies it.
type IdentitySource interface {
	Snapshot() identity.Identity
	Clear() error
}

// Refresher is bumped after every successful stop so the video inventory
// refetches.
type Refresher interface {
	Bump() uint64
}

// Options wires a Coordinator to its collaborators. Store, Refresh and Clock
// are optional.
type Options struct {
	Remote   Remote
	Identity IdentitySource
	Store    session.SessionStore
	Refresh  Refresher
	Clock    func() time.Time
}

// Coordinator is the recording state machine. Each operation captures an
// identity snapshot, validates it, and only then issues the remote call.
// At most one operation is in flight at a time.
type Coordinator struct {
	mu       sync.Mutex
	state    State
	inFlight bool

	sessionID   string // server-confirmed
	activeTrial string
	savePath    string

	ledger   *ledger.Ledger
	remote   Remote
	identity IdentitySource
	store    session.SessionStore
	refresh  Refresher
	now      func() time.Time
}

// New returns a Coordinator, resuming from the stored snapshot if one exists.
func New(opts Options) (*Coordinator, error) {
	if opts.Remote == nil || opts.Identity == nil {
		return nil, errors.New("recording: remote and identity are required")
	}
	c := &Coordinator{
		state:    Idle,
		ledger:   ledger.New(),
		remote:   opts.Remote,
		identity: opts.Identity,
		store:    opts.Store,
		refresh:  opts.Refresh,
		now:      opts.Clock,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.store == nil {
		return c, nil
	}

	s, err := c.store.Load()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return c, nil
		}
		return nil, fmt.Errorf("loading coordinator state: %w", err)
	}
	if State(s.State) == Recording {
		c.state = Recording
		c.activeTrial = s.ActiveTrial
	}
	c.sessionID = s.SessionID
	c.savePath = s.SavePath
	c.ledger = ledger.Restore(s.Trials, s.Notes)
	return c, nil
}

// begin claims the in-flight slot for op if the state allows it.
func (c *Coordinator) begin(op string, allowed ...State) error {
	if c.inFlight {
		return ErrBusy
	}
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return &TransitionError{Op: op, From: c.state}
}

// Start begins recording trial name under the current identity.
func (c *Coordinator) Start(ctx context.Context, name string) (ledger.Trial, error) {
	name = strings.TrimSpace(name)

	c.mu.Lock()
	if err := c.begin("start", Idle); err != nil {
		c.mu.Unlock()
		return ledger.Trial{}, err
	}
	id := c.identity.Snapshot()
	var missing []string
	if name == "" {
		missing = append(missing, "trial name")
	}
	if id.SessionID == "" {
		missing = append(missing, "session id")
	}
	if id.FullPath == "" {
		missing = append(missing, "save path")
	}
	if len(missing) > 0 {
		c.mu.Unlock()
		return ledger.Trial{}, &ValidationError{Op: "start", Missing: missing}
	}
	c.state = Starting
	c.inFlight = true
	c.mu.Unlock()

	resp, err := c.remote.StartRecording(ctx, remote.StartRequest{
		Name:      name,
		SessionID: id.SessionID,
		SavePath:  id.FullPath,
		StudyID:   id.StudyID,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.state = Idle
		return ledger.Trial{}, err
	}

	confirmed := resp.SessionID
	if confirmed == "" {
		confirmed = id.SessionID
	}
	if confirmed != id.SessionID {
		slog.Info("service confirmed a different session id", "requested", id.SessionID, "confirmed", confirmed)
	}
	trial := ledger.NewTrial(name, confirmed, c.now())
	c.ledger.Append(trial)
	c.state = Recording
	c.sessionID = confirmed
	c.activeTrial = name
	c.savePath = id.FullPath
	c.persistConfirmed("start")
	return trial, nil
}

// Stop ends the active recording and signals an inventory refresh.
func (c *Coordinator) Stop(ctx context.Context) (remote.StopResponse, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return remote.StopResponse{}, ErrBusy
	}
	id := c.identity.Snapshot()
	sessionID := c.sessionID
	if sessionID == "" {
		sessionID = id.SessionID
	}
	if sessionID == "" {
		c.mu.Unlock()
		return remote.StopResponse{}, &ValidationError{Op: "stop", Missing: []string{"session id"}}
	}
	if err := c.begin("stop", Recording); err != nil {
		c.mu.Unlock()
		return remote.StopResponse{}, err
	}
	savePath := c.savePath
	if savePath == "" {
		savePath = id.FullPath
	}
	req := remote.StopRequest{
		SessionID: sessionID,
		Name:      c.activeTrial,
		SavePath:  savePath,
		StudyID:   id.StudyID,
	}
	c.state = Stopping
	c.inFlight = true
	c.mu.Unlock()

	resp, err := c.remote.StopRecording(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		c.state = Recording
		return remote.StopResponse{}, err
	}
	c.state = Idle
	c.activeTrial = ""
	if c.refresh != nil {
		c.refresh.Bump()
	}
	c.persistConfirmed("stop")
	return resp, nil
}

// EndResult carries what the session looked like when it was closed.
type EndResult struct {
	remote.EndResponse
	Identity  identity.Identity
	SessionID string
	Trials    []ledger.Trial
	Notes     map[string]string
	EndedAt   time.Time
}

// EndSession closes the session on the service, sending the trial notes and
// an optional free-text comment. On success the ledger, the identity and the
// stored snapshot are cleared.
func (c *Coordinator) EndSession(ctx context.Context, comment string) (EndResult, error) {
	c.mu.Lock()
	if err := c.begin("end session", Idle, Recording); err != nil {
		c.mu.Unlock()
		return EndResult{}, err
	}
	id := c.identity.Snapshot()
	sessionID := c.sessionID
	if sessionID == "" {
		sessionID = id.SessionID
	}
	fullPath := id.FullPath
	if fullPath == "" {
		fullPath = c.savePath
	}
	var missing []string
	if sessionID == "" {
		missing = append(missing, "session id")
	}
	if fullPath == "" {
		missing = append(missing, "save path")
	}
	if len(missing) > 0 {
		c.mu.Unlock()
		return EndResult{}, &ValidationError{Op: "end session", Missing: missing}
	}
	notes := c.ledger.Notes()
	c.inFlight = true
	c.mu.Unlock()

	resp, err := c.remote.EndSession(ctx, remote.EndRequest{
		SavePath:  fullPath,
		SessionID: sessionID,
		Notes:     notes,
		Comment:   comment,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return EndResult{}, err
	}

	result := EndResult{
		EndResponse: resp,
		Identity:    id,
		SessionID:   sessionID,
		Trials:      c.ledger.Trials(),
		Notes:       notes,
		EndedAt:     c.now(),
	}
	c.state = Ended
	c.sessionID = ""
	c.activeTrial = ""
	c.savePath = ""
	c.ledger.Clear()

	var errs []error
	if err := c.identity.Clear(); err != nil {
		errs = append(errs, fmt.Errorf("clearing identity: %w", err))
	}
	if c.store != nil {
		if err := c.store.Delete(); err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// Reset returns an ended coordinator to idle so a new session can begin.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Ended {
		c.state = Idle
	}
}

// SetNote attaches a note to a recorded trial and persists it.
func (c *Coordinator) SetNote(name, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ledger.SetNote(name, text); err != nil {
		return err
	}
	return c.persist()
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	State       State
	SessionID   string
	ActiveTrial string
	SavePath    string
	Busy        bool
	Trials      []ledger.Trial
	Notes       map[string]string
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.state,
		SessionID:   c.sessionID,
		ActiveTrial: c.activeTrial,
		SavePath:    c.savePath,
		Busy:        c.inFlight,
		Trials:      c.ledger.Trials(),
		Notes:       c.ledger.Notes(),
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// persistConfirmed saves the snapshot after the service accepted op. The
// remote side has already changed, so a failed save is retried once and then
// logged rather than reported as a failure of op.
func (c *Coordinator) persistConfirmed(op string) {
	err := c.persist()
	if err == nil {
		return
	}
	if err = c.persist(); err != nil {
		slog.Warn("service accepted the request but local state was not saved", "op", op, "state", c.state, "err", err)
	}
}

// persist writes the snapshot; callers hold c.mu and only call it from a
// stable state.
func (c *Coordinator) persist() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Save(&session.Session{
		State:       string(c.state),
		SessionID:   c.sessionID,
		ActiveTrial: c.activeTrial,
		SavePath:    c.savePath,
		Trials:      c.ledger.Trials(),
		Notes:       c.ledger.Notes(),
		UpdatedAt:   c.now(),
	})
	if err != nil {
		return fmt.Errorf("saving coordinator state: %w", err)
	}
	return nil
}
