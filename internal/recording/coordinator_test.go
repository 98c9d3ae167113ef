package recording_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/recording"
	"github.com/fakeyudi/capturectl/internal/remote"
	"github.com/fakeyudi/capturectl/internal/session"
)

// fakeRemote records calls and returns canned results.
type fakeRemote struct {
	mu      sync.Mutex
	starts  []remote.StartRequest
	stops   []remote.StopRequest
	ends    []remote.EndRequest
	err     error
	confirm string
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeRemote) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeRemote) StartRecording(ctx context.Context, req remote.StartRequest) (remote.StartResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, req)
	if f.err != nil {
		return remote.StartResponse{}, f.err
	}
	id := f.confirm
	if id == "" {
		id = req.SessionID
	}
	return remote.StartResponse{SessionID: id}, nil
}

func (f *fakeRemote) StopRecording(ctx context.Context, req remote.StopRequest) (remote.StopResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, req)
	if f.err != nil {
		return remote.StopResponse{}, f.err
	}
	return remote.StopResponse{Path: req.SavePath + "/" + req.Name + ".mp4"}, nil
}

func (f *fakeRemote) EndSession(ctx context.Context, req remote.EndRequest) (remote.EndResponse, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, req)
	if f.err != nil {
		return remote.EndResponse{}, f.err
	}
	return remote.EndResponse{Message: "Session ended", CSVPath: req.SavePath + "/session.csv"}, nil
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts) + len(f.stops) + len(f.ends)
}

type counter struct{ n atomic.Uint64 }

func (c *counter) Bump() uint64 { return c.n.Add(1) }

var scenarioTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// tb is the part of testing.TB that *rapid.T also provides.
type tb interface {
	Helper()
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

func newIdentity(t tb, studyID, sessionName string) *identity.Manager {
	t.Helper()
	m := identity.NewManager(&identity.MemoryStore{}, identity.Defaults{})
	if _, err := m.Begin(scenarioTime); err != nil {
		t.Fatal(err)
	}
	if _, err := m.UpdateField(identity.FieldStudyID, studyID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.UpdateField(identity.FieldSessionName, sessionName); err != nil {
		t.Fatal(err)
	}
	return m
}

func newCoordinator(t tb, r *fakeRemote, ids *identity.Manager, store session.SessionStore, refresh recording.Refresher) *recording.Coordinator {
	t.Helper()
	c, err := recording.New(recording.Options{
		Remote:   r,
		Identity: ids,
		Store:    store,
		Refresh:  refresh,
		Clock:    func() time.Time { return scenarioTime },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestStartStopCycle(t *testing.T) {
	r := &fakeRemote{}
	ids := newIdentity(t, "S1", "trial1")
	refresh := &counter{}
	c := newCoordinator(t, r, ids, &session.MemoryStore{}, refresh)
	ctx := context.Background()

	trial, err := c.Start(ctx, "walk")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if trial.SessionID != "trial1_2024-01-01_10-00-00" {
		t.Errorf("trial session id = %q", trial.SessionID)
	}
	if got := r.starts[0].SavePath; got != "data/S1/trial1_2024-01-01_10-00-00" {
		t.Errorf("start save_path = %q", got)
	}
	if c.State() != recording.Recording {
		t.Fatalf("state = %s, want recording", c.State())
	}

	resp, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if resp.Path == "" {
		t.Errorf("empty stop path")
	}
	if r.stops[0].Name != "walk" {
		t.Errorf("stop name = %q, want walk", r.stops[0].Name)
	}
	if c.State() != recording.Idle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if refresh.n.Load() != 1 {
		t.Errorf("refresh bumped %d times, want 1", refresh.n.Load())
	}

	// a second cycle under the same session id appends a second trial
	if _, err := c.Start(ctx, "walk"); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if n := len(c.Status().Trials); n != 2 {
		t.Errorf("trials = %d, want 2", n)
	}
}

func TestStartRecordsConfirmedSessionID(t *testing.T) {
	r := &fakeRemote{confirm: "server-side-id"}
	c := newCoordinator(t, r, newIdentity(t, "S1", "trial1"), nil, nil)

	trial, err := c.Start(context.Background(), "walk")
	if err != nil {
		t.Fatal(err)
	}
	if trial.SessionID != "server-side-id" || c.Status().SessionID != "server-side-id" {
		t.Errorf("confirmed id not recorded: trial=%q status=%q", trial.SessionID, c.Status().SessionID)
	}
	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.stops[0].SessionID != "server-side-id" {
		t.Errorf("stop used %q, want confirmed id", r.stops[0].SessionID)
	}
}

func TestStartValidation(t *testing.T) {
	r := &fakeRemote{}
	ids := identity.NewManager(&identity.MemoryStore{}, identity.Defaults{})
	c := newCoordinator(t, r, ids, nil, nil)

	_, err := c.Start(context.Background(), "  ")
	var verr *recording.ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, recording.ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Missing) != 2 {
		t.Errorf("missing = %v, want trial name and session id", verr.Missing)
	}
	if r.calls() != 0 {
		t.Errorf("remote called on validation failure")
	}
	if c.State() != recording.Idle {
		t.Errorf("state = %s", c.State())
	}
}

func TestRemoteFailureRollsBack(t *testing.T) {
	r := &fakeRemote{}
	c := newCoordinator(t, r, newIdentity(t, "S1", "trial1"), nil, nil)
	ctx := context.Background()

	r.err = &remote.RequestError{StatusCode: 500, Detail: "camera offline"}
	if _, err := c.Start(ctx, "walk"); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != recording.Idle || len(c.Status().Trials) != 0 {
		t.Fatalf("start failure not rolled back: %+v", c.Status())
	}

	r.err = nil
	if _, err := c.Start(ctx, "walk"); err != nil {
		t.Fatal(err)
	}
	r.err = errors.New("connection reset")
	if _, err := c.Stop(ctx); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != recording.Recording {
		t.Fatalf("stop failure left state %s", c.State())
	}
	if _, err := c.EndSession(ctx, ""); err == nil {
		t.Fatal("expected error")
	}
	if c.State() != recording.Recording || len(c.Status().Trials) != 1 {
		t.Fatalf("end failure changed state: %+v", c.Status())
	}
}

func TestInvalidTransitions(t *testing.T) {
	r := &fakeRemote{}
	c := newCoordinator(t, r, newIdentity(t, "S1", "trial1"), nil, nil)
	ctx := context.Background()

	if _, err := c.Stop(ctx); !errors.Is(err, recording.ErrInvalidTransition) {
		t.Errorf("stop while idle: %v", err)
	}
	if _, err := c.Start(ctx, "walk"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Start(ctx, "run"); !errors.Is(err, recording.ErrInvalidTransition) {
		t.Errorf("start while recording: %v", err)
	}
	if _, err := c.EndSession(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Start(ctx, "walk"); !errors.Is(err, recording.ErrInvalidTransition) {
		t.Errorf("start after end: %v", err)
	}
	c.Reset()
	if c.State() != recording.Idle {
		t.Errorf("Reset left state %s", c.State())
	}
}

func TestBusyWhileRequestOutstanding(t *testing.T) {
	r := &fakeRemote{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	c := newCoordinator(t, r, newIdentity(t, "S1", "trial1"), nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Start(ctx, "walk")
		done <- err
	}()
	<-r.entered

	if c.State() != recording.Starting || !c.Status().Busy {
		t.Errorf("expected starting and busy, got %+v", c.Status())
	}
	if _, err := c.Stop(ctx); !errors.Is(err, recording.ErrBusy) {
		t.Errorf("stop during start: %v", err)
	}
	if _, err := c.EndSession(ctx, ""); !errors.Is(err, recording.ErrBusy) {
		t.Errorf("end during start: %v", err)
	}

	close(r.block)
	if err := <-done; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != recording.Recording {
		t.Errorf("state = %s", c.State())
	}
}

func TestEndSessionClearsEverything(t *testing.T) {
	r := &fakeRemote{}
	ids := newIdentity(t, "S1", "trial1")
	store := &session.MemoryStore{}
	c := newCoordinator(t, r, ids, store, nil)
	ctx := context.Background()

	c.Start(ctx, "walk")
	c.Stop(ctx)
	if err := c.SetNote("walk", "good form"); err != nil {
		t.Fatal(err)
	}

	res, err := c.EndSession(ctx, "all done")
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if r.ends[0].Notes["walk"] != "good form" || r.ends[0].Comment != "all done" {
		t.Errorf("end request = %+v", r.ends[0])
	}
	if res.CSVPath == "" || len(res.Trials) != 1 || res.Identity.StudyID != "S1" {
		t.Errorf("result = %+v", res)
	}
	if c.State() != recording.Ended || len(c.Status().Trials) != 0 {
		t.Errorf("ledger not cleared: %+v", c.Status())
	}
	if id := ids.Snapshot(); id.SessionID != "" || id.StudyID != "" {
		t.Errorf("identity not cleared: %+v", id)
	}
	if _, err := store.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("snapshot not deleted: %v", err)
	}
}

func TestResumeFromSnapshot(t *testing.T) {
	r := &fakeRemote{}
	ids := newIdentity(t, "S1", "trial1")
	store := &session.MemoryStore{}
	first := newCoordinator(t, r, ids, store, nil)
	if _, err := first.Start(context.Background(), "walk"); err != nil {
		t.Fatal(err)
	}

	second := newCoordinator(t, r, ids, store, nil)
	st := second.Status()
	if st.State != recording.Recording || st.ActiveTrial != "walk" || len(st.Trials) != 1 {
		t.Fatalf("resumed status = %+v", st)
	}
	if _, err := second.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.stops[0].Name != "walk" {
		t.Errorf("resumed stop name = %q", r.stops[0].Name)
	}
}

// Feature: capturectl, Property 7: stop is rejected without a remote call whenever the session id is empty
func TestStopWithoutSessionIDNeverCallsRemote(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := &fakeRemote{}
		ids := identity.NewManager(&identity.MemoryStore{}, identity.Defaults{})
		// identity with no name and no suffix has an empty session id
		ids.UpdateField(identity.FieldStudyID, rapid.StringMatching(`[A-Z0-9]{0,4}`).Draw(t, "study"))
		ids.UpdateField(identity.FieldBasePath, rapid.StringMatching(`[a-z/]{0,8}`).Draw(t, "base"))
		c, err := recording.New(recording.Options{Remote: r, Identity: ids})
		if err != nil {
			t.Fatal(err)
		}

		n := rapid.IntRange(1, 5).Draw(t, "attempts")
		for i := 0; i < n; i++ {
			if _, err := c.Stop(context.Background()); !errors.Is(err, recording.ErrValidation) {
				t.Fatalf("Stop: expected validation error, got %v", err)
			}
		}
		if r.calls() != 0 {
			t.Fatalf("remote called %d times", r.calls())
		}
	})
}

// Feature: capturectl, Property 8: every failed operation leaves the coordinator in its prior stable state
func TestFailuresRestorePriorState(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := &fakeRemote{}
		c := newCoordinator(t, r, newIdentity(t, "S1", "trial1"), &session.MemoryStore{}, nil)
		ctx := context.Background()

		ops := rapid.SliceOfN(rapid.SampledFrom([]string{"start", "stop", "end"}), 1, 20).Draw(t, "ops")
		for i, op := range ops {
			fail := rapid.Bool().Draw(t, "fail")
			if fail {
				r.err = errors.New("boom")
			} else {
				r.err = nil
			}
			before := c.Status()

			var err error
			switch op {
			case "start":
				_, err = c.Start(ctx, "walk")
			case "stop":
				_, err = c.Stop(ctx)
			case "end":
				_, err = c.EndSession(ctx, "")
			}

			after := c.Status()
			if after.State == recording.Starting || after.State == recording.Stopping || after.Busy {
				t.Fatalf("op %d %s left transient state %s", i, op, after.State)
			}
			if err != nil && (after.State != before.State || len(after.Trials) != len(before.Trials)) {
				t.Fatalf("op %d %s failed but changed state %s -> %s", i, op, before.State, after.State)
			}
			if after.State == recording.Ended {
				return
			}
		}
	})
}

// flakyStore fails the first fails saves and then behaves like a MemoryStore.
type flakyStore struct {
	session.MemoryStore
	fails int
}

func (f *flakyStore) Save(s *session.Session) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(s)
}

func TestStartSucceedsWhenSaveIsRetried(t *testing.T) {
	r := &fakeRemote{}
	ids := newIdentity(t, "S1", "trial1")
	store := &flakyStore{fails: 1}
	c := newCoordinator(t, r, ids, store, nil)

	if _, err := c.Start(context.Background(), "walk"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if recording.State(s.State) != recording.Recording || s.ActiveTrial != "walk" {
		t.Fatalf("stored snapshot = %+v", s)
	}

	// A later invocation resumes recording and can stop.
	next := newCoordinator(t, r, ids, store, nil)
	if _, err := next.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after resume: %v", err)
	}
}

func TestStartReportsSuccessWhenSaveKeepsFailing(t *testing.T) {
	r := &fakeRemote{}
	c := newCoordinator(t, r, newIdentity(t, "S1", "trial1"), &flakyStore{fails: 10}, nil)

	trial, err := c.Start(context.Background(), "walk")
	if err != nil {
		t.Fatalf("Start returned %v after the service accepted it", err)
	}
	if trial.Name != "walk" || c.State() != recording.Recording {
		t.Fatalf("trial = %+v, state = %s", trial, c.State())
	}
	if _, err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.State() != recording.Idle {
		t.Errorf("state after stop = %s", c.State())
	}
}
