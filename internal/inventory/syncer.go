package inventory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/remote"
)

// Lister fetches the video names for one session.
type Lister interface {
	ListVideos(ctx context.Context, req remote.ListVideosRequest) ([]string, error)
}

// IdentityView returns the current identity snapshot.
type IdentityView interface {
	Snapshot() identity.Identity
}

// Syncer owns the Inventory. Fetches may overlap; each carries the identity
// snapshot it was issued for and a generation number, and a result is only
// applied if that identity is still current and no newer result has landed.
type Syncer struct {
	mu      sync.Mutex
	lister  Lister
	ids     IdentityView
	inv     Inventory
	issued  uint64
	applied uint64
	subs    []chan Inventory
}

func NewSyncer(lister Lister, ids IdentityView) *Syncer {
	return &Syncer{lister: lister, ids: ids}
}

// Current returns a copy of the applied inventory.
func (s *Syncer) Current() Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inv.clone()
}

// Refresh fetches the listing for id and applies it unless it went stale in
// flight. Fetch failures reset the inventory and are only logged. The bool
// reports whether the result was applied.
func (s *Syncer) Refresh(ctx context.Context, id identity.Identity) (Inventory, bool) {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.mu.Unlock()

	key := id.Key()
	if id.SessionID == "" {
		return s.apply(key, gen, nil)
	}

	videos, err := s.lister.ListVideos(ctx, remote.ListVideosRequest{
		SessionID: id.SessionID,
		SavePath:  id.FullPath,
		StudyID:   id.StudyID,
	})
	if err != nil {
		slog.Warn("video listing failed", "session_id", id.SessionID, "err", err)
		videos = nil
	}
	return s.apply(key, gen, videos)
}

func (s *Syncer) apply(key identity.Key, gen uint64, videos []string) (Inventory, bool) {
	current := s.ids.Snapshot().Key()

	s.mu.Lock()
	defer s.mu.Unlock()
	if key != current || gen < s.applied {
		slog.Debug("discarding stale video listing", "generation", gen, "applied", s.applied, "session_id", key.SessionID)
		return s.inv.clone(), false
	}
	s.inv = s.inv.withVideos(key, videos)
	s.applied = gen
	s.publish()
	return s.inv.clone(), true
}

// Select marks name as the selected video; "" clears the selection.
func (s *Syncer) Select(name string) (Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.inv.selectVideo(name)
	if err != nil {
		return s.inv.clone(), err
	}
	s.inv = next
	s.publish()
	return s.inv.clone(), nil
}

// Subscribe returns a channel receiving the inventory after each change.
// Only the latest value is kept for a slow reader.
func (s *Syncer) Subscribe() <-chan Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Inventory, 1)
	s.subs = append(s.subs, ch)
	return ch
}

// publish must be called with s.mu held.
func (s *Syncer) publish() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.inv.clone()
	}
}

// Run refreshes once, then once per identity change and per refresh signal,
// until ctx is cancelled. Each fetch runs in its own goroutine so a slow
// listing never delays a newer one.
func (s *Syncer) Run(ctx context.Context, identities <-chan identity.Identity, refresh <-chan uint64) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	fetch := func(id identity.Identity) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Refresh(ctx, id)
		}()
	}

	fetch(s.ids.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-identities:
			if !ok {
				identities = nil
				continue
			}
			fetch(id)
		case n, ok := <-refresh:
			if !ok {
				refresh = nil
				continue
			}
			slog.Debug("refresh signal", "counter", n)
			fetch(s.ids.Snapshot())
		}
	}
}
