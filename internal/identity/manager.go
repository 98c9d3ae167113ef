package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrUnknownField is returned by UpdateField for a field name it does not accept.
var ErrUnknownField = errors.New("unknown identity field")

// Defaults supplies the values used for fields that were never persisted.
type Defaults struct {
	DeviceAddress string
	BasePath      string
}

// Manager is the only writer of the session identity. Readers receive value
// snapshots through Snapshot or Subscribe.
type Manager struct {
	mu       sync.Mutex
	store    IdentityStore
	defaults Defaults
	cur      Identity
	subs     []chan Identity
}

// NewManager returns a Manager backed by store. Empty defaults fall back to
// DefaultDeviceAddress and DefaultBasePath.
func NewManager(store IdentityStore, d Defaults) *Manager {
	if d.DeviceAddress == "" {
		d.DeviceAddress = DefaultDeviceAddress
	}
	if d.BasePath == "" {
		d.BasePath = DefaultBasePath
	}
	m := &Manager{store: store, defaults: d}
	m.cur = m.fromValues(nil)
	return m
}

// LoadIdentity reads the persisted identity. Absence is not an error: the
// defaulted identity is returned instead.
func (m *Manager) LoadIdentity() (Identity, error) {
	values, err := m.store.Load()
	if err != nil {
		return Identity{}, fmt.Errorf("loading identity: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = m.fromValues(values)
	return m.cur, nil
}

func (m *Manager) fromValues(values map[string]string) Identity {
	id := Identity{
		DeviceAddress: m.defaults.DeviceAddress,
		BasePath:      m.defaults.BasePath,
	}
	for _, f := range Fields {
		if v, ok := values[string(f)]; ok {
			id.set(f, v)
		}
	}

	stored := values[keySessionID]
	switch {
	case stored == "":
	case id.SessionName == "" || strings.HasPrefix(stored, id.SessionName+"_"):
		id.TimestampSuffix = suffixFromSessionID(id.SessionName, stored)
	case stored == id.SessionName:
	default:
		slog.Warn("persisted session id does not match session name", "session_id", stored, "session_name", id.SessionName)
	}
	id.derive()
	return id
}

func toValues(id Identity) map[string]string {
	values := make(map[string]string, len(Fields)+1)
	for _, f := range Fields {
		values[string(f)] = id.Value(f)
	}
	values[keySessionID] = id.SessionID
	return values
}

// Snapshot returns a copy of the current identity.
func (m *Manager) Snapshot() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Begin starts a new initialization visit: it assigns a fresh timestamp
// suffix derived from now and persists the result.
func (m *Manager) Begin(now time.Time) (Identity, error) {
	return m.mutate(func(id *Identity) error {
		id.TimestampSuffix = NewTimestampSuffix(now)
		return nil
	})
}

// UpdateField sets one input field, recomputes the derived fields and
// persists every key in a single write. The timestamp suffix is left alone.
func (m *Manager) UpdateField(f Field, value string) (Identity, error) {
	return m.mutate(func(id *Identity) error {
		if !id.set(f, value) {
			return fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
		return nil
	})
}

func (m *Manager) mutate(apply func(*Identity) error) (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cur
	if err := apply(&next); err != nil {
		return m.cur, err
	}
	next.derive()

	if err := m.store.SaveAll(toValues(next)); err != nil {
		return m.cur, err
	}
	prev := m.cur
	m.cur = next
	if prev.Key() != next.Key() {
		m.publish(next)
	}
	return next, nil
}

// Clear removes every persisted key and resets the identity to defaults.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		return err
	}
	prev := m.cur
	m.cur = m.fromValues(nil)
	if prev.Key() != m.cur.Key() {
		m.publish(m.cur)
	}
	return nil
}

// Reload re-reads the store, picking up writes from other processes, and
// publishes a change when the derived identity moved.
func (m *Manager) Reload() (Identity, error) {
	values, err := m.store.Load()
	if err != nil {
		return m.Snapshot(), fmt.Errorf("reloading identity: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.cur
	m.cur = m.fromValues(values)
	if prev.Key() != m.cur.Key() {
		m.publish(m.cur)
	}
	return m.cur, nil
}

// Subscribe returns a channel that receives the identity after every change
// of SessionID, FullPath or StudyID. Slow subscribers only see the latest
// value; older pending values are dropped.
func (m *Manager) Subscribe() <-chan Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Identity, 1)
	m.subs = append(m.subs, ch)
	return ch
}

// publish must be called with m.mu held.
func (m *Manager) publish(id Identity) {
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- id:
		default:
		}
	}
}
