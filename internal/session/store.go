package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fakeyudi/capturectl/internal/fsutil"
	"github.com/fakeyudi/capturectl/internal/ledger"
)

// ErrNoSession is returned by Load when no session file exists on disk.
var ErrNoSession = errors.New("no active session")

// SessionStore persists the coordinator snapshot.
type SessionStore interface {
	Save(s *Session) error
	Load() (*Session, error) // returns ErrNoSession if none exists
	Delete() error
}

type diskStore struct {
	path string // full path to session.json
}

// NewSessionStore returns a SessionStore backed by the XDG data directory.
// Path: $XDG_DATA_HOME/capturectl/session.json or ~/.local/share/capturectl/session.json
func NewSessionStore() (SessionStore, error) {
	dir, err := EnsureDataDir()
	if err != nil {
		return nil, err
	}
	return &diskStore{path: filepath.Join(dir, "session.json")}, nil
}

// EnsureDataDir resolves DataDir and creates it.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", fmt.Errorf("resolving data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}

// DataDir returns the capturectl XDG data directory. The identity file,
// coordinator snapshot and session archive all live here.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "capturectl"), nil
}

// Save marshals s to JSON and writes it atomically.
func (d *diskStore) Save(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	if err := fsutil.WriteFileAtomic(d.path, data); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// Load reads and unmarshals the session file.
// Returns ErrNoSession if the file does not exist.
func (d *diskStore) Load() (*Session, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return &s, nil
}

// Delete removes the session file from disk.
func (d *diskStore) Delete() error {
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// MemoryStore keeps the snapshot in process. The zero value is ready to use.
type MemoryStore struct {
	mu sync.Mutex
	s  *Session
}

func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Trials = append([]ledger.Trial(nil), s.Trials...)
	cp.Notes = maps.Clone(s.Notes)
	m.s = &cp
	return nil
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, ErrNoSession
	}
	cp := *m.s
	cp.Trials = append([]ledger.Trial(nil), m.s.Trials...)
	cp.Notes = maps.Clone(m.s.Notes)
	return &cp, nil
}

func (m *MemoryStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}
