package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fakeyudi/capturectl/internal/fsutil"
)

// ErrCorruptStore is returned by Load when the persisted identity cannot be parsed.
var ErrCorruptStore = errors.New("identity store is corrupt")

// IdentityStore persists the identity as a flat string key-value map.
type IdentityStore interface {
	Load() (map[string]string, error) // empty map when nothing is stored
	SaveAll(values map[string]string) error
	Clear() error
}

// diskStore writes identity.json in the capturectl data directory.
type diskStore struct {
	path string
}

// NewDiskStore returns an IdentityStore backed by path. The parent directory
// is created if needed.
func NewDiskStore(path string) (IdentityStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating identity directory: %w", err)
	}
	return &diskStore{path: path}, nil
}

func (d *diskStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}
	return values, nil
}

// SaveAll replaces the stored map in one atomic write.
func (d *diskStore) SaveAll(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist identity: %w", err)
	}
	if err := fsutil.WriteFileAtomic(d.path, data); err != nil {
		return fmt.Errorf("failed to persist identity: %w", err)
	}
	return nil
}

func (d *diskStore) Clear() error {
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}

// MemoryStore is an in-process IdentityStore. The zero value is ready to use.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string

	// FailSave, when set, is returned by SaveAll without storing anything.
	FailSave error
}

func (m *MemoryStore) Load() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	maps.Copy(out, m.values)
	return out, nil
}

func (m *MemoryStore) SaveAll(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.values = maps.Clone(values)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = nil
	return nil
}
