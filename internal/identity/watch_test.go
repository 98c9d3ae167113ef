package identity

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// A write from a second manager on the same file reaches the watching one.
func TestWatchReloadsExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	store, err := NewDiskStore(path)
	if err != nil {
		t.Fatal(err)
	}
	watched := NewManager(store, Defaults{BasePath: "data"})
	if _, err := watched.LoadIdentity(); err != nil {
		t.Fatal(err)
	}
	updates := watched.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, watched) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()

	other, err := NewDiskStore(path)
	if err != nil {
		t.Fatal(err)
	}
	writer := NewManager(other, Defaults{BasePath: "data"})
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	// The watcher may not be registered yet; keep writing until it reports.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case id := <-updates:
			if id.StudyID == "S1" && id.SessionID == "gait_2024-01-02_03-04-05" {
				return
			}
		case <-tick.C:
			if _, err := writer.Begin(now); err != nil {
				t.Fatal(err)
			}
			if _, err := writer.UpdateField(FieldStudyID, "S1"); err != nil {
				t.Fatal(err)
			}
			if _, err := writer.UpdateField(FieldSessionName, "gait"); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatalf("watcher never reloaded; current identity %+v", watched.Snapshot())
		}
	}
}
