// Package ledger keeps the in-session list of recorded trials and the notes
// attached to them.
package ledger

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownTrial is returned by SetNote when no trial carries the given name.
var ErrUnknownTrial = errors.New("unknown trial")

// Trial is one completed start of a recording.
type Trial struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	SessionID string    `json:"session_id"`
}

// NewTrial returns a Trial with a fresh ID.
func NewTrial(name, sessionID string, startedAt time.Time) Trial {
	return Trial{
		ID:        uuid.New().String(),
		Name:      name,
		StartedAt: startedAt,
		SessionID: sessionID,
	}
}

// Ledger is append-only between clears. Notes are keyed by trial name, so
// repeated trials with the same name share one note.
type Ledger struct {
	mu     sync.Mutex
	trials []Trial
	notes  map[string]string
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{notes: map[string]string{}}
}

// Restore returns a Ledger seeded from a persisted snapshot.
func Restore(trials []Trial, notes map[string]string) *Ledger {
	l := New()
	l.trials = append(l.trials, trials...)
	maps.Copy(l.notes, notes)
	return l
}

// Append records t at the end of the ledger.
func (l *Ledger) Append(t Trial) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trials = append(l.trials, t)
}

// SetNote attaches text to the trial called name, replacing any earlier note.
func (l *Ledger) SetNote(name, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.trials {
		if t.Name == name {
			l.notes[name] = text
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTrial, name)
}

// Note returns the note for name and whether one is set.
func (l *Ledger) Note(name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	text, ok := l.notes[name]
	return text, ok
}

// Trials returns a copy of the recorded trials in append order.
func (l *Ledger) Trials() []Trial {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Trial(nil), l.trials...)
}

// Notes returns a copy of the name to note map.
func (l *Ledger) Notes() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.notes)
}

// Last returns the most recently appended trial.
func (l *Ledger) Last() (Trial, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.trials) == 0 {
		return Trial{}, false
	}
	return l.trials[len(l.trials)-1], true
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trials)
}

// Clear drops every trial and note.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trials = nil
	l.notes = map[string]string{}
}
