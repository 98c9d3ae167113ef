package ledger_test

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/capturectl/internal/ledger"
)

func TestSetNoteUnknownTrial(t *testing.T) {
	l := ledger.New()
	if err := l.SetNote("walk", "ok"); !errors.Is(err, ledger.ErrUnknownTrial) {
		t.Fatalf("expected ErrUnknownTrial, got %v", err)
	}
}

func TestNotesKeyedByName(t *testing.T) {
	l := ledger.New()
	now := time.Now()
	l.Append(ledger.NewTrial("walk", "s1", now))
	l.Append(ledger.NewTrial("walk", "s1", now.Add(time.Minute)))

	if err := l.SetNote("walk", "first"); err != nil {
		t.Fatal(err)
	}
	if err := l.SetNote("walk", "second"); err != nil {
		t.Fatal(err)
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}
	if got, _ := l.Note("walk"); got != "second" {
		t.Errorf("Note = %q, want %q", got, "second")
	}
	if len(l.Notes()) != 1 {
		t.Errorf("Notes = %v, want one entry", l.Notes())
	}
}

func TestCopiesAreIndependent(t *testing.T) {
	l := ledger.New()
	l.Append(ledger.NewTrial("walk", "s1", time.Now()))
	l.SetNote("walk", "ok")

	trials := l.Trials()
	trials[0].Name = "changed"
	notes := l.Notes()
	notes["walk"] = "changed"

	if l.Trials()[0].Name != "walk" {
		t.Error("Trials exposed internal slice")
	}
	if got, _ := l.Note("walk"); got != "ok" {
		t.Error("Notes exposed internal map")
	}
}

// Feature: capturectl, Property 5: Ledger preserves append order and clears completely
func TestLedgerAppendOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}`), 0, 30).Draw(t, "names")
		l := ledger.New()
		for _, n := range names {
			l.Append(ledger.NewTrial(n, "s", time.Now()))
		}

		got := l.Trials()
		if len(got) != len(names) {
			t.Fatalf("Len = %d, want %d", len(got), len(names))
		}
		seen := map[string]bool{}
		for i, tr := range got {
			if tr.Name != names[i] {
				t.Fatalf("trial %d = %q, want %q", i, tr.Name, names[i])
			}
			if seen[tr.ID] {
				t.Fatalf("duplicate trial id %s", tr.ID)
			}
			seen[tr.ID] = true
		}

		l.Clear()
		if l.Len() != 0 || len(l.Notes()) != 0 {
			t.Fatalf("ledger not empty after Clear")
		}
		if _, ok := l.Last(); ok {
			t.Fatalf("Last returned a trial after Clear")
		}
	})
}
