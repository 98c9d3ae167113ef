package bundle_test

import (
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/capturectl/internal/bundle"
	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/ledger"
	"github.com/fakeyudi/capturectl/internal/recording"
	"github.com/fakeyudi/capturectl/internal/remote"
)

// generateTime produces an arbitrary time.Time value truncated to second
// precision (matches JSON round-trip fidelity via RFC3339).
func generateTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(1_000_000_000, 1_700_000_000).Draw(t, label+"_unix_sec")
	return time.Unix(sec, 0).UTC()
}

// generateBundle produces a *bundle.SessionBundle with at least one trial
// and one video.
func generateBundle(t *rapid.T) *bundle.SessionBundle {
	meta := bundle.SessionMeta{
		ID:            rapid.StringN(1, 36, -1).Draw(t, "session_id"),
		StudyID:       rapid.StringN(1, 10, -1).Draw(t, "study_id"),
		SessionName:   rapid.StringN(1, 20, -1).Draw(t, "session_name"),
		FullPath:      rapid.StringN(1, 50, -1).Draw(t, "full_path"),
		DeviceAddress: rapid.StringN(1, 20, -1).Draw(t, "device"),
		StartTime:     generateTime(t, "start"),
		EndTime:       generateTime(t, "end"),
		Duration:      rapid.StringN(1, 20, -1).Draw(t, "duration"),
	}

	numTrials := rapid.IntRange(1, 5).Draw(t, "num_trials")
	trials := make([]bundle.TrialNote, numTrials)
	for i := range trials {
		trials[i] = bundle.TrialNote{
			Trial: ledger.Trial{
				ID:        rapid.StringN(1, 36, -1).Draw(t, "trial_id"),
				Name:      rapid.StringN(1, 30, -1).Draw(t, "trial_name"),
				StartedAt: generateTime(t, "trial_ts"),
				SessionID: meta.ID,
			},
			Note: rapid.StringN(0, 50, -1).Draw(t, "note"),
		}
	}

	numVideos := rapid.IntRange(1, 5).Draw(t, "num_videos")
	videos := make([]string, numVideos)
	for i := range videos {
		videos[i] = rapid.StringN(1, 50, -1).Draw(t, "video")
	}

	return &bundle.SessionBundle{
		Session: meta,
		Trials:  trials,
		Videos:  videos,
		Comment: rapid.StringN(0, 80, -1).Draw(t, "comment"),
		CSVPath: rapid.StringN(0, 50, -1).Draw(t, "csv_path"),
	}
}

func assertBundlesEqual(t *rapid.T, got, want *bundle.SessionBundle) {
	t.Helper()
	if got.Session != want.Session {
		t.Errorf("Session mismatch: got %+v, want %+v", got.Session, want.Session)
	}
	if got.Comment != want.Comment || got.CSVPath != want.CSVPath {
		t.Errorf("Comment/CSVPath mismatch: got %q %q, want %q %q", got.Comment, got.CSVPath, want.Comment, want.CSVPath)
	}
	if len(got.Trials) != len(want.Trials) {
		t.Fatalf("Trials length mismatch: got %d, want %d", len(got.Trials), len(want.Trials))
	}
	for i := range want.Trials {
		if got.Trials[i] != want.Trials[i] {
			t.Errorf("Trials[%d] mismatch: got %+v, want %+v", i, got.Trials[i], want.Trials[i])
		}
	}
	if len(got.Videos) != len(want.Videos) {
		t.Fatalf("Videos length mismatch: got %d, want %d", len(got.Videos), len(want.Videos))
	}
	for i := range want.Videos {
		if got.Videos[i] != want.Videos[i] {
			t.Errorf("Videos[%d] mismatch: got %q, want %q", i, got.Videos[i], want.Videos[i])
		}
	}
}

// Feature: capturectl, Property 11: Bundle completeness
func TestBundleCompleteness(t *testing.T) {
	mdRenderer := &bundle.MarkdownRenderer{}
	jsonRenderer := &bundle.JSONRenderer{}

	rapid.Check(t, func(t *rapid.T) {
		b := generateBundle(t)

		mdBytes, err := mdRenderer.Render(b)
		if err != nil {
			t.Fatalf("MarkdownRenderer.Render: %v", err)
		}
		md := string(mdBytes)
		for _, section := range []string{"## Summary", "## Trials", "## Videos"} {
			if !strings.Contains(md, section) {
				t.Errorf("Markdown output missing section %q", section)
			}
		}

		jsonBytes, err := jsonRenderer.Render(b)
		if err != nil {
			t.Fatalf("JSONRenderer.Render: %v", err)
		}
		js := string(jsonBytes)
		for _, key := range []string{`"session"`, `"trials"`, `"videos"`, `"started_at"`} {
			if !strings.Contains(js, key) {
				t.Errorf("JSON output missing key %q", key)
			}
		}
	})
}

// Feature: capturectl, Property 12: JSON bundle round-trip
func TestJSONBundleRoundTrip(t *testing.T) {
	renderer := &bundle.JSONRenderer{}
	parser := &bundle.JSONParser{}

	rapid.Check(t, func(t *rapid.T) {
		original := generateBundle(t)

		data, err := renderer.Render(original)
		if err != nil {
			t.Fatalf("JSONRenderer.Render: %v", err)
		}
		got, err := parser.Parse(data)
		if err != nil {
			t.Fatalf("JSONParser.Parse: %v", err)
		}
		assertBundlesEqual(t, got, original)
	})
}

// Feature: capturectl, Property 13: Markdown bundle round-trip
func TestMarkdownBundleRoundTrip(t *testing.T) {
	renderer := &bundle.MarkdownRenderer{}
	parser := &bundle.MarkdownParser{}

	rapid.Check(t, func(t *rapid.T) {
		original := generateBundle(t)

		data, err := renderer.Render(original)
		if err != nil {
			t.Fatalf("MarkdownRenderer.Render: %v", err)
		}
		got, err := parser.Parse(data)
		if err != nil {
			t.Fatalf("MarkdownParser.Parse: %v", err)
		}
		assertBundlesEqual(t, got, original)
	})
}

func TestFromEnd(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	res := recording.EndResult{
		EndResponse: remote.EndResponse{Message: "Session ended", CSVPath: "data/S1/s/session.csv"},
		Identity:    identity.Identity{StudyID: "S1", SessionName: "trial1", FullPath: "data/S1/s"},
		SessionID:   "s",
		Trials: []ledger.Trial{
			{Name: "walk", StartedAt: start},
			{Name: "run", StartedAt: start.Add(5 * time.Minute)},
		},
		Notes:   map[string]string{"walk": "good"},
		EndedAt: start.Add(time.Hour),
	}

	b := bundle.FromEnd(res, nil, "http://localhost:8000", "fine")
	if b.Session.Duration != "1h0m0s" {
		t.Errorf("Duration = %q", b.Session.Duration)
	}
	if b.Trials[0].Note != "good" || b.Trials[1].Note != "" {
		t.Errorf("notes not attached by name: %+v", b.Trials)
	}
	if b.Videos == nil || b.CSVPath != res.CSVPath || b.Comment != "fine" {
		t.Errorf("bundle = %+v", b)
	}
	if r := bundle.RendererFor("JSON"); r.Ext() != ".json" {
		t.Errorf("RendererFor(JSON) ext = %q", r.Ext())
	}
	if r := bundle.RendererFor(""); r.Ext() != ".md" {
		t.Errorf("RendererFor(\"\") ext = %q", r.Ext())
	}
}
