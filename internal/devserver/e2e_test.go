package devserver_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/fakeyudi/capturectl/internal/devserver"
	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/inventory"
	"github.com/fakeyudi/capturectl/internal/recording"
	"github.com/fakeyudi/capturectl/internal/remote"
	"github.com/fakeyudi/capturectl/internal/session"
)

func waitForVideos(t *testing.T, ch <-chan inventory.Inventory, want []string) inventory.Inventory {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case inv := <-ch:
			if slices.Equal(inv.Videos, want) {
				return inv
			}
		case <-timeout:
			t.Fatalf("timed out waiting for videos %v", want)
		}
	}
}

// Drives a whole session through the real client against the simulated
// backend: two trials, live inventory updates, playback, end.
func TestSessionAgainstDevServer(t *testing.T) {
	root := t.TempDir()
	srv, err := devserver.New(devserver.Options{Root: root, Host: "10.0.0.9"})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := identity.NewManager(&identity.MemoryStore{}, identity.Defaults{})
	if _, err := ids.Begin(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	for f, v := range map[identity.Field]string{identity.FieldStudyID: "S1", identity.FieldSessionName: "gait"} {
		if _, err := ids.UpdateField(f, v); err != nil {
			t.Fatal(err)
		}
	}
	id := ids.Snapshot()
	if id.FullPath != "data/S1/gait_2024-05-06_07-08-09" {
		t.Fatalf("FullPath = %q", id.FullPath)
	}

	client := remote.New(ts.URL)
	counter := &inventory.RefreshCounter{}
	coord, err := recording.New(recording.Options{
		Remote:   client,
		Identity: ids,
		Store:    &session.MemoryStore{},
		Refresh:  counter,
	})
	if err != nil {
		t.Fatal(err)
	}

	syncer := inventory.NewSyncer(client, ids)
	updates := syncer.Subscribe()
	done := make(chan error, 1)
	go func() { done <- syncer.Run(ctx, ids.Subscribe(), counter.Subscribe()) }()
	waitForVideos(t, updates, []string{})

	if host, err := client.Host(ctx); err != nil || host != "10.0.0.9" {
		t.Fatalf("Host() = %q, %v", host, err)
	}

	for _, trial := range []string{"baseline", "walk fast"} {
		if _, err := coord.Start(ctx, trial); err != nil {
			t.Fatalf("start %s: %v", trial, err)
		}
		if _, err := coord.Stop(ctx); err != nil {
			t.Fatalf("stop %s: %v", trial, err)
		}
	}
	inv := waitForVideos(t, updates, []string{"baseline.mp4", "walk fast.mp4"})
	if inv.Key != id.Key() {
		t.Fatalf("inventory key = %+v, want %+v", inv.Key, id.Key())
	}

	if _, err := syncer.Select("walk fast.mp4"); err != nil {
		t.Fatal(err)
	}
	u, ok := syncer.Current().VideoURL(ts.URL)
	if !ok {
		t.Fatal("expected a playback URL")
	}
	body, err := client.GetVideo(ctx, u)
	if err != nil {
		t.Fatalf("GetVideo(%s): %v", u, err)
	}
	clip, _ := io.ReadAll(body)
	body.Close()
	if !strings.HasPrefix(string(clip), "simulated clip walk fast") {
		t.Fatalf("unexpected clip %q", clip)
	}

	if err := coord.SetNote("baseline", "calm"); err != nil {
		t.Fatal(err)
	}
	res, err := coord.EndSession(ctx, "all good")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if res.CSVPath != id.FullPath+"/session.csv" || len(res.Trials) != 2 {
		t.Fatalf("end result = %+v", res)
	}
	csv, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(res.CSVPath)))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(csv), "baseline,baseline.mp4,") || !strings.Contains(string(csv), ",calm\n") {
		t.Fatalf("csv = %s", csv)
	}
	if ids.Snapshot().SessionID != "" || coord.State() != recording.Ended {
		t.Fatalf("session not cleared: identity %+v state %s", ids.Snapshot(), coord.State())
	}
	waitForVideos(t, updates, []string{})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRemoteErrorsSurfaceDetail(t *testing.T) {
	srv, err := devserver.New(devserver.Options{Root: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	client := remote.New(ts.URL)

	_, err = client.StopRecording(context.Background(), remote.StopRequest{SessionID: "nobody"})
	var reqErr *remote.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != 409 || !strings.Contains(reqErr.Detail, "not recording") {
		t.Fatalf("stop error = %v", err)
	}

	_, err = client.StartRecording(context.Background(), remote.StartRequest{SessionID: "s"})
	if !errors.As(err, &reqErr) || reqErr.StatusCode != 422 || !strings.Contains(reqErr.Detail, "name is required") {
		t.Fatalf("start error = %v", err)
	}

	_, err = client.CaptureAndProcessCalibration(context.Background(), remote.CalibrationRequest{StudyID: "S1"})
	if !errors.As(err, &reqErr) || reqErr.StatusCode != 501 {
		t.Fatalf("calibration error = %v", err)
	}
}
