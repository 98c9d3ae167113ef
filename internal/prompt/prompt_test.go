package prompt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/fakeyudi/capturectl/internal/config"
	"github.com/fakeyudi/capturectl/internal/identity"
)

func TestAskDefaultsOnBlank(t *testing.T) {
	var out bytes.Buffer
	a := New(strings.NewReader("\n  typed  \n"), &out)

	got, err := a.Ask("Name", "fallback")
	if err != nil || got != "fallback" {
		t.Fatalf("blank answer: got %q, %v", got, err)
	}
	got, err = a.Ask("Name", "fallback")
	if err != nil || got != "typed" {
		t.Fatalf("typed answer: got %q, %v", got, err)
	}
	if !strings.Contains(out.String(), "Name [fallback]: ") {
		t.Errorf("prompt not shown with default: %q", out.String())
	}
}

func TestAskLastLineWithoutNewline(t *testing.T) {
	a := New(strings.NewReader("last"), io.Discard)
	got, err := a.Ask("Q", "")
	if err != nil || got != "last" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := a.Ask("Q", ""); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF once input is exhausted, got %v", err)
	}
}

func TestAskRequiredRepeats(t *testing.T) {
	var out bytes.Buffer
	a := New(strings.NewReader("\n\nS1\n"), &out)
	got, err := a.AskRequired("Study ID", "")
	if err != nil || got != "S1" {
		t.Fatalf("got %q, %v", got, err)
	}
	if n := strings.Count(out.String(), "A value is required."); n != 2 {
		t.Errorf("expected 2 reprompts, got %d", n)
	}
}

func TestAskRequiredStopsOnEOF(t *testing.T) {
	a := New(strings.NewReader("\n"), io.Discard)
	if _, err := a.AskRequired("Study ID", ""); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestAskBoolAndChoose(t *testing.T) {
	a := New(strings.NewReader("YES\n\nJSON\nxml\n"), io.Discard)

	if ok, err := a.AskBool("Continue", false); err != nil || !ok {
		t.Fatalf("AskBool(YES) = %v, %v", ok, err)
	}
	if ok, err := a.AskBool("Continue", false); err != nil || ok {
		t.Fatalf("AskBool(blank, default n) = %v, %v", ok, err)
	}
	opts := []string{"markdown", "json"}
	if got, _ := a.Choose("Format", opts, "markdown"); got != "json" {
		t.Fatalf("Choose(JSON) = %q", got)
	}
	if got, _ := a.Choose("Format", opts, "markdown"); got != "markdown" {
		t.Fatalf("Choose(xml) should fall back, got %q", got)
	}
}

func TestSessionSetup(t *testing.T) {
	cur := identity.Identity{
		DeviceAddress: identity.DefaultDeviceAddress,
		BasePath:      identity.DefaultBasePath,
	}
	input := strings.Join([]string{
		"",     // study id blank, reprompted
		"S1",   // study id
		"walk", // session name
		"",     // suffix
		"10.0.0.2",
		"",
	}, "\n") + "\n"

	got, err := SessionSetup(New(strings.NewReader(input), io.Discard), cur)
	if err != nil {
		t.Fatalf("SessionSetup: %v", err)
	}
	if got.StudyID != "S1" || got.SessionName != "walk" || got.VideoNameSuffix != "" {
		t.Errorf("unexpected identity: %+v", got)
	}
	if got.DeviceAddress != "10.0.0.2" || got.BasePath != identity.DefaultBasePath {
		t.Errorf("unexpected device/base: %+v", got)
	}
}

func TestSessionSetupAbortKeepsCurrent(t *testing.T) {
	cur := identity.Identity{StudyID: "S0"}
	got, err := SessionSetup(New(strings.NewReader("S1\n"), io.Discard), cur)
	if err == nil {
		t.Fatal("expected error when input ends before session name")
	}
	if got != cur {
		t.Errorf("aborted wizard changed identity: %+v", got)
	}
}

func TestConfigSetup(t *testing.T) {
	input := "http://rig:9000\n\n/srv/capture\njson\nout\n"
	got, err := ConfigSetup(New(strings.NewReader(input), io.Discard), config.Defaults())
	if err != nil {
		t.Fatalf("ConfigSetup: %v", err)
	}
	want := config.Defaults()
	want.ServerURL = "http://rig:9000"
	want.BaseSavePath = "/srv/capture"
	want.DefaultFormat = "json"
	want.OutputDir = "out"
	if got != want {
		t.Errorf("got %+v\nwant %+v", got, want)
	}
}
