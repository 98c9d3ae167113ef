package prompt

import (
	"github.com/fakeyudi/capturectl/internal/config"
	"github.com/fakeyudi/capturectl/internal/identity"
)

// SessionSetup walks through the identity fields, using cur as defaults.
// Study id and session name are required before the wizard moves on.
func SessionSetup(a *Asker, cur identity.Identity) (identity.Identity, error) {
	a.Println()
	a.Println("  ┌─────────────────────────────────┐")
	a.Println("  │   capture — session setup       │")
	a.Println("  └─────────────────────────────────┘")
	a.Println()

	out := cur
	var err error

	if out.StudyID, err = a.AskRequired("  Study ID", cur.StudyID); err != nil {
		return cur, err
	}
	if out.SessionName, err = a.AskRequired("  Session name", cur.SessionName); err != nil {
		return cur, err
	}
	if out.VideoNameSuffix, err = a.Ask("  Video name suffix", cur.VideoNameSuffix); err != nil {
		return cur, err
	}
	if out.DeviceAddress, err = a.Ask("  Smartphone IP", cur.DeviceAddress); err != nil {
		return cur, err
	}
	if out.BasePath, err = a.Ask("  Base save path", cur.BasePath); err != nil {
		return cur, err
	}
	a.Println()
	return out, nil
}

// ConfigSetup edits the user-level settings, starting from cur.
func ConfigSetup(a *Asker, cur config.Config) (config.Config, error) {
	a.Println()
	a.Println("  ┌─────────────────────────────────┐")
	a.Println("  │   capture — first-time setup    │")
	a.Println("  └─────────────────────────────────┘")
	a.Println()

	out := cur
	var err error

	if out.ServerURL, err = a.AskRequired("  Capture server URL", cur.ServerURL); err != nil {
		return cur, err
	}
	if out.DeviceAddress, err = a.Ask("  Default smartphone IP", cur.DeviceAddress); err != nil {
		return cur, err
	}
	if out.BaseSavePath, err = a.Ask("  Default base save path", cur.BaseSavePath); err != nil {
		return cur, err
	}
	if out.DefaultFormat, err = a.Choose("  Default bundle format", []string{"markdown", "json"}, orDefault(cur.DefaultFormat, "markdown")); err != nil {
		return cur, err
	}
	if out.OutputDir, err = a.Ask("  Bundle output directory", cur.OutputDir); err != nil {
		return cur, err
	}
	a.Println()
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
