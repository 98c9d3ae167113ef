package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/prompt"
	"github.com/fakeyudi/capturectl/internal/recording"
)

var initFlags struct {
	study  string
	name   string
	suffix string
	device string
	base   string
	force  bool
}

var initFlagNames = map[identity.Field]string{
	identity.FieldStudyID:         "study",
	identity.FieldSessionName:     "name",
	identity.FieldVideoNameSuffix: "suffix",
	identity.FieldDeviceAddress:   "device",
	identity.FieldBasePath:        "base",
}

var initFlagValues = map[identity.Field]*string{
	identity.FieldStudyID:         &initFlags.study,
	identity.FieldSessionName:     &initFlags.name,
	identity.FieldVideoNameSuffix: &initFlags.suffix,
	identity.FieldDeviceAddress:   &initFlags.device,
	identity.FieldBasePath:        &initFlags.base,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Start a new session identity (study, session name, device, save path)",
	Long: `Assigns a fresh timestamp suffix and sets the identity fields.

On a terminal without flags an interactive wizard asks for each field; study
ID and session name are required. With flags the wizard is skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		st := a.coord.Status()
		if st.State == recording.Recording {
			return fmt.Errorf("a trial is still recording; run 'capture stop' first")
		}

		interactive := term.IsTerminal(os.Stdin.Fd())
		asker := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())

		// Trials of a session that was never ended would otherwise be carried
		// into the new one.
		if n := len(st.Trials); n > 0 {
			discard := initFlags.force
			if !discard && interactive {
				q := fmt.Sprintf("Session %s has %d trial(s) that were never ended. Discard them?", orDash(st.SessionID), n)
				if discard, err = asker.AskBool(q, false); err != nil {
					return fmt.Errorf("init cancelled: %w", err)
				}
			}
			if !discard {
				return fmt.Errorf("session %s has %d recorded trial(s); run 'capture end' first or pass --force", orDash(st.SessionID), n)
			}
			if err := a.store.Delete(); err != nil {
				return err
			}
		}

		fromFlags := false
		for _, name := range initFlagNames {
			fromFlags = fromFlags || cmd.Flags().Changed(name)
		}

		want := a.identity
		if !fromFlags && interactive {
			want, err = prompt.SessionSetup(asker, a.identity)
			if err != nil {
				return fmt.Errorf("init cancelled: %w", err)
			}
		} else {
			values := map[identity.Field]string{}
			for _, f := range identity.Fields {
				values[f] = a.identity.Value(f)
				if cmd.Flags().Changed(initFlagNames[f]) {
					values[f] = *initFlagValues[f]
				}
			}
			if values[identity.FieldStudyID] == "" || values[identity.FieldSessionName] == "" {
				return fmt.Errorf("study ID and session name are required (--study, --name)")
			}
			want = identityWith(a.identity, values)
		}

		if _, err := a.ids.Begin(time.Now()); err != nil {
			return fmt.Errorf("saving identity: %w", err)
		}
		var id identity.Identity
		for _, f := range identity.Fields {
			if id, err = a.ids.UpdateField(f, want.Value(f)); err != nil {
				return fmt.Errorf("saving identity: %w", err)
			}
		}

		cmd.Printf("Session initialized.\n")
		printIdentity(cmd, id)
		return nil
	},
}

// identityWith returns base with every field in values applied.
func identityWith(base identity.Identity, values map[identity.Field]string) identity.Identity {
	out := base
	out.StudyID = values[identity.FieldStudyID]
	out.SessionName = values[identity.FieldSessionName]
	out.VideoNameSuffix = values[identity.FieldVideoNameSuffix]
	out.DeviceAddress = values[identity.FieldDeviceAddress]
	out.BasePath = values[identity.FieldBasePath]
	return out
}

func printIdentity(cmd *cobra.Command, id identity.Identity) {
	cmd.Printf("Study:       %s\n", orDash(id.StudyID))
	cmd.Printf("Session:     %s\n", orDash(id.SessionName))
	if id.VideoNameSuffix != "" {
		cmd.Printf("Suffix:      %s\n", id.VideoNameSuffix)
	}
	cmd.Printf("Session ID:  %s\n", orDash(id.SessionID))
	cmd.Printf("Device:      %s\n", orDash(id.DeviceAddress))
	cmd.Printf("Save path:   %s\n", orDash(id.FullPath))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	f := initCmd.Flags()
	f.StringVar(&initFlags.study, "study", "", "study ID")
	f.StringVar(&initFlags.name, "name", "", "session name")
	f.StringVar(&initFlags.suffix, "suffix", "", "video name suffix")
	f.StringVar(&initFlags.device, "device", "", "smartphone IP address")
	f.StringVar(&initFlags.base, "base", "", "base save path")
	f.BoolVar(&initFlags.force, "force", false, "discard trials of a session that was never ended")
	rootCmd.AddCommand(initCmd)
}
