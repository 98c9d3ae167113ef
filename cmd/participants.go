package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/remote"
)

var participantFlags struct {
	id       string
	height   float64
	weight   float64
	birthday string
	sex      string
}

var participantsCmd = &cobra.Command{
	Use:   "participants",
	Short: "List or register the participants of the current study",
}

var participantsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List participant IDs registered for the current study",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if a.identity.StudyID == "" {
			return fmt.Errorf("no study ID set (run 'capture init' or 'capture set study <id>')")
		}
		ids, err := a.client.ListParticipants(cmd.Context(), a.identity.StudyID, a.identity.BasePath)
		if err != nil {
			return describeErr(err)
		}
		if len(ids) == 0 {
			cmd.Printf("No participants registered for study %s.\n", a.identity.StudyID)
			return nil
		}
		out := cmd.OutOrStdout()
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	},
}

var participantsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a participant under the current study and session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if participantFlags.id == "" {
			return fmt.Errorf("--id is required")
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		if a.identity.StudyID == "" {
			return fmt.Errorf("no study ID set (run 'capture init' or 'capture set study <id>')")
		}
		msg, err := a.client.SaveParticipant(cmd.Context(), remote.Participant{
			SessionID:     a.identity.SessionID,
			StudyID:       a.identity.StudyID,
			BaseSavePath:  a.identity.BasePath,
			ParticipantID: participantFlags.id,
			Height:        participantFlags.height,
			Weight:        participantFlags.weight,
			Birthday:      participantFlags.birthday,
			Sex:           participantFlags.sex,
		})
		if err != nil {
			return describeErr(err)
		}
		cmd.Println(msg)
		return nil
	},
}

func init() {
	f := participantsAddCmd.Flags()
	f.StringVar(&participantFlags.id, "id", "", "participant ID")
	f.Float64Var(&participantFlags.height, "height", 0, "height in cm")
	f.Float64Var(&participantFlags.weight, "weight", 0, "weight in kg")
	f.StringVar(&participantFlags.birthday, "birthday", "", "birthday (YYYY-MM-DD)")
	f.StringVar(&participantFlags.sex, "sex", "", "sex")
	participantsCmd.AddCommand(participantsListCmd, participantsAddCmd)
	rootCmd.AddCommand(participantsCmd)
}
