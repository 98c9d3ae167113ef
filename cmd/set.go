package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/capturectl/internal/identity"
)

// fieldAliases maps the names accepted on the command line to identity fields.
var fieldAliases = map[string]identity.Field{
	"study":  identity.FieldStudyID,
	"name":   identity.FieldSessionName,
	"suffix": identity.FieldVideoNameSuffix,
	"device": identity.FieldDeviceAddress,
	"base":   identity.FieldBasePath,
}

var setCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Edit one identity field (study, name, suffix, device, base)",
	Long: `Edit one identity field. The session id and save path are re-derived
immediately; an active recording keeps the path it started with.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, ok := fieldAliases[strings.ToLower(args[0])]
		if !ok {
			f = identity.Field(args[0])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		id, err := a.ids.UpdateField(f, args[1])
		if err != nil {
			return fmt.Errorf("set %s: %w", args[0], err)
		}
		printIdentity(cmd, id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setCmd)
}
