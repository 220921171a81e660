// nextactions.go implements the "supportbot next-actions" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nextActionsCmd = &cobra.Command{
	Use:   "next-actions <session-id>",
	Short: "Print suggested next steps for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		actions, err := e.engine(args[0]).RefreshSuggestions(cmd.Context())
		if err != nil {
			return fmt.Errorf("next actions for %s: %w", args[0], err)
		}
		if len(actions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No suggestions.")
			return nil
		}
		printSuggestions(cmd.OutOrStdout(), actions)
		return nil
	},
}
