// summarize.go implements the "supportbot summarize" command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id>",
	Short: "Print a summary of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		summary, err := e.engine(args[0]).Summarize(cmd.Context())
		if err != nil {
			return fmt.Errorf("summarize %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary)
		return nil
	},
}
