// new.go implements the "supportbot new" command which starts a session.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new support session",
	Long: `Ask the backend for a new session and print its id and greeting.
Continue it with "supportbot ask <id> <text>" or "supportbot chat <id>".`,
	Args: cobra.NoArgs,
	RunE: runNew,
}

func runNew(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	eng, err := e.coordinator().StartNewSession(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to start a new session: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session: %s\n", eng.SessionID())
	printMessages(out, eng.Messages())
	return nil
}
