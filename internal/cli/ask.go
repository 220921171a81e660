// ask.go implements the "supportbot ask" command which sends one message.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <session-id> <message>...",
	Short: "Send one message to a session and print the reply",
	Long: `Send a single message to an existing session. The remaining
arguments are joined with spaces. If the backend answers under a different
session id, the new id is printed.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	id := args[0]
	text := strings.Join(args[1:], " ")

	eng := e.engine(id)
	before := len(eng.Messages())
	out, err := eng.Submit(cmd.Context(), text)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	// Skip the echoed user message.
	printSince(w, eng.Messages(), before+1)
	if out.Adopted {
		fmt.Fprintf(w, "Session id changed: %s -> %s\n", out.PreviousID, out.SessionID)
	}
	if eng.Escalated() {
		fmt.Fprintln(w, "Escalated to a human agent.")
	}
	printSuggestions(w, eng.Suggestions())

	if out.Failed {
		return fmt.Errorf("query failed: %w", out.Err)
	}
	return nil
}
