// sessions.go implements the "supportbot sessions" command listing known sessions.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/tui/views"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List support sessions",
	Long: `List the sessions the backend knows about, newest first.
With --summaries each session's summary is fetched as well.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

var (
	summariesFlag   bool
	summaryParallel int
)

func init() {
	sessionsCmd.Flags().BoolVar(&summariesFlag, "summaries", false, "Fetch a summary for every listed session")
	sessionsCmd.Flags().IntVar(&summaryParallel, "parallel", 4, "Concurrent summary requests with --summaries")
}

func runSessions(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	coord := e.coordinator()
	sessions, err := coord.ListSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", coord.ListError(), err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions yet. Start one with: supportbot new")
		return nil
	}

	var summaries []string
	if summariesFlag {
		summaries = fetchSummaries(cmd, e.client, sessions)
	}

	for i, s := range sessions {
		started := "start time unknown"
		if !s.CreatedAt.IsZero() {
			started = s.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%-36s  %-16s  %s\n", s.SessionID, started, views.HistoryLabel(s.HistoryLen))
		if summaries != nil && summaries[i] != "" {
			fmt.Fprintf(out, "    %s\n", indent(summaries[i], "    "))
		}
	}
	return nil
}

// fetchSummaries returns one summary per session, in order. A failed fetch
// leaves an explanatory line in its slot and does not stop the others.
func fetchSummaries(cmd *cobra.Command, client *backend.Client, sessions []backend.SessionSummary) []string {
	summaries := make([]string, len(sessions))

	g, ctx := errgroup.WithContext(cmd.Context())
	if summaryParallel > 0 {
		g.SetLimit(summaryParallel)
	}
	for i, s := range sessions {
		g.Go(func() error {
			text, err := client.Summarize(ctx, s.SessionID)
			if err != nil {
				summaries[i] = "(summary unavailable: " + err.Error() + ")"
				return nil
			}
			summaries[i] = text
			return nil
		})
	}
	_ = g.Wait()
	return summaries
}
