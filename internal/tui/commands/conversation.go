package commands

import (
	"context"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/tui"
)

// The commands below perform only the network half of a round. The caller
// opens the round on the engine (Begin*) before issuing them and applies the
// resulting message with the matching Complete* call.

// FetchHistoryCmd loads the history for an open history round.
func FetchHistoryCmd(ctx context.Context, b conversation.Backend, eng *conversation.Engine, r conversation.Round) tea.Cmd {
	return func() tea.Msg {
		sess, err := b.FetchSession(ctx, r.SessionID)
		return tui.HistoryLoadedMsg{Engine: eng, Round: r, Session: sess, Err: err}
	}
}

// QueryCmd sends the query of an open query round.
func QueryCmd(ctx context.Context, b conversation.Backend, eng *conversation.Engine, r conversation.Round) tea.Cmd {
	return func() tea.Msg {
		resp, err := b.Query(ctx, backend.QueryRequest{Query: r.Query, SessionID: r.SessionID})
		return tui.QueryDoneMsg{Engine: eng, Round: r, Response: resp, Err: err}
	}
}

// SummaryCmd fetches a summary for an open summary round.
func SummaryCmd(ctx context.Context, b conversation.Backend, eng *conversation.Engine, r conversation.Round) tea.Cmd {
	return func() tea.Msg {
		summary, err := b.Summarize(ctx, r.SessionID)
		return tui.SummaryDoneMsg{Engine: eng, Round: r, Summary: summary, Err: err}
	}
}

// NextActionsCmd fetches suggestions for an open suggestions round.
func NextActionsCmd(ctx context.Context, b conversation.Backend, eng *conversation.Engine, r conversation.Round) tea.Cmd {
	return func() tea.Msg {
		actions, err := b.NextActions(ctx, r.SessionID)
		return tui.NextActionsDoneMsg{Engine: eng, Round: r, Actions: actions, Err: err}
	}
}

// CopyCmd writes text to the system clipboard.
func CopyCmd(what, text string) tea.Cmd {
	return func() tea.Msg {
		return tui.CopiedMsg{What: what, Err: clipboard.WriteAll(text)}
	}
}
