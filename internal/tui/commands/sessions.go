// Package commands provides Bubble Tea commands for TUI operations.
package commands

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/supportbot-dev/supportbot/internal/session"
	"github.com/supportbot-dev/supportbot/internal/tui"
)

// LoadSessionsCmd fetches the session list through the coordinator, which
// keeps the result and the visible error.
func LoadSessionsCmd(ctx context.Context, c *session.Coordinator) tea.Cmd {
	return func() tea.Msg {
		sessions, err := c.ListSessions(ctx)
		return tui.SessionsLoadedMsg{Sessions: sessions, Err: err}
	}
}

// StartSessionCmd creates a session. On success the coordinator is already
// Active when the message arrives.
func StartSessionCmd(ctx context.Context, c *session.Coordinator) tea.Cmd {
	return func() tea.Msg {
		eng, err := c.StartNewSession(ctx)
		return tui.SessionCreatedMsg{Engine: eng, Err: err}
	}
}
