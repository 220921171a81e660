// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/conversation"
)

// ============================================================================
// Session Messages
// ============================================================================

// SessionsLoadedMsg carries the result of a session list fetch. The
// coordinator already holds the list; Err is set when the fetch failed.
type SessionsLoadedMsg struct {
	Sessions []backend.SessionSummary
	Err      error
}

// SessionCreatedMsg signals that a new session was started (or not).
type SessionCreatedMsg struct {
	Engine *conversation.Engine
	Err    error
}

// ============================================================================
// Round-trip Messages
// ============================================================================
//
// Each completion carries the engine that issued it. Engines drop
// completions that no longer match their state, so a result arriving after
// the user left the conversation is harmless.

// HistoryLoadedMsg carries a fetched session history.
type HistoryLoadedMsg struct {
	Engine  *conversation.Engine
	Round   conversation.Round
	Session *backend.Session
	Err     error
}

// QueryDoneMsg carries the backend's answer to one query.
type QueryDoneMsg struct {
	Engine   *conversation.Engine
	Round    conversation.Round
	Response *backend.QueryResponse
	Err      error
}

// SummaryDoneMsg carries a fetched summary.
type SummaryDoneMsg struct {
	Engine  *conversation.Engine
	Round   conversation.Round
	Summary string
	Err     error
}

// NextActionsDoneMsg carries refreshed suggestions.
type NextActionsDoneMsg struct {
	Engine  *conversation.Engine
	Round   conversation.Round
	Actions []string
	Err     error
}

// ============================================================================
// Utility Messages
// ============================================================================

// CopiedMsg reports a clipboard write.
type CopiedMsg struct {
	What string
	Err  error
}

// CtrlCResetMsg clears the pending Ctrl+C confirmation.
type CtrlCResetMsg struct{}

// StatusClearMsg clears a transient status line.
type StatusClearMsg struct {
	Seq int
}
