package tui

import (
	"context"

	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/session"
)

// ViewState is the screen being shown. It mirrors the coordinator state.
type ViewState int

const (
	StateSessions ViewState = iota
	StateChat
)

// ViewFor maps a coordinator state to the screen that renders it.
func ViewFor(s session.State) ViewState {
	if s == session.Active {
		return StateChat
	}
	return StateSessions
}

// Model is the state shared by all views.
type Model struct {
	Ctx         context.Context
	Coordinator *session.Coordinator
	Backend     conversation.Backend

	// Terminal dimensions
	Width  int
	Height int

	// Status line, shown until StatusClearMsg with the same Seq arrives.
	Status    string
	StatusSeq int

	// Ctrl+C confirmation state
	CtrlCPending bool
}

// NewModel creates a new Model. The backend is the one the coordinator uses.
func NewModel(ctx context.Context, c *session.Coordinator, b conversation.Backend) *Model {
	return &Model{
		Ctx:         ctx,
		Coordinator: c,
		Backend:     b,

		// Default dimensions (will be updated on WindowSizeMsg)
		Width:  80,
		Height: 24,
	}
}

// Screen returns the screen for the current coordinator state.
func (m *Model) Screen() ViewState {
	return ViewFor(m.Coordinator.State())
}
