package app

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/devserver"
	"github.com/supportbot-dev/supportbot/internal/session"
	"github.com/supportbot-dev/supportbot/internal/testutil"
	"github.com/supportbot-dev/supportbot/internal/tui"
	"github.com/supportbot-dev/supportbot/internal/tui/views"
)

func newTestApp(t *testing.T) (*App, *session.Coordinator) {
	t.Helper()
	client := testutil.Client(t)
	coord := session.New(client)
	model := tui.NewModel(context.Background(), coord, client)
	return New(model, zerolog.Nop()), coord
}

// step feeds msg to the app and returns the message produced by the
// resulting command, if any.
func step(t *testing.T, a *App, msg tea.Msg) tea.Msg {
	t.Helper()
	_, cmd := a.Update(msg)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestNewSessionConversationAndBack(t *testing.T) {
	a, coord := newTestApp(t)

	created := step(t, a, views.NewSessionMsg{})
	require.IsType(t, tui.SessionCreatedMsg{}, created)
	step(t, a, created)

	require.Equal(t, tui.StateChat, a.model.Screen())
	eng := coord.Engine()
	require.NotNil(t, eng)
	msgs := eng.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.RoleBot, msgs[0].Role)
	assert.Equal(t, devserver.GreetingText, msgs[0].Text)

	done := step(t, a, views.SubmitMsg{Text: "I need a refund"})
	require.IsType(t, tui.QueryDoneMsg{}, done)
	assert.True(t, eng.Loading())
	step(t, a, done)

	assert.False(t, eng.Loading())
	msgs = eng.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "I need a refund", msgs[1].Text)
	assert.Equal(t, conversation.RoleBot, msgs[2].Role)
	assert.NotEmpty(t, eng.Suggestions())
	assert.Contains(t, a.View(), "suggestion")

	loaded := step(t, a, views.BackMsg{})
	require.IsType(t, tui.SessionsLoadedMsg{}, loaded)
	step(t, a, loaded)

	assert.Equal(t, session.Listing, coord.State())
	assert.Equal(t, tui.StateSessions, a.model.Screen())
	assert.Equal(t, 1, a.sessionsView.Len())
}

func TestOpenExistingSessionLoadsHistory(t *testing.T) {
	a, coord := newTestApp(t)

	step(t, a, step(t, a, views.NewSessionMsg{}))
	step(t, a, step(t, a, views.SubmitMsg{Text: "where is my order"}))
	id := coord.ActiveSessionID()
	step(t, a, step(t, a, views.BackMsg{}))

	// The history fetch is batched with the view's init commands.
	_, cmd := a.Update(views.OpenSessionMsg{SessionID: id})
	require.NotNil(t, cmd)
	eng := coord.Engine()
	require.NotNil(t, eng)
	assert.True(t, eng.Snapshot().HistoryLoading)

	var history tui.HistoryLoadedMsg
	for _, c := range cmd().(tea.BatchMsg) {
		if c == nil {
			continue
		}
		if msg, ok := c().(tui.HistoryLoadedMsg); ok {
			history = msg
		}
	}
	require.Same(t, eng, history.Engine)
	step(t, a, history)

	msgs := eng.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "where is my order", msgs[0].Text)
	assert.Equal(t, conversation.RoleBot, msgs[1].Role)
}

func TestLateReplyAfterBackIsDropped(t *testing.T) {
	a, coord := newTestApp(t)

	step(t, a, step(t, a, views.NewSessionMsg{}))
	eng := coord.Engine()

	done := step(t, a, views.SubmitMsg{Text: "hello"})
	require.IsType(t, tui.QueryDoneMsg{}, done)
	step(t, a, views.BackMsg{})

	before := eng.Messages()
	step(t, a, done)
	assert.Equal(t, before, eng.Messages())
	assert.Equal(t, session.Listing, coord.State())
}

func TestStartSessionFailureShowsError(t *testing.T) {
	client := backend.NewClient(testutil.UnreachableURL)
	coord := session.New(client)
	a := New(tui.NewModel(context.Background(), coord, client), zerolog.Nop())

	step(t, a, step(t, a, views.NewSessionMsg{}))

	assert.Equal(t, session.Listing, coord.State())
	assert.Equal(t, views.StartErrorText, a.sessionsView.Error())
	assert.Contains(t, a.View(), views.StartErrorText)
}

func TestDoubleCtrlCQuits(t *testing.T) {
	a, _ := newTestApp(t)
	ctrlC := tea.KeyMsg{Type: tea.KeyCtrlC}

	_, cmd := a.Update(ctrlC)
	require.NotNil(t, cmd)
	assert.True(t, a.model.CtrlCPending)
	assert.Contains(t, a.View(), "Press Ctrl+C again to exit")

	_, cmd = a.Update(ctrlC)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestStatusClearIgnoresOldSequence(t *testing.T) {
	a, _ := newTestApp(t)

	a.Update(tui.CopiedMsg{What: "session id"})
	assert.Equal(t, "Copied session id", a.model.Status)

	a.Update(tui.StatusClearMsg{Seq: a.model.StatusSeq - 1})
	assert.Equal(t, "Copied session id", a.model.Status)

	a.Update(tui.StatusClearMsg{Seq: a.model.StatusSeq})
	assert.Empty(t, a.model.Status)
}
