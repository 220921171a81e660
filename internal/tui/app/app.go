// Package app provides the main TUI application that wires all views together.
package app

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/tui"
	"github.com/supportbot-dev/supportbot/internal/tui/commands"
	"github.com/supportbot-dev/supportbot/internal/tui/views"
)

const statusTTL = 3 * time.Second

// App is the main TUI application. Which view is active follows the
// coordinator state; the app never keeps its own copy of it.
type App struct {
	model  *tui.Model
	logger zerolog.Logger

	sessionsView views.SessionsModel
	chatView     views.ChatModel
	hasChat      bool
}

// New creates a new App over model.
func New(model *tui.Model, logger zerolog.Logger) *App {
	return &App{
		model:        model,
		logger:       logger.With().Str("component", "tui").Logger(),
		sessionsView: views.NewSessionsModel(model.Width, model.Height),
	}
}

// Init loads the session list.
func (a *App) Init() tea.Cmd {
	a.sessionsView.SetBusy("Loading sessions...")
	return tea.Batch(
		a.sessionsView.Init(),
		commands.LoadSessionsCmd(a.model.Ctx, a.model.Coordinator),
	)
}

// Update handles messages and updates the application state.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.model.Width = msg.Width
		a.model.Height = msg.Height
		var cmd tea.Cmd
		a.sessionsView, cmd = a.sessionsView.Update(msg)
		if a.hasChat {
			var chatCmd tea.Cmd
			a.chatView, chatCmd = a.chatView.Update(msg)
			cmd = tea.Batch(cmd, chatCmd)
		}
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == tui.KeyCtrlC {
			if a.model.CtrlCPending {
				// Second press within timeout - exit
				return a, tea.Quit
			}
			a.model.CtrlCPending = true
			return a, tea.Tick(time.Second, func(time.Time) tea.Msg {
				return tui.CtrlCResetMsg{}
			})
		}

	case spinner.TickMsg:
		// Both spinners keep ticking so neither chain stops while its view
		// is hidden.
		var cmd tea.Cmd
		a.sessionsView, cmd = a.sessionsView.Update(msg)
		if a.hasChat {
			var chatCmd tea.Cmd
			a.chatView, chatCmd = a.chatView.Update(msg)
			cmd = tea.Batch(cmd, chatCmd)
		}
		return a, cmd

	case tui.CtrlCResetMsg:
		a.model.CtrlCPending = false
		return a, nil

	case tui.StatusClearMsg:
		if msg.Seq == a.model.StatusSeq {
			a.model.Status = ""
		}
		return a, nil

	case tui.SessionsLoadedMsg:
		return a, a.sessionsView.SetSessions(a.model.Coordinator.Sessions(), a.model.Coordinator.ListError())

	case tui.SessionCreatedMsg:
		if msg.Err != nil {
			a.logger.Warn().Err(msg.Err).Msg("start session failed")
			a.sessionsView.SetError(views.StartErrorText)
			return a, nil
		}
		a.sessionsView.SetBusy("")
		return a, a.openChat(msg.Engine)

	case tui.HistoryLoadedMsg:
		msg.Engine.CompleteHistory(msg.Round, msg.Session, msg.Err)
		return a, a.syncChat(msg.Engine)

	case tui.QueryDoneMsg:
		msg.Engine.Complete(msg.Round, msg.Response, msg.Err)
		return a, a.syncChat(msg.Engine)

	case tui.SummaryDoneMsg:
		msg.Engine.CompleteSummary(msg.Round, msg.Summary, msg.Err)
		return a, a.syncChat(msg.Engine)

	case tui.NextActionsDoneMsg:
		msg.Engine.CompleteSuggestions(msg.Round, msg.Actions, msg.Err)
		return a, a.syncChat(msg.Engine)

	case tui.CopiedMsg:
		if msg.Err != nil {
			a.logger.Warn().Err(msg.Err).Msg("clipboard write failed")
			return a, a.setStatus("Could not copy " + msg.What)
		}
		return a, a.setStatus("Copied " + msg.What)
	}

	switch a.model.Screen() {
	case tui.StateChat:
		return a.updateChat(msg)
	default:
		return a.updateSessions(msg)
	}
}

// View renders the current application state.
func (a *App) View() string {
	var content string
	switch a.model.Screen() {
	case tui.StateChat:
		if a.hasChat {
			content = a.chatView.View()
		}
	default:
		content = a.sessionsView.View()
	}

	status := a.model.Status
	if a.model.CtrlCPending {
		status = "Press Ctrl+C again to exit"
	}
	if status != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, content, tui.StatusBarStyle.Render(status))
	}
	return content
}

// ============================================================================
// State Update Handlers
// ============================================================================

func (a *App) updateSessions(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.sessionsView, cmd = a.sessionsView.Update(msg)

	switch msg := msg.(type) {
	case views.RefreshSessionsMsg:
		a.sessionsView.SetBusy("Loading sessions...")
		return a, commands.LoadSessionsCmd(a.model.Ctx, a.model.Coordinator)

	case views.NewSessionMsg:
		a.sessionsView.SetBusy("Starting a new session...")
		return a, commands.StartSessionCmd(a.model.Ctx, a.model.Coordinator)

	case views.OpenSessionMsg:
		eng, err := a.model.Coordinator.SelectExistingSession(msg.SessionID)
		if err != nil {
			a.logger.Warn().Err(err).Str("session_id", msg.SessionID).Msg("open session failed")
			return a, nil
		}
		return a, a.openChat(eng)
	}

	return a, cmd
}

func (a *App) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !a.hasChat {
		return a, nil
	}
	var cmd tea.Cmd
	a.chatView, cmd = a.chatView.Update(msg)
	eng := a.chatView.Engine()

	switch msg := msg.(type) {
	case views.BackMsg:
		a.model.Coordinator.ReturnToList()
		a.hasChat = false
		a.chatView = views.ChatModel{}
		a.sessionsView.SetBusy("Loading sessions...")
		return a, commands.LoadSessionsCmd(a.model.Ctx, a.model.Coordinator)

	case views.SubmitMsg:
		r, err := eng.Begin(msg.Text)
		a.chatView.Sync()
		if err != nil {
			return a, nil
		}
		return a, commands.QueryCmd(a.model.Ctx, a.model.Backend, eng, r)

	case views.SummaryRequestMsg:
		r, err := eng.BeginSummary()
		a.chatView.Sync()
		if err != nil {
			return a, nil
		}
		return a, commands.SummaryCmd(a.model.Ctx, a.model.Backend, eng, r)

	case views.NextActionsRequestMsg:
		r, err := eng.BeginSuggestions()
		a.chatView.Sync()
		if err != nil {
			return a, nil
		}
		return a, commands.NextActionsCmd(a.model.Ctx, a.model.Backend, eng, r)

	case views.CopyIDMsg:
		return a, commands.CopyCmd("session id", eng.SessionID())
	}

	return a, cmd
}

// openChat shows eng and starts its history load when it has not been
// seeded by a greeting.
func (a *App) openChat(eng *conversation.Engine) tea.Cmd {
	a.chatView = views.NewChatModel(eng, a.model.Width, a.model.Height)
	a.hasChat = true
	cmds := []tea.Cmd{a.chatView.Init()}

	r, err := eng.BeginHistory()
	switch {
	case err == nil:
		cmds = append(cmds, commands.FetchHistoryCmd(a.model.Ctx, a.model.Backend, eng, r))
	case errors.Is(err, conversation.ErrHistoryLoaded):
	default:
		a.logger.Warn().Err(err).Msg("history load not started")
	}
	a.chatView.Sync()
	return tea.Batch(cmds...)
}

// syncChat refreshes the chat view if eng is the one on screen.
func (a *App) syncChat(eng *conversation.Engine) tea.Cmd {
	if a.hasChat && a.chatView.Engine() == eng {
		a.chatView.Sync()
	}
	return nil
}

func (a *App) setStatus(text string) tea.Cmd {
	a.model.StatusSeq++
	a.model.Status = text
	seq := a.model.StatusSeq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return tui.StatusClearMsg{Seq: seq}
	})
}
