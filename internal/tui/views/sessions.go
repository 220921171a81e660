// Package views provides TUI view components for the supportbot client.
package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/tui"
)

// StartErrorText is shown when a new session could not be created.
const StartErrorText = "Failed to start a new session."

// ============================================================================
// Message Types
// ============================================================================

// NewSessionMsg is sent when the user asks for a new session.
type NewSessionMsg struct{}

// OpenSessionMsg is sent when the user opens an existing session.
type OpenSessionMsg struct {
	SessionID string
}

// RefreshSessionsMsg is sent when the user asks to reload the list.
type RefreshSessionsMsg struct{}

// ============================================================================
// List items
// ============================================================================

type sessionItem struct {
	summary backend.SessionSummary
}

func (i sessionItem) Title() string       { return i.summary.SessionID }
func (i sessionItem) FilterValue() string { return i.summary.SessionID }

func (i sessionItem) Description() string {
	started := "start time unknown"
	if !i.summary.CreatedAt.IsZero() {
		started = "started " + i.summary.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	return started + " · " + HistoryLabel(i.summary.HistoryLen)
}

// HistoryLabel describes how many stored messages a session has.
func HistoryLabel(n int) string {
	switch n {
	case 0:
		return "No messages yet"
	case 1:
		return "1 message"
	default:
		return fmt.Sprintf("%d messages", n)
	}
}

// ============================================================================
// SessionsModel
// ============================================================================

// SessionsModel is the view model for the session list screen.
type SessionsModel struct {
	list    list.Model
	spinner spinner.Model
	keys    tui.KeyMap
	busy    string
	errText string
	width   int
	height  int
}

// NewSessionsModel creates an empty session list.
func NewSessionsModel(width, height int) SessionsModel {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), width-8, height-10)
	l.Title = "Support sessions"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = tui.TitleStyle

	return SessionsModel{
		list:    l,
		spinner: sp,
		keys:    tui.DefaultKeyMap,
		width:   width,
		height:  height,
	}
}

// Init returns the initial command for the list view.
func (m SessionsModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetBusy shows a spinner with label and blocks actions until cleared with "".
func (m *SessionsModel) SetBusy(label string) {
	m.busy = label
}

// Busy reports whether an action is in progress.
func (m SessionsModel) Busy() bool {
	return m.busy != ""
}

// SetSessions replaces the listed sessions and the visible error.
func (m *SessionsModel) SetSessions(sessions []backend.SessionSummary, errText string) tea.Cmd {
	items := make([]list.Item, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionItem{summary: s})
	}
	m.errText = errText
	m.busy = ""
	return m.list.SetItems(items)
}

// SetError shows errText without touching the list.
func (m *SessionsModel) SetError(errText string) {
	m.errText = errText
	m.busy = ""
}

// Error returns the visible error line.
func (m SessionsModel) Error() string {
	return m.errText
}

// Len returns the number of listed sessions.
func (m SessionsModel) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the list view.
func (m SessionsModel) Update(msg tea.Msg) (SessionsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Busy() {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.NewSession):
			return m, func() tea.Msg { return NewSessionMsg{} }
		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshSessionsMsg{} }
		case key.Matches(msg, m.keys.Enter):
			item, ok := m.list.SelectedItem().(sessionItem)
			if !ok {
				return m, nil
			}
			id := item.summary.SessionID
			return m, func() tea.Msg { return OpenSessionMsg{SessionID: id} }
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(max(msg.Width-8, 20), max(msg.Height-10, 5))
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list view.
func (m SessionsModel) View() string {
	var b strings.Builder

	if m.errText != "" {
		b.WriteString(tui.ErrorStyle.Render(m.errText))
		b.WriteString("\n\n")
	}

	if m.Busy() {
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.busy))
		b.WriteString("\n\n")
	}

	if len(m.list.Items()) == 0 {
		b.WriteString(tui.TitleStyle.Render("Support sessions"))
		b.WriteString("\n\n")
		b.WriteString(tui.DimStyle.Render("No sessions yet. Press n to start one."))
	} else {
		b.WriteString(m.list.View())
	}
	b.WriteString("\n\n")

	footer := tui.DimStyle.Render("n: New session · Enter: Open · r: Refresh · Ctrl+C: Exit")
	b.WriteString(footer)

	boxed := tui.BoxStyle.
		Width(m.width - 4).
		Render(b.String())

	contentHeight := lipgloss.Height(boxed)
	if m.height > contentHeight {
		padding := (m.height - contentHeight) / 3
		if padding > 0 {
			boxed = strings.Repeat("\n", padding) + boxed
		}
	}
	return boxed
}
