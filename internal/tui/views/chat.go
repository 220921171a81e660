package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/tui"
)

// ============================================================================
// Message Types
// ============================================================================

// SubmitMsg is sent when the user sends the pending input.
type SubmitMsg struct {
	Text string
}

// BackMsg signals that the user wants to return to the session list.
type BackMsg struct{}

// SummaryRequestMsg asks for a summary of the conversation.
type SummaryRequestMsg struct{}

// NextActionsRequestMsg asks for fresh suggestions.
type NextActionsRequestMsg struct{}

// CopyIDMsg asks to copy the session id to the clipboard.
type CopyIDMsg struct{}

// ============================================================================
// ChatModel
// ============================================================================

// ChatModel renders one conversation. The engine owns all conversation
// state; the view keeps only widgets and layout.
type ChatModel struct {
	engine          *conversation.Engine
	textarea        textarea.Model
	viewport        viewport.Model
	spinner         spinner.Model
	renderer        *glamour.TermRenderer
	keys            tui.KeyMap
	showSuggestions bool
	width           int
	height          int
}

// NewChatModel creates a ChatModel for eng.
func NewChatModel(eng *conversation.Engine, width, height int) ChatModel {
	ta := textarea.New()
	ta.Placeholder = "Type your message... (Enter to send)"
	ta.CharLimit = 5000
	ta.ShowLineNumbers = false
	ta.SetHeight(3)

	// Enter submits; Shift+Enter inserts a newline.
	keyMap := ta.KeyMap
	keyMap.InsertNewline = tui.DefaultKeyMap.NewLine
	ta.KeyMap = keyMap
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	m := ChatModel{
		engine:   eng,
		textarea: ta,
		viewport: viewport.New(20, 5),
		spinner:  sp,
		keys:     tui.DefaultKeyMap,
	}
	m.resize(width, height)
	m.Sync()
	return m
}

// Engine returns the engine this view renders.
func (m ChatModel) Engine() *conversation.Engine {
	return m.engine
}

// SuggestionsShown reports whether the suggestions panel is expanded.
func (m ChatModel) SuggestionsShown() bool {
	return m.showSuggestions
}

// Init returns the initial command for the chat view.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Sync pulls the engine state into the widgets. Call it after every engine
// mutation made outside the view.
func (m *ChatModel) Sync() {
	snap := m.engine.Snapshot()
	if snap.Input != m.textarea.Value() {
		m.textarea.SetValue(snap.Input)
	}
	if len(snap.Suggestions) == 0 {
		m.setSuggestionsShown(false)
	}
	m.viewport.SetContent(m.formatMessages(snap.Messages))
	m.viewport.GotoBottom()
}

// Update handles messages for the chat view.
func (m ChatModel) Update(msg tea.Msg) (ChatModel, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Escape):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.Summary):
			return m, func() tea.Msg { return SummaryRequestMsg{} }
		case key.Matches(msg, m.keys.NextActions):
			return m, func() tea.Msg { return NextActionsRequestMsg{} }
		case key.Matches(msg, m.keys.CopyID):
			return m, func() tea.Msg { return CopyIDMsg{} }
		case key.Matches(msg, m.keys.Tab):
			if len(m.engine.Suggestions()) > 0 {
				m.setSuggestionsShown(!m.showSuggestions)
			}
			return m, nil
		}

		if m.showSuggestions {
			if key.Matches(msg, m.keys.Pick) {
				idx := int(msg.String()[0] - '1')
				if err := m.engine.SelectSuggestion(idx); err == nil {
					m.setSuggestionsShown(false)
					m.Sync()
				}
			}
			return m, nil
		}

		if key.Matches(msg, m.keys.Enter) {
			m.engine.SetInput(m.textarea.Value())
			if !m.engine.CanSend() {
				return m, nil
			}
			text := m.engine.Input()
			return m, func() tea.Msg { return SubmitMsg{Text: text} }
		}

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.viewport.SetContent(m.formatMessages(m.engine.Messages()))
		return m, nil
	}

	if !m.busy() && !m.showSuggestions {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
		m.engine.SetInput(m.textarea.Value())
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the chat view.
func (m ChatModel) View() string {
	snap := m.engine.Snapshot()
	var b strings.Builder

	header := tui.TitleStyle.Render(fmt.Sprintf("Session %s", snap.SessionID))
	if snap.Escalated {
		header += "  " + tui.WarningStyle.Render("Escalated to a human agent")
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n\n")

	if snap.Summary != "" {
		b.WriteString(tui.SuggestionBoxStyle.Width(m.viewport.Width).Render(
			tui.TitleStyle.Render("Summary") + "\n" + m.renderMarkdown(snap.Summary)))
		b.WriteString("\n\n")
	}

	if snap.Notice != "" {
		b.WriteString(tui.WarningStyle.Render(snap.Notice))
		b.WriteString("\n\n")
	}

	if len(snap.Suggestions) > 0 {
		b.WriteString(m.formatSuggestions(snap.Suggestions))
		b.WriteString("\n\n")
	}

	switch {
	case snap.HistoryLoading:
		b.WriteString(fmt.Sprintf("%s Loading conversation...", m.spinner.View()))
		b.WriteString("\n\n")
		b.WriteString(tui.DimStyle.Render(m.textarea.View()))
	case snap.Loading:
		b.WriteString(fmt.Sprintf("%s Waiting for a reply...", m.spinner.View()))
		b.WriteString("\n\n")
		b.WriteString(tui.DimStyle.Render(m.textarea.View()))
	default:
		b.WriteString(m.textarea.View())
	}
	b.WriteString("\n\n")

	footer := tui.DimStyle.Render("Enter: Send · Tab: Suggestions · Ctrl+S: Summary · Ctrl+N: Next actions · Ctrl+Y: Copy id · Esc: Back")
	b.WriteString(footer)

	return tui.BoxStyle.
		Width(m.width - 4).
		Render(b.String())
}

func (m ChatModel) busy() bool {
	snap := m.engine.Snapshot()
	return snap.Loading || snap.HistoryLoading
}

func (m *ChatModel) setSuggestionsShown(shown bool) {
	m.showSuggestions = shown
	if shown {
		m.textarea.Blur()
	} else {
		m.textarea.Focus()
	}
}

func (m *ChatModel) resize(width, height int) {
	m.width = width
	m.height = height

	// Reserve space for header, suggestions, loading line, textarea and footer.
	vpHeight := height - 18
	if vpHeight < 5 {
		vpHeight = 5
	}
	vpWidth := width - 8
	if vpWidth < 20 {
		vpWidth = 20
	}

	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(vpWidth)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(vpWidth-4),
	)
	if err == nil {
		m.renderer = r
	}
}

func (m ChatModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// formatMessages formats the conversation log for the viewport.
func (m ChatModel) formatMessages(messages []conversation.Message) string {
	if len(messages) == 0 {
		return tui.DimStyle.Render("No messages yet. Start the conversation!")
	}

	var b strings.Builder
	for i, msg := range messages {
		switch msg.Role {
		case conversation.RoleUser:
			b.WriteString(tui.UserStyle.Render("You: "))
			b.WriteString(msg.Text)
		default:
			b.WriteString(tui.BotStyle.Render("Support:"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(msg.Text))
		}

		if i < len(messages)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func (m ChatModel) formatSuggestions(suggestions []string) string {
	if !m.showSuggestions {
		return tui.DimStyle.Render(fmt.Sprintf("%d suggestion(s) · Tab to show", len(suggestions)))
	}

	var b strings.Builder
	b.WriteString(tui.TitleStyle.Render("Suggestions"))
	for i, s := range suggestions {
		b.WriteString("\n")
		if i < 9 {
			b.WriteString(tui.SelectedStyle.Render(fmt.Sprintf("%d. ", i+1)))
		} else {
			b.WriteString("   ")
		}
		b.WriteString(tui.RenderSuggestion(s))
	}
	b.WriteString("\n")
	b.WriteString(tui.DimStyle.Render("1-9: Use suggestion · Tab: Hide"))
	return tui.SuggestionBoxStyle.Width(m.viewport.Width).Render(b.String())
}
