// Package chatview renders the conversational assistant: a scrollable
// transcript above a textarea, with streamed replies re-rendered as
// tokens arrive.
package chatview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/mrogier/actaflow/internal/chat"
	"github.com/mrogier/actaflow/internal/ui/styles"
)

// SendMsg asks the app to send one user turn.
type SendMsg struct {
	Text string
}

// FeedbackMsg asks the app to rate an assistant message.
type FeedbackMsg struct {
	MessageID string
	Rating    int
}

const inputHeight = 3

// Model is the chat view.
type Model struct {
	width  int
	height int

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	messages  []chat.Message
	streaming bool
}

// New creates the chat view.
func New() Model {
	input := textarea.New()
	input.Placeholder = "Posez votre question au notaire assistant..."
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight - 2)
	input.CharLimit = 2000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.AccentColor)

	return Model{
		viewport: viewport.New(0, 0),
		input:    input,
		spinner:  sp,
	}
}

// Init starts the spinner ticking.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetSize resizes the view.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-inputHeight-2, 1)
	m.input.SetWidth(width - 2)

	style := glamour.WithStandardStyle("light")
	if styles.HasDarkBackground() {
		style = glamour.WithStandardStyle("dark")
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(max(width-4, 20)))
	if err == nil {
		m.renderer = renderer
	}
	m.refreshTranscript()
	return m
}

// SetMessages replaces the transcript and re-renders it.
func (m Model) SetMessages(messages []chat.Message, streaming bool) Model {
	m.messages = messages
	m.streaming = streaming
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return m
}

// Update handles key and tick messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			// One reply at a time; the stream is never cancelled.
			if text == "" || m.streaming {
				return m, nil
			}
			m.input.Reset()
			return m, func() tea.Msg { return SendMsg{Text: text} }
		case "ctrl+p", "ctrl+n":
			if id, ok := m.lastRatableMessage(); ok {
				rating := 1
				if msg.String() == "ctrl+n" {
					rating = -1
				}
				return m, func() tea.Msg { return FeedbackMsg{MessageID: id, Rating: rating} }
			}
			return m, nil
		case "tab":
			if s := m.firstSuggestion(); s != "" && !m.streaming {
				m.input.SetValue(s)
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.streaming {
			m.refreshTranscript()
		}
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View renders the transcript and the input area.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(styles.Panel.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(styles.Hint.Render("entrée envoyer · ctrl+p utile · ctrl+n inutile · tab suggestion"))
	return b.String()
}

func (m *Model) refreshTranscript() {
	var b strings.Builder

	if len(m.messages) == 0 {
		b.WriteString(styles.Hint.Render("Décrivez votre dossier, l'assistant vous guidera."))
	}

	for _, msg := range m.messages {
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString(styles.UserBubble.Render("Vous : " + msg.Content))
		case chat.RoleAssistant:
			b.WriteString(m.renderAssistant(msg))
		}
		b.WriteString("\n\n")
	}

	m.viewport.SetContent(b.String())
}

func (m *Model) renderAssistant(msg chat.Message) string {
	if msg.Streaming && msg.Content == "" {
		status := msg.Status
		if status == "" {
			status = "L'assistant rédige une réponse..."
		}
		return m.spinner.View() + " " + styles.Hint.Render(status)
	}

	content := msg.Content
	if m.renderer != nil && !msg.Failed {
		if rendered, err := m.renderer.Render(content); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	} else {
		content = wordwrap.String(content, max(m.width-4, 20))
	}

	if msg.Failed {
		content = styles.ErrorText.Render(content)
	}

	var b strings.Builder
	b.WriteString(content)

	if len(msg.Suggestions) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Hint.Render("Suggestions (tab pour reprendre la première) :"))
		for i, s := range msg.Suggestions {
			b.WriteString(styles.Muted.Render(fmt.Sprintf("\n  %d. %s", i+1, s)))
		}
	}
	if msg.Feedback != 0 {
		mark := "👍"
		if msg.Feedback < 0 {
			mark = "👎"
		}
		b.WriteString(" " + mark)
	}
	return b.String()
}

// lastRatableMessage returns the most recent finalized assistant
// message.
func (m Model) lastRatableMessage() (string, bool) {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := m.messages[i]
		if msg.Role == chat.RoleAssistant && !msg.Streaming && !msg.Failed {
			return msg.ID, true
		}
	}
	return "", false
}

func (m Model) firstSuggestion() string {
	for i := len(m.messages) - 1; i >= 0; i-- {
		if s := m.messages[i].Suggestions; len(s) > 0 {
			return s[0]
		}
	}
	return ""
}
