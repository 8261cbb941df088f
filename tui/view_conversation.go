// view_conversation.go is the main pane: the message log of the current
// session above an input line.
//
// The view only reads engine state. Sending is requested with SendMsg
// so the App stays the single place that drives the engine.
package tui

import (
	"fmt"

	"github.com/DachengChen/querybot/conversation"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConversationView shows the active conversation and the input line.
type ConversationView struct {
	engine   *conversation.Engine
	renderer *Renderer
	viewport *Viewport
	input    textinput.Model
	spinner  spinner.Model

	width    int
	height   int
	rendered int // message count at the last refresh
}

// NewConversationView creates the main pane for engine.
func NewConversationView(engine *conversation.Engine) *ConversationView {
	ti := textinput.New()
	ti.Prompt = "Ask> "
	ti.PromptStyle = StylePrompt
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleWarning

	v := &ConversationView{
		engine:   engine,
		renderer: NewRenderer(),
		viewport: NewViewport(80, 20),
		input:    ti,
		spinner:  sp,
	}
	v.Refresh()
	return v
}

func (v *ConversationView) Name() string { return "Conversation" }

func (v *ConversationView) WantsTextInput() bool { return true }

func (v *ConversationView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.input.Width = width - lipgloss.Width(v.input.Prompt) - 1
	v.renderer.SetWidth(width - 2)
	v.viewport.SetSize(width, v.logHeight())
	v.Refresh()
}

func (v *ConversationView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "Enter", Desc: "send"},
		{Key: "F2", Desc: "mode"},
		{Key: "PgUp/PgDn", Desc: "scroll"},
		{Key: "Tab", Desc: "sidebar"},
		{Key: ":", Desc: "command"},
	}
}

func (v *ConversationView) Init() tea.Cmd {
	return textinput.Blink
}

func (v *ConversationView) Update(msg tea.Msg) (View, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !v.engine.Busy() {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if v.engine.Busy() {
				return v, nil
			}
			return v, send(SendMsg{Text: v.input.Value()})
		case "pgup":
			v.viewport.PageUp()
			return v, nil
		case "pgdown":
			v.viewport.PageDown()
			return v, nil
		case "ctrl+u":
			v.viewport.ScrollUp(v.viewport.height / 2)
			return v, nil
		case "ctrl+d":
			v.viewport.ScrollDown(v.viewport.height / 2)
			return v, nil
		case "ctrl+w":
			v.viewport.ToggleWrap()
			return v, nil
		case "home":
			if v.input.Value() == "" {
				v.viewport.Home()
				return v, nil
			}
		case "end":
			if v.input.Value() == "" {
				v.viewport.End()
				return v, nil
			}
		case "left", "right":
			if v.input.Value() == "" {
				if msg.String() == "left" {
					v.viewport.ScrollLeft(4)
				} else {
					v.viewport.ScrollRight(4)
				}
				return v, nil
			}
		}
	}

	if v.engine.Busy() {
		return v, nil
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// Refresh re-renders the log from the engine. The view follows the
// newest message unless the user scrolled away.
func (v *ConversationView) Refresh() {
	msgs := v.engine.Messages()
	follow := v.viewport.AtBottom() || len(msgs) != v.rendered
	lines := v.renderer.Messages(msgs)
	if len(msgs) == 0 {
		lines = v.emptyState()
	}
	v.viewport.SetSize(v.width, v.logHeight())
	v.viewport.SetContentLines(lines)
	if follow {
		v.viewport.End()
	}
	v.rendered = len(msgs)

	if v.engine.Mode() == conversation.ModeEDA {
		v.input.Placeholder = "Ask something about the loaded file..."
	} else {
		v.input.Placeholder = "Ask a question about your database..."
	}
}

// SetTheme re-renders with the new theme's styles.
func (v *ConversationView) SetTheme(theme string) {
	v.renderer.SetTheme(theme)
	v.input.PromptStyle = StylePrompt
	v.spinner.Style = StyleWarning
	v.Refresh()
}

// ResetInput clears the input line after its text was sent.
func (v *ConversationView) ResetInput() {
	v.input.Reset()
}

// InputEmpty reports whether nothing has been typed.
func (v *ConversationView) InputEmpty() bool {
	return v.input.Value() == ""
}

// Tick starts the spinner.
func (v *ConversationView) Tick() tea.Msg {
	return v.spinner.Tick()
}

func (v *ConversationView) emptyState() []string {
	if _, ok := v.engine.Current(); ok {
		if v.engine.HistoryLoading() {
			return []string{StyleDimmed.Render("Loading messages...")}
		}
		return []string{StyleDimmed.Render("No messages yet. Say something!")}
	}
	if v.engine.Mode() == conversation.ModeEDA {
		return []string{
			StyleTitle.Render("📊 Data Analysis"),
			StyleDimmed.Render("Upload a CSV with :upload <path> and ask questions about it."),
			StyleDimmed.Render("Press F2 to switch to SQL Chat."),
		}
	}
	return []string{
		StyleTitle.Render("💬 SQL Chat"),
		StyleDimmed.Render("Ask anything about your database. A session is created on your first message."),
		StyleDimmed.Render("Press F2 to switch to Data Analysis."),
	}
}

// logHeight is the viewport height: the pane minus the top line(s) and
// the input block.
func (v *ConversationView) logHeight() int {
	h := v.height - len(v.headerLines()) - 2
	if h < 1 {
		h = 1
	}
	return h
}

func (v *ConversationView) headerLines() []string {
	title := "New conversation"
	if s, ok := v.engine.Current(); ok {
		title = s.Title
		if title == "" {
			title = "Untitled Chat"
		}
		if s.Mode != v.engine.Mode() {
			title += StyleWarning.Render(fmt.Sprintf("  (%s session)", s.Mode.Label()))
		}
	}
	lines := []string{StyleBadge.Render(v.engine.Mode().Label()) + " " + StyleBold.Render(title)}
	if v.engine.Mode() == conversation.ModeEDA {
		lines = append(lines, PreviewHeader(v.engine.FileData(), v.width))
	}
	return lines
}

func (v *ConversationView) View() string {
	header := lipgloss.JoinVertical(lipgloss.Left, v.headerLines()...)
	v.viewport.SetSize(v.width, v.logHeight())

	rule := StyleDimmed.Render(repeat("─", v.width))
	var input string
	if v.engine.Busy() {
		label := "waiting for response..."
		if v.engine.HistoryLoading() {
			label = "loading messages..."
		}
		input = v.spinner.View() + " " + StyleDimmed.Render(label)
	} else {
		input = v.input.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, v.viewport.Render(), rule, input)
}
