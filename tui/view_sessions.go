package tui

import (
	"github.com/DachengChen/querybot/conversation"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

// SessionsView is the sidebar tab listing every session, newest first.
type SessionsView struct {
	engine *conversation.Engine
	cursor int
	width  int
	height int
}

func NewSessionsView(engine *conversation.Engine) *SessionsView {
	return &SessionsView{engine: engine}
}

func (v *SessionsView) Name() string         { return "History" }
func (v *SessionsView) WantsTextInput() bool { return false }
func (v *SessionsView) Init() tea.Cmd        { return nil }

func (v *SessionsView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

func (v *SessionsView) ShortHelp() []KeyBinding {
	return []KeyBinding{
		{Key: "↑↓", Desc: "move"},
		{Key: "Enter", Desc: "open"},
		{Key: "n", Desc: "new chat"},
		{Key: "r", Desc: "refresh"},
		{Key: "D", Desc: "clear all"},
	}
}

func (v *SessionsView) Update(msg tea.Msg) (View, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}
	sessions := v.engine.Sessions()
	switch key.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(sessions)-1 {
			v.cursor++
		}
	case "g", "home":
		v.cursor = 0
	case "G", "end":
		v.cursor = len(sessions) - 1
	case "enter":
		if v.cursor < len(sessions) {
			return v, send(SelectSessionMsg{ID: sessions[v.cursor].ID})
		}
	case "n":
		return v, send(NewChatMsg{})
	case "r":
		return v, send(RefreshSessionsMsg{})
	}
	v.clamp(len(sessions))
	return v, nil
}

func (v *SessionsView) clamp(n int) {
	if v.cursor >= n {
		v.cursor = n - 1
	}
	if v.cursor < 0 {
		v.cursor = 0
	}
}

func (v *SessionsView) View() string {
	sessions := v.engine.Sessions()
	v.clamp(len(sessions))
	if len(sessions) == 0 {
		return StyleDimmed.Render(" No chat history yet")
	}

	currentID := ""
	if s, ok := v.engine.Current(); ok {
		currentID = s.ID
	}

	// Each session takes two lines.
	visible := v.height / 2
	if visible < 1 {
		visible = 1
	}
	start := 0
	if v.cursor >= visible {
		start = v.cursor - visible + 1
	}
	end := start + visible
	if end > len(sessions) {
		end = len(sessions)
	}

	var out string
	for i := start; i < end; i++ {
		s := sessions[i]
		title := s.Title
		if title == "" {
			title = "Untitled Chat"
		}
		icon := "💬 "
		if s.Mode == conversation.ModeEDA {
			icon = "📊 "
		}
		marker := "  "
		if i == v.cursor {
			marker = "▸ "
		}
		if s.ID == currentID {
			title = "● " + title
		}
		line := ansi.Truncate(marker+icon+title, v.width, "…")
		date := "    " + s.CreatedAt.Local().Format("2006-01-02")
		if s.CreatedAt.IsZero() {
			date = ""
		}
		if i == v.cursor {
			line = StyleListItemActive.Render(line)
		} else {
			line = StyleNormal.Render(line)
		}
		out += line + "\n" + StyleDimmed.Render(date) + "\n"
	}
	return out
}
