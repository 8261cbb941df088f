// messages.go defines Bubble Tea messages used for async communication.
//
// Backend requests run as tea.Cmds and report back to the TUI via these
// message types, so the UI never blocks.
package tui

import (
	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/conversation"
)

// EngineResultMsg carries the result of a conversation effect. It must
// be passed to Engine.Apply on the event loop.
type EngineResultMsg struct {
	Result conversation.Result
}

// SchemaLoadedMsg is sent when the schema sidebar fetch completes.
type SchemaLoadedMsg struct {
	Schema *api.Schema
	Err    error
}

// StatusMsg is a transient status message for the status bar.
type StatusMsg string

// SendMsg asks the app to send the typed text in the active mode.
type SendMsg struct {
	Text string
}

// SelectSessionMsg asks the app to switch to a session.
type SelectSessionMsg struct {
	ID string
}

// NewChatMsg asks the app to start an empty chat session.
type NewChatMsg struct{}

// RefreshSessionsMsg asks the app to reload the session list.
type RefreshSessionsMsg struct{}
