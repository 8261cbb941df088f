package conversation

import (
	"fmt"
	"strings"

	"github.com/DachengChen/querybot/api"
)

// Mode is one of the two interaction schemas.
type Mode string

const (
	ModeChat Mode = "chat" // natural language to SQL
	ModeEDA  Mode = "eda"  // analysis over an uploaded CSV
)

// ParseMode accepts "chat", "sql", "eda" or "data" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chat", "sql":
		return ModeChat, nil
	case "eda", "data":
		return ModeEDA, nil
	}
	return "", fmt.Errorf("unknown mode %q (want chat or eda)", s)
}

// sessionMode maps a stored session_type to a mode. Sessions created
// before EDA existed carry no type and are chat sessions.
func sessionMode(sessionType string) Mode {
	if m, err := ParseMode(sessionType); err == nil {
		return m
	}
	return ModeChat
}

func (m Mode) String() string { return string(m) }

// Label is the human name shown in headers.
func (m Mode) Label() string {
	if m == ModeEDA {
		return "Data Analysis"
	}
	return "SQL Chat"
}

// Other returns the opposite mode.
func (m Mode) Other() Mode {
	if m == ModeEDA {
		return ModeChat
	}
	return ModeEDA
}

// Endpoint is the path messages are sent to in this mode.
func (m Mode) Endpoint() string {
	if m == ModeEDA {
		return api.PathEDAChat
	}
	return api.PathChat
}

// Allows reports whether a message of kind k may appear in a log of
// this mode.
func (m Mode) Allows(k Kind) bool {
	switch k {
	case KindText:
		return true
	case KindSQLAnswer:
		return m == ModeChat
	case KindAnalysis, KindFile:
		return m == ModeEDA
	}
	return false
}

// ModeController holds the active mode. Changing it never touches the
// selected session or its log.
type ModeController struct {
	mode Mode
}

// NewModeController starts in m, or in chat when m is not a mode.
func NewModeController(m Mode) *ModeController {
	if m != ModeEDA {
		m = ModeChat
	}
	return &ModeController{mode: m}
}

// Mode returns the active mode.
func (c *ModeController) Mode() Mode {
	return c.mode
}

// Set activates m.
func (c *ModeController) Set(m Mode) error {
	if m != ModeChat && m != ModeEDA {
		return fmt.Errorf("unknown mode %q", string(m))
	}
	c.mode = m
	return nil
}

// Toggle switches to the other mode and returns it.
func (c *ModeController) Toggle() Mode {
	c.mode = c.mode.Other()
	return c.mode
}
