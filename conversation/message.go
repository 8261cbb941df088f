package conversation

import (
	"strconv"
	"strings"

	"github.com/DachengChen/querybot/api"
)

// Role is who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind discriminates the Message union.
type Kind string

const (
	KindText      Kind = "text"
	KindSQLAnswer Kind = "sql_answer" // chat assistant reply; SQL is set
	KindAnalysis  Kind = "analysis"   // eda assistant reply; Analysis is set
	KindFile      Kind = "file"       // eda file card; File is set
)

// SQLAnswer is the payload of a KindSQLAnswer message.
type SQLAnswer struct {
	Query   string
	Results []api.Row
}

// Analysis is the payload of a KindAnalysis message.
type Analysis struct {
	Code   string
	Stdout string
	Error  string
	Plots  []string
}

// RowCount is a file's row count, or UnknownRowCount after a restore.
type RowCount int

const UnknownRowCount RowCount = -1

func (n RowCount) String() string {
	if n < 0 {
		return "Unknown"
	}
	return strconv.Itoa(int(n))
}

// FileData describes the uploaded file an EDA session is bound to.
type FileData struct {
	Filename         string // server-side storage key
	OriginalFilename string
	RowCount         RowCount
	Columns          []string
	Preview          []api.Row
}

// Degraded reports whether the descriptor was rebuilt from a session
// record and lacks row and column metadata.
func (f *FileData) Degraded() bool {
	return f.RowCount == UnknownRowCount
}

// DisplayName is the original name, falling back to the storage key.
func (f *FileData) DisplayName() string {
	if f.OriginalFilename != "" {
		return f.OriginalFilename
	}
	return f.Filename
}

func (f *FileData) clone() *FileData {
	if f == nil {
		return nil
	}
	c := *f
	c.Columns = append([]string(nil), f.Columns...)
	c.Preview = append([]api.Row(nil), f.Preview...)
	return &c
}

// Message is one log entry. Exactly the payload matching Kind is set.
type Message struct {
	Role    Role
	Kind    Kind
	Content string

	SQL      *SQLAnswer
	Analysis *Analysis
	File     *FileData

	// Ephemeral messages exist only client-side and are never stored
	// by the backend.
	Ephemeral bool
}

func UserText(content string) Message {
	return Message{Role: RoleUser, Kind: KindText, Content: content}
}

func AssistantText(content string) Message {
	return Message{Role: RoleAssistant, Kind: KindText, Content: content}
}

// AssistantSQL builds a chat answer.
func AssistantSQL(content, query string, results []api.Row) Message {
	return Message{
		Role:    RoleAssistant,
		Kind:    KindSQLAnswer,
		Content: content,
		SQL:     &SQLAnswer{Query: query, Results: results},
	}
}

// AssistantAnalysis builds an EDA answer.
func AssistantAnalysis(content string, a Analysis) Message {
	return Message{Role: RoleAssistant, Kind: KindAnalysis, Content: content, Analysis: &a}
}

// FileCard builds the presentation-only card shown for an upload.
func FileCard(fd FileData) Message {
	return Message{
		Role:      RoleUser,
		Kind:      KindFile,
		Content:   fd.DisplayName(),
		File:      &fd,
		Ephemeral: true,
	}
}

const errorPrefix = "Error: "

// errorReply is the trailing message appended when a send fails.
func errorReply(err error) Message {
	return AssistantText(errorPrefix + api.Detail(err))
}

// Failed reports whether m is the reply appended for a failed send.
func (m Message) Failed() bool {
	return m.Role == RoleAssistant && m.Kind == KindText && strings.HasPrefix(m.Content, errorPrefix)
}

// valid reports whether the payload matches the discriminant.
func (m Message) valid() bool {
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return false
	}
	switch m.Kind {
	case KindText:
		return m.SQL == nil && m.Analysis == nil && m.File == nil
	case KindSQLAnswer:
		return m.SQL != nil && m.Role == RoleAssistant
	case KindAnalysis:
		return m.Analysis != nil && m.Role == RoleAssistant
	case KindFile:
		return m.File != nil
	}
	return false
}

func (m Message) clone() Message {
	c := m
	if m.SQL != nil {
		sql := *m.SQL
		sql.Results = append([]api.Row(nil), m.SQL.Results...)
		c.SQL = &sql
	}
	if m.Analysis != nil {
		a := *m.Analysis
		a.Plots = append([]string(nil), m.Analysis.Plots...)
		c.Analysis = &a
	}
	c.File = m.File.clone()
	return c
}
