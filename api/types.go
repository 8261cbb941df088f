package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Endpoint paths of the analysis backend.
const (
	PathSessions        = "/api/sessions"
	PathSessionMessages = "/api/sessions/{id}/messages"
	PathChat            = "/api/chat"
	PathUploadCSV       = "/api/upload_csv"
	PathEDAChat         = "/api/eda_chat"
	PathSchema          = "/api/schema"
)

// Session is a conversation thread as stored by the backend.
//
// The backend is inconsistent about the id field: listings use "id",
// creation returns "session_id", and either may be a number or a string.
type Session struct {
	ID          string
	Title       string
	SessionType string // "chat", "eda" or empty (treated as chat)
	Filename    string
	CreatedAt   time.Time
}

type sessionJSON struct {
	ID          json.RawMessage `json:"id,omitempty"`
	SessionID   json.RawMessage `json:"session_id,omitempty"`
	Title       string          `json:"title"`
	SessionType string          `json:"session_type,omitempty"`
	Filename    string          `json:"filename,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// UnmarshalJSON accepts either id spelling and numeric or string ids.
func (s *Session) UnmarshalJSON(data []byte) error {
	var aux sessionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	id, err := parseID(aux.ID)
	if err != nil {
		return err
	}
	if id == "" {
		if id, err = parseID(aux.SessionID); err != nil {
			return err
		}
	}
	*s = Session{
		ID:          id,
		Title:       aux.Title,
		SessionType: aux.SessionType,
		Filename:    aux.Filename,
		CreatedAt:   parseTime(aux.CreatedAt),
	}
	return nil
}

// MarshalJSON writes the listing shape ("id").
func (s Session) MarshalJSON() ([]byte, error) {
	aux := sessionJSON{
		Title:       s.Title,
		SessionType: s.SessionType,
		Filename:    s.Filename,
	}
	if s.ID != "" {
		raw, err := json.Marshal(s.ID)
		if err != nil {
			return nil, err
		}
		aux.ID = raw
	}
	if !s.CreatedAt.IsZero() {
		aux.CreatedAt = s.CreatedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(aux)
}

func parseID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime is lenient: the backend serialises naive timestamps.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Message is a stored or returned conversation entry.
type Message struct {
	Role     string   `json:"role"`
	Content  string   `json:"content"`
	Type     string   `json:"type,omitempty"`
	SQLQuery string   `json:"sqlQuery,omitempty"`
	Results  []Row    `json:"results,omitempty"`
	Code     string   `json:"code,omitempty"`
	Stdout   string   `json:"stdout,omitempty"`
	Error    string   `json:"error,omitempty"`
	Plots    []string `json:"plots,omitempty"`
}

// HistoryEntry is the role/content pair sent as EDA context.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Title       string `json:"title"`
	SessionType string `json:"session_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId"`
}

// ChatResponse is the SQL-chat answer.
type ChatResponse struct {
	Answer   string `json:"answer"`
	SQLQuery string `json:"sqlQuery"`
	Results  []Row  `json:"results"`
	ChatID   string `json:"chatId,omitempty"`
}

// UploadResponse describes a stored CSV upload.
type UploadResponse struct {
	Filename         string   `json:"filename"`
	OriginalFilename string   `json:"original_filename"`
	RowCount         int      `json:"row_count"`
	Columns          []string `json:"columns"`
	Preview          []Row    `json:"preview"`
}

// EDAChatRequest is the body of POST /api/eda_chat.
type EDAChatRequest struct {
	Message   string         `json:"message"`
	Filename  string         `json:"filename"`
	SessionID string         `json:"session_id"`
	History   []HistoryEntry `json:"history"`
}

// EDAResponse is the analysis answer.
type EDAResponse struct {
	Answer string   `json:"answer"`
	Code   string   `json:"code"`
	Stdout string   `json:"stdout"`
	Plots  []string `json:"plots"`
	Error  string   `json:"error"`
}

// Schema is the table listing of GET /api/schema.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Table is one table of a Schema.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column is a column name with its database type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
