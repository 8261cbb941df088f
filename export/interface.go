// Package export writes a session transcript to a file format.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/conversation"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, md)", format)
	}
}

// Document is the exported form of one session.
type Document struct {
	Session    SessionInfo `json:"session" yaml:"session"`
	File       *FileInfo   `json:"file,omitempty" yaml:"file,omitempty"`
	Messages   []Entry     `json:"messages" yaml:"messages"`
	ExportedAt time.Time   `json:"exported_at" yaml:"exported_at"`
}

type SessionInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Mode      string    `json:"mode" yaml:"mode"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Filename  string    `json:"filename,omitempty" yaml:"filename,omitempty"`
}

type FileInfo struct {
	Filename         string   `json:"filename" yaml:"filename"`
	OriginalFilename string   `json:"original_filename,omitempty" yaml:"original_filename,omitempty"`
	RowCount         string   `json:"row_count" yaml:"row_count"`
	Columns          []string `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Entry is one message. Only the fields of its kind are set.
type Entry struct {
	Role      string   `json:"role" yaml:"role"`
	Kind      string   `json:"kind" yaml:"kind"`
	Content   string   `json:"content" yaml:"content"`
	SQLQuery  string   `json:"sql_query,omitempty" yaml:"sql_query,omitempty"`
	Results   []Row    `json:"results,omitempty" yaml:"results,omitempty"`
	Code      string   `json:"code,omitempty" yaml:"code,omitempty"`
	Stdout    string   `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Plots     []string `json:"plots,omitempty" yaml:"plots,omitempty"`
	File      string   `json:"file,omitempty" yaml:"file,omitempty"`
	Ephemeral bool     `json:"ephemeral,omitempty" yaml:"ephemeral,omitempty"`
}

// Row is a result row that keeps its column order in every format.
type Row struct {
	api.Row
}

// NewDocument builds the exported form of a session and its log.
func NewDocument(s conversation.Session, file *conversation.FileData, msgs []conversation.Message, at time.Time) *Document {
	doc := &Document{
		Session: SessionInfo{
			ID:        s.ID,
			Title:     s.Title,
			Mode:      string(s.Mode),
			CreatedAt: s.CreatedAt,
			Filename:  s.Filename,
		},
		Messages:   make([]Entry, 0, len(msgs)),
		ExportedAt: at,
	}
	if file != nil {
		doc.File = &FileInfo{
			Filename:         file.Filename,
			OriginalFilename: file.OriginalFilename,
			RowCount:         file.RowCount.String(),
			Columns:          file.Columns,
		}
	}
	for _, m := range msgs {
		doc.Messages = append(doc.Messages, newEntry(m))
	}
	return doc
}

func newEntry(m conversation.Message) Entry {
	e := Entry{
		Role:      string(m.Role),
		Kind:      string(m.Kind),
		Content:   m.Content,
		Ephemeral: m.Ephemeral,
	}
	switch m.Kind {
	case conversation.KindSQLAnswer:
		e.SQLQuery = m.SQL.Query
		for _, r := range m.SQL.Results {
			e.Results = append(e.Results, Row{r})
		}
	case conversation.KindAnalysis:
		e.Code = m.Analysis.Code
		e.Stdout = m.Analysis.Stdout
		e.Error = m.Analysis.Error
		e.Plots = m.Analysis.Plots
	case conversation.KindFile:
		e.File = m.File.DisplayName()
	}
	return e
}

// Filename is the default output name for a session export.
func Filename(doc *Document, ext string) string {
	return fmt.Sprintf("querybot-session-%s.%s", doc.Session.ID, ext)
}
