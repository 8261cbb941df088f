// Package apitest runs an in-memory implementation of the analysis
// backend's HTTP API for tests. It stores sessions, messages and uploads
// the way the real backend does, answers chat and EDA questions with
// canned (or injected) responses, and can be told to fail a route once.
package apitest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DachengChen/querybot/api"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PreviewRows is how many rows an upload response previews.
const PreviewRows = 5

// PlotPNG is the body served for every plot under /static/plots/.
var PlotPNG = []byte("\x89PNG\r\n\x1a\nfake plot")

// ChatFunc produces the answer to a SQL-chat request.
type ChatFunc func(req api.ChatRequest) api.ChatResponse

// EDAFunc produces the answer to an EDA request.
type EDAFunc func(req api.EDAChatRequest) api.EDAResponse

type failure struct {
	status int
	detail string
}

type upload struct {
	original string
	rows     int
	columns  []string
}

// Server is a running fake backend. URL is its base address.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int
	sessions []api.Session // most recent first
	messages map[string][]api.Message
	uploads  map[string]upload
	failures map[string][]failure
	calls    map[string]int

	chat   ChatFunc
	eda    EDAFunc
	schema api.Schema

	lastChat      api.ChatRequest
	lastEDA       api.EDAChatRequest
	lastSchemaURI string
}

// New starts a fake backend; it is closed when the test ends.
func New(t interface{ Cleanup(func()) }) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		nextID:   1,
		messages: make(map[string][]api.Message),
		uploads:  make(map[string]upload),
		failures: make(map[string][]failure),
		calls:    make(map[string]int),
		chat:     defaultChat,
		eda:      defaultEDA,
		schema: api.Schema{Tables: []api.Table{{
			Name: "students",
			Columns: []api.Column{
				{Name: "id", Type: "INTEGER"},
				{Name: "name", Type: "VARCHAR(50)"},
				{Name: "marks", Type: "INTEGER"},
			},
		}}},
	}
	s.Server = httptest.NewServer(s.Router())
	t.Cleanup(s.Close)
	return s
}

// Router builds the gin engine serving the backend routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(s.countAndFail)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/api/sessions", s.listSessions)
	r.POST("/api/sessions", s.createSession)
	r.DELETE("/api/sessions", s.clearSessions)
	r.GET("/api/sessions/:id/messages", s.sessionMessages)
	r.POST("/api/chat", s.handleChat)
	r.POST("/api/upload_csv", s.uploadCSV)
	r.POST("/api/eda_chat", s.handleEDA)
	r.GET("/api/schema", s.getSchema)
	r.GET("/static/plots/:name", servePlot)
	return r
}

// Fail makes the next request to "METHOD /path" (the route pattern, e.g.
// "GET /api/sessions/:id/messages") answer status with a detail body.
func (s *Server) Fail(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// Calls reports how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// SetChat replaces the SQL-chat responder.
func (s *Server) SetChat(f ChatFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = f
}

// SetEDA replaces the EDA responder.
func (s *Server) SetEDA(f EDAFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eda = f
}

// SetSchema replaces the schema served by GET /api/schema.
func (s *Server) SetSchema(schema api.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = schema
}

// Seed stores a session with optional messages, as if created earlier.
func (s *Server) Seed(title, sessionType, filename string, msgs ...api.Message) api.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.newSessionLocked(title, sessionType, filename)
	s.messages[sess.ID] = append(s.messages[sess.ID], msgs...)
	return sess
}

// Sessions returns the stored sessions, most recent first.
func (s *Server) Sessions() []api.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Session(nil), s.sessions...)
}

// Messages returns the stored history of a session.
func (s *Server) Messages(sessionID string) []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Message(nil), s.messages[sessionID]...)
}

// LastChat returns the most recent /api/chat request body.
func (s *Server) LastChat() api.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChat
}

// LastEDA returns the most recent /api/eda_chat request body.
func (s *Server) LastEDA() api.EDAChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEDA
}

// LastSchemaURI returns the db_uri of the most recent schema request.
func (s *Server) LastSchemaURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSchemaURI
}

func (s *Server) countAndFail(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	s.calls[route]++
	var f *failure
	if queue := s.failures[route]; len(queue) > 0 {
		f = &queue[0]
		s.failures[route] = queue[1:]
	}
	s.mu.Unlock()

	if f != nil {
		c.AbortWithStatusJSON(f.status, gin.H{"detail": f.detail})
		return
	}
	c.Next()
}

func (s *Server) newSessionLocked(title, sessionType, filename string) api.Session {
	sess := api.Session{
		ID:          strconv.Itoa(s.nextID),
		Title:       title,
		SessionType: sessionType,
		Filename:    filename,
		CreatedAt:   time.Now().UTC(),
	}
	s.nextID++
	s.sessions = append([]api.Session{sess}, s.sessions...)
	return sess
}

func (s *Server) listSessions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"sessions": s.sessions})
}

func (s *Server) createSession(c *gin.Context) {
	var req api.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if req.Title == "" {
		req.Title = "New Chat"
	}
	s.mu.Lock()
	sess := s.newSessionLocked(req.Title, req.SessionType, req.Filename)
	s.mu.Unlock()

	// Numeric id under "session_id", like the real create endpoint.
	id, _ := strconv.Atoi(sess.ID)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "title": sess.Title})
}

func (s *Server) clearSessions(c *gin.Context) {
	s.mu.Lock()
	s.sessions = nil
	s.messages = make(map[string][]api.Message)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "History cleared"})
}

func (s *Server) sessionMessages(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	msgs := append([]api.Message{}, s.messages[id]...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) handleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	s.lastChat = req
	chat := s.chat
	s.mu.Unlock()

	resp := chat(req)
	resp.ChatID = req.ChatID

	s.mu.Lock()
	if s.hasSessionLocked(req.ChatID) {
		s.messages[req.ChatID] = append(s.messages[req.ChatID],
			api.Message{Role: "user", Content: req.Message},
			api.Message{Role: "assistant", Content: resp.Answer},
		)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) uploadCSV(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file uploaded"})
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only CSV files are supported"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	defer f.Close()

	columns, rows, preview, err := summarizeCSV(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Invalid CSV: %v", err)})
		return
	}

	stored := uuid.NewString() + "_" + fh.Filename
	s.mu.Lock()
	s.uploads[stored] = upload{original: fh.Filename, rows: rows, columns: columns}
	s.mu.Unlock()

	c.JSON(http.StatusOK, api.UploadResponse{
		Filename:         stored,
		OriginalFilename: fh.Filename,
		RowCount:         rows,
		Columns:          columns,
		Preview:          preview,
	})
}

func summarizeCSV(r io.Reader) ([]string, int, []api.Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, 0, nil, err
	}
	var (
		count   int
		preview []api.Row
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, nil, err
		}
		if count < PreviewRows {
			var row api.Row
			for i, col := range header {
				if i < len(rec) {
					row.Set(col, rec[i])
				}
			}
			preview = append(preview, row)
		}
		count++
	}
	return header, count, preview, nil
}

func (s *Server) handleEDA(c *gin.Context) {
	var req api.EDAChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	s.lastEDA = req
	_, known := s.uploads[req.Filename]
	eda := s.eda
	s.mu.Unlock()

	if !known {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}

	resp := eda(req)

	s.mu.Lock()
	if s.hasSessionLocked(req.SessionID) {
		s.messages[req.SessionID] = append(s.messages[req.SessionID],
			api.Message{Role: "user", Content: req.Message},
			api.Message{Role: "assistant", Content: resp.Answer, Code: resp.Code,
				Stdout: resp.Stdout, Plots: resp.Plots, Error: resp.Error},
		)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getSchema(c *gin.Context) {
	s.mu.Lock()
	s.lastSchemaURI = c.Query("db_uri")
	schema := s.schema
	s.mu.Unlock()
	c.JSON(http.StatusOK, schema)
}

func (s *Server) hasSessionLocked(id string) bool {
	for _, sess := range s.sessions {
		if sess.ID == id {
			return true
		}
	}
	return false
}

func servePlot(c *gin.Context) {
	if !strings.HasSuffix(c.Param("name"), ".png") {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}
	c.Data(http.StatusOK, "image/png", PlotPNG)
}

func defaultChat(req api.ChatRequest) api.ChatResponse {
	return api.ChatResponse{
		Answer:   "Here are the matching rows.",
		SQLQuery: "SELECT id, name FROM users;",
		Results: []api.Row{
			api.NewRow("id", 1, "name", "Ada"),
			api.NewRow("id", 2, "name", "Linus"),
		},
	}
}

func defaultEDA(req api.EDAChatRequest) api.EDAResponse {
	return api.EDAResponse{
		Answer: "The dataset looks healthy.",
		Code:   "print(df.describe())",
		Stdout: "count    120.0",
		Plots:  []string{"/static/plots/plot_1.png"},
	}
}
