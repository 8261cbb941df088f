package conversation

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/DachengChen/querybot/api"
)

// fakeBackend records calls and answers from canned data. Errors set in
// errs fail the next call of that method only.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int
	sessions []api.Session
	history  map[string][]api.Message
	calls    map[string]int
	errs     map[string]error

	createReqs []api.CreateSessionRequest
	chatReqs   []api.ChatRequest
	edaReqs    []api.EDAChatRequest
	uploaded   []string

	chatResp api.ChatResponse
	edaResp  api.EDAResponse
	upload   api.UploadResponse
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID:  1,
		history: make(map[string][]api.Message),
		calls:   make(map[string]int),
		errs:    make(map[string]error),
		chatResp: api.ChatResponse{
			Answer:   "Found 2 users.",
			SQLQuery: "SELECT * FROM users;",
			Results:  []api.Row{api.NewRow("id", 1, "name", "Ada"), api.NewRow("id", 2, "name", "Linus")},
		},
		edaResp: api.EDAResponse{
			Answer: "Mean units is 4.2.",
			Code:   "df.units.mean()",
			Stdout: "4.2",
			Plots:  []string{"/static/plots/p1.png"},
		},
		upload: api.UploadResponse{
			Filename:         "3f1c2a9e-8a43-4c3b-9a51-0d6b6f0e2f11_sales.csv",
			OriginalFilename: "sales.csv",
			RowCount:         120,
			Columns:          []string{"region", "units", "price", "date", "rep"},
		},
	}
}

func (f *fakeBackend) seed(title, sessionType, filename string, msgs ...api.Message) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.addLocked(title, sessionType, filename)
	f.history[id] = msgs
	return id
}

func (f *fakeBackend) addLocked(title, sessionType, filename string) string {
	id := strconv.Itoa(f.nextID)
	f.nextID++
	f.sessions = append([]api.Session{{
		ID:          id,
		Title:       title,
		SessionType: sessionType,
		Filename:    filename,
		CreatedAt:   time.Date(2024, 3, 1, 10, 0, f.nextID, 0, time.UTC),
	}}, f.sessions...)
	return id
}

func (f *fakeBackend) fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeBackend) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBackend) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	err := f.errs[method]
	delete(f.errs, method)
	return err
}

func (f *fakeBackend) ListSessions(ctx context.Context) ([]api.Session, error) {
	if err := f.enter("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Session(nil), f.sessions...), nil
}

func (f *fakeBackend) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	if err := f.enter("create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createReqs = append(f.createReqs, req)
	id := f.addLocked(req.Title, req.SessionType, req.Filename)
	s := f.sessions[0]
	return &api.Session{ID: id, Title: s.Title, SessionType: s.SessionType, Filename: s.Filename}, nil
}

func (f *fakeBackend) SessionMessages(ctx context.Context, sessionID string) ([]api.Message, error) {
	if err := f.enter("messages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Message(nil), f.history[sessionID]...), nil
}

func (f *fakeBackend) ClearSessions(ctx context.Context) error {
	if err := f.enter("clear"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = nil
	f.history = make(map[string][]api.Message)
	return nil
}

func (f *fakeBackend) Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	f.mu.Lock()
	f.chatReqs = append(f.chatReqs, req)
	f.mu.Unlock()
	if err := f.enter("chat"); err != nil {
		return nil, err
	}
	resp := f.chatResp
	resp.ChatID = req.ChatID
	return &resp, nil
}

func (f *fakeBackend) UploadCSV(ctx context.Context, filename string, r io.Reader) (*api.UploadResponse, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	if err := f.enter("upload"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = append(f.uploaded, filename)
	resp := f.upload
	return &resp, nil
}

func (f *fakeBackend) EDAChat(ctx context.Context, req api.EDAChatRequest) (*api.EDAResponse, error) {
	f.mu.Lock()
	f.edaReqs = append(f.edaReqs, req)
	f.mu.Unlock()
	if err := f.enter("eda"); err != nil {
		return nil, err
	}
	resp := f.edaResp
	return &resp, nil
}

// trackingReader reports whether it was closed.
type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}
