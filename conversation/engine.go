// Package conversation owns session identity, per-session message
// history, the two interaction modes and the request lifecycle that ties
// them together.
//
// The Engine is driven by an event loop. Every user action is a method
// that mutates local state and may return an Update whose Next effect
// must be run; effects only talk to the backend and are safe to run on
// another goroutine. Their Result is handed back through Apply, on the
// loop, which folds it into state and may yield a further effect. Run
// drives such a chain to completion for callers without a loop.
//
// Every dispatched request is tagged with the selection, mode and log
// generation it was issued under. A result whose tag no longer matches
// is discarded instead of landing in the wrong conversation.
//
// The Engine itself is not safe for concurrent use.
package conversation

import (
	"context"
	"io"
	"time"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/applog"
)

// Backend is the subset of the HTTP API the engine needs. *api.Client
// implements it.
type Backend interface {
	ListSessions(ctx context.Context) ([]api.Session, error)
	CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error)
	SessionMessages(ctx context.Context, sessionID string) ([]api.Message, error)
	ClearSessions(ctx context.Context) error
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	UploadCSV(ctx context.Context, filename string, r io.Reader) (*api.UploadResponse, error)
	EDAChat(ctx context.Context, req api.EDAChatRequest) (*api.EDAResponse, error)
}

// Effect performs backend I/O and reports back. It must not touch the
// engine.
type Effect func(ctx context.Context) Result

// Update tells the caller what an action or Apply did.
type Update struct {
	// Next, when set, must be run and its Result passed to Apply.
	Next Effect
	// Notice is a transient message for the user (failed list, create,
	// clear or upload).
	Notice string
	// InputConsumed means the typed text was sent and the input field
	// should be cleared.
	InputConsumed bool
	// Stale means a result arrived for a selection or mode the user has
	// since left and was discarded.
	Stale bool
	// Created is the session a create request produced, if any.
	Created *Session
}

func (u Update) merge(next Update) Update {
	u.Next = next.Next
	if next.Notice != "" {
		u.Notice = next.Notice
	}
	u.InputConsumed = u.InputConsumed || next.InputConsumed
	u.Stale = u.Stale || next.Stale
	if next.Created != nil {
		u.Created = next.Created
	}
	return u
}

// Options configures an Engine.
type Options struct {
	Mode Mode             // initial mode, chat when empty
	Now  func() time.Time // clock for generated titles
}

// surface is the single-flight state of one mode's send control.
type surface struct {
	loading bool
	seq     uint64
}

// Engine is the orchestration state machine.
type Engine struct {
	backend  Backend
	now      func() time.Time
	modes    *ModeController
	registry Registry
	log      Log
	file     *FileData

	surfaces map[Mode]*surface
	seq      uint64
	gen      uint64 // bumped whenever the log is replaced or cleared
	listSeq  uint64
	history  struct {
		pending bool
		seq     uint64
	}
}

// New creates an engine with no sessions loaded.
func New(backend Backend, opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		backend: backend,
		now:     now,
		modes:   NewModeController(opts.Mode),
		surfaces: map[Mode]*surface{
			ModeChat: {},
			ModeEDA:  {},
		},
	}
}

// tag identifies the state a request was dispatched under.
type tag struct {
	seq       uint64
	surface   Mode // whose loading flag the request holds; "" for none
	sessionID string
	mode      Mode
	gen       uint64
}

func (e *Engine) nextTag(s Mode) tag {
	e.seq++
	return tag{
		seq:       e.seq,
		surface:   s,
		sessionID: e.registry.CurrentID(),
		mode:      e.modes.Mode(),
		gen:       e.gen,
	}
}

// hold marks the surface of t busy.
func (e *Engine) hold(t tag) {
	s := e.surfaces[t.surface]
	s.loading = true
	s.seq = t.seq
}

// release clears the loading flag if t is the request holding it.
func (e *Engine) release(t tag) {
	if t.surface == "" {
		return
	}
	if s := e.surfaces[t.surface]; s.seq == t.seq {
		s.loading = false
	}
}

// matches reports whether the user is still where t was issued.
func (e *Engine) matches(t tag) bool {
	return t.gen == e.gen &&
		t.sessionID == e.registry.CurrentID() &&
		t.mode == e.modes.Mode()
}

// resetLog replaces the log for the newly selected session.
func (e *Engine) resetLog(id string, mode Mode, msgs []Message) error {
	e.gen++
	if id == "" {
		e.log.Clear()
		return nil
	}
	return e.log.Reset(id, mode, msgs)
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode { return e.modes.Mode() }

// SetMode activates m. The selection and log are left alone.
func (e *Engine) SetMode(m Mode) error {
	if err := e.modes.Set(m); err != nil {
		return err
	}
	applog.Event("mode", "switched to %s", m)
	return nil
}

// ToggleMode switches to the other mode and returns it.
func (e *Engine) ToggleMode() Mode {
	m := e.modes.Toggle()
	applog.Event("mode", "switched to %s", m)
	return m
}

// Sessions lists known sessions, most recent first.
func (e *Engine) Sessions() []Session { return e.registry.List() }

// Current returns the selected session.
func (e *Engine) Current() (Session, bool) { return e.registry.Current() }

// Messages returns a copy of the current log.
func (e *Engine) Messages() []Message { return e.log.Messages() }

// FileData returns a copy of the bound file, or nil.
func (e *Engine) FileData() *FileData { return e.file.clone() }

// Loading reports whether m's surface has a request in flight.
func (e *Engine) Loading(m Mode) bool { return e.surfaces[m].loading }

// HistoryLoading reports whether the selected session's history is
// still being fetched.
func (e *Engine) HistoryLoading() bool { return e.history.pending }

// Busy reports whether sending is currently refused in the active mode.
func (e *Engine) Busy() bool {
	return e.Loading(e.modes.Mode()) || e.history.pending
}

// Run executes u's effect chain synchronously and returns the merged
// outcome.
func (e *Engine) Run(ctx context.Context, u Update) Update {
	out := u
	for u.Next != nil {
		u = e.Apply(u.Next(ctx))
		out = out.merge(u)
	}
	out.Next = nil
	return out
}

// LoadSessions fetches the session list. It is used at startup and to
// refresh.
func (e *Engine) LoadSessions() Update {
	t := e.nextTag("")
	e.listSeq = t.seq
	b := e.backend
	return Update{Next: func(ctx context.Context) Result {
		sessions, err := b.ListSessions(ctx)
		return sessionsLoaded{tag: t, sessions: sessions, err: err}
	}}
}

// SelectSession makes id current and fetches its history. The log is
// emptied at once and replaced wholesale when the history arrives. An
// empty id selects nothing and needs no request.
func (e *Engine) SelectSession(id string) (Update, error) {
	if id == "" {
		e.registry.Select("") //nolint:errcheck
		e.file = nil
		e.history.pending = false
		e.resetLog("", "", nil) //nolint:errcheck
		return Update{}, nil
	}
	sess, ok := e.registry.Get(id)
	if !ok {
		return Update{}, ErrUnknownSession
	}
	e.registry.Select(id) //nolint:errcheck
	if err := e.resetLog(id, sess.Mode, nil); err != nil {
		return Update{}, err
	}
	if sess.Mode == ModeEDA {
		e.file = restoredFileData(sess)
	} else {
		e.file = nil
	}
	applog.Event("session", "selected %s (%s)", id, sess.Mode)

	t := e.nextTag("")
	e.history.pending = true
	e.history.seq = t.seq
	b := e.backend
	return Update{Next: func(ctx context.Context) Result {
		msgs, err := b.SessionMessages(ctx, id)
		return historyLoaded{tag: t, sessMode: sess.Mode, msgs: msgs, err: err}
	}}, nil
}

// NewChat creates an empty chat session and selects it. The chat
// surface is held until the session exists.
func (e *Engine) NewChat() (Update, error) {
	if e.modes.Mode() != ModeChat {
		return Update{}, ErrModeMismatch
	}
	if e.surfaces[ModeChat].loading {
		return Update{}, ErrBusy
	}
	t := e.nextTag(ModeChat)
	e.hold(t)
	req := api.CreateSessionRequest{Title: newChatTitle(e.now()), SessionType: string(ModeChat)}
	b := e.backend
	return Update{Next: func(ctx context.Context) Result {
		sess, err := b.CreateSession(ctx, req)
		return sessionCreated{tag: t, session: sess, err: err}
	}}, nil
}

// Send sends text in the active mode.
func (e *Engine) Send(text string) (Update, error) {
	text = trimInput(text)
	if text == "" {
		return Update{}, ErrEmptyMessage
	}
	mode := e.modes.Mode()
	if e.surfaces[mode].loading || e.history.pending {
		return Update{}, ErrBusy
	}
	if mode == ModeEDA {
		return e.sendEDA(text)
	}
	return e.sendChat(text)
}

// Upload stores a CSV and opens a new eda session for it. r is closed
// when the upload finishes or the action is refused.
func (e *Engine) Upload(filename string, r io.Reader) (Update, error) {
	if e.modes.Mode() != ModeEDA {
		closeReader(r)
		return Update{}, ErrModeMismatch
	}
	if e.surfaces[ModeEDA].loading {
		closeReader(r)
		return Update{}, ErrBusy
	}
	t := e.nextTag(ModeEDA)
	e.hold(t)
	applog.Event("upload", "uploading %s", filename)

	b := e.backend
	return Update{Next: func(ctx context.Context) Result {
		defer closeReader(r)
		up, err := b.UploadCSV(ctx, filename, r)
		if err != nil {
			return uploaded{tag: t, err: err, stage: "Upload failed"}
		}
		boot := NewBootstrap(*up)
		sess, err := b.CreateSession(ctx, boot.Request)
		if err != nil {
			return uploaded{tag: t, err: err, stage: "Could not create session"}
		}
		return uploaded{tag: t, boot: boot, session: sess}
	}}, nil
}

// CloseFile unbinds the current file; sending in eda mode is refused
// until the next upload or eda session selection.
func (e *Engine) CloseFile() error {
	if e.surfaces[ModeEDA].loading {
		return ErrBusy
	}
	e.file = nil
	return nil
}

// ClearAll deletes every session. It must be confirmed by the user.
func (e *Engine) ClearAll(confirmed bool) (Update, error) {
	if !confirmed {
		return Update{}, ErrNotConfirmed
	}
	t := e.nextTag("")
	b := e.backend
	return Update{Next: func(ctx context.Context) Result {
		return historyCleared{tag: t, err: b.ClearSessions(ctx)}
	}}, nil
}

func closeReader(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		c.Close() //nolint:errcheck
	}
}
