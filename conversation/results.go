package conversation

import (
	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/applog"
)

// Result is what an Effect reports. Pass it to Engine.Apply.
type Result interface {
	resultTag() tag
}

func (t tag) resultTag() tag { return t }

type sessionsLoaded struct {
	tag
	sessions []api.Session
	err      error
}

type historyLoaded struct {
	tag
	sessMode Mode
	msgs     []api.Message
	err      error
}

type sessionCreated struct {
	tag
	session *api.Session
	err     error
}

type sessionEnsured struct {
	tag
	text    string
	session *api.Session
	err     error
}

type chatAnswered struct {
	tag
	resp *api.ChatResponse
	err  error
}

type edaAnswered struct {
	tag
	resp *api.EDAResponse
	err  error
}

type uploaded struct {
	tag
	boot    Bootstrap
	session *api.Session
	stage   string
	err     error
}

type historyCleared struct {
	tag
	err error
}

// Apply folds a Result into the engine state.
func (e *Engine) Apply(r Result) Update {
	switch r := r.(type) {
	case sessionsLoaded:
		return e.applySessions(r)
	case historyLoaded:
		return e.applyHistory(r)
	case sessionCreated:
		return e.applyCreated(r)
	case sessionEnsured:
		return e.applyEnsured(r)
	case chatAnswered:
		return e.applyChat(r)
	case edaAnswered:
		return e.applyEDA(r)
	case uploaded:
		return e.applyUpload(r)
	case historyCleared:
		return e.applyCleared(r)
	}
	return Update{}
}

func (e *Engine) applySessions(r sessionsLoaded) Update {
	if r.seq != e.listSeq {
		return Update{Stale: true}
	}
	if r.err != nil {
		applog.Warn("list sessions failed: %v", r.err)
		return Update{Notice: "Could not load sessions: " + api.Detail(r.err)}
	}
	sessions := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, sessionFromAPI(s))
	}
	if !e.registry.Refresh(sessions, r.seq) {
		// The selected session is gone on the server.
		e.file = nil
		e.history.pending = false
		e.resetLog("", "", nil) //nolint:errcheck
	}
	applog.Event("session", "loaded %d sessions", len(sessions))
	return Update{}
}

func (e *Engine) applyHistory(r historyLoaded) Update {
	if r.seq != e.history.seq || r.gen != e.gen || r.sessionID != e.registry.CurrentID() {
		return Update{Stale: true}
	}
	e.history.pending = false
	if r.err != nil {
		applog.Warn("load history of %s failed: %v", r.sessionID, r.err)
		return Update{Notice: "Could not load messages: " + api.Detail(r.err)}
	}
	// Same selection: the generation is kept, so requests issued since
	// the select stay current.
	if err := e.log.Reset(r.sessionID, r.sessMode, historyFromAPI(r.sessMode, r.msgs)); err != nil {
		applog.Error("load history of %s: %v", r.sessionID, err)
		return Update{Notice: err.Error()}
	}
	return Update{}
}

func (e *Engine) applyCleared(r historyCleared) Update {
	if r.err != nil {
		applog.Warn("clear history failed: %v", r.err)
		return Update{Notice: "Could not clear history: " + api.Detail(r.err)}
	}
	e.registry.Clear()
	e.file = nil
	e.history.pending = false
	e.resetLog("", "", nil) //nolint:errcheck
	applog.Event("session", "history cleared")
	return Update{}
}
