package conversation

import (
	"time"

	"github.com/DachengChen/querybot/api"
)

// Session is a conversation thread known to the backend.
type Session struct {
	ID        string
	Title     string
	Mode      Mode
	CreatedAt time.Time
	Filename  string // eda sessions only
}

func sessionFromAPI(s api.Session) Session {
	return Session{
		ID:        s.ID,
		Title:     s.Title,
		Mode:      sessionMode(s.SessionType),
		CreatedAt: s.CreatedAt,
		Filename:  s.Filename,
	}
}

// Registry is the ordered list of sessions, most recent first, and the
// current selection.
type Registry struct {
	sessions []Session
	current  string
	adopted  map[string]uint64 // locally created ids, by the seq they landed at
}

// List returns a copy of the sessions.
func (r *Registry) List() []Session {
	return append([]Session(nil), r.sessions...)
}

func (r *Registry) Len() int { return len(r.sessions) }

// Replace installs a fresh listing. The selection survives only if the
// selected session is still listed; Replace reports whether it did.
func (r *Registry) Replace(sessions []Session) bool {
	r.adopted = nil
	return r.Refresh(sessions, ^uint64(0))
}

// Refresh installs a listing that was requested at seq since. Sessions
// adopted at or after since are kept at the head when the listing does
// not know them yet. Refresh reports whether the selection survived.
func (r *Registry) Refresh(sessions []Session, since uint64) bool {
	listed := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		listed[s.ID] = true
	}
	out := make([]Session, 0, len(sessions)+len(r.adopted))
	for _, s := range r.sessions {
		at, ok := r.adopted[s.ID]
		if ok && at >= since && !listed[s.ID] {
			out = append(out, s)
		}
	}
	for id := range r.adopted {
		if listed[id] {
			delete(r.adopted, id)
		}
	}
	r.sessions = append(out, sessions...)
	if r.current == "" {
		return true
	}
	if _, ok := r.Get(r.current); !ok {
		r.current = ""
		return false
	}
	return true
}

// Prepend inserts s at the head, dropping any older entry with its id.
func (r *Registry) Prepend(s Session) {
	out := make([]Session, 0, len(r.sessions)+1)
	out = append(out, s)
	for _, old := range r.sessions {
		if old.ID != s.ID {
			out = append(out, old)
		}
	}
	r.sessions = out
}

// Adopt prepends a session this client just created and remembers the
// seq it landed at, so listings requested earlier do not drop it.
func (r *Registry) Adopt(s Session, seq uint64) {
	r.Prepend(s)
	if r.adopted == nil {
		r.adopted = make(map[string]uint64)
	}
	r.adopted[s.ID] = seq
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (Session, bool) {
	for _, s := range r.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// Select makes id current; "" selects nothing.
func (r *Registry) Select(id string) error {
	if id != "" {
		if _, ok := r.Get(id); !ok {
			return ErrUnknownSession
		}
	}
	r.current = id
	return nil
}

// CurrentID returns the selected id or "".
func (r *Registry) CurrentID() string { return r.current }

// Current returns the selected session.
func (r *Registry) Current() (Session, bool) {
	if r.current == "" {
		return Session{}, false
	}
	return r.Get(r.current)
}

// Clear forgets every session and the selection.
func (r *Registry) Clear() {
	r.sessions = nil
	r.current = ""
	r.adopted = nil
}
