package conversation

import (
	"context"
	"strings"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/applog"
)

func trimInput(s string) string {
	return strings.TrimSpace(s)
}

// sendChat runs Idle -> SessionEnsured -> Sent. Without a selection the
// session is created first and nothing is appended until it exists.
func (e *Engine) sendChat(text string) (Update, error) {
	cur, ok := e.registry.Current()
	if ok && cur.Mode != ModeChat {
		return Update{}, ErrModeMismatch
	}

	t := e.nextTag(ModeChat)
	e.hold(t)
	b := e.backend

	if !ok {
		req := api.CreateSessionRequest{Title: chatTitle(text), SessionType: string(ModeChat)}
		applog.Event("chat", "creating session %q", req.Title)
		return Update{Next: func(ctx context.Context) Result {
			sess, err := b.CreateSession(ctx, req)
			return sessionEnsured{tag: t, text: text, session: sess, err: err}
		}}, nil
	}

	return e.dispatchChat(t, text), nil
}

// dispatchChat appends the user's message and issues the request.
func (e *Engine) dispatchChat(t tag, text string) Update {
	if err := e.log.Append(UserText(text)); err != nil {
		e.release(t)
		return Update{Notice: err.Error()}
	}
	applog.Event("chat", "sending to session %s", t.sessionID)

	b := e.backend
	req := api.ChatRequest{Message: text, ChatID: t.sessionID}
	return Update{
		InputConsumed: true,
		Next: func(ctx context.Context) Result {
			resp, err := b.Chat(ctx, req)
			return chatAnswered{tag: t, resp: resp, err: err}
		},
	}
}

func (e *Engine) applyEnsured(r sessionEnsured) Update {
	if r.err != nil {
		e.release(r.tag)
		applog.Warn("create session failed: %v", r.err)
		return Update{Notice: "Could not create session: " + api.Detail(r.err)}
	}
	sess := sessionFromAPI(*r.session)
	e.registry.Adopt(sess, e.seq)
	if !e.matches(r.tag) {
		e.release(r.tag)
		applog.Event("chat", "session %s created after navigation; message not sent", sess.ID)
		return Update{Stale: true, Created: &sess, Notice: "Message not sent: the conversation changed"}
	}

	e.registry.Select(sess.ID)         //nolint:errcheck
	e.resetLog(sess.ID, ModeChat, nil) //nolint:errcheck

	// Same seq: the surface stays held through the send.
	t := r.tag
	t.sessionID = sess.ID
	t.gen = e.gen
	u := e.dispatchChat(t, r.text)
	u.Created = &sess
	return u
}

func (e *Engine) applyChat(r chatAnswered) Update {
	e.release(r.tag)
	if !e.matches(r.tag) {
		applog.Event("chat", "discarded reply for session %s", r.sessionID)
		return Update{Stale: true}
	}
	msg := errorReply(r.err)
	if r.err == nil {
		msg = chatReply(r.resp)
	} else {
		applog.Warn("chat failed: %v", r.err)
	}
	if err := e.log.Append(msg); err != nil {
		applog.Error("append chat reply: %v", err)
		return Update{Notice: err.Error()}
	}
	return Update{}
}

func (e *Engine) applyCreated(r sessionCreated) Update {
	e.release(r.tag)
	if r.err != nil {
		applog.Warn("create session failed: %v", r.err)
		return Update{Notice: "Could not create session: " + api.Detail(r.err)}
	}
	sess := sessionFromAPI(*r.session)
	e.registry.Adopt(sess, e.seq)
	if !e.matches(r.tag) {
		return Update{Stale: true, Created: &sess}
	}
	e.registry.Select(sess.ID)          //nolint:errcheck
	e.resetLog(sess.ID, sess.Mode, nil) //nolint:errcheck
	e.file = nil
	e.history.pending = false
	applog.Event("session", "new chat %s", sess.ID)
	return Update{Created: &sess}
}
