package conversation

import (
	"context"

	"github.com/DachengChen/querybot/api"
	"github.com/DachengChen/querybot/applog"
)

func (e *Engine) sendEDA(text string) (Update, error) {
	if e.file == nil {
		return Update{}, ErrNoFile
	}
	cur, ok := e.registry.Current()
	if !ok {
		return Update{}, ErrNoSession
	}
	if cur.Mode != ModeEDA {
		return Update{}, ErrModeMismatch
	}

	// Context is the log as it stood before this message.
	history := historyEntries(e.log.Messages())
	if err := e.log.Append(UserText(text)); err != nil {
		return Update{}, err
	}
	t := e.nextTag(ModeEDA)
	e.hold(t)
	applog.Event("eda", "sending to session %s about %s", cur.ID, e.file.Filename)

	b := e.backend
	req := api.EDAChatRequest{
		Message:   text,
		Filename:  e.file.Filename,
		SessionID: cur.ID,
		History:   history,
	}
	return Update{
		InputConsumed: true,
		Next: func(ctx context.Context) Result {
			resp, err := b.EDAChat(ctx, req)
			return edaAnswered{tag: t, resp: resp, err: err}
		},
	}, nil
}

func (e *Engine) applyEDA(r edaAnswered) Update {
	e.release(r.tag)
	if !e.matches(r.tag) {
		applog.Event("eda", "discarded reply for session %s", r.sessionID)
		return Update{Stale: true}
	}
	msg := errorReply(r.err)
	if r.err == nil {
		msg = edaReply(r.resp)
	} else {
		applog.Warn("eda chat failed: %v", r.err)
	}
	if err := e.log.Append(msg); err != nil {
		applog.Error("append eda reply: %v", err)
		return Update{Notice: err.Error()}
	}
	return Update{}
}

// applyUpload adopts the session a successful upload created. The
// session is always registered; it is selected only if the user is
// still where the upload started.
func (e *Engine) applyUpload(r uploaded) Update {
	e.release(r.tag)
	if r.err != nil {
		applog.Warn("%s: %v", r.stage, r.err)
		return Update{Notice: r.stage + ": " + api.Detail(r.err)}
	}
	sess := sessionFromAPI(*r.session)
	sess.Mode = ModeEDA
	e.registry.Adopt(sess, e.seq)
	if !e.matches(r.tag) {
		applog.Event("upload", "session %s created after navigation; not selected", sess.ID)
		return Update{Stale: true, Created: &sess}
	}

	e.registry.Select(sess.ID) //nolint:errcheck
	if err := e.resetLog(sess.ID, ModeEDA, r.boot.Opening); err != nil {
		applog.Error("open eda log: %v", err)
		return Update{Notice: err.Error(), Created: &sess}
	}
	fd := r.boot.File
	e.file = &fd
	e.history.pending = false
	applog.Event("upload", "%s: %s rows, %d columns, session %s",
		fd.DisplayName(), fd.RowCount, len(fd.Columns), sess.ID)
	return Update{Created: &sess}
}
