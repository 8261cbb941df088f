package conversation

import "fmt"

// Log is the message history of exactly one session, or empty and
// unbound when no session is selected. Reset replaces it wholesale;
// Append is the only other mutation.
type Log struct {
	sessionID string
	mode      Mode
	msgs      []Message
}

// Reset binds the log to a session and replaces its contents. Nothing
// changes if any message is illegal for mode.
func (l *Log) Reset(sessionID string, mode Mode, msgs []Message) error {
	for i, m := range msgs {
		if err := check(mode, m); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	l.sessionID = sessionID
	l.mode = mode
	l.msgs = make([]Message, 0, len(msgs))
	for _, m := range msgs {
		l.msgs = append(l.msgs, m.clone())
	}
	return nil
}

// Clear unbinds the log and empties it.
func (l *Log) Clear() {
	*l = Log{}
}

// Append adds m at the end.
func (l *Log) Append(m Message) error {
	if l.sessionID == "" {
		return ErrNoSession
	}
	if err := check(l.mode, m); err != nil {
		return err
	}
	l.msgs = append(l.msgs, m.clone())
	return nil
}

func check(mode Mode, m Message) error {
	if !m.valid() || !mode.Allows(m.Kind) {
		return fmt.Errorf("%w: %s/%s in %s mode", ErrIllegalMessage, m.Role, m.Kind, mode)
	}
	return nil
}

// SessionID is the bound session, or "" when unbound.
func (l *Log) SessionID() string { return l.sessionID }

// Mode is the mode of the bound session.
func (l *Log) Mode() Mode { return l.mode }

func (l *Log) Len() int { return len(l.msgs) }

// Messages returns a copy of the log.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.clone()
	}
	return out
}
