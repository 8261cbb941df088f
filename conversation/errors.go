package conversation

import "errors"

// Precondition errors. Actions that return one of these have changed
// nothing and issued no request.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrBusy           = errors.New("a request is already in flight")
	ErrNoFile         = errors.New("no file loaded; upload a CSV first")
	ErrNoSession      = errors.New("no session selected")
	ErrModeMismatch   = errors.New("selected session belongs to the other mode")
	ErrUnknownSession = errors.New("unknown session")
	ErrNotConfirmed   = errors.New("clearing history needs confirmation")
	ErrIllegalMessage = errors.New("message kind not allowed in this mode")
)
