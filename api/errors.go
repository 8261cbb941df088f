package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error is a server-reported failure: a non-2xx response, usually with
// a FastAPI-style {"detail": ...} body.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Detail)
}

// TransportError means the request never reached the backend or no
// response came back.
type TransportError struct {
	Op  string // e.g. "POST /api/chat"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Detail returns the text shown to the user for a failed request: the
// server's detail verbatim when there is one, otherwise the error text.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fmt.Sprintf("request failed with status %d", apiErr.StatusCode)
	}
	return err.Error()
}

const maxDetailBody = 200

func newError(status int, body []byte) *Error {
	return &Error{StatusCode: status, Detail: parseDetail(body)}
}

// parseDetail extracts "detail" from an error body. Validation errors
// carry a list there; it is kept as compact JSON. Non-JSON bodies are
// passed through, trimmed.
func parseDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > maxDetailBody {
			text = text[:maxDetailBody] + "..."
		}
		return text
	}
	if len(env.Detail) == 0 || string(env.Detail) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, env.Detail); err != nil {
		return string(env.Detail)
	}
	return compact.String()
}
