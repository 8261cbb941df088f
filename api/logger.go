// logger.go provides file-based logging for every backend exchange.
//
// Logs are written to <dir>/api.log (normally ~/.querybot/logs) once
// OpenExchangeLog has been called. Entries are recorded from resty hooks,
// so every endpoint is covered without per-method code.
package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	logMu   sync.Mutex
	logFile *os.File
)

// OpenExchangeLog starts appending exchanges to <dir>/api.log.
func OpenExchangeLog(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "api.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	return nil
}

// CloseExchangeLog stops exchange logging.
func CloseExchangeLog() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func logWrite(s string) {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		logFile.WriteString(s) //nolint:errcheck
	}
}

// ─────────────────────────────────────────────────────────────────
// resty hooks
// ─────────────────────────────────────────────────────────────────

func logResponse(_ *resty.Client, resp *resty.Response) error {
	ts := time.Now().Format("2006-01-02 15:04:05")
	req := resp.Request
	body := string(resp.Body())
	if ct := resp.Header().Get("Content-Type"); ct != "" && !textual(ct) {
		body = fmt.Sprintf("(%d bytes of %s)", len(resp.Body()), ct)
	}
	if len(body) > 2000 {
		body = body[:2000] + "\n…(truncated)"
	}
	logWrite(fmt.Sprintf(
		"[EXCHANGE] %s  |  %s %s  |  %d  |  %s\n"+
			"────────────────────────────────────────\n"+
			"Request:\n%s\n"+
			"────────────────────────────────────────\n"+
			"Response:\n%s\n"+
			"════════════════════════════════════════════════════════════════\n\n",
		ts, req.Method, req.URL, resp.StatusCode(), resp.Time().Round(time.Millisecond),
		describeBody(req.Body), body,
	))
	return nil
}

func logFailure(req *resty.Request, err error) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	logWrite(fmt.Sprintf(
		"[FAILURE]  %s  |  %s %s\n"+
			"────────────────────────────────────────\n"+
			"Error: %v\n"+
			"════════════════════════════════════════════════════════════════\n\n",
		ts, req.Method, req.URL, err,
	))
}

func textual(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") || strings.Contains(contentType, "json")
}

func describeBody(body interface{}) string {
	switch b := body.(type) {
	case nil:
		return "(none)"
	case ChatRequest:
		return fmt.Sprintf("chatId=%s message=%q", b.ChatID, b.Message)
	case EDAChatRequest:
		return fmt.Sprintf("session_id=%s filename=%s history=%d message=%q",
			b.SessionID, b.Filename, len(b.History), b.Message)
	case CreateSessionRequest:
		return fmt.Sprintf("title=%q session_type=%s filename=%s", b.Title, b.SessionType, b.Filename)
	default:
		return fmt.Sprintf("%T", body)
	}
}
