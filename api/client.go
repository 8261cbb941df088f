// Package api is the HTTP client for the analysis backend.
//
// Design decisions:
//   - One method per endpoint; all accept a context so callers can cancel.
//   - Requests go through resty: JSON bodies, multipart upload, path and
//     query parameters, and hooks for the exchange log.
//   - Non-2xx responses become *Error carrying the server's detail text;
//     requests that never got a response become *TransportError.
//   - No retries and no auth headers.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to one backend.
type Client struct {
	http    *resty.Client
	baseURL string
}

// NewClient creates a client for baseURL. A zero timeout leaves requests
// bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	rc := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		rc.SetTimeout(timeout)
	}
	rc.OnAfterResponse(logResponse)
	rc.OnError(logFailure)

	return &Client{http: rc, baseURL: baseURL}
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL turns a backend-relative reference, such as a plot path,
// into an absolute URL. Absolute URLs are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.baseURL + "/" + strings.TrimLeft(ref, "/")
}

// ListSessions fetches all sessions, most recent first.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out struct {
		Sessions []Session `json:"sessions"`
	}
	err := c.execute(ctx, c.http.R().SetResult(&out), http.MethodGet, PathSessions)
	if err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// CreateSession creates a session and returns it with its server-assigned id.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	var out Session
	err := c.execute(ctx, c.http.R().SetBody(req).SetResult(&out), http.MethodPost, PathSessions)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("create session: response carried no session id")
	}
	// The create endpoint echoes only id and title.
	if out.Title == "" {
		out.Title = req.Title
	}
	if out.SessionType == "" {
		out.SessionType = req.SessionType
	}
	if out.Filename == "" {
		out.Filename = req.Filename
	}
	return &out, nil
}

// SessionMessages fetches the stored history of one session.
func (c *Client) SessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	req := c.http.R().SetPathParam("id", sessionID).SetResult(&out)
	if err := c.execute(ctx, req, http.MethodGet, PathSessionMessages); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// ClearSessions deletes every session and its messages.
func (c *Client) ClearSessions(ctx context.Context) error {
	return c.execute(ctx, c.http.R(), http.MethodDelete, PathSessions)
}

// Chat asks the SQL agent a question within a session.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	err := c.execute(ctx, c.http.R().SetBody(req).SetResult(&out), http.MethodPost, PathChat)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadCSV stores a CSV file and returns its descriptor.
func (c *Client) UploadCSV(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	var out UploadResponse
	req := c.http.R().SetFileReader("file", filename, r).SetResult(&out)
	if err := c.execute(ctx, req, http.MethodPost, PathUploadCSV); err != nil {
		return nil, err
	}
	return &out, nil
}

// EDAChat asks the analysis agent a question about an uploaded file.
func (c *Client) EDAChat(ctx context.Context, req EDAChatRequest) (*EDAResponse, error) {
	if req.History == nil {
		req.History = []HistoryEntry{}
	}
	var out EDAResponse
	err := c.execute(ctx, c.http.R().SetBody(req).SetResult(&out), http.MethodPost, PathEDAChat)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Schema lists tables and columns of dbURI, or of the backend's default
// database when dbURI is empty.
func (c *Client) Schema(ctx context.Context, dbURI string) (*Schema, error) {
	var out Schema
	req := c.http.R().SetResult(&out)
	if dbURI != "" {
		req.SetQueryParam("db_uri", dbURI)
	}
	if err := c.execute(ctx, req, http.MethodGet, PathSchema); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download fetches a file the backend serves, such as a plot image, and
// copies it to w. ref is a backend path or an absolute URL.
func (c *Client) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	req := c.http.R().SetHeader("Accept", "*/*")
	resp, err := c.send(ctx, req, http.MethodGet, c.ResolveURL(ref))
	if err != nil {
		return 0, err
	}
	n, err := w.Write(resp.Body())
	return int64(n), err
}

// execute runs req and sorts failures into the error taxonomy.
func (c *Client) execute(ctx context.Context, req *resty.Request, method, path string) error {
	_, err := c.send(ctx, req, method, path)
	return err
}

func (c *Client) send(ctx context.Context, req *resty.Request, method, path string) (*resty.Response, error) {
	op := method + " " + path
	resp, err := req.SetContext(ctx).Execute(method, path)
	if resp != nil && resp.StatusCode() != 0 {
		if resp.IsError() {
			return nil, newError(resp.StatusCode(), resp.Body())
		}
		if err != nil {
			return nil, fmt.Errorf("%s: decode response: %w", op, err)
		}
		return resp, nil
	}
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}
