package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// DefaultTimeout is the absolute per-request timeout.
const DefaultTimeout = 500 * time.Second

const maxBodyBytes = 4 << 20

// Client talks to the support backend. Every call carries an absolute
// timeout; expiry surfaces as a *TransportError with Timeout set.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l.With().Str("component", "backend").Logger()
	}
}

// NewClient creates a Client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Query submits one user query. An empty SessionID is omitted from the body.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, "query", http.MethodPost, "/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchSession loads one session and its history. A body without
// query_history is reported as ErrMalformed.
func (c *Client) FetchSession(ctx context.Context, id string) (*Session, error) {
	var wire struct {
		SessionID    string          `json:"session_id"`
		QueryHistory *[]HistoryEntry `json:"query_history"`
		CreatedAt    Timestamp       `json:"created_at"`
	}
	if err := c.do(ctx, "fetch session", http.MethodGet, "/session/"+url.PathEscape(id), nil, &wire); err != nil {
		return nil, err
	}
	if wire.QueryHistory == nil {
		return nil, errors.Wrapf(ErrMalformed, "session %s: missing query_history", id)
	}
	return &Session{
		SessionID:    wire.SessionID,
		QueryHistory: *wire.QueryHistory,
		CreatedAt:    wire.CreatedAt,
	}, nil
}

// ListSessions returns every session the backend still retains.
func (c *Client) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var wire []struct {
		SessionID    string            `json:"session_id"`
		CreatedAt    Timestamp         `json:"created_at"`
		QueryHistory []json.RawMessage `json:"query_history"`
	}
	if err := c.do(ctx, "list sessions", http.MethodGet, "/sessions", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]SessionSummary, 0, len(wire))
	for _, w := range wire {
		out = append(out, SessionSummary{
			SessionID:  w.SessionID,
			CreatedAt:  w.CreatedAt.Time,
			HistoryLen: len(w.QueryHistory),
		})
	}
	return out, nil
}

// CreateSession asks the backend for a new session and its greeting.
func (c *Client) CreateSession(ctx context.Context) (*Greeting, error) {
	var resp CreateSessionResponse
	if err := c.do(ctx, "create session", http.MethodPost, "/session/create", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.Wrap(ErrRejected, resp.Error)
	}
	if resp.SessionID == "" {
		return nil, errors.Wrap(ErrMalformed, "create session: missing session_id")
	}
	return &Greeting{SessionID: resp.SessionID, BotMessage: resp.BotMessage}, nil
}

// Summarize requests a summary of a session.
func (c *Client) Summarize(ctx context.Context, id string) (string, error) {
	var resp SummaryResponse
	if err := c.do(ctx, "summarize", http.MethodPost, "/summarize/"+url.PathEscape(id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// NextActions requests next-action suggestions for a session.
func (c *Client) NextActions(ctx context.Context, id string) ([]string, error) {
	var resp NextActionsResponse
	if err := c.do(ctx, "next actions", http.MethodPost, "/next-actions/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.NextActions, nil
}

// do performs one JSON round-trip under the client's absolute timeout.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s: encode request", op)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		terr := transportError(ctx, op, err)
		c.logger.Warn().Err(terr).Str("op", op).Dur("elapsed", time.Since(start)).Msg("backend call failed")
		return terr
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(ctx, op, err)
	}

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Code: resp.StatusCode, Message: extractMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(ErrMalformed, "%s: %v", op, err)
	}
	return nil
}
