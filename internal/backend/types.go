// Package backend is the HTTP/JSON client for the support assistant backend.
// This file holds the wire types shared by the client and the reference server.
package backend

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// QueryRequest is the envelope for one outgoing user query.
// It exists only for the duration of a single call.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// QueryResponse is the backend's answer to a query.
// SessionID may differ from the one sent; the client treats the returned
// value as authoritative.
type QueryResponse struct {
	Response    string   `json:"response,omitempty"`
	SessionID   string   `json:"session_id"`
	Suggestions []string `json:"suggestions,omitempty"`
	Escalated   bool     `json:"escalated,omitempty"`
}

// HistoryEntry is one stored turn. The backend emits either a raw string or
// an object with a "text" field; both decode to Text.
type HistoryEntry struct {
	Text string
}

// UnmarshalJSON accepts "hello", {"text":"hello"} and null.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		h.Text = ""
		return nil
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &h.Text)
	case '{':
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		h.Text = obj.Text
		return nil
	default:
		// Numbers and booleans are kept verbatim rather than rejected.
		h.Text = string(data)
		return nil
	}
}

// MarshalJSON always writes the plain string form.
func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Text)
}

// Timestamp decodes the backend's created_at values, which may or may not
// carry a zone offset. Unparseable values decode to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Time = time.Time{}
		return nil
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Session is a fetched session with its flat, alternating query history.
type Session struct {
	SessionID    string         `json:"session_id"`
	QueryHistory []HistoryEntry `json:"query_history"`
	CreatedAt    Timestamp      `json:"created_at"`
}

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	SessionID  string
	CreatedAt  time.Time
	HistoryLen int
}

// Greeting is the result of creating a session.
type Greeting struct {
	SessionID  string
	BotMessage string
}

// CreateSessionResponse is the wire form of session creation. Error is set
// instead of the other fields when the backend refuses.
type CreateSessionResponse struct {
	SessionID  string `json:"session_id,omitempty"`
	BotMessage string `json:"bot_message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SummaryResponse is returned by the summarize endpoint.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// NextActionsResponse is returned by the next-actions endpoint.
type NextActionsResponse struct {
	NextActions []string `json:"next_actions"`
}

// ErrorResponse is the body shape used for non-2xx answers.
type ErrorResponse struct {
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}
