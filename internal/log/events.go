// Package log provides diagnostic logging and the client event trail.
// This file appends JSON events to events.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventSessionsListed  = "sessions_listed"
	EventSessionStarted  = "session_started"
	EventSessionSelected = "session_selected"
	EventSessionLeft     = "session_left"
	EventSessionAdopted  = "session_adopted"
	EventHistoryLoaded   = "history_loaded"
	EventHistoryFailed   = "history_failed"
	EventQuerySent       = "query_sent"
	EventQueryCompleted  = "query_completed"
	EventQueryFailed     = "query_failed"
	EventStaleDropped    = "stale_dropped"
)

// Event is a single record in the trail. It carries identifiers, counts and
// timings only; message bodies are never written.
type Event struct {
	Time       time.Time      `json:"time"`
	Event      string         `json:"event"`
	SessionID  string         `json:"session,omitempty"`
	PreviousID string         `json:"previous_session,omitempty"`
	RoundID    string         `json:"round,omitempty"`
	Count      int            `json:"count,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Recorder accepts events. EventLog is the file-backed implementation.
type Recorder interface {
	Append(event Event) error
}

// Discard is a Recorder that drops everything.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Append(Event) error { return nil }

// EventLog writes append-only JSONL events to a file.
type EventLog struct {
	path string
	mu   sync.Mutex
}

// NewEventLog creates an EventLog writing to events.jsonl inside dir.
// Creates dir if it does not already exist. Does not truncate an existing file.
func NewEventLog(dir string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &EventLog{
		path: filepath.Join(dir, "events.jsonl"),
	}, nil
}

// Path returns the file the log writes to.
func (l *EventLog) Path() string { return l.path }

// Append writes a single Event as one JSON line.
// A zero Time is set to time.Now().UTC().
func (l *EventLog) Append(event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *EventLog) ReadAll() ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}
