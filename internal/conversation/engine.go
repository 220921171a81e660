// Package conversation owns the message log and suggestion set of one active
// session and drives its request/response cycle against the backend.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/log"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one entry in the conversation log.
type Message struct {
	Role Role
	Text string
}

// User-visible texts produced by the engine itself.
const (
	FailureText      = "Sorry, something went wrong. Please try again."
	HistoryErrorText = "Failed to load conversation history."
	NoSessionNotice  = "Please select or start a session first."
	SummaryFailed    = "Could not fetch a summary. Please try again."
	ActionsFailed    = "Could not fetch suggestions. Please try again."
)

var (
	// ErrEmptyInput is returned when the trimmed input is empty.
	ErrEmptyInput = errors.New("empty message")
	// ErrNoSession is returned when no session is active.
	ErrNoSession = errors.New("no active session")
	// ErrBusy is returned while another round-trip is outstanding.
	ErrBusy = errors.New("a request is already in flight")
	// ErrDetached is returned once the engine has been discarded.
	ErrDetached = errors.New("conversation closed")
	// ErrHistoryLoaded is returned when history for the current id was already loaded.
	ErrHistoryLoaded = errors.New("history already loaded")
	// ErrNoSuggestion is returned for an out-of-range suggestion index.
	ErrNoSuggestion = errors.New("no such suggestion")
)

// Backend is the subset of the backend client the engine needs.
type Backend interface {
	Query(ctx context.Context, req backend.QueryRequest) (*backend.QueryResponse, error)
	FetchSession(ctx context.Context, id string) (*backend.Session, error)
	Summarize(ctx context.Context, id string) (string, error)
	NextActions(ctx context.Context, id string) ([]string, error)
}

// RoundKind distinguishes the round-trips the engine issues.
type RoundKind int

const (
	RoundQuery RoundKind = iota
	RoundHistory
	RoundSummary
	RoundSuggestions
)

func (k RoundKind) String() string {
	switch k {
	case RoundQuery:
		return "query"
	case RoundHistory:
		return "history"
	case RoundSummary:
		return "summary"
	case RoundSuggestions:
		return "suggestions"
	default:
		return "unknown"
	}
}

// Round correlates one outstanding request with the state it was issued
// against. A completion whose round no longer matches is dropped.
type Round struct {
	ID        string
	Kind      RoundKind
	SessionID string
	Query     string
	StartedAt time.Time
}

// Outcome reports what a completion did to the engine.
type Outcome struct {
	Stale      bool
	Failed     bool
	Err        error
	Adopted    bool
	PreviousID string
	SessionID  string
}

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	SessionID      string
	Messages       []Message
	Suggestions    []string
	Input          string
	Loading        bool
	HistoryLoading bool
	Notice         string
	Summary        string
	Escalated      bool
}

// Engine holds the state of exactly one conversation. All methods are safe
// for concurrent use; at most one round-trip is outstanding at a time.
type Engine struct {
	mu      sync.Mutex
	backend Backend
	logger  zerolog.Logger
	events  log.Recorder
	onAdopt func(previous, current string)
	now     func() time.Time

	sessionID      string
	loadedFor      string
	messages       []Message
	suggestions    []string
	input          string
	loading        bool
	historyLoading bool
	pending        string
	notice         string
	summary        string
	escalated      bool
	detached       bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l.With().Str("component", "conversation").Logger()
	}
}

// WithEvents attaches an event trail.
func WithEvents(r log.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.events = r
		}
	}
}

// WithAdoptHook registers fn to be called, outside the engine lock, when the
// backend reassigns the session id.
func WithAdoptHook(fn func(previous, current string)) Option {
	return func(e *Engine) { e.onAdopt = fn }
}

// WithGreeting seeds the log with one bot message. A seeded conversation is
// brand new, so it counts as already loaded.
func WithGreeting(text string) Option {
	return func(e *Engine) {
		e.messages = append(e.messages, Message{Role: RoleBot, Text: text})
		e.loadedFor = e.sessionID
	}
}

func withClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine for sessionID, which may be empty.
func New(b Backend, sessionID string, opts ...Option) *Engine {
	e := &Engine{
		backend:   b,
		logger:    zerolog.Nop(),
		events:    log.Discard,
		now:       time.Now,
		sessionID: sessionID,
		messages:  make([]Message, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SessionID returns the current session id.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Messages returns a copy of the log.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.messages...)
}

// Suggestions returns a copy of the suggestion set.
func (e *Engine) Suggestions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.suggestions...)
}

// Loading reports whether a round-trip is outstanding.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Notice returns the last user-facing notice, if any.
func (e *Engine) Notice() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notice
}

// Escalated reports whether the last answer was handed to a human agent.
func (e *Engine) Escalated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escalated
}

// Summary returns the last fetched summary.
func (e *Engine) Summary() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Input returns the pending input text.
func (e *Engine) Input() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.input
}

// SetInput replaces the pending input text.
func (e *Engine) SetInput(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.input = text
}

// CanSend reports whether the send affordance should be enabled.
func (e *Engine) CanSend() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.detached && !e.loading && !e.historyLoading && strings.TrimSpace(e.input) != ""
}

// Snapshot returns a copy of the full state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		SessionID:      e.sessionID,
		Messages:       append([]Message(nil), e.messages...),
		Suggestions:    append([]string(nil), e.suggestions...),
		Input:          e.input,
		Loading:        e.loading,
		HistoryLoading: e.historyLoading,
		Notice:         e.notice,
		Summary:        e.summary,
		Escalated:      e.escalated,
	}
}

// Detach discards the engine. Completions arriving afterwards are dropped.
func (e *Engine) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detached = true
	e.loading = false
	e.historyLoading = false
	e.pending = ""
}

// SelectSuggestion copies suggestion i into the pending input. It neither
// submits nor clears the suggestion set.
func (e *Engine) SelectSuggestion(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.suggestions) {
		return ErrNoSuggestion
	}
	e.input = e.suggestions[i]
	return nil
}

// SelectSuggestionText copies text into the pending input.
func (e *Engine) SelectSuggestionText(text string) {
	e.SetInput(text)
}

// Begin starts a query round-trip: the trimmed text is appended as a user
// message before any network call, input and suggestions are cleared and the
// loading gate is closed.
func (e *Engine) Begin(text string) (Round, error) {
	trimmed := strings.TrimSpace(text)

	e.mu.Lock()
	defer e.mu.Unlock()

	if trimmed == "" {
		return Round{}, ErrEmptyInput
	}
	if e.detached {
		return Round{}, ErrDetached
	}
	if e.sessionID == "" {
		e.notice = NoSessionNotice
		return Round{}, ErrNoSession
	}
	if e.loading || e.historyLoading {
		return Round{}, ErrBusy
	}

	e.messages = append(e.messages, Message{Role: RoleUser, Text: trimmed})
	e.input = ""
	e.suggestions = nil
	e.notice = ""
	e.escalated = false

	r := e.openRound(RoundQuery)
	r.Query = trimmed
	e.record(log.Event{Event: log.EventQuerySent, SessionID: r.SessionID, RoundID: r.ID})
	return r, nil
}

// Complete reconciles a query round with the backend's answer.
func (e *Engine) Complete(r Round, resp *backend.QueryResponse, err error) Outcome {
	e.mu.Lock()
	if e.isStale(r) {
		e.dropStale(r)
		e.mu.Unlock()
		return Outcome{Stale: true, SessionID: r.SessionID}
	}
	e.closeRound()
	elapsed := e.now().Sub(r.StartedAt)

	if err == nil && resp == nil {
		err = backend.ErrMalformed
	}
	if err != nil {
		e.messages = append(e.messages, Message{Role: RoleBot, Text: FailureText})
		e.record(log.Event{
			Event:      log.EventQueryFailed,
			SessionID:  e.sessionID,
			RoundID:    r.ID,
			Error:      err.Error(),
			DurationMs: elapsed.Milliseconds(),
		})
		e.logger.Warn().Err(err).Str("session_id", e.sessionID).Str("round", r.ID).Msg("query failed")
		out := Outcome{Failed: true, Err: err, SessionID: e.sessionID}
		e.mu.Unlock()
		return out
	}

	out := Outcome{SessionID: e.sessionID}
	var hook func(previous, current string)
	if resp.SessionID != "" && resp.SessionID != e.sessionID {
		out.Adopted = true
		out.PreviousID = e.sessionID
		e.sessionID = resp.SessionID
		e.loadedFor = resp.SessionID
		out.SessionID = e.sessionID
		hook = e.onAdopt
		e.record(log.Event{Event: log.EventSessionAdopted, SessionID: e.sessionID, PreviousID: out.PreviousID, RoundID: r.ID})
		e.logger.Info().Str("previous", out.PreviousID).Str("session_id", e.sessionID).Msg("adopted backend session id")
	}
	if resp.Response != "" {
		e.messages = append(e.messages, Message{Role: RoleBot, Text: resp.Response})
	}
	if len(resp.Suggestions) > 0 {
		e.suggestions = append([]string(nil), resp.Suggestions...)
	}
	e.escalated = resp.Escalated
	e.record(log.Event{
		Event:      log.EventQueryCompleted,
		SessionID:  e.sessionID,
		RoundID:    r.ID,
		Count:      len(resp.Suggestions),
		DurationMs: elapsed.Milliseconds(),
	})
	e.mu.Unlock()

	if hook != nil {
		hook(out.PreviousID, out.SessionID)
	}
	return out
}

// Submit runs one full query round-trip. Guard failures (empty input, no
// session, busy) are returned as errors; backend failures are folded into
// the log and reported through the Outcome.
func (e *Engine) Submit(ctx context.Context, text string) (Outcome, error) {
	r, err := e.Begin(text)
	if err != nil {
		return Outcome{}, err
	}
	defer e.release(r)

	resp, qerr := e.backend.Query(ctx, backend.QueryRequest{Query: r.Query, SessionID: r.SessionID})
	return e.Complete(r, resp, qerr), nil
}

// BeginHistory starts the history load for the current session id. It runs
// at most once per id.
func (e *Engine) BeginHistory() (Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.detached {
		return Round{}, ErrDetached
	}
	if e.sessionID == "" {
		return Round{}, ErrNoSession
	}
	if e.loadedFor == e.sessionID {
		return Round{}, ErrHistoryLoaded
	}
	if e.loading || e.historyLoading {
		return Round{}, ErrBusy
	}

	r := Round{ID: uuid.NewString(), Kind: RoundHistory, SessionID: e.sessionID, StartedAt: e.now()}
	e.pending = r.ID
	e.historyLoading = true
	return r, nil
}

// CompleteHistory replaces the log with the fetched history, or with a single
// error message when the fetch failed.
func (e *Engine) CompleteHistory(r Round, sess *backend.Session, err error) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isStale(r) {
		e.dropStale(r)
		return Outcome{Stale: true, SessionID: r.SessionID}
	}
	e.closeRound()
	e.loadedFor = r.SessionID

	if err == nil && sess == nil {
		err = backend.ErrMalformed
	}
	if err != nil {
		e.messages = []Message{{Role: RoleBot, Text: HistoryErrorText}}
		e.record(log.Event{Event: log.EventHistoryFailed, SessionID: r.SessionID, RoundID: r.ID, Error: err.Error()})
		e.logger.Warn().Err(err).Str("session_id", r.SessionID).Msg("history load failed")
		return Outcome{Failed: true, Err: err, SessionID: r.SessionID}
	}

	e.messages = MapHistory(sess.QueryHistory)
	e.record(log.Event{
		Event:      log.EventHistoryLoaded,
		SessionID:  r.SessionID,
		RoundID:    r.ID,
		Count:      len(e.messages),
		DurationMs: e.now().Sub(r.StartedAt).Milliseconds(),
	})
	return Outcome{SessionID: r.SessionID}
}

// LoadHistory fetches and applies the history for the current session id.
func (e *Engine) LoadHistory(ctx context.Context) (Outcome, error) {
	r, err := e.BeginHistory()
	if err != nil {
		return Outcome{}, err
	}
	defer e.release(r)

	sess, ferr := e.backend.FetchSession(ctx, r.SessionID)
	return e.CompleteHistory(r, sess, ferr), nil
}

// BeginSummary starts a summary round-trip.
func (e *Engine) BeginSummary() (Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.auxAllowed(); err != nil {
		return Round{}, err
	}
	e.summary = ""
	e.notice = ""
	return e.openRound(RoundSummary), nil
}

// CompleteSummary stores the fetched summary.
func (e *Engine) CompleteSummary(r Round, summary string, err error) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isStale(r) {
		e.dropStale(r)
		return Outcome{Stale: true, SessionID: r.SessionID}
	}
	e.closeRound()
	if err != nil {
		e.notice = SummaryFailed
		e.logger.Warn().Err(err).Str("session_id", r.SessionID).Msg("summary failed")
		return Outcome{Failed: true, Err: err, SessionID: r.SessionID}
	}
	e.summary = summary
	return Outcome{SessionID: r.SessionID}
}

// Summarize runs one summary round-trip.
func (e *Engine) Summarize(ctx context.Context) (string, error) {
	r, err := e.BeginSummary()
	if err != nil {
		return "", err
	}
	defer e.release(r)

	summary, serr := e.backend.Summarize(ctx, r.SessionID)
	if out := e.CompleteSummary(r, summary, serr); out.Failed {
		return "", out.Err
	}
	return summary, nil
}

// BeginSuggestions starts a next-actions round-trip. The current suggestion
// set is cleared.
func (e *Engine) BeginSuggestions() (Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.auxAllowed(); err != nil {
		return Round{}, err
	}
	e.suggestions = nil
	e.notice = ""
	return e.openRound(RoundSuggestions), nil
}

// CompleteSuggestions replaces the suggestion set wholesale.
func (e *Engine) CompleteSuggestions(r Round, actions []string, err error) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isStale(r) {
		e.dropStale(r)
		return Outcome{Stale: true, SessionID: r.SessionID}
	}
	e.closeRound()
	if err != nil {
		e.notice = ActionsFailed
		e.logger.Warn().Err(err).Str("session_id", r.SessionID).Msg("next actions failed")
		return Outcome{Failed: true, Err: err, SessionID: r.SessionID}
	}
	e.suggestions = append([]string(nil), actions...)
	return Outcome{SessionID: r.SessionID}
}

// RefreshSuggestions runs one next-actions round-trip.
func (e *Engine) RefreshSuggestions(ctx context.Context) ([]string, error) {
	r, err := e.BeginSuggestions()
	if err != nil {
		return nil, err
	}
	defer e.release(r)

	actions, aerr := e.backend.NextActions(ctx, r.SessionID)
	if out := e.CompleteSuggestions(r, actions, aerr); out.Failed {
		return nil, out.Err
	}
	return e.Suggestions(), nil
}

// auxAllowed checks the gate for summary and next-actions rounds.
// Callers hold e.mu.
func (e *Engine) auxAllowed() error {
	if e.detached {
		return ErrDetached
	}
	if e.sessionID == "" {
		e.notice = NoSessionNotice
		return ErrNoSession
	}
	if e.loading || e.historyLoading {
		return ErrBusy
	}
	return nil
}

// openRound closes the loading gate for a new round. Callers hold e.mu.
func (e *Engine) openRound(kind RoundKind) Round {
	r := Round{
		ID:        uuid.NewString(),
		Kind:      kind,
		SessionID: e.sessionID,
		StartedAt: e.now(),
	}
	e.pending = r.ID
	e.loading = true
	return r
}

// closeRound opens the gate again. Callers hold e.mu.
func (e *Engine) closeRound() {
	e.pending = ""
	e.loading = false
	e.historyLoading = false
}

// release guarantees the gate opens even if the backend call panicked.
func (e *Engine) release(r Round) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == r.ID {
		e.closeRound()
	}
}

// isStale reports whether r no longer belongs to this engine's state.
// Callers hold e.mu.
func (e *Engine) isStale(r Round) bool {
	return e.detached || r.ID == "" || r.ID != e.pending || r.SessionID != e.sessionID
}

func (e *Engine) dropStale(r Round) {
	e.record(log.Event{Event: log.EventStaleDropped, SessionID: r.SessionID, RoundID: r.ID, Data: map[string]any{"kind": r.Kind.String()}})
	e.logger.Debug().Str("round", r.ID).Str("kind", r.Kind.String()).Msg("dropped stale completion")
}

func (e *Engine) record(ev log.Event) {
	if err := e.events.Append(ev); err != nil {
		e.logger.Warn().Err(err).Str("event", ev.Event).Msg("event trail write failed")
	}
}
