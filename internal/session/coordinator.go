// Package session decides whether the client is browsing sessions or inside
// a conversation, and hands the active session id to the conversation engine.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/log"
)

// State is the coordinator mode.
type State int

const (
	Listing State = iota
	Active
)

func (s State) String() string {
	switch s {
	case Listing:
		return "listing"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// ListErrorText is shown when the session list cannot be fetched.
const ListErrorText = "Failed to load sessions."

var (
	// ErrNotListing is returned when a session is started or selected while
	// a conversation is already active.
	ErrNotListing = errors.New("a conversation is already active")
	// ErrEmptySessionID is returned when selecting an empty id.
	ErrEmptySessionID = errors.New("session id is empty")
)

// Backend is what the coordinator and the engines it creates need.
type Backend interface {
	conversation.Backend
	ListSessions(ctx context.Context) ([]backend.SessionSummary, error)
	CreateSession(ctx context.Context) (*backend.Greeting, error)
}

// Coordinator owns the Listing/Active state machine:
//
//	Listing --StartNewSession(ok)--> Active
//	Listing --SelectExistingSession--> Active
//	Active  --ReturnToList--> Listing
type Coordinator struct {
	mu         sync.Mutex
	backend    Backend
	logger     zerolog.Logger
	events     log.Recorder
	engineOpts []conversation.Option

	state    State
	activeID string
	engine   *conversation.Engine
	sessions []backend.SessionSummary
	listErr  string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a logger, which is also handed to engines.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l.With().Str("component", "session").Logger()
		c.engineOpts = append(c.engineOpts, conversation.WithLogger(l))
	}
}

// WithEvents attaches an event trail, which is also handed to engines.
func WithEvents(r log.Recorder) Option {
	return func(c *Coordinator) {
		if r == nil {
			return
		}
		c.events = r
		c.engineOpts = append(c.engineOpts, conversation.WithEvents(r))
	}
}

// New creates a coordinator in the Listing state.
func New(b Backend, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend: b,
		logger:  zerolog.Nop(),
		events:  log.Discard,
		state:   Listing,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current mode.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveSessionID returns the id of the active conversation, or "".
func (c *Coordinator) ActiveSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Engine returns the active engine, or nil while listing.
func (c *Coordinator) Engine() *conversation.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// Sessions returns the last fetched session list.
func (c *Coordinator) Sessions() []backend.SessionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]backend.SessionSummary(nil), c.sessions...)
}

// ListError returns the visible list error, or "".
func (c *Coordinator) ListError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listErr
}

// ListSessions fetches the session list. On failure the list is empty and
// ListError is set; conversation state is never touched.
func (c *Coordinator) ListSessions(ctx context.Context) ([]backend.SessionSummary, error) {
	sessions, err := c.backend.ListSessions(ctx)
	c.ApplySessions(sessions, err)
	if err != nil {
		return []backend.SessionSummary{}, err
	}
	return c.Sessions(), nil
}

// ApplySessions records the result of a list fetch performed elsewhere.
func (c *Coordinator) ApplySessions(sessions []backend.SessionSummary, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.sessions = []backend.SessionSummary{}
		c.listErr = ListErrorText
		c.logger.Warn().Err(err).Msg("list sessions failed")
		return
	}
	c.sessions = append([]backend.SessionSummary(nil), sessions...)
	c.listErr = ""
	c.record(log.Event{Event: log.EventSessionsListed, Count: len(sessions)})
}

// StartNewSession asks the backend for a new session. On success the new
// engine holds exactly one bot message, the greeting, and the coordinator
// is Active. On failure nothing changes.
func (c *Coordinator) StartNewSession(ctx context.Context) (*conversation.Engine, error) {
	if c.State() != Listing {
		return nil, ErrNotListing
	}

	start := time.Now()
	greeting, err := c.backend.CreateSession(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("create session failed")
		return nil, err
	}
	c.record(log.Event{Event: log.EventSessionStarted, SessionID: greeting.SessionID, DurationMs: time.Since(start).Milliseconds()})
	return c.ActivateGreeting(greeting)
}

// ActivateGreeting enters Active for a session created elsewhere.
func (c *Coordinator) ActivateGreeting(g *backend.Greeting) (*conversation.Engine, error) {
	if g == nil || g.SessionID == "" {
		return nil, ErrEmptySessionID
	}
	return c.activate(g.SessionID, conversation.WithGreeting(g.BotMessage))
}

// SelectExistingSession enters Active for a known id without seeding any
// message. The caller loads history through the returned engine.
func (c *Coordinator) SelectExistingSession(id string) (*conversation.Engine, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}
	eng, err := c.activate(id)
	if err != nil {
		return nil, err
	}
	c.record(log.Event{Event: log.EventSessionSelected, SessionID: id})
	return eng, nil
}

// ReturnToList leaves the conversation. The engine and everything it held
// are discarded; in-flight results for it are dropped.
func (c *Coordinator) ReturnToList() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Listing {
		return
	}
	if c.engine != nil {
		c.engine.Detach()
	}
	c.record(log.Event{Event: log.EventSessionLeft, SessionID: c.activeID})
	c.engine = nil
	c.activeID = ""
	c.state = Listing
}

func (c *Coordinator) activate(id string, extra ...conversation.Option) (*conversation.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Listing {
		return nil, ErrNotListing
	}

	var eng *conversation.Engine
	opts := append([]conversation.Option(nil), c.engineOpts...)
	opts = append(opts, conversation.WithAdoptHook(func(previous, current string) {
		c.adopt(eng, previous, current)
	}))
	opts = append(opts, extra...)

	eng = conversation.New(c.backend, id, opts...)
	c.engine = eng
	c.activeID = id
	c.state = Active
	c.logger.Info().Str("session_id", id).Msg("conversation active")
	return eng, nil
}

// adopt follows a backend-assigned id, but only for the engine that is
// still active.
func (c *Coordinator) adopt(eng *conversation.Engine, previous, current string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine != eng || c.activeID != previous {
		return
	}
	c.activeID = current
}

func (c *Coordinator) record(ev log.Event) {
	if err := c.events.Append(ev); err != nil {
		c.logger.Warn().Err(err).Str("event", ev.Event).Msg("event trail write failed")
	}
}
