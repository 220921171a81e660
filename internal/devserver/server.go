package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/supportbot-dev/supportbot/internal/backend"
)

// Server is the reference backend. Routes live under /api.
type Server struct {
	store     Store
	responder Responder
	logger    zerolog.Logger
	origins   []string

	listener net.Listener
	server   *http.Server
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the session store. The default is an in-memory store
// without expiry.
func WithStore(s Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithResponder sets the responder. The default is NewScriptedResponder().
func WithResponder(r Responder) Option {
	return func(srv *Server) { srv.responder = r }
}

// WithLogger attaches a logger used for request logging.
func WithLogger(l zerolog.Logger) Option {
	return func(srv *Server) { srv.logger = l.With().Str("component", "devserver").Logger() }
}

// WithCORS allows browser clients from the given origins.
func WithCORS(origins ...string) Option {
	return func(srv *Server) { srv.origins = append(srv.origins, origins...) }
}

// New builds a Server without binding a listener. Use Handler with
// httptest, or Listen to serve for real.
func New(opts ...Option) *Server {
	s := &Server{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewMemoryStore(0)
	}
	if s.responder == nil {
		s.responder = NewScriptedResponder()
	}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Listen binds addr. An empty addr picks a free port on localhost.
func (s *Server) Listen(addr string) error {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "devserver: binding listener")
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	return nil
}

// Addr returns the address the server is listening on (e.g. "127.0.0.1:8000").
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	if s.server == nil {
		return errors.New("devserver: Listen was not called")
	}
	s.logger.Info().Str("addr", s.Addr()).Msg("serving")
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Post("/query", s.handleQuery)
		api.Get("/sessions", s.handleListSessions)
		api.Post("/session/create", s.handleCreateSession)
		api.Get("/session/{id}", s.handleGetSession)
		api.Get("/session/{id}/", s.handleGetSession)
		api.Post("/summarize/{id}", s.handleSummarize)
		api.Post("/next-actions/{id}", s.handleNextActions)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// --- Wire types ---

type sessionBody struct {
	SessionID    string    `json:"session_id"`
	QueryHistory []string  `json:"query_history"`
	CreatedAt    time.Time `json:"created_at"`
}

func toSessionBody(sess *Session) sessionBody {
	history := sess.History
	if history == nil {
		history = []string{}
	}
	return sessionBody{SessionID: sess.ID, QueryHistory: history, CreatedAt: sess.CreatedAt}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req backend.QueryRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := r.Context()
	sess, err := s.sessionOrNew(ctx, req.SessionID)
	if err != nil {
		s.logger.Error().Err(err).Msg("query: session")
		writeError(w, http.StatusInternalServerError, "could not open session")
		return
	}

	reply, err := s.responder.Respond(ctx, req.Query, sess.History)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("query: respond")
		writeError(w, http.StatusInternalServerError, "could not generate a response")
		return
	}
	if err := s.store.Append(ctx, sess.ID, req.Query, reply.Text); err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("query: append")
		writeError(w, http.StatusInternalServerError, "could not store conversation")
		return
	}

	writeJSON(w, http.StatusOK, backend.QueryResponse{
		Response:    reply.Text,
		SessionID:   sess.ID,
		Suggestions: reply.Suggestions,
		Escalated:   reply.Escalated,
	})
}

// sessionOrNew returns the session for id, or a fresh one when id is empty,
// unknown or expired.
func (s *Server) sessionOrNew(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		sess, err := s.store.Get(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return s.store.Create(ctx)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list sessions")
		writeError(w, http.StatusInternalServerError, "could not list sessions")
		return
	}
	out := make([]sessionBody, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionBody(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.store.Create(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("create session")
		writeJSON(w, http.StatusInternalServerError, backend.CreateSessionResponse{Error: "could not create session"})
		return
	}
	greeting, err := s.responder.Greeting(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("create session: greeting")
		writeJSON(w, http.StatusInternalServerError, backend.CreateSessionResponse{Error: "could not greet"})
		return
	}
	writeJSON(w, http.StatusOK, backend.CreateSessionResponse{SessionID: sess.ID, BotMessage: greeting})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionBody(sess))
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	summary, err := s.responder.Summarize(r.Context(), sess.History)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("summarize")
		writeError(w, http.StatusInternalServerError, "could not summarize")
		return
	}
	writeJSON(w, http.StatusOK, backend.SummaryResponse{Summary: summary})
}

func (s *Server) handleNextActions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var last string
	if n := len(sess.History); n > 0 && n%2 == 0 {
		last = sess.History[n-1]
	}
	actions, err := s.responder.NextActions(r.Context(), last)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sess.ID).Msg("next actions")
		writeError(w, http.StatusInternalServerError, "could not suggest next actions")
		return
	}
	if actions == nil {
		actions = []string{}
	}
	writeJSON(w, http.StatusOK, backend.NextActionsResponse{NextActions: actions})
}

// lookup resolves the {id} URL parameter, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "id")
	sess, err := s.store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, backend.ErrorResponse{Detail: "Session not found"})
		return nil, false
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("lookup session")
		writeError(w, http.StatusInternalServerError, "could not load session")
		return nil, false
	}
	return sess, true
}

// --- JSON helpers ---

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, backend.ErrorResponse{Error: msg})
}
