package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/log"
)

type fakeBackend struct {
	mu      sync.Mutex
	queries []backend.QueryRequest
	fetches []string
	queryFn func(ctx context.Context, req backend.QueryRequest) (*backend.QueryResponse, error)

	session    *backend.Session
	sessionErr error
	summary    string
	summaryErr error
	actions    []string
	actionsErr error
}

func (f *fakeBackend) Query(ctx context.Context, req backend.QueryRequest) (*backend.QueryResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req)
	fn := f.queryFn
	f.mu.Unlock()
	if fn == nil {
		return &backend.QueryResponse{SessionID: req.SessionID, Response: "ok"}, nil
	}
	return fn(ctx, req)
}

func (f *fakeBackend) FetchSession(_ context.Context, id string) (*backend.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, id)
	return f.session, f.sessionErr
}

func (f *fakeBackend) Summarize(context.Context, string) (string, error) {
	return f.summary, f.summaryErr
}

func (f *fakeBackend) NextActions(context.Context, string) ([]string, error) {
	return f.actions, f.actionsErr
}

func (f *fakeBackend) sent() []backend.QueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.QueryRequest(nil), f.queries...)
}

type memRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (m *memRecorder) Append(ev log.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev.Event)
	}
	return out
}

func entries(texts ...string) []backend.HistoryEntry {
	out := make([]backend.HistoryEntry, len(texts))
	for i, t := range texts {
		out[i] = backend.HistoryEntry{Text: t}
	}
	return out
}

func TestSubmitAppendsUserMessageBeforeResponse(t *testing.T) {
	called := make(chan struct{})
	unblock := make(chan struct{})
	fb := &fakeBackend{
		queryFn: func(_ context.Context, req backend.QueryRequest) (*backend.QueryResponse, error) {
			close(called)
			<-unblock
			return &backend.QueryResponse{SessionID: req.SessionID, Response: "Hello there"}, nil
		},
	}
	e := New(fb, "abc")

	done := make(chan Outcome)
	go func() {
		out, err := e.Submit(context.Background(), "  hi  ")
		assert.NoError(t, err)
		done <- out
	}()

	<-called
	snap := e.Snapshot()
	require.Equal(t, []Message{{Role: RoleUser, Text: "hi"}}, snap.Messages)
	assert.True(t, snap.Loading, "loading should be true while the query is outstanding")
	assert.False(t, e.CanSend())

	close(unblock)
	out := <-done
	assert.False(t, out.Failed)
	assert.False(t, e.Loading())
	assert.Equal(t, []Message{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleBot, Text: "Hello there"},
	}, e.Messages())
}

func TestSubmitGuards(t *testing.T) {
	t.Run("empty input is a no-op", func(t *testing.T) {
		fb := &fakeBackend{}
		e := New(fb, "abc")
		_, err := e.Submit(context.Background(), "   \n\t")
		require.ErrorIs(t, err, ErrEmptyInput)
		assert.Empty(t, e.Messages())
		assert.Empty(t, fb.sent())
	})

	t.Run("no active session prompts and skips backend", func(t *testing.T) {
		fb := &fakeBackend{}
		e := New(fb, "")
		_, err := e.Submit(context.Background(), "hi")
		require.ErrorIs(t, err, ErrNoSession)
		assert.Empty(t, fb.sent())
		assert.Empty(t, e.Messages())
		assert.Equal(t, NoSessionNotice, e.Notice())
		assert.False(t, e.Loading())
	})

	t.Run("second round while loading is refused", func(t *testing.T) {
		e := New(&fakeBackend{}, "abc")
		_, err := e.Begin("one")
		require.NoError(t, err)
		_, err = e.Begin("two")
		require.ErrorIs(t, err, ErrBusy)
		assert.Len(t, e.Messages(), 1)
	})

	t.Run("detached engine refuses", func(t *testing.T) {
		e := New(&fakeBackend{}, "abc")
		e.Detach()
		_, err := e.Begin("hi")
		require.ErrorIs(t, err, ErrDetached)
	})
}

func TestSubmitFailureAppendsApology(t *testing.T) {
	fb := &fakeBackend{
		queryFn: func(context.Context, backend.QueryRequest) (*backend.QueryResponse, error) {
			return nil, &backend.StatusError{Op: "query", Code: 500, Message: "boom"}
		},
	}
	e := New(fb, "abc")

	out, err := e.Submit(context.Background(), "help")
	require.NoError(t, err)
	assert.True(t, out.Failed)
	assert.Equal(t, []Message{
		{Role: RoleUser, Text: "help"},
		{Role: RoleBot, Text: FailureText},
	}, e.Messages())
	assert.Empty(t, e.Suggestions())
	assert.False(t, e.Loading())
	assert.Len(t, fb.sent(), 1, "failures are not retried")
}

func TestSubmitTimeoutAgainstSlowBackend(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := backend.NewClient(srv.URL, backend.WithTimeout(50*time.Millisecond))
	e := New(client, "abc")

	out, err := e.Submit(context.Background(), "help")
	require.NoError(t, err)
	require.True(t, out.Failed)
	assert.True(t, backend.IsTimeout(out.Err), "expected timeout, got %v", out.Err)

	assert.Equal(t, []Message{
		{Role: RoleUser, Text: "help"},
		{Role: RoleBot, Text: "Sorry, something went wrong. Please try again."},
	}, e.Messages())
	assert.Empty(t, e.Suggestions())
	assert.False(t, e.Loading())
}

func TestSessionIDAdoption(t *testing.T) {
	fb := &fakeBackend{
		queryFn: func(_ context.Context, req backend.QueryRequest) (*backend.QueryResponse, error) {
			return &backend.QueryResponse{SessionID: "server-id", Response: "answer"}, nil
		},
	}
	var hooks [][2]string
	rec := &memRecorder{}
	e := New(fb, "local-id",
		WithAdoptHook(func(prev, cur string) { hooks = append(hooks, [2]string{prev, cur}) }),
		WithEvents(rec),
	)

	out, err := e.Submit(context.Background(), "first")
	require.NoError(t, err)
	assert.True(t, out.Adopted)
	assert.Equal(t, "local-id", out.PreviousID)
	assert.Equal(t, "server-id", e.SessionID())

	out, err = e.Submit(context.Background(), "second")
	require.NoError(t, err)
	assert.False(t, out.Adopted)

	sent := fb.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "local-id", sent[0].SessionID)
	assert.Equal(t, "server-id", sent[1].SessionID)
	assert.Equal(t, [][2]string{{"local-id", "server-id"}}, hooks)

	count := 0
	for _, name := range rec.names() {
		if name == log.EventSessionAdopted {
			count++
		}
	}
	assert.Equal(t, 1, count)

	_, err = e.LoadHistory(context.Background())
	assert.ErrorIs(t, err, ErrHistoryLoaded, "adoption does not trigger a reload")
}

func TestSuggestionLifecycle(t *testing.T) {
	responses := []*backend.QueryResponse{
		{SessionID: "abc", Response: "r1", Suggestions: []string{"Try **reset password**", "Contact billing"}},
		{SessionID: "abc", Response: "r2"},
		{SessionID: "abc", Response: "r3", Suggestions: []string{"Only this"}},
	}
	i := 0
	fb := &fakeBackend{
		queryFn: func(context.Context, backend.QueryRequest) (*backend.QueryResponse, error) {
			resp := responses[i]
			i++
			return resp, nil
		},
	}
	e := New(fb, "abc")

	_, err := e.Submit(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Try **reset password**", "Contact billing"}, e.Suggestions())

	require.NoError(t, e.SelectSuggestion(0))
	assert.Equal(t, "Try **reset password**", e.Input())
	assert.Len(t, e.Suggestions(), 2, "selecting does not clear the set")
	assert.Len(t, fb.sent(), 1, "selecting does not submit")
	assert.ErrorIs(t, e.SelectSuggestion(5), ErrNoSuggestion)

	_, err = e.Begin(e.Input())
	require.NoError(t, err)
	assert.Empty(t, e.Suggestions(), "suggestions clear at the start of a round-trip")
	assert.Empty(t, e.Input())
	e.Detach()

	e = New(fb, "abc")
	_, err = e.Submit(context.Background(), "q2")
	require.NoError(t, err)
	assert.Empty(t, e.Suggestions())

	_, err = e.Submit(context.Background(), "q3")
	require.NoError(t, err)
	assert.Equal(t, []string{"Only this"}, e.Suggestions(), "set is replaced, never merged")
}

func TestResponseWithoutTextAppendsNothing(t *testing.T) {
	fb := &fakeBackend{
		queryFn: func(_ context.Context, req backend.QueryRequest) (*backend.QueryResponse, error) {
			return &backend.QueryResponse{SessionID: req.SessionID, Escalated: true}, nil
		},
	}
	e := New(fb, "abc")
	_, err := e.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []Message{{Role: RoleUser, Text: "hello"}}, e.Messages())
	assert.True(t, e.Snapshot().Escalated)
}

func TestStaleCompletionIsDropped(t *testing.T) {
	e := New(&fakeBackend{}, "abc")
	r, err := e.Begin("hi")
	require.NoError(t, err)

	e.Detach()
	out := e.Complete(r, &backend.QueryResponse{SessionID: "other", Response: "late"}, nil)
	assert.True(t, out.Stale)
	assert.Equal(t, []Message{{Role: RoleUser, Text: "hi"}}, e.Messages())
	assert.Equal(t, "abc", e.SessionID())
}

func TestCompleteWithUnknownRoundIsDropped(t *testing.T) {
	e := New(&fakeBackend{}, "abc")
	r, err := e.Begin("hi")
	require.NoError(t, err)

	bogus := r
	bogus.ID = "not-the-round"
	out := e.Complete(bogus, &backend.QueryResponse{SessionID: "abc", Response: "x"}, nil)
	assert.True(t, out.Stale)
	assert.True(t, e.Loading(), "the real round is still outstanding")

	out = e.Complete(r, &backend.QueryResponse{SessionID: "abc", Response: "x"}, nil)
	assert.False(t, out.Stale)
	assert.False(t, e.Loading())
}

func TestLoadHistoryParity(t *testing.T) {
	fb := &fakeBackend{session: &backend.Session{SessionID: "abc", QueryHistory: entries("hi", "hello", "how are you")}}
	e := New(fb, "abc")

	out, err := e.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Failed)
	assert.Equal(t, []Message{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleBot, Text: "hello"},
		{Role: RoleUser, Text: "how are you"},
	}, e.Messages())

	_, err = e.LoadHistory(context.Background())
	assert.ErrorIs(t, err, ErrHistoryLoaded)
	assert.Len(t, fb.fetches, 1, "history loads once per session id")
}

func TestLoadHistoryFailureReplacesLog(t *testing.T) {
	for _, tc := range []struct {
		name string
		fb   *fakeBackend
	}{
		{name: "transport", fb: &fakeBackend{sessionErr: &backend.TransportError{Op: "fetch session", Err: errors.New("refused")}}},
		{name: "malformed", fb: &fakeBackend{sessionErr: backend.ErrMalformed}},
		{name: "nil session", fb: &fakeBackend{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := New(tc.fb, "abc")
			out, err := e.LoadHistory(context.Background())
			require.NoError(t, err)
			assert.True(t, out.Failed)
			assert.Equal(t, []Message{{Role: RoleBot, Text: HistoryErrorText}}, e.Messages())
			assert.False(t, e.Snapshot().HistoryLoading)
		})
	}
}

func TestGreetingSeedSkipsHistory(t *testing.T) {
	fb := &fakeBackend{}
	e := New(fb, "abc", WithGreeting("Hi! How can I help?"))
	assert.Equal(t, []Message{{Role: RoleBot, Text: "Hi! How can I help?"}}, e.Messages())

	_, err := e.LoadHistory(context.Background())
	assert.ErrorIs(t, err, ErrHistoryLoaded)
	assert.Empty(t, fb.fetches)
}

func TestHistoryBlocksSubmit(t *testing.T) {
	e := New(&fakeBackend{}, "abc")
	r, err := e.BeginHistory()
	require.NoError(t, err)

	_, err = e.Begin("hi")
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, e.Loading(), "history load does not close the query gate")

	e.CompleteHistory(r, &backend.Session{QueryHistory: entries()}, nil)
	_, err = e.Begin("hi")
	assert.NoError(t, err)
}

func TestSummarizeAndRefreshSuggestions(t *testing.T) {
	fb := &fakeBackend{summary: "User asked about billing.", actions: []string{"**Pay** invoice"}}
	e := New(fb, "abc")

	summary, err := e.Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "User asked about billing.", summary)
	assert.Equal(t, summary, e.Snapshot().Summary)
	assert.False(t, e.Loading())

	actions, err := e.RefreshSuggestions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"**Pay** invoice"}, actions)

	fb.actionsErr = errors.New("down")
	_, err = e.RefreshSuggestions(context.Background())
	require.Error(t, err)
	assert.Empty(t, e.Suggestions())
	assert.Equal(t, ActionsFailed, e.Notice())
	assert.False(t, e.Loading())

	_, err = New(fb, "").Summarize(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCompleteMeasuresDuration(t *testing.T) {
	rec := &memRecorder{}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New(&fakeBackend{}, "abc", WithEvents(rec), withClock(func() time.Time { return clock }))

	r, err := e.Begin("hi")
	require.NoError(t, err)
	clock = clock.Add(1500 * time.Millisecond)
	e.Complete(r, &backend.QueryResponse{SessionID: "abc", Response: "yo"}, nil)

	require.Len(t, rec.events, 2)
	assert.Equal(t, log.EventQuerySent, rec.events[0].Event)
	assert.Equal(t, log.EventQueryCompleted, rec.events[1].Event)
	assert.Equal(t, int64(1500), rec.events[1].DurationMs)
}
