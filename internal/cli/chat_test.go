package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/devserver"
	"github.com/supportbot-dev/supportbot/internal/session"
	"github.com/supportbot-dev/supportbot/internal/testutil"
)

func newTestCoordinator(t *testing.T) (*session.Coordinator, *backend.Client) {
	t.Helper()
	client := testutil.Client(t)
	return session.New(client), client
}

func runLines(t *testing.T, coord *session.Coordinator, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	lc := newLineChat(context.Background(), coord, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, lc.Run())
	return out.String()
}

func TestLineChatNewSessionAndReply(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	out := runLines(t, coord,
		"/new",
		"I forgot my password",
		"/summary",
		"/quit",
	)

	assert.Contains(t, out, devserver.GreetingText)
	assert.Contains(t, out, "Suggestions:")
	assert.Contains(t, out, "Summary:")
	assert.Contains(t, out, "I forgot my password")
	assert.Equal(t, session.Active, coord.State())
}

func TestLineChatUseSuggestionThenSend(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	out := runLines(t, coord,
		"/new",
		"where is my order",
		"/use 1",
		"",
	)

	require.Equal(t, session.Active, coord.State())
	eng := coord.Engine()
	msgs := eng.Messages()
	require.Len(t, msgs, 5)
	assert.Contains(t, out, "Input: **Track my order**")
	assert.Equal(t, conversation.RoleUser, msgs[3].Role)
	assert.Equal(t, "**Track my order**", msgs[3].Text)
	assert.Equal(t, conversation.RoleBot, msgs[4].Role)
}

func TestLineChatUseUnknownSuggestion(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	out := runLines(t, coord, "/new", "/use 7")
	assert.Contains(t, out, "No such suggestion.")
}

func TestLineChatBackAndReopen(t *testing.T) {
	coord, client := newTestCoordinator(t)

	greeting, err := client.CreateSession(context.Background())
	require.NoError(t, err)
	_, err = client.Query(context.Background(), backend.QueryRequest{Query: "refund please", SessionID: greeting.SessionID})
	require.NoError(t, err)

	out := runLines(t, coord,
		"/list",
		"/open 1",
		"/back",
	)

	assert.Contains(t, out, "  1. "+greeting.SessionID)
	assert.Contains(t, out, "2 messages")
	assert.Contains(t, out, "refund please")
	assert.Equal(t, session.Listing, coord.State())
}

func TestLineChatOpenUnknownIndex(t *testing.T) {
	coord, _ := newTestCoordinator(t)

	out := runLines(t, coord, "/open 3")
	assert.Contains(t, out, "No such session.")
	assert.Equal(t, session.Listing, coord.State())
}

func TestLineChatStartFailure(t *testing.T) {
	coord := session.New(backend.NewClient(testutil.UnreachableURL, backend.WithTimeout(time.Second)))

	out := runLines(t, coord, "/new")
	assert.Contains(t, out, "Failed to start a new session.")
	assert.Equal(t, session.Listing, coord.State())
}

func TestSplitCommand(t *testing.T) {
	cmd, arg := splitCommand("  /open   abc def ")
	assert.Equal(t, "/open", cmd)
	assert.Equal(t, "abc def", arg)

	cmd, arg = splitCommand("   ")
	assert.Empty(t, cmd)
	assert.Empty(t, arg)
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "a\n  b", indent("a\nb\n", "  "))
}
