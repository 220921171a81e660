package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportbot-dev/supportbot/internal/session"
)

func TestFallbackRunnerPointsToLineCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFallbackRunner(&buf).Run())

	out := buf.String()
	assert.Contains(t, out, "Non-TTY environment detected.")
	assert.Contains(t, out, "supportbot chat [id]")
}

func TestViewFor(t *testing.T) {
	assert.Equal(t, StateSessions, ViewFor(session.Listing))
	assert.Equal(t, StateChat, ViewFor(session.Active))
}

func TestRenderSuggestionDropsMarkers(t *testing.T) {
	out := RenderSuggestion("Track my **order** now")
	assert.NotContains(t, out, "**")
	assert.Contains(t, out, "Track my ")
	assert.Contains(t, out, "order")
	assert.Contains(t, out, " now")
}

func TestRenderSuggestionUnbalancedMarker(t *testing.T) {
	out := RenderSuggestion("a **b")
	assert.Contains(t, out, "a **b")
}
