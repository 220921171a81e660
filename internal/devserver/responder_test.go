package devserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedResponderRespond(t *testing.T) {
	r := NewScriptedResponder()
	ctx := context.Background()

	tests := []struct {
		name      string
		query     string
		escalated bool
		contains  string
	}{
		{name: "password rule", query: "I forgot my password!", contains: "reset your password"},
		{name: "multi word keyword", query: "how do I sign in", contains: "reset your password"},
		{name: "refund rule", query: "Can I get a refund?", contains: "Refunds are processed"},
		{name: "whole words only", query: "history of high prices", escalated: true, contains: EscalationText},
		{name: "no match escalates", query: "what is the meaning of life", escalated: true, contains: EscalationText},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reply, err := r.Respond(ctx, tc.query, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.escalated, reply.Escalated)
			assert.Contains(t, reply.Text, tc.contains)
			if tc.escalated {
				assert.Empty(t, reply.Suggestions)
			} else {
				assert.NotEmpty(t, reply.Suggestions)
			}
		})
	}
}

func TestIsUnsatisfactory(t *testing.T) {
	assert.True(t, IsUnsatisfactory("Sorry, I Don't Know that."))
	assert.True(t, IsUnsatisfactory("Please contact support."))
	assert.False(t, IsUnsatisfactory("Your order ships tomorrow."))
}

func TestScriptedResponderSummarize(t *testing.T) {
	r := NewScriptedResponder()
	ctx := context.Background()

	got, err := r.Summarize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "No conversation yet.", got)

	got, err = r.Summarize(ctx, []string{"where is my order", "a1", "refund please", "a2"})
	require.NoError(t, err)
	assert.Equal(t, "The customer asked 2 question(s):\n- where is my order\n- refund please", got)
}

func TestScriptedResponderNextActions(t *testing.T) {
	r := NewScriptedResponder()
	ctx := context.Background()

	got, err := r.NextActions(ctx, DefaultRules[1].Answer)
	require.NoError(t, err)
	assert.Equal(t, DefaultRules[1].Suggestions, got)

	got, err = r.NextActions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
