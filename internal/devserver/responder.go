package devserver

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// GreetingText is the bot message returned when a session is created.
const GreetingText = "Hello! How can I help you today?"

// EscalationText replaces any reply that trips an escalation phrase.
const EscalationText = "Your query has been escalated to a human agent for assistance."

// FallbackText is the reply when no rule matches. It contains escalation
// phrases, so unmatched queries are escalated.
const FallbackText = "I'm not sure I understand. Could you please clarify your question?"

// EscalationPhrases are matched case-insensitively against every reply.
var EscalationPhrases = []string{
	"i'm unable to answer",
	"i don't know",
	"please contact support",
	"escalate",
	"sorry, i cannot assist with that",
	"not sure",
	"could you please clarify",
	"unable to help",
	"can't help",
	"do not have that information",
}

// Reply is one generated answer.
type Reply struct {
	Text        string
	Suggestions []string
	Escalated   bool
}

// Responder produces the bot side of a conversation.
type Responder interface {
	Greeting(ctx context.Context) (string, error)
	Respond(ctx context.Context, query string, history []string) (Reply, error)
	Summarize(ctx context.Context, history []string) (string, error)
	NextActions(ctx context.Context, lastReply string) ([]string, error)
}

// Rule maps query keywords to a canned answer.
type Rule struct {
	Keywords    []string
	Answer      string
	Suggestions []string
}

// ScriptedResponder answers from keyword rules. It has no model behind it.
type ScriptedResponder struct {
	Rules []Rule
}

// DefaultRules is a small support script.
var DefaultRules = []Rule{
	{
		Keywords: []string{"password", "login", "sign in"},
		Answer:   "You can reset your password from the sign-in page by choosing \"Forgot password\". A reset link is sent to your registered email.",
		Suggestions: []string{
			"How do I **reset my password**?",
			"I did not receive the **reset email**",
		},
	},
	{
		Keywords: []string{"refund", "money back", "return"},
		Answer:   "Refunds are processed within 5-7 business days after we receive the returned item.",
		Suggestions: []string{
			"What is the **refund policy**?",
			"How do I **track my return**?",
		},
	},
	{
		Keywords: []string{"order", "shipping", "delivery", "track"},
		Answer:   "You can track your order from the Orders page. Standard shipping takes 3-5 business days.",
		Suggestions: []string{
			"**Track my order**",
			"Change my **delivery address**",
		},
	},
	{
		Keywords: []string{"hello", "hi", "hey"},
		Answer:   "Hi there! Ask me about orders, refunds or your account.",
		Suggestions: []string{
			"I have a question about my **order**",
			"I need help with my **account**",
		},
	},
}

// NewScriptedResponder returns a responder with rules, or DefaultRules when
// none are given.
func NewScriptedResponder(rules ...Rule) *ScriptedResponder {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &ScriptedResponder{Rules: rules}
}

// Greeting implements Responder.
func (r *ScriptedResponder) Greeting(context.Context) (string, error) {
	return GreetingText, nil
}

// Respond implements Responder.
func (r *ScriptedResponder) Respond(_ context.Context, query string, _ []string) (Reply, error) {
	reply := Reply{Text: FallbackText}
	if rule, ok := r.match(query); ok {
		reply = Reply{Text: rule.Answer, Suggestions: append([]string(nil), rule.Suggestions...)}
	}

	if IsUnsatisfactory(reply.Text) {
		return Reply{Text: EscalationText, Escalated: true}, nil
	}
	return reply, nil
}

// Summarize implements Responder. The digest lists each user question in
// order with a count of exchanges.
func (r *ScriptedResponder) Summarize(_ context.Context, history []string) (string, error) {
	if len(history) == 0 {
		return "No conversation yet.", nil
	}

	var questions []string
	for i := 0; i < len(history); i += 2 {
		questions = append(questions, "- "+history[i])
	}
	turns := (len(history) + 1) / 2
	return fmt.Sprintf("The customer asked %d question(s):\n%s", turns, strings.Join(questions, "\n")), nil
}

// NextActions implements Responder. Suggestions come from the rule whose
// answer produced the last reply.
func (r *ScriptedResponder) NextActions(_ context.Context, lastReply string) ([]string, error) {
	for _, rule := range r.Rules {
		if rule.Answer == lastReply {
			return append([]string(nil), rule.Suggestions...), nil
		}
	}
	return []string{
		"Ask about your **order status**",
		"Ask about our **refund policy**",
		"**Contact a human agent**",
	}, nil
}

func (r *ScriptedResponder) match(query string) (Rule, bool) {
	words := strings.FieldsFunc(strings.ToLower(query), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '\''
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, rule := range r.Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(padded, " "+kw+" ") {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

// IsUnsatisfactory reports whether text contains an escalation phrase.
func IsUnsatisfactory(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range EscalationPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
