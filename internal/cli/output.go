package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/tui"
)

func indent(text, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(text, "\n"), "\n", "\n"+prefix)
}

func printMessage(w io.Writer, msg conversation.Message) {
	switch msg.Role {
	case conversation.RoleUser:
		fmt.Fprintf(w, "%s %s\n", tui.UserStyle.Render("You:"), indent(msg.Text, "    "))
	default:
		fmt.Fprintf(w, "%s %s\n", tui.BotStyle.Render("Support:"), indent(msg.Text, "    "))
	}
}

func printMessages(w io.Writer, msgs []conversation.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, tui.DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range msgs {
		printMessage(w, m)
	}
}

func printSuggestions(w io.Writer, suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Fprintln(w, tui.DimStyle.Render("Suggestions:"))
	for i, s := range suggestions {
		fmt.Fprintf(w, "  %d. %s\n", i+1, tui.RenderSuggestion(s))
	}
}

// printSince prints the messages appended after the first n.
func printSince(w io.Writer, msgs []conversation.Message, n int) {
	if n > len(msgs) {
		n = len(msgs)
	}
	for _, m := range msgs[n:] {
		printMessage(w, m)
	}
}
