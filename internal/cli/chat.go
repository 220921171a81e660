// chat.go implements the "supportbot chat" command, a line-mode front end
// over the same session coordinator the TUI uses.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/session"
	"github.com/supportbot-dev/supportbot/internal/tui/views"
)

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Chat in line mode",
	Long: `Line-mode chat for terminals without full-screen support and for pipes.
With a session id the conversation opens directly; otherwise the session list
is shown. Type /help for commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

var chatNewFlag bool

func init() {
	chatCmd.Flags().BoolVar(&chatNewFlag, "new", false, "Start a new session immediately")
}

func runChat(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	lc := newLineChat(cmd.Context(), e.coordinator(), cmd.InOrStdin(), cmd.OutOrStdout())
	switch {
	case len(args) == 1:
		lc.open(args[0])
	case chatNewFlag:
		lc.start()
	default:
		lc.list()
	}
	return lc.Run()
}

const listHelp = `Commands:
  /new          start a new session
  /open <n|id>  open a listed session by number or id
  /list         reload the session list
  /quit         exit`

const chatHelp = `Commands:
  <text>        send a message
  (empty line)  send the pending input, e.g. after /use
  /use <n>      copy suggestion n into the input
  /summary      summarize the conversation
  /next         fetch suggested next steps
  /id           print the session id
  /back         return to the session list
  /quit         exit`

// lineChat drives a session.Coordinator from text lines.
type lineChat struct {
	ctx   context.Context
	coord *session.Coordinator
	in    *bufio.Scanner
	out   io.Writer
}

func newLineChat(ctx context.Context, coord *session.Coordinator, in io.Reader, out io.Writer) *lineChat {
	return &lineChat{ctx: ctx, coord: coord, in: bufio.NewScanner(in), out: out}
}

// Run reads commands until /quit or end of input.
func (lc *lineChat) Run() error {
	for {
		if lc.coord.State() == session.Active {
			fmt.Fprint(lc.out, "> ")
		} else {
			fmt.Fprint(lc.out, "sessions> ")
		}
		if !lc.in.Scan() {
			fmt.Fprintln(lc.out)
			return lc.in.Err()
		}
		if err := lc.ctx.Err(); err != nil {
			return nil
		}

		line := lc.in.Text()
		if strings.TrimSpace(line) == "/quit" {
			return nil
		}
		if lc.coord.State() == session.Active {
			lc.handleChat(line)
		} else {
			lc.handleList(line)
		}
	}
}

func (lc *lineChat) handleList(line string) {
	cmd, arg := splitCommand(line)
	switch cmd {
	case "":
	case "/new":
		lc.start()
	case "/open":
		lc.openArg(arg)
	case "/list":
		lc.list()
	default:
		fmt.Fprintln(lc.out, listHelp)
	}
}

func (lc *lineChat) handleChat(line string) {
	eng := lc.coord.Engine()
	if eng == nil {
		return
	}

	if !strings.HasPrefix(strings.TrimSpace(line), "/") {
		text := line
		if strings.TrimSpace(text) == "" {
			text = eng.Input()
		}
		lc.send(eng, text)
		return
	}

	cmd, arg := splitCommand(line)
	switch cmd {
	case "/use":
		n, err := strconv.Atoi(arg)
		if err != nil || eng.SelectSuggestion(n-1) != nil {
			fmt.Fprintln(lc.out, "No such suggestion.")
			return
		}
		fmt.Fprintf(lc.out, "Input: %s (press Enter to send)\n", eng.Input())
	case "/summary":
		summary, err := eng.Summarize(lc.ctx)
		if err != nil {
			lc.printNotice(eng, err)
			return
		}
		fmt.Fprintf(lc.out, "Summary:\n  %s\n", indent(summary, "  "))
	case "/next":
		actions, err := eng.RefreshSuggestions(lc.ctx)
		if err != nil {
			lc.printNotice(eng, err)
			return
		}
		if len(actions) == 0 {
			fmt.Fprintln(lc.out, "No suggestions.")
			return
		}
		printSuggestions(lc.out, actions)
	case "/id":
		fmt.Fprintln(lc.out, eng.SessionID())
	case "/back":
		lc.coord.ReturnToList()
		lc.list()
	default:
		fmt.Fprintln(lc.out, chatHelp)
	}
}

func (lc *lineChat) send(eng *conversation.Engine, text string) {
	before := len(eng.Messages())
	out, err := eng.Submit(lc.ctx, text)
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		return
	case err != nil:
		fmt.Fprintf(lc.out, "Not sent: %v\n", err)
		return
	}

	// The user's own line is already on screen.
	printSince(lc.out, eng.Messages(), before+1)
	if out.Adopted {
		fmt.Fprintf(lc.out, "Session id changed: %s -> %s\n", out.PreviousID, out.SessionID)
	}
	if eng.Escalated() {
		fmt.Fprintln(lc.out, "Escalated to a human agent.")
	}
	printSuggestions(lc.out, eng.Suggestions())
}

func (lc *lineChat) printNotice(eng *conversation.Engine, err error) {
	if notice := eng.Notice(); notice != "" {
		fmt.Fprintln(lc.out, notice)
		return
	}
	fmt.Fprintf(lc.out, "Failed: %v\n", err)
}

func (lc *lineChat) list() {
	sessions, err := lc.coord.ListSessions(lc.ctx)
	if err != nil {
		fmt.Fprintln(lc.out, lc.coord.ListError())
		return
	}
	if len(sessions) == 0 {
		fmt.Fprintln(lc.out, "No sessions yet. Type /new to start one.")
		return
	}
	for i, s := range sessions {
		fmt.Fprintf(lc.out, "%3d. %s  %s\n", i+1, s.SessionID, views.HistoryLabel(s.HistoryLen))
	}
}

func (lc *lineChat) start() {
	eng, err := lc.coord.StartNewSession(lc.ctx)
	if err != nil {
		fmt.Fprintln(lc.out, views.StartErrorText)
		return
	}
	fmt.Fprintf(lc.out, "Session %s\n", eng.SessionID())
	printMessages(lc.out, eng.Messages())
}

func (lc *lineChat) openArg(arg string) {
	if n, err := strconv.Atoi(arg); err == nil {
		sessions := lc.coord.Sessions()
		if n < 1 || n > len(sessions) {
			fmt.Fprintln(lc.out, "No such session.")
			return
		}
		arg = sessions[n-1].SessionID
	}
	lc.open(arg)
}

func (lc *lineChat) open(id string) {
	eng, err := lc.coord.SelectExistingSession(id)
	if err != nil {
		fmt.Fprintf(lc.out, "Cannot open session: %v\n", err)
		return
	}
	if _, err := eng.LoadHistory(lc.ctx); err != nil && !errors.Is(err, conversation.ErrHistoryLoaded) {
		fmt.Fprintf(lc.out, "Cannot load history: %v\n", err)
	}
	fmt.Fprintf(lc.out, "Session %s\n", eng.SessionID())
	printMessages(lc.out, eng.Messages())
}

func splitCommand(line string) (cmd, arg string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}
