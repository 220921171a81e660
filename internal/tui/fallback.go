package tui

import (
	"fmt"
	"io"
)

// FallbackRunner handles non-TTY execution by guiding users to the line-mode
// commands.
type FallbackRunner struct {
	out io.Writer
}

// NewFallbackRunner creates a new FallbackRunner writing to out.
func NewFallbackRunner(out io.Writer) *FallbackRunner {
	return &FallbackRunner{out: out}
}

// Run prints the guidance.
func (f *FallbackRunner) Run() error {
	lines := []string{
		"Non-TTY environment detected.",
		"Use one of the line-mode commands instead:",
		"  supportbot sessions          list sessions",
		"  supportbot new               start a session",
		"  supportbot ask <id> <text>   send one message",
		"  supportbot chat [id]         interactive line mode",
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(f.out, l); err != nil {
			return err
		}
	}
	return nil
}
