// Package cli defines Cobra command definitions for the supportbot CLI.
// This file contains the root command, global flags, and help output.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/supportbot-dev/supportbot/internal/tui"
	"github.com/supportbot-dev/supportbot/internal/tui/app"
)

var (
	configDirFlag  string
	apiBaseURLFlag string
	timeoutFlag    int
	logStderrFlag  bool
	logLevelFlag   string
	version        = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "supportbot",
	Short: "Terminal client for the customer support assistant",
	Long: `Supportbot talks to a support assistant backend over HTTP.
Without a subcommand it opens the interactive session browser and chat.
The line-mode subcommands do the same work for scripts and pipes.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// When no subcommand is provided, launch TUI if TTY, show help otherwise
		if !tui.IsTTY() {
			return cmd.Help()
		}

		e, err := newEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		model := tui.NewModel(cmd.Context(), e.coordinator(), e.client)
		return tui.Run(app.New(model, e.logger))
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Config and log directory (default ~/.supportbot)")
	rootCmd.PersistentFlags().StringVar(&apiBaseURLFlag, "api-base-url", "", "Backend base URL, overrides config and environment")
	rootCmd.PersistentFlags().IntVar(&timeoutFlag, "timeout", 0, "Request timeout in seconds, overrides config and environment")
	rootCmd.PersistentFlags().BoolVar(&logStderrFlag, "log-stderr", false, "Write diagnostics to stderr instead of the log file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Diagnostic log level (debug, info, warn, error)")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(nextActionsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}
