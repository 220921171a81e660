package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/config"
	"github.com/supportbot-dev/supportbot/internal/conversation"
	"github.com/supportbot-dev/supportbot/internal/log"
	"github.com/supportbot-dev/supportbot/internal/session"
)

// env bundles what every client command needs: the effective config,
// the diagnostic logger, the event log and a backend client.
type env struct {
	dir    string
	cfg    *config.Config
	logger zerolog.Logger
	closer io.Closer
	events log.Recorder
	client *backend.Client
}

func configDir() string {
	if configDirFlag != "" {
		return configDirFlag
	}
	return config.DefaultDir()
}

// loadConfig returns the effective config with command-line overrides
// applied last.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if apiBaseURLFlag != "" {
		cfg.APIBaseURL = apiBaseURLFlag
	}
	if timeoutFlag != 0 {
		cfg.RequestTimeout = timeoutFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir := configDir()

	logger, closer, err := log.New(log.Options{Dir: dir, Level: cfg.LogLevel, Stderr: logStderrFlag})
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	var events log.Recorder = log.Discard
	if cfg.Events {
		el, err := log.NewEventLog(dir)
		if err != nil {
			// The client works without an event log.
			fmt.Fprintf(os.Stderr, "Warning: event log disabled: %v\n", err)
		} else {
			events = el
		}
	}

	client := backend.NewClient(cfg.APIBaseURL,
		backend.WithTimeout(cfg.Timeout()),
		backend.WithLogger(logger),
	)
	logger.Debug().Str("base_url", client.BaseURL()).Dur("timeout", cfg.Timeout()).Msg("client ready")

	return &env{
		dir:    dir,
		cfg:    cfg,
		logger: logger,
		closer: closer,
		events: events,
		client: client,
	}, nil
}

func (e *env) coordinator() *session.Coordinator {
	return session.New(e.client, session.WithLogger(e.logger), session.WithEvents(e.events))
}

// engine returns a standalone engine bound to id, for one-shot commands.
func (e *env) engine(id string) *conversation.Engine {
	return conversation.New(e.client, id,
		conversation.WithLogger(e.logger),
		conversation.WithEvents(e.events),
	)
}

func (e *env) Close() {
	if err := e.closer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: closing log: %v\n", err)
	}
}
