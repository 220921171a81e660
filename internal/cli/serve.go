// serve.go implements the "supportbot serve" command which runs the
// reference backend locally.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/supportbot-dev/supportbot/internal/devserver"
	"github.com/supportbot-dev/supportbot/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference support backend",
	Long: `Run a local backend that implements the HTTP contract the client
speaks. Replies come from a keyword-scripted responder. Sessions live in
memory or in a SQLite file.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddrFlag  string
	serveStoreFlag string
	serveDBFlag    string
	serveCORSFlag  []string
	serveTTLFlag   int
)

const shutdownTimeout = 5 * time.Second

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (default from config, 127.0.0.1:8000)")
	serveCmd.Flags().StringVar(&serveStoreFlag, "store", "", "Session store: memory or sqlite")
	serveCmd.Flags().StringVar(&serveDBFlag, "db", "", "SQLite database path for --store sqlite")
	serveCmd.Flags().StringSliceVar(&serveCORSFlag, "cors", nil, "Allowed CORS origins (repeatable)")
	serveCmd.Flags().IntVar(&serveTTLFlag, "ttl", -1, "Session idle lifetime in minutes, 0 keeps sessions forever")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc := cfg.Serve
	if serveAddrFlag != "" {
		sc.Addr = serveAddrFlag
	}
	if serveStoreFlag != "" {
		sc.Store = serveStoreFlag
	}
	if serveDBFlag != "" {
		sc.DBPath = serveDBFlag
	}
	if len(serveCORSFlag) > 0 {
		sc.CORSOrigins = serveCORSFlag
	}
	if serveTTLFlag >= 0 {
		sc.SessionTTL = serveTTLFlag
	}
	ttl := time.Duration(sc.SessionTTL) * time.Minute

	// The server has no screen to protect, so diagnostics go to stderr.
	logger, closer, err := log.New(log.Options{Level: cfg.LogLevel, Stderr: true})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closer.Close()

	var store devserver.Store
	switch sc.Store {
	case "sqlite":
		s, err := devserver.NewSQLiteStore(sc.DBPath, ttl)
		if err != nil {
			return fmt.Errorf("opening session database: %w", err)
		}
		store = s
	case "", "memory":
		store = devserver.NewMemoryStore(ttl)
	default:
		return fmt.Errorf("unknown store %q (want memory or sqlite)", sc.Store)
	}

	srv := devserver.New(
		devserver.WithStore(store),
		devserver.WithLogger(logger),
		devserver.WithCORS(sc.CORSOrigins...),
	)
	if err := srv.Listen(sc.Addr); err != nil {
		_ = store.Close()
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s/api (store: %s)\n", srv.Addr(), storeName(sc.Store))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func storeName(s string) string {
	if s == "" {
		return "memory"
	}
	return s
}
