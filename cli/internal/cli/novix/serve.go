package novix

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/novix-ai/novix/pkg/novix"
	"github.com/novix-ai/novix/pkg/novix/marketplace"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// ServeConfig holds flags for the serve command
type ServeConfig struct {
	SeedFile string
}

// NewServeCmd creates the serve command
func NewServeCmd(root *RootConfig) *cobra.Command {
	cfg := &ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Long: `Run the marketplace backend.

Sessions are served over HTTP under /api/agent-session and over the WebSocket
endpoint /ws. Settings come from --config, NOVIX_* environment variables and
the flags below.

Examples:
  novix serve
  novix serve --config novix.yaml --port 8080
  novix serve --busy-policy queue --seed listings.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, cfg)
		},
	}

	cmd.Flags().String("host", "", "Host to bind to")
	cmd.Flags().Int("port", 0, "Port to listen on")
	cmd.Flags().String("busy-policy", "", "What to do with a second interaction on a busy session (reject, queue)")
	cmd.Flags().Duration("idle-ttl", 0, "Evict sessions idle for longer than this (0 keeps them)")
	cmd.Flags().String("catalog-dsn", "", "Catalog database DSN (sqlite file or postgres URL)")
	cmd.Flags().StringVar(&cfg.SeedFile, "seed", "", "Seed the catalog from a YAML file before serving")

	return cmd
}

func runServe(cmd *cobra.Command, root *RootConfig, cfg *ServeConfig) error {
	settings, log, err := loadSettings(root, cmd.Flags(), map[string]string{
		"host":        "server.host",
		"port":        "server.port",
		"busy-policy": "session.busy_policy",
		"idle-ttl":    "session.idle_ttl",
		"catalog-dsn": "catalog.dsn",
	})
	if err != nil {
		return err
	}

	app, err := novix.NewApp(settings, novix.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error(err, "Failed to close app")
		}
	}()

	ctx := cmd.Context()
	if cfg.SeedFile != "" {
		n, err := seedFromFile(ctx, app.Catalog, cfg.SeedFile)
		if err != nil {
			return err
		}
		log.Info("Seeded catalog", "listings", n, "file", cfg.SeedFile)
	}

	g, ctx := errgroup.WithContext(ctx)

	server, err := app.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	g.Go(func() error {
		log.Info("Listening", "addr", server.Addr, "busyPolicy", settings.Session.BusyPolicy,
			"model", settings.Agent.Model.Model)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.RunReaper(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown gracefully: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func seedFromFile(ctx context.Context, store *marketplace.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	listings, err := marketplace.LoadSeed(f)
	if err != nil {
		return 0, err
	}
	return store.Seed(ctx, listings)
}
