// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/tesselcraft/tessera/internal/api"
	"github.com/tesselcraft/tessera/internal/bundle"
	"github.com/tesselcraft/tessera/internal/bundledir"
	"github.com/tesselcraft/tessera/internal/composer"
	"github.com/tesselcraft/tessera/internal/feed"
	"github.com/tesselcraft/tessera/internal/mcpserver"
	"github.com/tesselcraft/tessera/internal/resolver"
	"github.com/tesselcraft/tessera/internal/schemaservice"
	"github.com/tesselcraft/tessera/internal/sse"
	"github.com/tesselcraft/tessera/internal/store"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("bundles_path", cfg.Bundles.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure bundles directory exists.
	if err := os.MkdirAll(cfg.Bundles.Path, 0o755); err != nil {
		return fmt.Errorf("create bundles dir: %w", err)
	}
	bundles, err := bundledir.NewFS(cfg.Bundles.Path)
	if err != nil {
		return fmt.Errorf("init bundle dir: %w", err)
	}

	// Initialize SQLite schema store.
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	// Resolution pipeline, live feed hub, and the service tying them together.
	svc, hub, comp := buildService(db, logger)

	// SSE broker: schema lifecycle, resolution results, throttled channel ticks.
	broker := sse.NewBroker(cfg.Feed.ChannelThrottle())
	defer broker.Close()

	svc.OnChange(broker.PublishSchemaEvent)
	comp.OnResolved(func(widgetKey string, state composer.State) {
		broker.Publish(sse.Event{Type: "schema.resolved", Data: map[string]string{
			"widgetKey": widgetKey,
			"state":     string(state),
		}})
	})
	unsubscribe := hub.Subscribe(broker.PublishChannelUpdate)
	defer unsubscribe()

	// Import bundles already present in the directory.
	if err := bundle.Sync(ctx, db, bundles, svc, logger); err != nil {
		logger.Warn("initial bundle sync failed", slog.String("error", err.Error()))
	}

	// Build API router.
	apiRouter := api.NewRouter(svc, hub, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Bundle directory watcher (auto-import).
	if cfg.Bundles.Watch {
		g.Go(func() error {
			if err := bundle.Watch(gCtx, db, bundles, svc, cfg.Bundles.Path, logger); err != nil {
				logger.Warn("bundle watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Feed sources. Both may run at once; they publish into the same hub.
	if cfg.Feed.Simulator.Enabled {
		sim := feed.NewSimulator(hub, cfg.Feed.Simulator.Symbols, cfg.Feed.Simulator.Interval(), logger)
		g.Go(func() error { return sim.Run(gCtx) })
	}
	if cfg.Feed.UpstreamURL != "" {
		conn := feed.NewConnector(hub, cfg.Feed.UpstreamURL, logger)
		g.Go(func() error { return conn.Run(gCtx) })
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP stdio transport over the same store and resolution
// pipeline the HTTP server uses. Logs go to stderr; stdout belongs to the
// protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	svc, _, _ := buildService(db, logger)

	logger.Info("MCP server starting on stdio", slog.String("sqlite_path", cfg.SQLite.Path))
	return mcpserver.New(svc).ServeStdio()
}

// RunImport applies one bundle file to the store and prints what changed.
func RunImport(ctx context.Context, cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	res, err := bundle.Import(ctx, db, data)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}

	fmt.Printf("imported %s: %d created, %d updated\n", path, len(res.Created), len(res.Updated))
	return nil
}

// RunExport writes the bundle for widgetKey into the bundles directory, the
// same place the watcher imports from.
func RunExport(ctx context.Context, cfg *Config, widgetKey string) error {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	b, err := bundle.Export(ctx, db, widgetKey)
	if err != nil {
		return fmt.Errorf("export %s: %w", widgetKey, err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	if err := os.MkdirAll(cfg.Bundles.Path, 0o755); err != nil {
		return fmt.Errorf("create bundles dir: %w", err)
	}
	files, err := bundledir.NewFS(cfg.Bundles.Path)
	if err != nil {
		return fmt.Errorf("init bundle dir: %w", err)
	}

	name := widgetKey + ".json"
	if err := files.Write(name, data); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}

	fmt.Printf("exported %s to %s (%d schemas)\n", widgetKey, name, len(b.Schemas))
	return nil
}

// buildService wires the resolution pipeline and feed hub around a store.
func buildService(db *store.DB, logger *slog.Logger) (*schemaservice.Service, *feed.Hub, *composer.Composer) {
	res := resolver.New(db, logger)
	col := resolver.NewCollector(db, logger)
	comp := composer.New(res, col, logger)
	hub := feed.NewHub(logger)
	return schemaservice.NewService(db, col, comp, hub), hub, comp
}
