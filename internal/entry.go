// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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

	"github.com/starford/deckhand/internal/api"
	"github.com/starford/deckhand/internal/live"
	"github.com/starford/deckhand/internal/manifest"
	"github.com/starford/deckhand/internal/mcpserver"
	"github.com/starford/deckhand/internal/models"
	"github.com/starford/deckhand/internal/prefs"
	"github.com/starford/deckhand/internal/presentation"
	"github.com/starford/deckhand/internal/sse"
	"github.com/starford/deckhand/internal/storage"
	"github.com/starford/deckhand/internal/watcher"
)

// libraryThrottle bounds how often library.updated is broadcast.
const libraryThrottle = 2 * time.Second

func newApplication(opts []Option) (*application, error) {
	app := &application{stdout: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// core is what both the HTTP server and the MCP server need.
type core struct {
	fs    storage.Provider
	store *manifest.Store
	svc   *presentation.Service
}

func newCore(cfg *Config, logger *slog.Logger, opts ...presentation.ServiceOption) (*core, error) {
	if err := os.MkdirAll(cfg.Library.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Library.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	store := manifest.NewStore(fs, cfg.Library.ManifestName)
	return &core{
		fs:    fs,
		store: store,
		svc:   presentation.NewService(fs, store, logger, opts...),
	}, nil
}

// Run starts the HTTP server and the library watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog, err := newLogger(cfg.App, app.stdout)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_root", cfg.Library.Root),
		slog.String("manifest_name", cfg.Library.ManifestName),
		slog.String("prefs_path", cfg.Prefs.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := newCore(cfg, logger)
	if err != nil {
		return err
	}

	// Initial scan warms the presentation cache.
	if list, err := c.svc.List(ctx); err != nil {
		logger.Warn("initial scan failed", slog.String("error", err.Error()))
	} else {
		logger.Info("Library scanned", slog.Int("presentations", len(list)))
	}

	prefsDB, err := prefs.OpenSQLite(cfg.Prefs.Path)
	if err != nil {
		return fmt.Errorf("init prefs: %w", err)
	}
	prefStore := prefs.NewStore(prefsDB, logger)
	defer prefStore.Close()

	broker := sse.NewBroker(libraryThrottle)
	defer broker.Close()

	w := watcher.New(cfg.Library.Root, c.store.Name(), cfg.Watcher.Debounce, logger, func(ch models.Change) {
		c.svc.Invalidate(ch)
		broker.PublishChange(ch)
	})

	var limiter *api.RateLimiter
	if rl := cfg.App.HTTP.RateLimit; rl.Enabled {
		limiter = api.NewRateLimiter(rl.RPS, rl.Burst, 0, logger)
	}

	apiRouter := api.NewRouter(api.Deps{
		Service: c.svc,
		Events:  broker,
		Live:    live.NewHandler(c.svc, prefStore, broker, logger),
		Limiter: limiter,
		Logger:  logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(cfg.Library.Root); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"library unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.Run(gCtx); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	if limiter != nil {
		g.Go(func() error {
			limiter.Run(gCtx)
			return nil
		})
	}

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Ends SSE streams and live sessions, which Shutdown does not wait for.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(app.config.App, app.stdout)
	if err != nil {
		return err
	}
	defer closeLog()

	// No watcher runs in this mode, so agents' direct file writes are only
	// seen if every call rescans.
	c, err := newCore(app.config, logger, presentation.WithoutCache())
	if err != nil {
		return err
	}
	logger.Info("mcp: serving on stdio", slog.String("library_root", app.config.Library.Root))
	return mcpserver.New(c.svc, logger).ServeStdio()
}
