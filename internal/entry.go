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

	"github.com/starford/contactflow/internal/api"
	"github.com/starford/contactflow/internal/crmservice"
	"github.com/starford/contactflow/internal/mcpserver"
	"github.com/starford/contactflow/internal/sse"
	"github.com/starford/contactflow/internal/store"
	"github.com/starford/contactflow/internal/webhook"
)

// drainTimeout caps how long shutdown waits for buffered webhooks.
const drainTimeout = 15 * time.Second

// core is the wiring shared by the HTTP server and the MCP command.
type core struct {
	logger *slog.Logger
	db     *store.DB
	queue  *webhook.Queue
	svc    *crmservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup opens the database and starts the webhook queue. extra sinks are
// notified alongside the queue after every committed change.
func (a *application) setup(ctx context.Context, extra ...crmservice.EventSink) (*core, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("webhook_base_url", cfg.Webhook.BaseURL),
		slog.String("webhook_scope", cfg.Webhook.Scope),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	dispatcher := webhook.NewDispatcher(db, logger, cfg.Webhook.Dispatcher())
	queue := webhook.NewQueue(dispatcher, logger, cfg.Webhook.Workers, cfg.Webhook.QueueSize)
	queue.Start(ctx)

	sinks := append([]crmservice.EventSink{queue}, extra...)
	svc := crmservice.NewService(db, logger,
		crmservice.WithSinks(sinks...),
		crmservice.WithDeliverer(dispatcher),
	)

	return &core{logger: logger, db: db, queue: queue, svc: svc}, nil
}

// close drains pending webhook deliveries, for at most drainTimeout, before
// the database goes away.
func (c *core) close() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := c.queue.Close(ctx); err != nil {
		c.logger.Warn("webhook queue not fully drained", slog.String("error", err.Error()))
	}
	if err := c.db.Close(); err != nil {
		c.logger.Error("close store", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(cfg.SSE.StatsThrottle)
	defer broker.Close()

	c, err := app.setup(ctx, broker)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	apiRouter := api.NewRouter(c.svc, cfg.Auth.Settings(), broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := c.svc.Ready(req.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams only end when their clients go away; close them first.
		broker.Close()

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

	logger.Info("Server stopped successfully", slog.Int("webhooks_pending", c.queue.Pending()))
	return nil
}

// RunMCP serves the MCP tools over stdio as cfg.MCP.UserID until stdin closes.
// Webhooks fire for changes made through the tools just as they do over HTTP.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	if app.config.MCP.UserID == "" {
		return fmt.Errorf("mcp.user_id is required")
	}

	c, err := app.setup(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("MCP server starting on stdio", slog.String("user_id", app.config.MCP.UserID))
	return mcpserver.New(c.svc, app.config.MCP.UserID).ServeStdio()
}

func writeStatus(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": s})
}
