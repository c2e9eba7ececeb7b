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
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/pagefeed/internal/api"
	"github.com/starford/pagefeed/internal/apperr"
	"github.com/starford/pagefeed/internal/feed"
	"github.com/starford/pagefeed/internal/mcpserver"
	"github.com/starford/pagefeed/internal/publish"
	"github.com/starford/pagefeed/internal/source/vault"
	"github.com/starford/pagefeed/internal/sse"
	"github.com/starford/pagefeed/internal/watch"
)

// Publish performs one publish run. With dryRun the feed is printed to
// the configured output and nothing is written, recorded or marked
// published. Callers should route logs away from that output.
func Publish(ctx context.Context, dryRun bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	app.dryRun = dryRun
	c, err := app.build()
	if err != nil {
		return err
	}
	defer c.Close()

	if dryRun {
		res, err := c.publisher.Preview(ctx)
		if err != nil {
			return fmt.Errorf("preview: %w", err)
		}
		return feed.NewStreamWriter(app.out, c.format, time.Now).WriteFeed(ctx, res.Document)
	}

	res, err := c.publisher.Run(ctx)
	if err != nil {
		var pce *apperr.PartialCommitError
		if errors.As(err, &pce) {
			app.logger.Error("entries marked published but not delivered",
				slog.Any("entry_ids", pce.Committed))
		}
		return err
	}
	app.logger.Info("Feed written",
		slog.String("path", filepath.Join(c.output.Root(), c.feedPath)),
		slog.Int("items", len(res.Document.Items)))
	return nil
}

// History prints the most recent runs recorded in the ledger.
func History(ctx context.Context, limit int, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build()
	if err != nil {
		return err
	}
	defer c.Close()

	if c.ledger == nil {
		return errors.New("history: ledger is disabled (set ledger.dsn)")
	}
	runs, err := c.ledger.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tMODE\tITEMS\tCOMMITTED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Status, r.Mode, r.Items, r.Committed, r.Error)
	}
	return tw.Flush()
}

// ServeMCP exposes the pipeline as MCP tools on stdin/stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build()
	if err != nil {
		return err
	}
	defer c.Close()

	var history mcpserver.History
	if c.ledger != nil {
		history = c.ledger
	}
	app.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.publisher, history).ServeStdio()
}

// newHTTPHandler builds the serve-mode router: health checks and the
// public feed at the root, the authenticated API under /api.
func newHTTPHandler(cfg *Config, c *components, broker *sse.Broker) http.Handler {
	var history api.History
	if c.ledger != nil {
		history = c.ledger
	}
	h := api.NewHandler(c.publisher, history, c.output, c.feedPath, c.format)

	var sseHandler http.Handler
	if broker != nil {
		sseHandler = broker
	}
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, sseHandler)

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

	r.Get("/feed.xml", h.Feed)
	r.Mount("/api", apiRouter)
	return r
}

// trigger runs the pipeline on behalf of a timer or watcher. Failures are
// logged; the serve loop keeps going.
func trigger(ctx context.Context, pub *publish.Publisher, logger *slog.Logger, reason string) {
	res, err := pub.Run(ctx)
	switch {
	case errors.Is(err, apperr.ErrRunInProgress):
		logger.Info("Run skipped, another run is active", slog.String("trigger", reason))
	case err != nil:
		logger.Error("Triggered run failed",
			slog.String("trigger", reason),
			slog.String("error", err.Error()))
	default:
		logger.Info("Triggered run complete",
			slog.String("trigger", reason),
			slog.String("run_id", res.RunID),
			slog.Int("items", len(res.Document.Items)))
	}
}

// Serve starts the HTTP server with optional interval and vault-watch
// triggers.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.build(publish.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer c.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newHTTPHandler(cfg, c, broker),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Serve.Interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Serve.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					trigger(gCtx, c.publisher, logger, "interval")
				}
			}
		})
	}

	if cfg.Serve.Watch && c.vaultRoot != "" {
		g.Go(func() error {
			// Commits rewrite page files, so every run echoes back as a change.
			// Only run when something is actually pending.
			return watch.Watch(gCtx, c.vaultRoot, vault.Ext, watch.DefaultDebounce, logger, func(paths []string) {
				broker.PublishSourceChange(paths)
				pending, err := c.publisher.Eligible(gCtx)
				if err != nil {
					logger.Warn("Eligibility check failed", slog.String("error", err.Error()))
					return
				}
				if len(pending) == 0 {
					return
				}
				trigger(gCtx, c.publisher, logger, "watch")
			})
		})
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
		defer signal.Stop(quit)

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the trigger loops stop with the server.
var errShutdown = errors.New("shutdown")
