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

	"github.com/starford/moewiki/internal/api"
	"github.com/starford/moewiki/internal/feed"
	"github.com/starford/moewiki/internal/importer"
	"github.com/starford/moewiki/internal/jobs"
	"github.com/starford/moewiki/internal/mcpserver"
	"github.com/starford/moewiki/internal/paste"
	"github.com/starford/moewiki/internal/render"
	"github.com/starford/moewiki/internal/sse"
	"github.com/starford/moewiki/internal/storage"
	"github.com/starford/moewiki/internal/store"
	"github.com/starford/moewiki/internal/wiki"
)

// backend is the wiring shared by every command.
type backend struct {
	cfg      *Config
	logger   *slog.Logger
	db       *store.DB
	renderer render.Renderer
	wiki     *wiki.Service
	pastes   *paste.Service
}

func newBackend(opts []Option, svcOpts ...wiki.Option) (*backend, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("default_area", cfg.Wiki.DefaultArea),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize SQLite store.
	db, err := store.Open(cfg.SQLite.Path, store.WithRetries(cfg.Wiki.SaveRetries))
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	r := render.NewMarkdown()
	svc := wiki.NewService(db, r, wiki.Config{
		Paths:       cfg.Wiki.Normalizer(),
		DefaultArea: cfg.Wiki.DefaultArea,
		PageSize:    cfg.Wiki.PageSize,
		DiffContext: cfg.Wiki.DiffContext,
		LinkPrefix:  cfg.Wiki.LinkPrefix,
	}, append([]wiki.Option{wiki.WithLogger(logger)}, svcOpts...)...)

	if _, err := svc.EnsureArea(context.Background(), cfg.Wiki.DefaultArea); err != nil {
		db.Close()
		return nil, fmt.Errorf("init default area: %w", err)
	}

	return &backend{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		renderer: r,
		wiki:     svc,
		pastes:   paste.NewService(db, cfg.Wiki.DefaultArea, cfg.Paste.Style),
	}, nil
}

func (b *backend) importer(area string) (*importer.Importer, error) {
	if b.cfg.Import.Dir == "" {
		return nil, fmt.Errorf("import: dir is not configured")
	}
	if err := os.MkdirAll(b.cfg.Import.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create import dir: %w", err)
	}
	files, err := storage.NewFS(b.cfg.Import.Dir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if area == "" {
		area = b.cfg.Import.Area
	}
	return importer.New(b.wiki, files, area, b.cfg.Import.Editor, b.logger), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker. Saves publish to it once they commit.
	var broker *sse.Broker
	b, err := newBackend(opts, wiki.WithEventCallback(func(kind, area, path string) {
		if broker != nil {
			broker.PublishPageEvent(kind, area, path)
		}
	}))
	if err != nil {
		return err
	}
	defer b.db.Close()

	cfg, logger := b.cfg, b.logger
	broker = sse.NewBroker(cfg.SSE.Throttle)
	defer broker.Close()

	// Run initial import.
	var im *importer.Importer
	if cfg.Import.Dir != "" {
		if im, err = b.importer(""); err != nil {
			return err
		}
		st, err := im.Sync(ctx)
		if err != nil {
			logger.Warn("initial import failed", slog.String("error", err.Error()))
		} else {
			logger.Info("initial import done",
				slog.Int("imported", st.Imported),
				slog.Int("unchanged", st.Unchanged),
				slog.Int("failed", st.Failed))
		}
	}

	apiRouter := api.NewRouter(b.wiki, b.pastes, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Editor:      cfg.Auth.Editor,
		Events:      broker,
		Feeds: feed.Builder{
			BaseURL:    cfg.Feed.BaseURL,
			LinkPrefix: cfg.Wiki.LinkPrefix,
			Title:      cfg.Feed.Title,
		},
	})

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
		if err := b.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
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

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start seed directory watcher.
	if im != nil && cfg.Import.Watch {
		g.Go(func() error {
			if err := im.Watch(gCtx); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
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

// errShutdown cancels the errgroup so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// Reparse re-renders every head revision of area, starting after cursor.
func Reparse(ctx context.Context, area, cursor string, batch int, opts ...Option) error {
	b, err := newBackend(opts)
	if err != nil {
		return err
	}
	defer b.db.Close()

	if area == "" {
		area = b.cfg.Wiki.DefaultArea
	}
	rp := jobs.NewReparser(b.db, b.renderer, b.wiki.Link, b.logger)
	st, err := rp.Run(ctx, area, cursor, batch)
	b.logger.Info("reparse finished",
		slog.String("area", area),
		slog.Int("pages", st.Pages),
		slog.Int("updated", st.Updated),
		slog.Int("unchanged", st.Unchanged),
		slog.Int("skipped", st.Skipped),
		slog.Int("failed", st.Failed),
		slog.String("cursor", st.Cursor))
	return err
}

// Import saves every seed file into area once and returns.
func Import(ctx context.Context, area string, opts ...Option) error {
	b, err := newBackend(opts)
	if err != nil {
		return err
	}
	defer b.db.Close()

	im, err := b.importer(area)
	if err != nil {
		return err
	}
	st, err := im.Sync(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("import finished",
		slog.Int("imported", st.Imported),
		slog.Int("unchanged", st.Unchanged),
		slog.Int("failed", st.Failed))
	return nil
}

// Export writes the head of every page of area into dir, or into the
// configured import directory when dir is empty.
func Export(ctx context.Context, area, dir string, opts ...Option) error {
	b, err := newBackend(opts)
	if err != nil {
		return err
	}
	defer b.db.Close()

	if dir == "" {
		dir = b.cfg.Import.Dir
	}
	if dir == "" {
		return fmt.Errorf("export: no target directory")
	}
	if area == "" {
		area = b.cfg.Wiki.DefaultArea
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	files, err := storage.NewFS(dir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	n, err := importer.Export(ctx, b.db, files, area, b.logger)
	if err != nil {
		return err
	}
	b.logger.Info("export finished", slog.String("area", area), slog.String("dir", dir), slog.Int("files", n))
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout until the client
// disconnects. Pass WithLogOutput(os.Stderr) to keep stdout clean.
func ServeMCP(_ context.Context, editor string, opts ...Option) error {
	b, err := newBackend(opts)
	if err != nil {
		return err
	}
	defer b.db.Close()

	return mcpserver.New(b.wiki, b.pastes, editor).ServeStdio()
}
