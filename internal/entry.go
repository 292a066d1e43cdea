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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/folder"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/sse"
)

// Run starts the HTTP API with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	st, err := app.build(ctx, logger, folder.WithEvents(broker.PublishView))
	if err != nil {
		return err
	}
	defer st.close(logger)

	apiRouter := api.NewRouter(api.RouterConfig{
		Views:       st.views,
		Search:      st.db,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		AuthToken:   cfg.Auth.Token,
		DefaultUser: cfg.Workspace.DefaultUserID,
		Events:      broker,
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
		if st.manager.Closed() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"shutting_down"}`))
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

	// Snapshot files edited outside the server are re-catalogued; object
	// stores have no change feed and rely on the startup sync.
	if st.fs != nil {
		g.Go(func() error {
			if err := index.Watch(gCtx, st.db, st.fs, st.manager, logger, broker.PublishCatalog); err != nil {
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
		// SSE streams never end on their own.
		broker.Close()
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

// RunMCP serves the MCP tools over stdio. Logs go to the configured log
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	st, err := app.build(ctx, logger)
	if err != nil {
		return err
	}
	defer st.close(logger)

	srv := mcpserver.New(st.views, st.manager, st.db, app.config.Workspace.DefaultUserID)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

var extImportTypes = map[string]models.ImportType{
	".md":       models.ImportTypeMarkdown,
	".markdown": models.ImportTypeMarkdown,
	".txt":      models.ImportTypePlainText,
	".csv":      models.ImportTypeCSV,
}

// RunImport imports local files under parentID. Files with a known
// extension are converted; others are handed to the content type's file
// importer and may start empty.
func RunImport(ctx context.Context, parentID uuid.UUID, paths []string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	st, err := app.build(ctx, logger)
	if err != nil {
		return err
	}
	defer st.close(logger)

	uid := app.config.Workspace.DefaultUserID
	for _, p := range paths {
		v, err := importPath(ctx, st.views, uid, parentID, p)
		if err != nil {
			return fmt.Errorf("import %s: %w", p, err)
		}
		logger.Info("imported",
			slog.String("path", p),
			slog.String("view_id", v.ID.String()),
			slog.String("content_type", v.Type.String()))
	}
	return nil
}

func importPath(ctx context.Context, views *folder.Service, uid int64, parentID uuid.UUID, path string) (*models.View, error) {
	ext := strings.ToLower(filepath.Ext(path))
	it, ok := extImportTypes[ext]
	if !ok {
		return views.ImportFile(ctx, uid, parentID, models.ContentTypeDocument, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	v, _, err := views.ImportView(ctx, uid, parentID, name, it, data)
	return v, err
}
