package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/docmanager"
	"github.com/starford/folio/internal/docview"
	"github.com/starford/folio/internal/folder"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/storage"
)

// stack holds the components shared by every entry point.
type stack struct {
	store   storage.Provider
	fs      *storage.FS // nil unless the fs backend is selected
	db      *index.DB
	manager *docmanager.Manager
	views   *folder.Service
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

// newLogger initializes the structured JSON logger and makes it the default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func openStore(ctx context.Context, cfg StorageConfig) (storage.Provider, *storage.FS, error) {
	switch cfg.Backend {
	case StorageMemory:
		return storage.NewMemory(), nil, nil
	case StorageS3:
		s, err := storage.NewS3(ctx, cfg.S3.Provider())
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		if err := os.MkdirAll(cfg.FS.Path, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create snapshot dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.FS.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	}
}

// build opens storage and the catalog, runs the initial sync and wires the
// folder service with the document adapter.
func (a *application) build(ctx context.Context, logger *slog.Logger, folderOpts ...folder.Option) (*stack, error) {
	cfg := a.config

	store, fs, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	manager := docmanager.New(store, db, logger)

	if err := index.Sync(ctx, db, store, manager, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	registry := folder.NewRegistry(docview.New(manager, docview.WithLogger(logger)))
	views := folder.NewService(db, registry, append([]folder.Option{folder.WithLogger(logger)}, folderOpts...)...)

	return &stack{store: store, fs: fs, db: db, manager: manager, views: views}, nil
}

// close shuts the manager down before the catalog it writes to.
func (s *stack) close(logger *slog.Logger) {
	s.manager.Shutdown()
	if err := s.db.Close(); err != nil {
		logger.Error("close index", slog.String("error", err.Error()))
	}
}
