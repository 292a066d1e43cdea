package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/starford/folio/internal/storage"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, viewID uuid.UUID)

// Watch starts an fsnotify watcher on the FS snapshot root and keeps the
// catalog in step with snapshot files changed outside the process, until
// ctx is cancelled. It calls cb (if non-nil) after each catalog mutation.
//
// Removing a snapshot file drops the live catalog row; the folder tree is
// left alone. Rename events trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db *DB, store *storage.FS, d Describer, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	notify := func(kind string, id uuid.UUID) {
		if cb != nil {
			cb(kind, id)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, store, d, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}

			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}
			key, keyErr := store.KeyOf(ev.Name)
			if keyErr != nil {
				continue
			}
			id, idErr := d.ViewIDFromKey(key)
			if idErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(ctx, key)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("key", key), slog.String("error", readErr.Error()))
					continue
				}
				if catErr := catalogBlob(ctx, db, d, key, data); catErr != nil {
					logger.Warn("watcher: catalog failed", slog.String("key", key), slog.String("error", catErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: catalogued", slog.String("key", key), slog.String("op", kind))
				notify(kind, id)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if rmErr := removeLive(ctx, db, id); rmErr != nil {
					logger.Warn("watcher: remove failed", slog.String("key", key), slog.String("error", rmErr.Error()))
				} else {
					logger.Debug("watcher: removed", slog.String("key", key))
					notify("deleted", id)
				}
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// removeLive drops the catalog row of id unless it is a tombstone.
func removeLive(ctx context.Context, db *DB, id uuid.UUID) error {
	row, err := db.GetDocument(ctx, id)
	if err != nil || row.Deleted {
		return nil
	}
	return db.RemoveDocument(ctx, id)
}

// reconcile re-runs the sync comparison after renames and new directories,
// reporting what changed.
func reconcile(ctx context.Context, db *DB, store *storage.FS, d Describer, logger *slog.Logger, notify func(string, uuid.UUID)) {
	before, err := db.AllChecksums(ctx)
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	if err := Sync(ctx, db, store, d, logger); err != nil {
		logger.Warn("reconcile: sync failed", slog.String("error", err.Error()))
		return
	}
	after, err := db.AllChecksums(ctx)
	if err != nil {
		return
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			notify("deleted", id)
		}
	}
	for id, cs := range after {
		prev, ok := before[id]
		switch {
		case !ok:
			notify("created", id)
		case prev != cs:
			notify("updated", id)
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
