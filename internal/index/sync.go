package index

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/storage"
)

// Entry is the catalog description of one stored blob.
type Entry struct {
	Row  DocumentRow
	Body string
}

// Describer decodes a stored blob into a catalog entry. It returns
// apperr.ErrNotFound for keys that do not name a content item.
type Describer interface {
	KeyPrefix() string
	ViewIDFromKey(key string) (uuid.UUID, error)
	Describe(key string, data []byte) (Entry, error)
}

// Sync walks the blobs under the describer's prefix and brings the catalog
// up to date:
//   - new/changed blobs are decoded and upserted
//   - live rows whose blob disappeared are removed
//
// Tombstones are never resurrected.
func Sync(ctx context.Context, db *DB, store storage.Provider, d Describer, logger *slog.Logger) error {
	blobs, err := store.List(ctx, d.KeyPrefix())
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		return err
	}

	onDisk := make(map[uuid.UUID]struct{}, len(blobs))
	for _, b := range blobs {
		id, err := d.ViewIDFromKey(b.Key)
		if err != nil {
			logger.Debug("sync: skipping foreign blob", slog.String("key", b.Key))
			continue
		}
		onDisk[id] = struct{}{}

		if checksums[id] == b.Checksum {
			continue
		}
		data, err := store.Read(ctx, b.Key)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("key", b.Key), slog.String("error", err.Error()))
			continue
		}
		if err := catalogBlob(ctx, db, d, b.Key, data); err != nil {
			logger.Warn("sync: catalog failed", slog.String("key", b.Key), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: catalogued", slog.String("key", b.Key))
		}
	}

	for id := range checksums {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if err := db.RemoveDocument(ctx, id); err != nil {
			logger.Warn("sync: remove failed", slog.String("view_id", id.String()), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("view_id", id.String()))
		}
	}
	return nil
}

// catalogBlob decodes data and upserts it, keeping the creator and creation
// time of an existing row.
func catalogBlob(ctx context.Context, db *DB, d Describer, key string, data []byte) error {
	e, err := d.Describe(key, data)
	if err != nil {
		return err
	}
	existing, err := db.GetDocument(ctx, e.Row.ViewID)
	switch {
	case err == nil:
		if existing.Deleted {
			return nil
		}
		e.Row.CreatedBy = existing.CreatedBy
		e.Row.CreatedAt = existing.CreatedAt
	case !errors.Is(err, apperr.ErrNotFound):
		return err
	}
	return db.UpsertDocument(ctx, e.Row, e.Body)
}
