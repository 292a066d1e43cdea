// Package docmanager owns the persistence and in-memory state of document
// content. Snapshots live in a storage.Provider; the index catalog tracks
// titles, search text and tombstones.
package docmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/document"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// openDoc is the live copy of an open document.
type openDoc struct {
	mu   sync.Mutex
	data *document.Data
}

// Manager coordinates snapshot storage and catalog operations for documents.
type Manager struct {
	store   storage.Provider
	catalog index.Catalog
	logger  *slog.Logger

	mu       sync.Mutex
	open     map[uuid.UUID]*openDoc
	creating map[uuid.UUID]struct{}
	loads    singleflight.Group

	closed atomic.Bool
}

// New creates a document manager.
func New(store storage.Provider, catalog index.Catalog, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		catalog:  catalog,
		logger:   logger,
		open:     make(map[uuid.UUID]*openDoc),
		creating: make(map[uuid.UUID]struct{}),
	}
}

// Closed reports whether Shutdown has been called.
func (m *Manager) Closed() bool { return m.closed.Load() }

// Shutdown drops every open document. Durable state is untouched; weak
// references to m stop resolving.
func (m *Manager) Shutdown() {
	if m.closed.Swap(true) {
		return
	}
	m.mu.Lock()
	n := len(m.open)
	clear(m.open)
	m.mu.Unlock()
	m.logger.Info("docmanager: shut down", slog.Int("open_documents", n))
}

// Create stores data as the content of id and returns its snapshot. A nil
// data creates the default empty document. Creating an existing id fails
// with apperr.ErrAlreadyExists, a deleted id with apperr.ErrNotFound.
func (m *Manager) Create(ctx context.Context, uid int64, id uuid.UUID, data *document.Data) (models.EncodedSnapshot, error) {
	if data == nil {
		data = document.Default()
	}
	snap, err := document.EncodeSnapshot(data)
	if err != nil {
		return models.EncodedSnapshot{}, err
	}

	m.mu.Lock()
	if _, busy := m.creating[id]; busy {
		m.mu.Unlock()
		return models.EncodedSnapshot{}, fmt.Errorf("docmanager: create %s: %w", id, apperr.ErrAlreadyExists)
	}
	m.creating[id] = struct{}{}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.creating, id)
		m.mu.Unlock()
	}()

	if err := m.checkAbsent(ctx, id); err != nil {
		return models.EncodedSnapshot{}, err
	}
	if err := m.persist(ctx, uid, id, data, snap); err != nil {
		if rmErr := m.catalog.RemoveDocument(ctx, id); rmErr != nil {
			m.logger.Warn("docmanager: rollback catalog row failed",
				slog.String("view_id", id.String()), slog.String("error", rmErr.Error()))
		}
		return models.EncodedSnapshot{}, err
	}
	m.logger.Debug("docmanager: created", slog.String("view_id", id.String()))
	return snap, nil
}

func (m *Manager) checkAbsent(ctx context.Context, id uuid.UUID) error {
	row, err := m.catalog.GetDocument(ctx, id)
	switch {
	case err == nil && row.Deleted:
		return fmt.Errorf("docmanager: create %s: deleted: %w", id, apperr.ErrNotFound)
	case err == nil:
		return fmt.Errorf("docmanager: create %s: %w", id, apperr.ErrAlreadyExists)
	case !errors.Is(err, apperr.ErrNotFound):
		return fmt.Errorf("docmanager: create %s: %w", id, err)
	}
	ok, err := m.store.Exists(ctx, Key(id))
	if err != nil {
		return fmt.Errorf("docmanager: create %s: %w", id, err)
	}
	if ok {
		return fmt.Errorf("docmanager: create %s: %w", id, apperr.ErrAlreadyExists)
	}
	return nil
}

// persist catalogues data and then writes its snapshot blob. The catalog row
// goes first so a watcher seeing the blob keeps the creator.
func (m *Manager) persist(ctx context.Context, uid int64, id uuid.UUID, data *document.Data, snap models.EncodedSnapshot) error {
	blob := snap.Marshal()
	row := index.DocumentRow{
		ViewID:    id,
		CreatedBy: uid,
		Title:     data.Title(),
		Checksum:  storage.Checksum(blob),
	}
	if err := m.catalog.UpsertDocument(ctx, row, searchBody(data)); err != nil {
		return fmt.Errorf("docmanager: catalog %s: %w", id, err)
	}
	if err := m.store.Write(ctx, Key(id), blob); err != nil {
		return fmt.Errorf("docmanager: write %s: %w", id, err)
	}
	return nil
}

// Open loads the durable content of id into memory. Opening an open
// document is a no-op; concurrent opens share one load.
func (m *Manager) Open(ctx context.Context, id uuid.UUID) error {
	if m.isOpen(id) {
		return nil
	}
	_, err, _ := m.loads.Do(id.String(), func() (any, error) {
		if m.isOpen(id) {
			return nil, nil
		}
		data, err := m.readDurable(ctx, id)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if _, ok := m.open[id]; !ok {
			m.open[id] = &openDoc{data: data}
		}
		m.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("docmanager: open %s: %w", id, err)
	}
	m.logger.Debug("docmanager: opened", slog.String("view_id", id.String()))
	return nil
}

func (m *Manager) isOpen(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[id]
	return ok
}

func (m *Manager) lookup(id uuid.UUID) (*openDoc, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.open[id]
	return d, ok
}

// Close releases the in-memory state of id. Closing a document that is not
// open succeeds when it still exists.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	_, wasOpen := m.open[id]
	delete(m.open, id)
	m.mu.Unlock()
	if wasOpen {
		m.logger.Debug("docmanager: closed", slog.String("view_id", id.String()))
		return nil
	}
	if err := m.ensureLive(ctx, id); err != nil {
		return fmt.Errorf("docmanager: close %s: %w", id, err)
	}
	return nil
}

// Delete tombstones id and removes its snapshot. Deleting twice succeeds.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.open, id)
	m.mu.Unlock()

	if err := m.catalog.MarkDeleted(ctx, id); err != nil {
		return fmt.Errorf("docmanager: delete %s: %w", id, err)
	}
	if err := m.store.Delete(ctx, Key(id)); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("docmanager: delete %s: %w", id, err)
	}
	m.logger.Debug("docmanager: deleted", slog.String("view_id", id.String()))
	return nil
}

// ReadCurrent returns a copy of the content of id: the live copy when open,
// the durable one otherwise.
func (m *Manager) ReadCurrent(ctx context.Context, id uuid.UUID) (*document.Data, error) {
	if d, ok := m.lookup(id); ok {
		d.mu.Lock()
		defer d.mu.Unlock()
		return clone(d.data)
	}
	data, err := m.readDurable(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("docmanager: read %s: %w", id, err)
	}
	return data, nil
}

// Update applies fn to a copy of the open document id and persists the
// result. The live copy is replaced only when fn and the write succeed.
// A document deleted while fn runs or while the write is in flight stays
// deleted and Update reports apperr.ErrNotFound.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, fn func(*document.Data) error) error {
	d, ok := m.lookup(id)
	if !ok {
		return fmt.Errorf("docmanager: update %s: not open: %w", id, apperr.ErrConflict)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := clone(d.data)
	if err != nil {
		return err
	}
	if err := fn(next); err != nil {
		return err
	}
	snap, err := document.EncodeSnapshot(next)
	if err != nil {
		return err
	}

	if !m.holds(id, d) {
		if err := m.ensureNotDeleted(ctx, id); err != nil {
			return fmt.Errorf("docmanager: update %s: %w", id, err)
		}
		return fmt.Errorf("docmanager: update %s: closed during update: %w", id, apperr.ErrConflict)
	}
	if err := m.persist(ctx, 0, id, next, snap); err != nil {
		return err
	}
	// Delete drops the open entry before tombstoning, so a delete that
	// raced the write is visible here or removes the blob after it.
	if !m.holds(id, d) {
		if err := m.ensureNotDeleted(ctx, id); err != nil {
			if derr := m.store.Delete(ctx, Key(id)); derr != nil && !errors.Is(derr, apperr.ErrNotFound) {
				m.logger.Error("docmanager: remove blob of deleted document",
					slog.String("view_id", id.String()), slog.String("error", derr.Error()))
			}
			return fmt.Errorf("docmanager: update %s: %w", id, err)
		}
	}
	d.data = next
	return nil
}

// holds reports whether d is still the open copy of id.
func (m *Manager) holds(id uuid.UUID, d *openDoc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open[id] == d
}

// EncodedFromDisk returns the durable snapshot of id without loading it.
func (m *Manager) EncodedFromDisk(ctx context.Context, id uuid.UUID) (models.EncodedSnapshot, error) {
	if err := m.ensureNotDeleted(ctx, id); err != nil {
		return models.EncodedSnapshot{}, fmt.Errorf("docmanager: encoded %s: %w", id, err)
	}
	blob, err := m.store.Read(ctx, Key(id))
	if err != nil {
		return models.EncodedSnapshot{}, fmt.Errorf("docmanager: encoded %s: %w", id, err)
	}
	return models.UnmarshalSnapshot(blob)
}

func (m *Manager) readDurable(ctx context.Context, id uuid.UUID) (*document.Data, error) {
	if err := m.ensureNotDeleted(ctx, id); err != nil {
		return nil, err
	}
	blob, err := m.store.Read(ctx, Key(id))
	if err != nil {
		return nil, err
	}
	snap, err := models.UnmarshalSnapshot(blob)
	if err != nil {
		return nil, err
	}
	return document.DecodeSnapshot(snap)
}

func (m *Manager) ensureNotDeleted(ctx context.Context, id uuid.UUID) error {
	row, err := m.catalog.GetDocument(ctx, id)
	if err == nil && row.Deleted {
		return fmt.Errorf("deleted: %w", apperr.ErrNotFound)
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

func (m *Manager) ensureLive(ctx context.Context, id uuid.UUID) error {
	if err := m.ensureNotDeleted(ctx, id); err != nil {
		return err
	}
	ok, err := m.store.Exists(ctx, Key(id))
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return nil
}

func clone(d *document.Data) (*document.Data, error) {
	b, err := document.Encode(d)
	if err != nil {
		return nil, err
	}
	return document.Decode(b)
}
