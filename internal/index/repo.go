package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
)

// DocumentRow is a row of the documents table.
type DocumentRow struct {
	ViewID    uuid.UUID
	CreatedBy int64
	Title     string
	Checksum  string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchResult is one search hit.
type SearchResult struct {
	ViewID  uuid.UUID `json:"view_id"`
	Title   string    `json:"title"`
	Snippet string    `json:"snippet"`
}

// UpsertDocument inserts or refreshes a catalog row and its search text
// in one transaction. Tombstoned rows are left untouched.
func (db *DB) UpsertDocument(ctx context.Context, row DocumentRow, body string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (view_id, created_by, title, checksum, body, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(view_id) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			updated_at = excluded.updated_at
		WHERE documents.deleted = 0
	`, row.ViewID.String(), row.CreatedBy, row.Title, row.Checksum, body, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Tombstone: nothing to refresh.
		return tx.Commit()
	}

	if err := ftsUpsert(tx, row.ViewID.String(), row.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDocument returns the catalog row of id, tombstones included.
func (db *DB) GetDocument(ctx context.Context, id uuid.UUID) (*DocumentRow, error) {
	var (
		r       DocumentRow
		deleted int
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT view_id, created_by, title, checksum, deleted, created_at, updated_at
		FROM documents WHERE view_id = ?
	`, id.String()).Scan(&r.ViewID, &r.CreatedBy, &r.Title, &r.Checksum, &deleted, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: document %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	r.Deleted = deleted != 0
	return &r, nil
}

// MarkDeleted turns the row of id into a tombstone, creating one if the
// document was never catalogued. Marking twice is a no-op.
func (db *DB) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (view_id, deleted, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(view_id) DO UPDATE SET
			deleted    = 1,
			body       = '',
			checksum   = '',
			updated_at = excluded.updated_at
	`, id.String(), now, now)
	if err != nil {
		return fmt.Errorf("index: mark deleted: %w", err)
	}
	ftsDelete(tx, id.String())
	return tx.Commit()
}

// RemoveDocument drops the row of id entirely (tombstones included).
func (db *DB) RemoveDocument(ctx context.Context, id uuid.UUID) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id.String())
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE view_id = ?`, id.String()); err != nil {
		return fmt.Errorf("index: remove document: %w", err)
	}
	return tx.Commit()
}

// AllChecksums returns the checksum of every live (non-tombstoned) document.
func (db *DB) AllChecksums(ctx context.Context) (map[uuid.UUID]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT view_id, checksum FROM documents WHERE deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var (
			id uuid.UUID
			cs string
		)
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
