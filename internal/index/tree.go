package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

const viewColumns = `id, workspace_id, parent_id, name, icon, content_type, position, created_by, created_at`

func nullableID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// InsertView adds v to the tree as the last child of its parent and fills
// in Position and CreatedAt. Inserting an existing id fails with
// apperr.ErrAlreadyExists.
func (db *DB) InsertView(ctx context.Context, v *models.View) error {
	ct, err := v.Type.MarshalText()
	if err != nil {
		return fmt.Errorf("index: insert view: %w", err)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var pos int
	if v.ParentID != uuid.Nil {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM views WHERE parent_id = ?`,
			v.ParentID.String()).Scan(&pos); err != nil {
			return fmt.Errorf("index: next position: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO views (`+viewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, v.ID.String(), v.WorkspaceID.String(), nullableID(v.ParentID), v.Name, v.Icon,
		string(ct), pos, v.CreatedBy, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: insert view: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: view %s: %w", v.ID, apperr.ErrAlreadyExists)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit view: %w", err)
	}
	v.Position = pos
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanView(s rowScanner) (models.View, error) {
	var (
		v  models.View
		ct string
	)
	if err := s.Scan(&v.ID, &v.WorkspaceID, &v.ParentID, &v.Name, &v.Icon, &ct, &v.Position, &v.CreatedBy, &v.CreatedAt); err != nil {
		return v, err
	}
	if err := v.Type.UnmarshalText([]byte(ct)); err != nil {
		return v, fmt.Errorf("index: view %s: %w", v.ID, err)
	}
	return v, nil
}

// GetView returns the view with the given id.
func (db *DB) GetView(ctx context.Context, id uuid.UUID) (*models.View, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+viewColumns+` FROM views WHERE id = ?`, id.String())
	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: view %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get view: %w", err)
	}
	return &v, nil
}

func (db *DB) queryViews(ctx context.Context, query string, args ...any) ([]models.View, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query views: %w", err)
	}
	defer rows.Close()
	var out []models.View
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ChildViews returns the children of parentID in position order.
func (db *DB) ChildViews(ctx context.Context, parentID uuid.UUID) ([]models.View, error) {
	return db.queryViews(ctx,
		`SELECT `+viewColumns+` FROM views WHERE parent_id = ? ORDER BY position, created_at`,
		parentID.String())
}

// WorkspaceViews returns every view of a workspace, root first.
func (db *DB) WorkspaceViews(ctx context.Context, workspaceID uuid.UUID) ([]models.View, error) {
	return db.queryViews(ctx,
		`SELECT `+viewColumns+` FROM views WHERE workspace_id = ? ORDER BY parent_id != '', position, created_at`,
		workspaceID.String())
}

// DeleteView removes one node. Deleting a missing node is a no-op; callers
// remove children first.
func (db *DB) DeleteView(ctx context.Context, id uuid.UUID) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM views WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("index: delete view: %w", err)
	}
	return nil
}

// DeleteWorkspace removes every node of a workspace.
func (db *DB) DeleteWorkspace(ctx context.Context, workspaceID uuid.UUID) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM views WHERE workspace_id = ?`, workspaceID.String()); err != nil {
		return fmt.Errorf("index: delete workspace: %w", err)
	}
	return nil
}
