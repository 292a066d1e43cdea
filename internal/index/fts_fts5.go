//go:build sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			view_id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, viewID, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE view_id = ?`, viewID)
	_, err := tx.Exec(`INSERT INTO documents_fts (view_id, title, body) VALUES (?, ?, ?)`, viewID, title, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, viewID string) {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE view_id = ?`, viewID)
}

// Search performs an FTS5 full-text search and returns matching documents with snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT view_id,
		       title,
		       snippet(documents_fts, 2, '<b>', '</b>', '...', 64)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r  SearchResult
			id string
		)
		if err := rows.Scan(&id, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		if r.ViewID, err = uuid.Parse(id); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
