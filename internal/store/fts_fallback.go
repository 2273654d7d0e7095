//go:build !sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on revision_heads.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _ string) error {
	// Body is already stored in the heads table; nothing extra to do.
	return nil
}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(ctx context.Context, areaID, query string, limit int) ([]SearchResult, error) {
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, title, substr(body_raw, 1, 200)
		FROM revision_heads
		WHERE area_id = ? AND (title LIKE ? OR body_raw LIKE ?)
		ORDER BY updated_at DESC
		LIMIT ?
	`, areaID, like, like, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
