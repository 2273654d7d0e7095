//go:build sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS heads_fts USING fts5(
			area_id UNINDEXED,
			path UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, areaID, path, title, body string) error {
	_, _ = tx.Exec(`DELETE FROM heads_fts WHERE area_id = ? AND path = ?`, areaID, path)
	_, err := tx.Exec(`INSERT INTO heads_fts (area_id, path, title, body) VALUES (?, ?, ?, ?)`,
		areaID, path, title, body)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over head revisions and returns
// matching results with snippets.
func (db *DB) Search(ctx context.Context, areaID, query string, limit int) ([]SearchResult, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path,
		       title,
		       snippet(heads_fts, 3, '<b>', '</b>', '...', 64)
		FROM heads_fts
		WHERE heads_fts MATCH ? AND area_id = ?
		ORDER BY rank
		LIMIT ?
	`, query, areaID, clampLimit(limit))
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
