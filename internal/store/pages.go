package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

const pageColumns = `p.area_id, p.path, p.parent_path, p.parent_paths, p.tags, p.deps,
	p.created_at, p.updated_at, COALESCE(h.title, '')`

const pageFrom = `FROM pages p
	LEFT JOIN revision_heads h ON h.area_id = p.area_id AND h.path = p.path`

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (*models.Page, error) {
	var (
		p                models.Page
		parents, tags    string
		created, updated int64
	)
	if err := s.Scan(&p.AreaID, &p.Path, &p.ParentPath, &parents, &tags, &p.Deps,
		&created, &updated, &p.Title); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(parents), &p.ParentPaths)
	_ = json.Unmarshal([]byte(tags), &p.Tags)
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	return &p, nil
}

// DepTargets decodes the wikilink targets recorded in a page's deps blob.
// A blob that is not a JSON string list names no targets.
func DepTargets(deps []byte) []string {
	var out []string
	if len(deps) == 0 || json.Unmarshal(deps, &out) != nil {
		return nil
	}
	return out
}

// GetPage returns the page metadata stored at (areaID, path).
func (db *DB) GetPage(ctx context.Context, areaID, path string) (*models.Page, error) {
	p, err := scanPage(db.conn.QueryRowContext(ctx,
		`SELECT `+pageColumns+` `+pageFrom+` WHERE p.area_id = ? AND p.path = ?`, areaID, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: page %q: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get page: %w", err)
	}
	return p, nil
}

// UpsertPage writes p, replacing every field of an existing page except
// its creation time. The backlink index is rebuilt from p.Deps.
func (db *DB) UpsertPage(ctx context.Context, p models.Page) (*models.Page, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertPageTx(ctx, tx, p, db.now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit page: %w", err)
	}
	return db.GetPage(ctx, p.AreaID, p.Path)
}

func upsertPageTx(ctx context.Context, tx *sql.Tx, p models.Page, now time.Time) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.ParentPaths == nil {
		p.ParentPaths = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	parentsJSON, _ := json.Marshal(p.ParentPaths)
	tagsJSON, _ := json.Marshal(p.Tags)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO pages (area_id, path, parent_path, parent_paths, tags, deps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(area_id, path) DO UPDATE SET
			parent_path  = excluded.parent_path,
			parent_paths = excluded.parent_paths,
			tags         = excluded.tags,
			deps         = excluded.deps,
			updated_at   = excluded.updated_at
	`, p.AreaID, p.Path, p.ParentPath, string(parentsJSON), string(tagsJSON), p.Deps,
		toUnix(now), toUnix(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("store: upsert page: %w", err)
	}

	// Replace links: delete old then bulk insert.
	if _, err := tx.ExecContext(ctx, `DELETE FROM page_links WHERE area_id = ? AND source = ?`, p.AreaID, p.Path); err != nil {
		return fmt.Errorf("store: clear links: %w", err)
	}
	targets := DepTargets(p.Deps)
	if len(targets) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO page_links (area_id, source, target, pos) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare link insert: %w", err)
	}
	defer stmt.Close()
	for i, target := range targets {
		if _, err := stmt.ExecContext(ctx, p.AreaID, p.Path, target, i); err != nil {
			return fmt.Errorf("store: insert link: %w", err)
		}
	}
	return nil
}

// ListPages returns the children of parentPath ordered by path. The
// returned cursor is empty once the listing is exhausted.
func (db *DB) ListPages(ctx context.Context, areaID, parentPath, token string, limit int) ([]models.Page, string, error) {
	scope := areaID + "\x00" + parentPath
	c, _, err := decodeCursor(token, shapePages, scope)
	if err != nil {
		return nil, "", err
	}
	limit = clampLimit(limit)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+pageColumns+` `+pageFrom+`
		WHERE p.area_id = ? AND p.parent_path = ? AND p.path > ?
		ORDER BY p.path
		LIMIT ?`, areaID, parentPath, c.Path, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("store: list pages: %w", err)
	}
	pages, err := collectPages(rows)
	if err != nil {
		return nil, "", fmt.Errorf("store: list pages: %w", err)
	}
	return pagesWithCursor(pages, limit, func(last models.Page) cursor {
		return cursor{Shape: shapePages, Scope: scope, Path: last.Path}
	})
}

// ListAllPages walks every page of the area ordered by path.
func (db *DB) ListAllPages(ctx context.Context, areaID, token string, limit int) ([]models.Page, string, error) {
	c, _, err := decodeCursor(token, shapeAll, areaID)
	if err != nil {
		return nil, "", err
	}
	limit = clampLimit(limit)
	rows, err := db.conn.QueryContext(ctx, `SELECT `+pageColumns+` `+pageFrom+`
		WHERE p.area_id = ? AND p.path > ?
		ORDER BY p.path
		LIMIT ?`, areaID, c.Path, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("store: list all pages: %w", err)
	}
	pages, err := collectPages(rows)
	if err != nil {
		return nil, "", fmt.Errorf("store: list all pages: %w", err)
	}
	return pagesWithCursor(pages, limit, func(last models.Page) cursor {
		return cursor{Shape: shapeAll, Scope: areaID, Path: last.Path}
	})
}

// ListRecentChanges returns pages ordered by last update, newest first.
func (db *DB) ListRecentChanges(ctx context.Context, areaID, token string, limit int) ([]models.Page, string, error) {
	c, ok, err := decodeCursor(token, shapeChanges, areaID)
	if err != nil {
		return nil, "", err
	}
	limit = clampLimit(limit)

	query := `SELECT ` + pageColumns + ` ` + pageFrom + ` WHERE p.area_id = ?`
	args := []any{areaID}
	if ok {
		query += ` AND (p.updated_at < ? OR (p.updated_at = ? AND p.path > ?))`
		args = append(args, c.Updated, c.Updated, c.Path)
	}
	query += ` ORDER BY p.updated_at DESC, p.path LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("store: recent changes: %w", err)
	}
	pages, err := collectPages(rows)
	if err != nil {
		return nil, "", fmt.Errorf("store: recent changes: %w", err)
	}
	return pagesWithCursor(pages, limit, func(last models.Page) cursor {
		return cursor{Shape: shapeChanges, Scope: areaID, Path: last.Path, Updated: toUnix(last.UpdatedAt)}
	})
}

func collectPages(rows *sql.Rows) ([]models.Page, error) {
	defer rows.Close()
	var out []models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// pagesWithCursor trims the look-ahead row. A next cursor is only issued
// when that row exists.
func pagesWithCursor(pages []models.Page, limit int, at func(models.Page) cursor) ([]models.Page, string, error) {
	if len(pages) <= limit {
		return pages, "", nil
	}
	pages = pages[:limit]
	return pages, at(pages[limit-1]).encode(), nil
}

// Backlinks returns the paths of pages whose deps name target.
func (db *DB) Backlinks(ctx context.Context, areaID, target string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT source FROM page_links WHERE area_id = ? AND target = ? ORDER BY source`, areaID, target)
	if err != nil {
		return nil, fmt.Errorf("store: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
