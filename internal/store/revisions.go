package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
)

// RevisionInput carries the content of a save. The store stamps the
// timestamps and decides the author.
type RevisionInput struct {
	AreaID    string
	Path      string
	EditorKey string
	EditorIP  string
	Title     string
	Body      string
	BodyRaw   string
	TOC       string
	Format    string
	Notes     string
}

// errStaleHead marks a save that lost the head CAS or the insert race.
var errStaleHead = errors.New("store: concurrent modification")

const revisionFields = `created_at, updated_at, author_key, editor_key, editor_ip,
	title, body, body_raw, toc, format, notes`

func scanRevision(s scanner, r *models.Revision) error {
	var created, updated int64
	if err := s.Scan(&r.Version, &r.Generation, &created, &updated, &r.AuthorKey, &r.EditorKey,
		&r.EditorIP, &r.Title, &r.Body, &r.BodyRaw, &r.TOC, &r.Format, &r.Notes); err != nil {
		return err
	}
	r.CreatedAt = fromUnix(created)
	r.UpdatedAt = fromUnix(updated)
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getHead(ctx context.Context, q queryRower, areaID, path string) (*models.Revision, error) {
	r := &models.Revision{AreaID: areaID, Path: path}
	err := scanRevision(q.QueryRowContext(ctx,
		`SELECT 0, generation, `+revisionFields+` FROM revision_heads WHERE area_id = ? AND path = ?`,
		areaID, path), r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: head of %q: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get head: %w", err)
	}
	return r, nil
}

// GetHead returns the current revision of a page.
func (db *DB) GetHead(ctx context.Context, areaID, path string) (*models.Revision, error) {
	return getHead(ctx, db.conn, areaID, path)
}

// GetVersion returns the archived revision with the given ordinal, or the
// head when version is nil.
func (db *DB) GetVersion(ctx context.Context, areaID, path string, version *int64) (*models.Revision, error) {
	if version == nil {
		return db.GetHead(ctx, areaID, path)
	}
	r := &models.Revision{AreaID: areaID, Path: path}
	err := scanRevision(db.conn.QueryRowContext(ctx,
		`SELECT id, 0, `+revisionFields+` FROM revision_archive WHERE area_id = ? AND path = ? AND id = ?`,
		areaID, path, *version), r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: version %d of %q: %w", *version, path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get version: %w", err)
	}
	return r, nil
}

// versionsSQL lists the head and the archive of one page as a single
// stream. The head sorts after every archived ordinal so it wins ties.
const versionsSQL = `SELECT version, generation, ` + revisionFields + ` FROM (
	SELECT 0 AS version, generation, ` + revisionFields + `, ` + headSortKey + ` AS sort_key
	FROM revision_heads WHERE area_id = ? AND path = ?
	UNION ALL
	SELECT id AS version, 0 AS generation, ` + revisionFields + `, id AS sort_key
	FROM revision_archive WHERE area_id = ? AND path = ?
)`

const headSortKey = "9223372036854775807"

// ListVersions returns the revisions of a page, newest first.
func (db *DB) ListVersions(ctx context.Context, areaID, path, token string, limit int) ([]models.Revision, string, error) {
	scope := areaID + "\x00" + path
	c, ok, err := decodeCursor(token, shapeVersions, scope)
	if err != nil {
		return nil, "", err
	}
	limit = clampLimit(limit)

	query := versionsSQL
	args := []any{areaID, path, areaID, path}
	if ok {
		query += ` WHERE (updated_at < ? OR (updated_at = ? AND sort_key < ?))`
		args = append(args, c.Updated, c.Updated, c.Key)
	}
	query += ` ORDER BY updated_at DESC, sort_key DESC LIMIT ?`
	args = append(args, limit+1)

	revs, err := db.queryRevisions(ctx, areaID, path, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("store: list versions: %w", err)
	}
	if len(revs) <= limit {
		return revs, "", nil
	}
	revs = revs[:limit]
	last := revs[limit-1]
	key := last.Version
	if last.IsHead() {
		key = math.MaxInt64
	}
	return revs, cursor{Shape: shapeVersions, Scope: scope, Updated: toUnix(last.UpdatedAt), Key: key}.encode(), nil
}

// LatestTwo returns the two most recent revisions of a page, newest first.
// Fewer are returned when the page has fewer.
func (db *DB) LatestTwo(ctx context.Context, areaID, path string) ([]models.Revision, error) {
	revs, err := db.queryRevisions(ctx, areaID, path,
		versionsSQL+` ORDER BY updated_at DESC, sort_key DESC LIMIT 2`, areaID, path, areaID, path)
	if err != nil {
		return nil, fmt.Errorf("store: latest two: %w", err)
	}
	return revs, nil
}

func (db *DB) queryRevisions(ctx context.Context, areaID, path, query string, args ...any) ([]models.Revision, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Revision
	for rows.Next() {
		r := models.Revision{AreaID: areaID, Path: path}
		if err := scanRevision(rows, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveRevision archives the current head (if any) and writes in as the
// new head.
func (db *DB) SaveRevision(ctx context.Context, in RevisionInput) (*models.Revision, error) {
	var out *models.Revision
	err := db.withRetry(ctx, func(tx *sql.Tx) error {
		r, err := saveRevisionTx(ctx, tx, in, db.now())
		out = r
		return err
	})
	return out, err
}

// SaveEdit saves a revision and upserts its page in one transaction. The
// page's update time is the time of the new head.
func (db *DB) SaveEdit(ctx context.Context, in RevisionInput, p models.Page) (*models.Revision, *models.Page, error) {
	var out *models.Revision
	err := db.withRetry(ctx, func(tx *sql.Tx) error {
		r, err := saveRevisionTx(ctx, tx, in, db.now())
		if err != nil {
			return err
		}
		p.AreaID, p.Path, p.UpdatedAt = in.AreaID, in.Path, r.UpdatedAt
		if err := upsertPageTx(ctx, tx, p, r.UpdatedAt); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	page, err := db.GetPage(ctx, in.AreaID, in.Path)
	if err != nil {
		return nil, nil, err
	}
	return out, page, nil
}

func saveRevisionTx(ctx context.Context, tx *sql.Tx, in RevisionInput, now time.Time) (*models.Revision, error) {
	head, err := getHead(ctx, tx, in.AreaID, in.Path)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	now = now.UTC()
	if head != nil && !now.After(head.UpdatedAt) {
		now = head.UpdatedAt.Add(time.Nanosecond)
	}
	ts := toUnix(now)

	out := &models.Revision{
		AreaID:    in.AreaID,
		Path:      in.Path,
		CreatedAt: now,
		UpdatedAt: now,
		EditorKey: in.EditorKey,
		EditorIP:  in.EditorIP,
		Title:     in.Title,
		Body:      in.Body,
		BodyRaw:   in.BodyRaw,
		TOC:       in.TOC,
		Format:    in.Format,
		Notes:     in.Notes,
	}

	if head == nil {
		out.AuthorKey = in.EditorKey
		out.Generation = 1
		res, err := tx.ExecContext(ctx, `
			INSERT INTO revision_heads (area_id, path, generation, `+revisionFields+`)
			VALUES (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(area_id, path) DO NOTHING
		`, in.AreaID, in.Path, ts, ts, out.AuthorKey, in.EditorKey, in.EditorIP,
			in.Title, in.Body, in.BodyRaw, in.TOC, in.Format, in.Notes)
		if err != nil {
			return nil, fmt.Errorf("store: insert head: %w", err)
		}
		if err := expectOne(res); err != nil {
			return nil, err
		}
	} else {
		out.AuthorKey = head.AuthorKey
		out.Generation = head.Generation + 1
		res, err := tx.ExecContext(ctx, `
			INSERT INTO revision_archive (area_id, path, `+revisionFields+`)
			SELECT area_id, path, `+revisionFields+` FROM revision_heads
			WHERE area_id = ? AND path = ? AND generation = ?
		`, in.AreaID, in.Path, head.Generation)
		if err != nil {
			return nil, fmt.Errorf("store: archive head: %w", err)
		}
		if err := expectOne(res); err != nil {
			return nil, err
		}
		res, err = tx.ExecContext(ctx, `
			UPDATE revision_heads SET
				generation = generation + 1,
				created_at = ?, updated_at = ?,
				editor_key = ?, editor_ip = ?,
				title = ?, body = ?, body_raw = ?, toc = ?, format = ?, notes = ?
			WHERE area_id = ? AND path = ? AND generation = ?
		`, ts, ts, in.EditorKey, in.EditorIP, in.Title, in.Body, in.BodyRaw, in.TOC, in.Format, in.Notes,
			in.AreaID, in.Path, head.Generation)
		if err != nil {
			return nil, fmt.Errorf("store: update head: %w", err)
		}
		if err := expectOne(res); err != nil {
			return nil, err
		}
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, in.AreaID, in.Path, in.Title, in.BodyRaw); err != nil {
		return nil, err
	}
	return out, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return errStaleHead
	}
	return nil
}

// UpdateRendering rewrites the rendered body and toc of the head, provided
// it is still at generation. No archive copy is made.
func (db *DB) UpdateRendering(ctx context.Context, areaID, path string, generation int64, body, toc string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE revision_heads SET body = ?, toc = ?
		WHERE area_id = ? AND path = ? AND generation = ?
	`, body, toc, areaID, path, generation)
	if err != nil {
		return fmt.Errorf("store: update rendering: %w", err)
	}
	if expectOne(res) != nil {
		return fmt.Errorf("store: head of %q moved past generation %d: %w", path, generation, apperr.ErrConflict)
	}
	return nil
}

// withRetry runs fn in a transaction, starting over when it reports a
// concurrent modification or SQLite reports the database busy.
func (db *DB) withRetry(ctx context.Context, fn func(*sql.Tx) error) error {
	var last error
	for attempt := 0; attempt <= db.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := db.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		last = err
	}
	return fmt.Errorf("store: gave up after %d attempts (%v): %w", db.retries+1, last, apperr.ErrWriteConflict)
}

func (db *DB) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, errStaleHead) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
