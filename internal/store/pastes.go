package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
)

const pasteColumns = `id, area_id, user_key, code_raw, code, language, created_at, updated_at`

func scanPaste(s scanner) (*models.Paste, error) {
	var (
		p                models.Paste
		created, updated int64
	)
	if err := s.Scan(&p.ID, &p.AreaID, &p.UserKey, &p.CodeRaw, &p.Code, &p.Language, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	return &p, nil
}

// CreatePaste stores p and returns it with its assigned ID and timestamps.
func (db *DB) CreatePaste(ctx context.Context, p models.Paste) (*models.Paste, error) {
	now := db.now().UTC()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO pastes (area_id, user_key, code_raw, code, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.AreaID, p.UserKey, p.CodeRaw, p.Code, p.Language, toUnix(now), toUnix(now))
	if err != nil {
		return nil, fmt.Errorf("store: create paste: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: paste id: %w", err)
	}
	p.ID = id
	p.CreatedAt, p.UpdatedAt = now, now
	return &p, nil
}

// GetPaste returns the paste with the given ID in the area.
func (db *DB) GetPaste(ctx context.Context, areaID string, id int64) (*models.Paste, error) {
	p, err := scanPaste(db.conn.QueryRowContext(ctx,
		`SELECT `+pasteColumns+` FROM pastes WHERE area_id = ? AND id = ?`, areaID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: paste %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get paste: %w", err)
	}
	return p, nil
}

// ListPastes returns the area's pastes, newest first.
func (db *DB) ListPastes(ctx context.Context, areaID, token string, limit int) ([]models.Paste, string, error) {
	c, ok, err := decodeCursor(token, shapePastes, areaID)
	if err != nil {
		return nil, "", err
	}
	limit = clampLimit(limit)

	query := `SELECT ` + pasteColumns + ` FROM pastes WHERE area_id = ?`
	args := []any{areaID}
	if ok {
		query += ` AND id < ?`
		args = append(args, c.Key)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("store: list pastes: %w", err)
	}
	defer rows.Close()

	var out []models.Paste
	for rows.Next() {
		p, err := scanPaste(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	if len(out) <= limit {
		return out, "", nil
	}
	out = out[:limit]
	return out, cursor{Shape: shapePastes, Scope: areaID, Key: out[limit-1].ID}.encode(), nil
}
