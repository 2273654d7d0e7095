package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
)

// EnsureArea returns the area called name, creating it on first use.
func (db *DB) EnsureArea(ctx context.Context, name string) (*models.Area, error) {
	a, err := db.GetArea(ctx, name)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO areas (id, name, title, created_at) VALUES (?, ?, '', ?)
		ON CONFLICT(name) DO NOTHING
	`, uuid.NewString(), name, toUnix(db.now()))
	if err != nil {
		return nil, fmt.Errorf("store: create area: %w", err)
	}
	return db.GetArea(ctx, name)
}

// GetArea looks an area up by name.
func (db *DB) GetArea(ctx context.Context, name string) (*models.Area, error) {
	var (
		a       models.Area
		created int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, title, created_at FROM areas WHERE name = ?`, name,
	).Scan(&a.ID, &a.Name, &a.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: area %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get area: %w", err)
	}
	a.CreatedAt = fromUnix(created)
	return &a, nil
}

// SetAreaTitle updates the display title of an existing area.
func (db *DB) SetAreaTitle(ctx context.Context, name, title string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE areas SET title = ? WHERE name = ?`, title, name)
	if err != nil {
		return fmt.Errorf("store: set area title: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: area %q: %w", name, apperr.ErrNotFound)
	}
	return nil
}

// ListAreas returns every area ordered by name.
func (db *DB) ListAreas(ctx context.Context) ([]models.Area, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, name, title, created_at FROM areas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list areas: %w", err)
	}
	defer rows.Close()

	var out []models.Area
	for rows.Next() {
		var (
			a       models.Area
			created int64
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Title, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = fromUnix(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
