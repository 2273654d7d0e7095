// Package jobs holds batch maintenance tasks.
package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/render"
)

// DefaultBatch is the number of pages a reparse batch visits.
const DefaultBatch = 50

// Source is the store surface the reparse job needs.
type Source interface {
	GetArea(ctx context.Context, name string) (*models.Area, error)
	ListAllPages(ctx context.Context, areaID, cursor string, limit int) ([]models.Page, string, error)
	GetHead(ctx context.Context, areaID, path string) (*models.Revision, error)
	UpdateRendering(ctx context.Context, areaID, path string, generation int64, body, toc string) error
}

// ReparseStats counts what a run did.
type ReparseStats struct {
	Pages     int    `json:"pages"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Cursor    string `json:"cursor"`
}

// Reparser re-renders head revisions with the current renderer.
type Reparser struct {
	db       Source
	renderer render.Renderer
	link     func(target, anchor string) string
	logger   *slog.Logger
}

// NewReparser creates a reparse job.
func NewReparser(db Source, r render.Renderer, link func(target, anchor string) string, logger *slog.Logger) *Reparser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reparser{db: db, renderer: r, link: link, logger: logger}
}

// Batch re-renders up to batch pages of area starting at cursor. The
// returned stats carry the cursor to resume from; it is empty once every
// page has been visited. Heads that move while being re-rendered are
// skipped.
func (rp *Reparser) Batch(ctx context.Context, area, cursor string, batch int) (ReparseStats, error) {
	var st ReparseStats
	if batch <= 0 {
		batch = DefaultBatch
	}
	a, err := rp.db.GetArea(ctx, area)
	if err != nil {
		return st, err
	}
	pages, next, err := rp.db.ListAllPages(ctx, a.ID, cursor, batch)
	if err != nil {
		return st, err
	}
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Pages++
		rp.reparse(ctx, a.ID, p.Path, &st)
	}
	st.Cursor = next
	return st, nil
}

// Run calls Batch until every page of area has been visited or ctx ends.
func (rp *Reparser) Run(ctx context.Context, area, cursor string, batch int) (ReparseStats, error) {
	var total ReparseStats
	for {
		st, err := rp.Batch(ctx, area, cursor, batch)
		total.Pages += st.Pages
		total.Updated += st.Updated
		total.Unchanged += st.Unchanged
		total.Skipped += st.Skipped
		total.Failed += st.Failed
		total.Cursor = cursor
		if err != nil {
			return total, err
		}
		rp.logger.Info("reparse: batch done",
			slog.String("area", area), slog.Int("pages", st.Pages), slog.String("cursor", st.Cursor))
		if st.Cursor == "" {
			total.Cursor = ""
			return total, nil
		}
		cursor = st.Cursor
	}
}

func (rp *Reparser) reparse(ctx context.Context, areaID, path string, st *ReparseStats) {
	head, err := rp.db.GetHead(ctx, areaID, path)
	if errors.Is(err, apperr.ErrNotFound) {
		st.Skipped++
		return
	}
	if err != nil {
		rp.logger.Warn("reparse: load head failed", slog.String("path", path), slog.String("error", err.Error()))
		st.Failed++
		return
	}

	var body, toc string
	if head.BodyRaw != "" {
		res, err := rp.renderer.Render(head.BodyRaw, render.Context{Title: head.Title, Link: rp.link})
		if err != nil {
			rp.logger.Warn("reparse: render failed", slog.String("path", path), slog.String("error", err.Error()))
			st.Failed++
			return
		}
		body, toc = res.HTML, render.TOCHTML(res.TOC)
	}
	if body == head.Body && toc == head.TOC {
		st.Unchanged++
		return
	}

	err = rp.db.UpdateRendering(ctx, areaID, path, head.Generation, body, toc)
	switch {
	case errors.Is(err, apperr.ErrConflict):
		rp.logger.Debug("reparse: head moved, skipped", slog.String("path", path))
		st.Skipped++
	case err != nil:
		rp.logger.Warn("reparse: update failed", slog.String("path", path), slog.String("error", err.Error()))
		st.Failed++
	default:
		st.Updated++
	}
}
