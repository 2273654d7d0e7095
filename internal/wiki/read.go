package wiki

import (
	"context"
	"errors"
	"strings"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/diff"
	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/store"
	"github.com/starford/moewiki/internal/wikipath"
)

// PageView is a page revision with its place in the hierarchy.
type PageView struct {
	Path        wikipath.Path    `json:"-"`
	Revision    *models.Revision `json:"revision"`
	Page        *models.Page     `json:"page,omitempty"`
	Breadcrumbs []wikipath.Crumb `json:"breadcrumbs"`
	Backlinks   []string         `json:"backlinks"`
	ETag        string           `json:"etag"`
}

// View returns the head, or the given archived version, of a page.
func (s *Service) View(ctx context.Context, areaName, raw, versionArg string) (*PageView, error) {
	version, err := parseVersion(versionArg)
	if err != nil {
		return nil, err
	}
	path, _, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	area, err := s.area(ctx, areaName)
	if err != nil {
		return nil, err
	}
	rev, err := s.db.GetVersion(ctx, area.ID, path.Normalized, version)
	if err != nil {
		return nil, err
	}
	head := rev
	if version != nil {
		if head, err = s.db.GetHead(ctx, area.ID, path.Normalized); err != nil {
			return nil, err
		}
	}
	page, err := s.db.GetPage(ctx, area.ID, path.Normalized)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	bl, err := s.db.Backlinks(ctx, area.ID, path.Normalized)
	if err != nil {
		return nil, err
	}
	return &PageView{
		Path:        path,
		Revision:    rev,
		Page:        page,
		Breadcrumbs: path.Breadcrumbs(),
		Backlinks:   nonNilSlice(bl),
		ETag:        etag(head),
	}, nil
}

// History is one page of a page's revisions, newest first.
type History struct {
	Path       wikipath.Path     `json:"-"`
	Revisions  []models.Revision `json:"revisions"`
	NextCursor string            `json:"next_cursor"`
}

// History lists the revisions of a page.
func (s *Service) History(ctx context.Context, areaName, raw, cursor string, limit int) (*History, error) {
	path, _, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	area, err := s.area(ctx, areaName)
	if err != nil {
		return nil, err
	}
	revs, next, err := s.db.ListVersions(ctx, area.ID, path.Normalized, cursor, s.limit(limit))
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 && cursor == "" {
		return nil, apperr.ErrNotFound
	}
	return &History{Path: path, Revisions: nonNilSlice(revs), NextCursor: next}, nil
}

// Diff compares two revisions of a page. With no versions the two latest
// are compared; with one, that version against the head.
func (s *Service) Diff(ctx context.Context, areaName, raw, v1, v2 string) (*diff.View, error) {
	first, err := parseVersion(v1)
	if err != nil {
		return nil, err
	}
	second, err := parseVersion(v2)
	if err != nil {
		return nil, err
	}
	path, _, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	area, err := s.area(ctx, areaName)
	if err != nil {
		return nil, err
	}

	var a, b *models.Revision
	switch {
	case first == nil && second == nil:
		revs, err := s.db.LatestTwo(ctx, area.ID, path.Normalized)
		if err != nil {
			return nil, err
		}
		if len(revs) < 2 {
			return nil, apperr.ErrNotFound
		}
		a, b = &revs[1], &revs[0]
	default:
		if a, err = s.db.GetVersion(ctx, area.ID, path.Normalized, first); err != nil {
			return nil, err
		}
		if b, err = s.db.GetVersion(ctx, area.ID, path.Normalized, second); err != nil {
			return nil, err
		}
	}
	return diff.Compute(a, b, s.cfg.DiffContext), nil
}

// PageList is one page of a listing.
type PageList struct {
	Parent     string        `json:"parent"`
	Pages      []models.Page `json:"pages"`
	NextCursor string        `json:"next_cursor"`
}

// ListPages lists the children of parent. The root parent lists top-level
// pages; any other parent must itself exist.
func (s *Service) ListPages(ctx context.Context, areaName, parent, cursor string, limit int) (*PageList, error) {
	pp, err := s.cfg.Paths.Normalize(parent)
	if err != nil {
		return nil, err
	}
	area, err := s.area(ctx, areaName)
	if err != nil {
		return nil, err
	}
	parentPath := ""
	if !pp.IsRoot() {
		parentPath = pp.Normalized
		if _, err := s.db.GetHead(ctx, area.ID, parentPath); err != nil {
			return nil, err
		}
	}
	pages, next, err := s.db.ListPages(ctx, area.ID, parentPath, cursor, s.limit(limit))
	if err != nil {
		return nil, err
	}
	return &PageList{Parent: parentPath, Pages: nonNilSlice(pages), NextCursor: next}, nil
}

// RecentChanges lists pages by last update, newest first.
func (s *Service) RecentChanges(ctx context.Context, areaName, cursor string, limit int) (*PageList, error) {
	area, err := s.area(ctx, areaName)
	if err != nil {
		return nil, err
	}
	pages, next, err := s.db.ListRecentChanges(ctx, area.ID, cursor, s.limit(limit))
	if err != nil {
		return nil, err
	}
	return &PageList{Pages: nonNilSlice(pages), NextCursor: next}, nil
}

// Search runs a full-text query over head revisions.
func (s *Service) Search(ctx context.Context, areaName, query string, limit int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []store.SearchResult{}, nil
	}
	area, err := s.area(ctx, areaName)
	if err != nil {
		return nil, err
	}
	res, err := s.db.Search(ctx, area.ID, query, s.limit(limit))
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Backlinks returns the pages that link to raw.
func (s *Service) Backlinks(ctx context.Context, areaName, raw string) ([]string, error) {
	path, _, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	area, err := s.area(ctx, areaName)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(ctx, area.ID, path.Normalized)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(bl), nil
}
