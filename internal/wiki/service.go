// Package wiki orchestrates page edits and reads over the store, the
// renderer and the markup parser.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/render"
	"github.com/starford/moewiki/internal/store"
	"github.com/starford/moewiki/internal/wikipath"
)

// Event kinds passed to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
)

// EventCallback is called after a page save commits.
type EventCallback func(kind, area, path string)

// Store is the persistence the service needs.
type Store interface {
	store.PageStore
	store.RevisionChain
	store.Areas
}

// Config holds the wiki rules.
type Config struct {
	Paths       wikipath.Normalizer
	DefaultArea string
	PageSize    int
	DiffContext int
	// LinkPrefix is prepended to normalized paths when wikilinks are
	// rendered, e.g. "/wiki/".
	LinkPrefix string
}

// Service coordinates page edits, reads and listings.
type Service struct {
	db       Store
	renderer render.Renderer
	cfg      Config
	onSave   EventCallback
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEventCallback registers cb to run after every committed save.
func WithEventCallback(cb EventCallback) Option {
	return func(s *Service) { s.onSave = cb }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new wiki service.
func NewService(db Store, r render.Renderer, cfg Config, opts ...Option) *Service {
	if cfg.DefaultArea == "" {
		cfg.DefaultArea = "www"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = store.DefaultPageSize
	}
	if cfg.LinkPrefix == "" {
		cfg.LinkPrefix = "/"
	}
	s := &Service{db: db, renderer: r, cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the rules the service was built with.
func (s *Service) Config() Config { return s.cfg }

// Resolve normalizes raw. The root path resolves to the start page.
// redirect reports whether raw is not already the canonical form.
func (s *Service) Resolve(raw string) (p wikipath.Path, redirect bool, err error) {
	p, err = s.cfg.Paths.Normalize(raw)
	if err != nil {
		return p, false, err
	}
	if p.IsRoot() && s.cfg.Paths.StartPage != "" {
		p = s.cfg.Paths.Parse(s.cfg.Paths.StartPage)
	}
	return p, raw != p.Normalized, nil
}

// Link renders the URL of a wikilink target.
func (s *Service) Link(target, anchor string) string {
	u := s.cfg.LinkPrefix + strings.TrimPrefix(s.cfg.Paths.Parse(target).Normalized, wikipath.Separator)
	if anchor != "" {
		u += "#" + wikipath.ToDashes(anchor)
	}
	return u
}

// EnsureArea creates the named area (or the default) if it is missing.
func (s *Service) EnsureArea(ctx context.Context, name string) (*models.Area, error) {
	return s.db.EnsureArea(ctx, s.areaName(name))
}

// Areas lists every area.
func (s *Service) Areas(ctx context.Context) ([]models.Area, error) {
	return s.db.ListAreas(ctx)
}

func (s *Service) areaName(name string) string {
	if name == "" {
		return s.cfg.DefaultArea
	}
	return name
}

func (s *Service) area(ctx context.Context, name string) (*models.Area, error) {
	return s.db.GetArea(ctx, s.areaName(name))
}

func (s *Service) limit(n int) int {
	if n <= 0 {
		return s.cfg.PageSize
	}
	return n
}

// parseVersion reads a version query value. Empty and "latest" select the
// head and yield nil. Integers that can never name a revision are not found.
func parseVersion(v string) (*int64, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == models.LatestID {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("wiki: version %q: %w", v, apperr.ErrBadVersion)
	}
	if n <= 0 {
		return nil, fmt.Errorf("wiki: version %d: %w", n, apperr.ErrNotFound)
	}
	return &n, nil
}

// headOrNil returns the head, or nil when the page has none.
func (s *Service) headOrNil(ctx context.Context, areaID, path string) (*models.Revision, error) {
	head, err := s.db.GetHead(ctx, areaID, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return head, err
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
