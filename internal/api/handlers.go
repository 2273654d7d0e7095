package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/moewiki/internal/feed"
	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/paste"
	"github.com/starford/moewiki/internal/wiki"
	"github.com/starford/moewiki/internal/wikipath"
)

// Handler holds API route handlers.
type Handler struct {
	wiki   *wiki.Service
	pastes *paste.Service
	feeds  feed.Builder
}

// NewHandler creates a new Handler.
func NewHandler(svc *wiki.Service, pastes *paste.Service, feeds feed.Builder) *Handler {
	return &Handler{wiki: svc, pastes: pastes, feeds: feeds}
}

// pagePath extracts the raw page path from the URL (everything after the
// route prefix). Supports encoded slashes from OpenAPI clients.
func pagePath(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func areaParam(r *http.Request) string {
	return chi.URLParam(r, "area")
}

// resolve normalizes the page path of r. When the request path is not
// canonical it answers with a permanent redirect and returns false.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (wikipath.Path, bool) {
	raw := pagePath(r)
	p, redirect, err := h.wiki.Resolve(raw)
	if err != nil {
		writeError(w, err, "resolve path", "path", raw)
		return p, false
	}
	if redirect {
		prefix := strings.TrimSuffix(routePath(r), chi.URLParam(r, "*"))
		loc := strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(p.Normalized, "/")
		if r.URL.RawQuery != "" {
			loc += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, loc, http.StatusPermanentRedirect)
		return p, false
	}
	return p, true
}

// routePath is the request path chi matched the wildcard against: the
// escaped form when the request carried encoded characters.
func routePath(r *http.Request) string {
	if r.URL.RawPath != "" {
		return r.URL.RawPath
	}
	return r.URL.Path
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// sectionParam parses ?section=; a missing value is nil.
func sectionParam(r *http.Request) (*int, bool) {
	v := r.URL.Query().Get("section")
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, false
	}
	return &n, true
}

// ListAreas handles GET /api/areas.
//
//	@Summary		List wiki areas
//	@Tags			areas
//	@Produce		json
//	@Success		200	{object}	AreasResponse
//	@Security		BearerAuth
//	@Router			/areas [get]
func (h *Handler) ListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.wiki.Areas(r.Context())
	if err != nil {
		writeError(w, err, "list areas")
		return
	}
	if areas == nil {
		areas = []models.Area{}
	}
	writeJSON(w, http.StatusOK, AreasResponse{Areas: areas})
}

// Search handles GET /api/areas/{area}/search.
//
//	@Summary		Full-text search over page heads
//	@Tags			search
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	results, err := h.wiki.Search(r.Context(), areaParam(r), q, queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "search", "query", q)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Backlinks handles GET /api/areas/{area}/backlinks/*.
//
//	@Summary		Get the pages linking to a page
//	@Tags			search
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			path	path		string	true	"Page path"
//	@Success		200		{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}
	links, err := h.wiki.Backlinks(r.Context(), areaParam(r), p.Normalized)
	if err != nil {
		writeError(w, err, "get backlinks", "path", p.Normalized)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: p.Normalized, Backlinks: links})
}
