package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/moewiki/internal/feed"
	"github.com/starford/moewiki/internal/paste"
	"github.com/starford/moewiki/internal/wiki"
)

// RouterConfig holds the API options.
type RouterConfig struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Editor is the editor key of token-authenticated requests.
	Editor string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	Feeds  feed.Builder
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *wiki.Service, pastes *paste.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, pastes, cfg.Feeds)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))
	r.Use(EditorMiddleware(cfg.AuthEnabled, cfg.Editor))

	r.Get("/areas", h.ListAreas)
	r.Get("/languages", h.Languages)
	r.Get("/highlight.css", h.HighlightCSS)

	r.Route("/areas/{area}", func(r chi.Router) {
		// Pages and history.
		r.Get("/pages", h.ListPages)
		r.Get("/changes", h.RecentChanges)
		r.Get("/wiki/*", h.GetPage)
		r.Put("/wiki/*", h.SavePage)
		r.Get("/edit/*", h.EditForm)
		r.Get("/history/*", h.History)
		r.Get("/diff/*", h.Diff)
		r.Get("/backlinks/*", h.Backlinks)

		// Search.
		r.Get("/search", h.Search)

		// Atom feeds.
		r.Get("/feeds/changes", h.ChangesFeed)
		r.Get("/feeds/history/*", h.HistoryFeed)
		r.Get("/feeds/list", h.ListFeed)
		r.Get("/feeds/list/*", h.ListFeed)

		// Pastebin.
		r.Post("/pastes", h.CreatePaste)
		r.Get("/pastes", h.ListPastes)
		r.Get("/pastes/{id}", h.GetPaste)
		r.Get("/pastes/{id}/raw", h.RawPaste)
	})

	// SSE endpoint (protected by same auth middleware).
	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}

	return r
}
