package api

import (
	"log/slog"
	"net/http"
)

func writeAtom(w http.ResponseWriter, doc string, err error) {
	if err != nil {
		slog.Error("render feed failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// ChangesFeed handles GET /api/areas/{area}/feeds/changes.
//
//	@Summary		Atom feed of recent changes
//	@Tags			feeds
//	@Produce		application/atom+xml
//	@Param			area	path		string	true	"Area name"
//	@Success		200		{string}	string
//	@Security		BearerAuth
//	@Router			/areas/{area}/feeds/changes [get]
func (h *Handler) ChangesFeed(w http.ResponseWriter, r *http.Request) {
	area := areaParam(r)
	list, err := h.wiki.RecentChanges(r.Context(), area, "", queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "changes feed")
		return
	}
	doc, err := h.feeds.Changes(area, list.Pages)
	writeAtom(w, doc, err)
}

// HistoryFeed handles GET /api/areas/{area}/feeds/history/*.
//
//	@Summary		Atom feed of a page's revisions
//	@Tags			feeds
//	@Produce		application/atom+xml
//	@Param			area	path		string	true	"Area name"
//	@Param			path	path		string	true	"Page path"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/feeds/history/{path} [get]
func (h *Handler) HistoryFeed(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}
	hist, err := h.wiki.History(r.Context(), areaParam(r), p.Normalized, "", queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "history feed", "path", p.Normalized)
		return
	}
	doc, err := h.feeds.History(p.Normalized, hist.Revisions)
	writeAtom(w, doc, err)
}

// ListFeed handles GET /api/areas/{area}/feeds/list[/*].
//
//	@Summary		Atom feed of the children of a page
//	@Tags			feeds
//	@Produce		application/atom+xml
//	@Param			area	path		string	true	"Area name"
//	@Param			path	path		string	false	"Parent path"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/feeds/list/{path} [get]
func (h *Handler) ListFeed(w http.ResponseWriter, r *http.Request) {
	area := areaParam(r)
	list, err := h.wiki.ListPages(r.Context(), area, pagePath(r), "", queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "list feed")
		return
	}
	doc, err := h.feeds.PageList(area, list.Parent, list.Pages)
	writeAtom(w, doc, err)
}
