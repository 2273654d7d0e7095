package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/starford/moewiki/internal/wiki"
)

// GetPage handles GET /api/areas/{area}/wiki/*.
//
//	@Summary		Get the head or an archived version of a page
//	@Tags			pages
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			path	path		string	true	"Page path"
//	@Param			version	query		string	false	"Version number or latest"
//	@Success		200		{object}	PageView
//	@Success		308		"Redirect to the normalized path"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/wiki/{path} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}
	view, err := h.wiki.View(r.Context(), areaParam(r), p.Normalized, r.URL.Query().Get("version"))
	if err != nil {
		writeError(w, err, "get page", "path", p.Normalized)
		return
	}
	w.Header().Set("ETag", `"`+view.ETag+`"`)
	writeJSON(w, http.StatusOK, view)
}

// SavePage handles PUT /api/areas/{area}/wiki/*.
// Supports If-Match header for optimistic concurrency.
//
//	@Summary		Create or update a page
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			area		path		string			true	"Area name"
//	@Param			path		path		string			true	"Page path"
//	@Param			If-Match	header		string			false	"ETag for optimistic concurrency"
//	@Param			body		body		SavePageRequest	true	"Page content"
//	@Success		200			{object}	SaveResult
//	@Success		201			{object}	SaveResult
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		503			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/wiki/{path} [put]
func (h *Handler) SavePage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SavePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	id := IdentityFrom(r.Context())
	raw := pagePath(r)
	res, err := h.wiki.Edit(r.Context(), wiki.EditRequest{
		Area:      areaParam(r),
		Path:      raw,
		Title:     req.Title,
		Body:      req.Body,
		Note:      req.Note,
		Section:   req.Section,
		Version:   req.Version,
		IfMatch:   strings.Trim(r.Header.Get("If-Match"), `"`),
		EditorKey: id.Editor,
		EditorIP:  id.IP,
	})
	if err != nil {
		writeError(w, err, "save page", "path", raw)
		return
	}
	w.Header().Set("ETag", `"`+res.ETag+`"`)
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// EditForm handles GET /api/areas/{area}/edit/*.
//
//	@Summary		Get the editor prefill of a page or section
//	@Tags			pages
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			path	path		string	true	"Page path"
//	@Param			version	query		string	false	"Version number or latest"
//	@Param			section	query		int		false	"Section index"
//	@Success		200		{object}	EditForm
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/edit/{path} [get]
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}
	section, ok := sectionParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid page section"))
		return
	}
	form, err := h.wiki.EditForm(r.Context(), areaParam(r), p.Normalized, r.URL.Query().Get("version"), section)
	if err != nil {
		writeError(w, err, "edit form", "path", p.Normalized)
		return
	}
	if form.ETag != "" {
		w.Header().Set("ETag", `"`+form.ETag+`"`)
	}
	writeJSON(w, http.StatusOK, form)
}

// History handles GET /api/areas/{area}/history/*.
//
//	@Summary		List the revisions of a page, newest first
//	@Tags			pages
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			path	path		string	true	"Page path"
//	@Param			cursor	query		string	false	"Opaque next-page cursor"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	HistoryResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/history/{path} [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}
	hist, err := h.wiki.History(r.Context(), areaParam(r), p.Normalized, r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "page history", "path", p.Normalized)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// Diff handles GET /api/areas/{area}/diff/*.
//
//	@Summary		Diff two revisions of a page
//	@Tags			pages
//	@Produce		json,plain
//	@Param			area	path		string	true	"Area name"
//	@Param			path	path		string	true	"Page path"
//	@Param			v1		query		string	false	"First version"
//	@Param			v2		query		string	false	"Second version, head when omitted"
//	@Param			format	query		string	false	"Response format"	Enums(json, unified)
//	@Success		200		{object}	DiffResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/diff/{path} [get]
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	view, err := h.wiki.Diff(r.Context(), areaParam(r), p.Normalized, q.Get("v1"), q.Get("v2"))
	if err != nil {
		writeError(w, err, "diff page", "path", p.Normalized)
		return
	}
	if q.Get("format") == "unified" {
		w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(view.Unified))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListPages handles GET /api/areas/{area}/pages.
//
//	@Summary		List the children of a page
//	@Tags			pages
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			parent	query		string	false	"Parent path, root when omitted"
//	@Param			cursor	query		string	false	"Opaque next-page cursor"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	PageListResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.wiki.ListPages(r.Context(), areaParam(r), q.Get("parent"), q.Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "list pages", "parent", q.Get("parent"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// RecentChanges handles GET /api/areas/{area}/changes.
//
//	@Summary		List pages by last update, newest first
//	@Tags			pages
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			cursor	query		string	false	"Opaque next-page cursor"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	PageListResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/changes [get]
func (h *Handler) RecentChanges(w http.ResponseWriter, r *http.Request) {
	list, err := h.wiki.RecentChanges(r.Context(), areaParam(r), r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "recent changes")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
