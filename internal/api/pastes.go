package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/moewiki/internal/paste"
)

// CreatePaste handles POST /api/areas/{area}/pastes.
//
//	@Summary		Create a highlighted paste
//	@Tags			pastes
//	@Accept			json
//	@Produce		json
//	@Param			area	path		string				true	"Area name"
//	@Param			body	body		CreatePasteRequest	true	"Paste to create"
//	@Success		201		{object}	PasteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/pastes [post]
func (h *Handler) CreatePaste(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, paste.MaxCodeSize+4096)
	var req CreatePasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	p, err := h.pastes.Create(r.Context(), paste.CreateRequest{
		Area:     areaParam(r),
		UserKey:  IdentityFrom(r.Context()).Editor,
		Code:     req.Code,
		Language: req.Language,
	})
	if err != nil {
		writeError(w, err, "create paste")
		return
	}
	writeJSON(w, http.StatusCreated, PasteResponse{Paste: *p, Lines: p.Lines()})
}

// ListPastes handles GET /api/areas/{area}/pastes.
//
//	@Summary		List pastes, newest first
//	@Tags			pastes
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			cursor	query		string	false	"Opaque next-page cursor"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	PasteListResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/pastes [get]
func (h *Handler) ListPastes(w http.ResponseWriter, r *http.Request) {
	list, err := h.pastes.List(r.Context(), areaParam(r), r.URL.Query().Get("cursor"), queryInt(r, "limit"))
	if err != nil {
		writeError(w, err, "list pastes")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func pasteID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// GetPaste handles GET /api/areas/{area}/pastes/{id}.
//
//	@Summary		Get a paste
//	@Tags			pastes
//	@Produce		json
//	@Param			area	path		string	true	"Area name"
//	@Param			id		path		int		true	"Paste ID"
//	@Success		200		{object}	PasteResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/pastes/{id} [get]
func (h *Handler) GetPaste(w http.ResponseWriter, r *http.Request) {
	id, ok := pasteID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	p, err := h.pastes.Get(r.Context(), areaParam(r), id)
	if err != nil {
		writeError(w, err, "get paste", "id", id)
		return
	}
	writeJSON(w, http.StatusOK, PasteResponse{Paste: *p, Lines: p.Lines()})
}

// RawPaste handles GET /api/areas/{area}/pastes/{id}/raw.
//
//	@Summary		Get the raw code of a paste
//	@Tags			pastes
//	@Produce		plain
//	@Param			area	path		string	true	"Area name"
//	@Param			id		path		int		true	"Paste ID"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/areas/{area}/pastes/{id}/raw [get]
func (h *Handler) RawPaste(w http.ResponseWriter, r *http.Request) {
	id, ok := pasteID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	p, err := h.pastes.Get(r.Context(), areaParam(r), id)
	if err != nil {
		writeError(w, err, "get paste", "id", id)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(p.CodeRaw))
}

// Languages handles GET /api/languages.
//
//	@Summary		List the languages pastes can be highlighted in
//	@Tags			pastes
//	@Produce		json
//	@Success		200	{object}	LanguagesResponse
//	@Security		BearerAuth
//	@Router			/languages [get]
func (h *Handler) Languages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LanguagesResponse{Languages: paste.Languages()})
}

// HighlightCSS handles GET /api/highlight.css.
//
//	@Summary		Get the stylesheet of highlighted pastes
//	@Tags			pastes
//	@Produce		text/css
//	@Success		200	{string}	string
//	@Router			/highlight.css [get]
func (h *Handler) HighlightCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := h.pastes.WriteCSS(w); err != nil {
		slog.Error("write css failed", slog.String("error", err.Error()))
	}
}
