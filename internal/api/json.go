package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/moewiki/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string            `json:"error" validate:"required"`
	Fields validation.Errors `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps domain errors to HTTP statuses. Anything unrecognised
// is logged under op and reported as a 500.
func writeError(w http.ResponseWriter, err error, op string, attrs ...any) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "validation failed", Fields: verrs})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidPath):
		writeJSON(w, http.StatusNotFound, errorBody("invalid path"))
	case errors.Is(err, apperr.ErrBadVersion):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid version number"))
	case errors.Is(err, apperr.ErrInvalidCursor):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid cursor"))
	case errors.Is(err, apperr.ErrInvalidSection):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid page section"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("revision mismatch"))
	case errors.Is(err, apperr.ErrWriteConflict):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("page is being edited, retry"))
	case errors.Is(err, apperr.ErrRender):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("could not render page"))
	default:
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
