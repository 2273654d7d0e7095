// Package api implements the moewiki REST API using chi.
package api

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// EditorHeader names the editor of a request when auth is disabled.
const EditorHeader = "X-Wiki-Editor"

// AnonymousEditor is the editor key of unauthenticated requests that do
// not name one.
const AnonymousEditor = "anonymous"

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identity is who made a request.
type Identity struct {
	Editor string
	IP     string
}

type identityKey struct{}

// EditorMiddleware attaches the request Identity. With auth enabled every
// request acts as editor; otherwise the X-Wiki-Editor header names the
// editor, defaulting to "anonymous".
func EditorMiddleware(authEnabled bool, editor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := Identity{IP: clientIP(r)}
			switch {
			case authEnabled:
				id.Editor = editor
			default:
				id.Editor = strings.TrimSpace(r.Header.Get(EditorHeader))
			}
			if id.Editor == "" {
				id.Editor = AnonymousEditor
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

// IdentityFrom returns the Identity stored by EditorMiddleware.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Identity{Editor: AnonymousEditor}
}

// clientIP strips the port from RemoteAddr, which chi's RealIP middleware
// may already have replaced with a forwarded address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
