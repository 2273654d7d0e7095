package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/starford/moewiki/internal/apperr"
)

// Query shapes a cursor can be bound to.
const (
	shapePages    = "pages"
	shapeAll      = "all"
	shapeChanges  = "changes"
	shapeVersions = "versions"
	shapePastes   = "pastes"
)

// DefaultPageSize is used when a list call passes a non-positive limit.
const DefaultPageSize = 20

// MaxPageSize caps the limit of a single list call.
const MaxPageSize = 100

// cursor is the keyset position after the last row of a page of results.
// Scope binds it to the area and parent (or page) a listing was run for.
type cursor struct {
	Shape   string `json:"s"`
	Scope   string `json:"c,omitempty"`
	Path    string `json:"p,omitempty"`
	Updated int64  `json:"u,omitempty"`
	Key     int64  `json:"k,omitempty"`
}

func (c cursor) encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// decodeCursor parses token for the given shape and scope. An empty token
// starts at the beginning and yields ok == false.
func decodeCursor(token, shape, scope string) (c cursor, ok bool, err error) {
	if token == "" {
		return cursor{}, false, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, false, fmt.Errorf("store: decode cursor: %w", apperr.ErrInvalidCursor)
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return cursor{}, false, fmt.Errorf("store: decode cursor: %w", apperr.ErrInvalidCursor)
	}
	if c.Shape != shape || c.Scope != scope {
		return cursor{}, false, fmt.Errorf("store: cursor for %q used on %q: %w", c.Shape, shape, apperr.ErrInvalidCursor)
	}
	return c, true, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
