// Package paste implements the pastebin: syntax-highlighted code snippets
// stored per area.
package paste

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/store"
)

// MaxCodeSize caps the raw size of a paste in bytes.
const MaxCodeSize = 512 << 10

// Store is the persistence the service needs.
type Store interface {
	store.Pastes
	store.Areas
}

// CreateRequest is a new paste.
type CreateRequest struct {
	Area     string `json:"-"`
	UserKey  string `json:"-"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// Validate validates the request.
func (r *CreateRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Code, validation.Required, validation.Length(1, MaxCodeSize)),
		validation.Field(&r.Language, validation.Length(0, 64)),
	)
}

// List is one page of pastes, newest first.
type List struct {
	Pastes     []models.Paste `json:"pastes"`
	NextCursor string         `json:"next_cursor"`
}

// Service creates and reads pastes.
type Service struct {
	db          Store
	defaultArea string
	style       *chroma.Style
	formatter   *html.Formatter
}

// NewService creates a paste service. Unknown style names fall back to
// chroma's default style.
func NewService(db Store, defaultArea, style string) *Service {
	return &Service{
		db:          db,
		defaultArea: defaultArea,
		style:       styles.Get(style),
		formatter:   html.New(html.WithClasses(true), html.WithLineNumbers(true)),
	}
}

func (s *Service) areaName(name string) string {
	if name == "" {
		return s.defaultArea
	}
	return name
}

// Create highlights and stores a paste.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Paste, error) {
	req.Code = strings.TrimRight(req.Code, " \t\r\n")
	if err := req.Validate(); err != nil {
		return nil, err
	}
	area, err := s.db.EnsureArea(ctx, s.areaName(req.Area))
	if err != nil {
		return nil, err
	}
	code, lang, err := s.Highlight(req.Code, req.Language)
	if err != nil {
		return nil, err
	}
	return s.db.CreatePaste(ctx, models.Paste{
		AreaID:   area.ID,
		UserKey:  req.UserKey,
		CodeRaw:  req.Code,
		Code:     code,
		Language: lang,
	})
}

// Get returns one paste.
func (s *Service) Get(ctx context.Context, areaName string, id int64) (*models.Paste, error) {
	area, err := s.db.GetArea(ctx, s.areaName(areaName))
	if err != nil {
		return nil, err
	}
	return s.db.GetPaste(ctx, area.ID, id)
}

// List returns the area's pastes, newest first.
func (s *Service) List(ctx context.Context, areaName, cursor string, limit int) (*List, error) {
	area, err := s.db.GetArea(ctx, s.areaName(areaName))
	if err != nil {
		return nil, err
	}
	pastes, next, err := s.db.ListPastes(ctx, area.ID, cursor, limit)
	if err != nil {
		return nil, err
	}
	if pastes == nil {
		pastes = []models.Paste{}
	}
	return &List{Pastes: pastes, NextCursor: next}, nil
}

// Highlight renders code as HTML. An unknown or empty language is
// highlighted as plain text. The returned language is the lexer's name.
func (s *Service) Highlight(code, language string) (string, string, error) {
	lexer := lexers.Get(strings.TrimSpace(language))
	if lexer == nil {
		lexer = lexers.Get("plaintext")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", "", fmt.Errorf("paste: tokenise: %w", err)
	}
	var b strings.Builder
	if err := s.formatter.Format(&b, s.style, it); err != nil {
		return "", "", fmt.Errorf("paste: format: %w", err)
	}
	return b.String(), strings.ToLower(lexer.Config().Name), nil
}

// WriteCSS writes the stylesheet for the highlight classes.
func (s *Service) WriteCSS(w io.Writer) error {
	return s.formatter.WriteCSS(w, s.style)
}

// Languages returns the names of every language that can be highlighted.
func Languages() []string {
	names := lexers.Names(false)
	sort.Strings(names)
	return names
}
