// Package render turns raw page markup into HTML and a table of contents.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/wikipath"
)

// FormatMarkdown is the format tag stored on revisions rendered by Markdown.
const FormatMarkdown = "markdown"

// TOCEntry is one heading of a rendered page.
type TOCEntry struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

// Result is the output of a render.
type Result struct {
	HTML string
	TOC  []TOCEntry
}

// Context is the per-call configuration of a render.
type Context struct {
	// Title is the page title; it seeds the TOC as the top-level entry.
	Title string
	// Link maps a wikilink (target, anchor) to a URL. Nil leaves
	// wikilinks as plain text.
	Link func(target, anchor string) string
}

// Renderer converts raw markup to HTML.
type Renderer interface {
	Render(raw string, rc Context) (Result, error)
	Format() string
}

// Markdown renders CommonMark + GFM with goldmark.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown returns a Markdown renderer.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
}

// Format implements Renderer.
func (m *Markdown) Format() string { return FormatMarkdown }

// Render implements Renderer.
func (m *Markdown) Render(raw string, rc Context) (Result, error) {
	src := []byte(rewriteWikilinks(raw, rc.Link))

	ids := newSlugs()
	toc := []TOCEntry{{Level: 1, Title: rc.Title, Anchor: ids.reserve(rc.Title)}}

	doc := m.md.Parser().Parse(text.NewReader(src), parser.WithContext(parser.NewContext(parser.WithIDs(ids))))

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		var anchor string
		if v, ok := h.AttributeString("id"); ok {
			if b, ok := v.([]byte); ok {
				anchor = string(b)
			}
		}
		toc = append(toc, TOCEntry{Level: h.Level, Title: nodeText(h, src), Anchor: anchor})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperr.ErrRender, err)
	}

	var buf bytes.Buffer
	if err := m.md.Renderer().Render(&buf, src, doc); err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperr.ErrRender, err)
	}
	return Result{HTML: buf.String(), TOC: toc}, nil
}

// TOCHTML renders entries as a flat list. A page with only its title has
// no table of contents.
func TOCHTML(entries []TOCEntry) string {
	if len(entries) <= 1 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<ul class="toc">`)
	for _, e := range entries {
		fmt.Fprintf(&b, `<li class="toc-h%d"><a href="#%s">%s</a></li>`,
			e.Level, html.EscapeString(e.Anchor), html.EscapeString(e.Title))
	}
	b.WriteString(`</ul>`)
	return b.String()
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// slugs hands out heading anchors: the dash-cased heading text, falling
// back to "heading", with _1, _2... appended on collisions.
type slugs struct {
	used map[string]struct{}
}

func newSlugs() *slugs {
	return &slugs{used: make(map[string]struct{})}
}

func (s *slugs) reserve(value string) string {
	base := wikipath.ToDashes(value)
	if base == "" {
		base = "heading"
	}
	slug := base
	for i := 1; ; i++ {
		if _, taken := s.used[slug]; !taken {
			break
		}
		slug = base + "_" + strconv.Itoa(i)
	}
	s.used[slug] = struct{}{}
	return slug
}

// Generate implements parser.IDs.
func (s *slugs) Generate(value []byte, _ ast.NodeKind) []byte {
	return []byte(s.reserve(string(value)))
}

// Put implements parser.IDs.
func (s *slugs) Put(value []byte) {
	s.used[string(value)] = struct{}{}
}
