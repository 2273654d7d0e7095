// Package wikipath parses raw page paths into canonical, depth-limited,
// dash-cased wiki paths.
package wikipath

import (
	"strings"

	"github.com/starford/moewiki/internal/apperr"
)

// Separator terminates every normalized path.
const Separator = "/"

// Normalizer carries the path rules of a wiki.
type Normalizer struct {
	// ProtectedPath is the first segment reserved for internal pages.
	ProtectedPath string
	// StartPage is the start page name, without the trailing separator.
	StartPage string
	// MaxDepth caps the number of segments; zero means no limit.
	MaxDepth int
}

// Crumb is one breadcrumb entry.
type Crumb struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Path is a parsed wiki path. It is immutable once built.
type Path struct {
	Parts       []string
	Normalized  string
	AllPaths    []string
	ParentPaths []string
	ParentPath  string
	PageName    string

	protected string
	start     string
}

// Parse builds a Path from raw. Segments that are blank, or become empty
// once dash-cased, are dropped before the depth limit is applied.
func (n Normalizer) Parse(raw string) Path {
	var parts []string
	for _, seg := range strings.Split(strings.Trim(raw, Separator), Separator) {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		if d := CamelToDashes(seg); d != "" {
			parts = append(parts, d)
		}
	}
	if n.MaxDepth > 0 && len(parts) > n.MaxDepth {
		parts = parts[:n.MaxDepth]
	}

	p := Path{
		Parts:      parts,
		Normalized: strings.Join(parts, Separator) + Separator,
		protected:  n.ProtectedPath,
		start:      n.StartPage + Separator,
	}

	acc := ""
	for _, part := range parts {
		acc += part + Separator
		p.AllPaths = append(p.AllPaths, acc)
	}
	if len(p.AllPaths) > 1 {
		p.ParentPaths = p.AllPaths[:len(p.AllPaths)-1]
		p.ParentPath = p.ParentPaths[len(p.ParentPaths)-1]
	}
	if len(parts) > 0 {
		p.PageName = PageName(parts[len(parts)-1])
	}
	return p
}

// Normalize is Parse followed by the protected-prefix check.
func (n Normalizer) Normalize(raw string) (Path, error) {
	p := n.Parse(raw)
	if !p.Valid() {
		return p, apperr.ErrInvalidPath
	}
	return p, nil
}

// Valid is false when the first segment is the protected path.
func (p Path) Valid() bool {
	return len(p.Parts) == 0 || p.Parts[0] != p.protected
}

// IsStart reports whether p is the configured start page.
func (p Path) IsStart() bool {
	return p.Normalized == p.start
}

// IsRoot reports whether p has no segments.
func (p Path) IsRoot() bool {
	return len(p.Parts) == 0
}

// Breadcrumbs returns one crumb per cumulative path, root first.
func (p Path) Breadcrumbs() []Crumb {
	out := make([]Crumb, 0, len(p.AllPaths))
	for i, path := range p.AllPaths {
		out = append(out, Crumb{Path: path, Name: PageName(p.Parts[i])})
	}
	return out
}
