// Package models defines the domain types for the wiki and the pastebin.
package models

import (
	"strconv"
	"time"
)

// LatestID is the identifier every head revision reports.
const LatestID = "latest"

// Area is an isolation scope; every page, revision and paste belongs to one.
type Area struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Page holds the hierarchy metadata of a wiki page. Its content lives in
// the revision chain stored under the same (area, path) key.
type Page struct {
	AreaID      string    `json:"area_id"`
	Path        string    `json:"path"`
	ParentPath  string    `json:"parent_path"`
	ParentPaths []string  `json:"parent_paths"`
	Tags        []string  `json:"tags"`
	Deps        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Title is copied from the head revision by list queries. It is not
	// part of the page record.
	Title string `json:"title,omitempty"`
}

// Revision is one snapshot of a page's content.
type Revision struct {
	// Version is zero for the head and the archive ordinal otherwise.
	Version   int64     `json:"version"`
	AreaID    string    `json:"area_id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	AuthorKey string    `json:"author_key"`
	EditorKey string    `json:"editor_key"`
	EditorIP  string    `json:"editor_ip,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	BodyRaw   string    `json:"body_raw"`
	TOC       string    `json:"toc"`
	Format    string    `json:"format"`
	Notes     string    `json:"notes"`

	// Generation is the head's compare-and-swap counter. Archived copies
	// report zero.
	Generation int64 `json:"-"`
}

// IsHead reports whether r is the page's current revision.
func (r *Revision) IsHead() bool {
	return r.Version == 0
}

// ID returns "latest" for the head and the decimal version otherwise.
func (r *Revision) ID() string {
	if r.IsHead() {
		return LatestID
	}
	return strconv.FormatInt(r.Version, 10)
}
