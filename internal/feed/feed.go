// Package feed renders Atom feeds of wiki changes.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/starford/moewiki/internal/models"
)

// Builder turns page and revision listings into Atom documents.
type Builder struct {
	// BaseURL is the absolute site root, e.g. "https://wiki.example.org".
	BaseURL string
	// LinkPrefix is the path under which pages are served, e.g. "/wiki/".
	LinkPrefix string
	// Title prefixes every feed title.
	Title string
}

func (b Builder) pageURL(path string) string {
	return strings.TrimSuffix(b.BaseURL, "/") + b.LinkPrefix + strings.TrimPrefix(path, "/")
}

func (b Builder) newFeed(title, link string, items int) *feeds.Feed {
	return &feeds.Feed{
		Title: strings.TrimSpace(b.Title + " " + title),
		Link:  &feeds.Link{Href: link},
		Id:    link,
		Items: make([]*feeds.Item, 0, items),
	}
}

// Changes renders the recent changes of an area.
func (b Builder) Changes(area string, pages []models.Page) (string, error) {
	f := b.newFeed("Recent changes", b.pageURL(""), len(pages))
	f.Description = fmt.Sprintf("Recently changed pages in %s", area)
	for _, p := range pages {
		f.Items = append(f.Items, pageItem(b.pageURL(p.Path), p))
		if p.UpdatedAt.After(f.Updated) {
			f.Updated = p.UpdatedAt
		}
	}
	return f.ToAtom()
}

// PageList renders the children of parent, or the top-level pages when
// parent is empty.
func (b Builder) PageList(area, parent string, pages []models.Page) (string, error) {
	title := "Pages"
	if parent != "" {
		title = "Pages under " + parent
	}
	f := b.newFeed(title, b.pageURL(parent), len(pages))
	f.Description = fmt.Sprintf("Page list of %s", area)
	for _, p := range pages {
		f.Items = append(f.Items, pageItem(b.pageURL(p.Path), p))
		if p.UpdatedAt.After(f.Updated) {
			f.Updated = p.UpdatedAt
		}
	}
	return f.ToAtom()
}

// History renders the revisions of one page, newest first.
func (b Builder) History(path string, revs []models.Revision) (string, error) {
	link := b.pageURL(path)
	f := b.newFeed("History of "+path, link, len(revs))
	for _, r := range revs {
		item := &feeds.Item{
			Title:       revisionTitle(r),
			Link:        &feeds.Link{Href: link + "?version=" + r.ID()},
			Id:          link + "#" + r.ID() + "-" + r.UpdatedAt.Format(time.RFC3339Nano),
			Description: r.Notes,
			Author:      &feeds.Author{Name: r.EditorKey},
			Created:     r.CreatedAt,
			Updated:     r.UpdatedAt,
		}
		f.Items = append(f.Items, item)
		if r.UpdatedAt.After(f.Updated) {
			f.Updated = r.UpdatedAt
		}
	}
	return f.ToAtom()
}

func pageItem(link string, p models.Page) *feeds.Item {
	title := p.Title
	if title == "" {
		title = p.Path
	}
	return &feeds.Item{
		Title:   title,
		Link:    &feeds.Link{Href: link},
		Id:      link,
		Created: p.CreatedAt,
		Updated: p.UpdatedAt,
	}
}

func revisionTitle(r models.Revision) string {
	if r.IsHead() {
		return r.Title + " (latest revision)"
	}
	return fmt.Sprintf("%s (revision %d)", r.Title, r.Version)
}
