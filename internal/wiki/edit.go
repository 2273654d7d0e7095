package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/checksum"
	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/parser"
	"github.com/starford/moewiki/internal/render"
	"github.com/starford/moewiki/internal/store"
	"github.com/starford/moewiki/internal/wikipath"
)

// NoteCreated is the edit note prefilled for a page that does not exist.
const NoteCreated = "Page created"

// EditRequest is one page save.
type EditRequest struct {
	Area  string
	Path  string
	Title string
	Body  string
	Note  string
	// Section, when set, replaces only that section of the base body.
	Section *int
	// Version is the revision the section was taken from; nil is the head.
	Version string
	// IfMatch, when set, must equal the head's ETag.
	IfMatch   string
	EditorKey string
	EditorIP  string
}

// Validate validates the request after trimming.
func (r *EditRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, 500)),
		validation.Field(&r.Note, validation.RuneLength(0, 500)),
		validation.Field(&r.Section, validation.Min(0)),
	)
}

// EditResult reports the outcome of Edit.
type EditResult struct {
	Path     wikipath.Path    `json:"-"`
	Changed  bool             `json:"changed"`
	Created  bool             `json:"created"`
	Revision *models.Revision `json:"revision"`
	Page     *models.Page     `json:"page,omitempty"`
	// Anchor is the heading id of the edited section, when it has one.
	Anchor string `json:"anchor,omitempty"`
	ETag   string `json:"etag"`
}

// Edit saves a new revision of a page, creating the page when needed.
// Saving the head's own title and body again changes nothing.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	req.Note = strings.TrimSpace(req.Note)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	version, err := parseVersion(req.Version)
	if err != nil {
		return nil, err
	}

	path, _, err := s.Resolve(req.Path)
	if err != nil {
		return nil, err
	}
	area, err := s.db.EnsureArea(ctx, s.areaName(req.Area))
	if err != nil {
		return nil, err
	}

	head, err := s.headOrNil(ctx, area.ID, path.Normalized)
	if err != nil {
		return nil, err
	}
	if req.IfMatch != "" && (head == nil || etag(head) != req.IfMatch) {
		return nil, apperr.ErrConflict
	}

	bodyRaw := req.Body
	if req.Section != nil {
		base := ""
		if version != nil {
			rev, err := s.db.GetVersion(ctx, area.ID, path.Normalized, version)
			if err != nil {
				return nil, err
			}
			base = rev.BodyRaw
		} else if head != nil {
			base = head.BodyRaw
		}
		if bodyRaw, err = parser.ReplaceSection(base, *req.Section, req.Body); err != nil {
			return nil, err
		}
	}

	var (
		html, toc string
		anchor    string
	)
	if bodyRaw != "" || req.Section != nil {
		res, err := s.renderer.Render(bodyRaw, render.Context{Title: req.Title, Link: s.Link})
		if err != nil {
			return nil, err
		}
		html, toc = res.HTML, render.TOCHTML(res.TOC)
		if req.Section != nil && *req.Section > 0 && *req.Section < len(res.TOC) {
			anchor = res.TOC[*req.Section].Anchor
		}
	}

	if head != nil && head.Title == req.Title && head.BodyRaw == bodyRaw {
		page, err := s.db.GetPage(ctx, area.ID, path.Normalized)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		return &EditResult{Path: path, Revision: head, Page: page, Anchor: anchor, ETag: etag(head)}, nil
	}

	parsed := parser.Parse(bodyRaw)
	deps, _ := json.Marshal(nonNilSlice(s.linkTargets(parsed.Links)))

	rev, page, err := s.db.SaveEdit(ctx, store.RevisionInput{
		AreaID:    area.ID,
		Path:      path.Normalized,
		EditorKey: req.EditorKey,
		EditorIP:  req.EditorIP,
		Title:     req.Title,
		Body:      html,
		BodyRaw:   bodyRaw,
		TOC:       toc,
		Format:    s.renderer.Format(),
		Notes:     req.Note,
	}, models.Page{
		ParentPath:  path.ParentPath,
		ParentPaths: nonNilSlice(path.ParentPaths),
		Tags:        nonNilSlice(parsed.Tags),
		Deps:        deps,
	})
	if err != nil {
		return nil, err
	}

	kind := EventUpdated
	if head == nil {
		kind = EventCreated
	}
	s.logger.Debug("wiki: page saved",
		"area", area.Name, "path", path.Normalized, "kind", kind, "editor", req.EditorKey)
	if s.onSave != nil {
		s.onSave(kind, area.Name, path.Normalized)
	}

	return &EditResult{
		Path:     path,
		Changed:  true,
		Created:  head == nil,
		Revision: rev,
		Page:     page,
		Anchor:   anchor,
		ETag:     etag(rev),
	}, nil
}

// linkTargets normalizes wikilink targets to page paths, dropping
// duplicates and targets that normalize to nothing.
func (s *Service) linkTargets(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	var out []string
	for _, l := range links {
		p := s.cfg.Paths.Parse(l)
		if p.IsRoot() {
			continue
		}
		if _, dup := seen[p.Normalized]; dup {
			continue
		}
		seen[p.Normalized] = struct{}{}
		out = append(out, p.Normalized)
	}
	return out
}

// EditForm is the prefill for editing a page or one of its sections.
type EditForm struct {
	Path    wikipath.Path `json:"-"`
	Exists  bool          `json:"exists"`
	Title   string        `json:"title"`
	Body    string        `json:"body"`
	Note    string        `json:"note"`
	Section *int          `json:"section,omitempty"`
	Version string        `json:"version"`
	// ETag of the head, for a later If-Match save.
	ETag string `json:"etag,omitempty"`
}

// EditForm loads what an editor starts from. A missing page yields its
// page name as title and a "Page created" note.
func (s *Service) EditForm(ctx context.Context, areaName, raw, versionArg string, section *int) (*EditForm, error) {
	version, err := parseVersion(versionArg)
	if err != nil {
		return nil, err
	}
	path, _, err := s.Resolve(raw)
	if err != nil {
		return nil, err
	}
	form := &EditForm{Path: path, Section: section, Version: models.LatestID}

	area, err := s.area(ctx, areaName)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	var rev, head *models.Revision
	if area != nil {
		if head, err = s.headOrNil(ctx, area.ID, path.Normalized); err != nil {
			return nil, err
		}
		rev = head
		if version != nil {
			if rev, err = s.db.GetVersion(ctx, area.ID, path.Normalized, version); err != nil {
				return nil, err
			}
		}
	}
	if rev == nil {
		if version != nil {
			return nil, apperr.ErrNotFound
		}
		form.Title = path.PageName
		form.Note = NoteCreated
		if section != nil && *section != 0 {
			return nil, apperr.ErrInvalidSection
		}
		return form, nil
	}

	form.Exists = true
	form.Title = rev.Title
	form.Body = rev.BodyRaw
	form.Version = rev.ID()
	if head != nil {
		form.ETag = etag(head)
	}
	if section != nil {
		sections := parser.Sections(rev.BodyRaw)
		if *section < 0 || *section >= len(sections) {
			return nil, apperr.ErrInvalidSection
		}
		form.Body = sections[*section]
	}
	return form, nil
}

func etag(r *models.Revision) string {
	return checksum.Revision(r.Title, r.BodyRaw)
}
