// Package importer seeds an area from a directory of Markdown files and
// exports an area back to one.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/moewiki/internal/parser"
	"github.com/starford/moewiki/internal/storage"
	"github.com/starford/moewiki/internal/wiki"
)

// DefaultEditor is the editor key recorded on imported revisions.
const DefaultEditor = "importer"

// Importer saves seed files as wiki pages.
type Importer struct {
	wiki   *wiki.Service
	files  storage.Provider
	area   string
	editor string
	logger *slog.Logger
}

// New creates an importer writing into area as editor.
func New(svc *wiki.Service, files storage.Provider, area, editor string, logger *slog.Logger) *Importer {
	if editor == "" {
		editor = DefaultEditor
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{wiki: svc, files: files, area: area, editor: editor, logger: logger}
}

// Stats counts the outcome of a Sync.
type Stats struct {
	Imported  int `json:"imported"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// PagePath maps a seed file to its raw wiki path: "a/FooBar.md" → "a/FooBar".
func PagePath(rel string) string {
	return strings.TrimSuffix(path.Clean(strings.ReplaceAll(rel, `\`, "/")), storage.Ext)
}

// Sync walks the seed directory and saves every file whose content differs
// from its page's head. Failures are logged and counted, not returned.
func (im *Importer) Sync(ctx context.Context) (Stats, error) {
	var st Stats
	metas, err := im.files.List("")
	if err != nil {
		return st, err
	}
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		data, err := im.files.Read(m.Path)
		if err != nil {
			im.logger.Warn("import: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			st.Failed++
			continue
		}
		changed, err := im.ImportFile(ctx, m.Path, data)
		switch {
		case err != nil:
			im.logger.Warn("import: save failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			st.Failed++
		case changed:
			im.logger.Debug("import: saved", slog.String("path", m.Path))
			st.Imported++
		default:
			st.Unchanged++
		}
	}
	return st, nil
}

// ImportFile saves one seed file. The title comes from its frontmatter or
// first H1, else from the page name.
func (im *Importer) ImportFile(ctx context.Context, rel string, data []byte) (bool, error) {
	raw := PagePath(rel)
	p, _, err := im.wiki.Resolve(raw)
	if err != nil {
		return false, fmt.Errorf("import: %s: %w", rel, err)
	}
	parsed := parser.Parse(string(data))
	title := parsed.Title
	if title == "" {
		title = p.PageName
	}
	res, err := im.wiki.Edit(ctx, wiki.EditRequest{
		Area:      im.area,
		Path:      p.Normalized,
		Title:     title,
		Body:      parsed.Body,
		Note:      "Imported from " + rel,
		EditorKey: im.editor,
	})
	if err != nil {
		return false, err
	}
	return res.Changed, nil
}

type frontmatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags,omitempty"`
}

// EncodeFile renders a page as a seed file with YAML frontmatter.
func EncodeFile(title string, tags []string, body string) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{Title: title, Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("export: frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n")
	b.WriteString(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// FilePath maps a normalized page path to its seed file: "a/foo-bar/" → "a/foo-bar.md".
func FilePath(pagePath string) string {
	return strings.Trim(pagePath, "/") + storage.Ext
}
