// Package parser extracts frontmatter, wikilinks, tags and sections from
// raw page markup.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/moewiki/internal/apperr"
)

var (
	// WikilinkRe matches [[target]] and [[target|alias]].
	WikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	headingRe  = regexp.MustCompile(`^[ \t]{0,3}(#{1,6})[ \t]+(.*?)[ \t#]*$`)
	fenceRe    = regexp.MustCompile("^[ \t]{0,3}(```|~~~)")
)

// Result holds the output of parsing page markup.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Links       []string
	Tags        []string
	Title       string
}

// Parse extracts frontmatter, body, wikilink targets and tags from raw.
func Parse(raw string) *Result {
	fm, body := splitFrontmatter([]byte(raw))
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
		Title:       deriveTitle(fm, body),
	}
}

// SplitLink separates a wikilink's inner text into target, anchor and
// display text: "a/b#sec|Text" → ("a/b", "sec", "Text").
func SplitLink(inner string) (target, anchor, text string) {
	ref, alias, _ := strings.Cut(inner, "|")
	target, anchor, _ = strings.Cut(ref, "#")
	text = strings.TrimSpace(alias)
	if text == "" {
		text = strings.TrimSpace(ref)
	}
	return strings.TrimSpace(target), strings.TrimSpace(anchor), text
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the body. Missing or invalid frontmatter leaves the
// whole input as body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

// extractLinks returns deduplicated wikilink targets without anchors or
// aliases.
func extractLinks(body string) []string {
	matches := WikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target, _, _ := SplitLink(m[1])
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects the frontmatter "tags" list and inline #tags.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if list, ok := fm["tags"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}

	inFence := false
	for _, line := range strings.Split(body, "\n") {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
	}
	return out
}

// deriveTitle returns the frontmatter title, else the first H1, else "".
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil && len(m[1]) == 1 {
			return strings.TrimSpace(m[2])
		}
	}
	return ""
}

// Sections splits body at heading lines. Section 0 holds whatever comes
// before the first heading; every later section starts with its heading.
// Headings inside fenced code blocks do not split.
func Sections(body string) []string {
	var sections []string
	var cur strings.Builder
	inFence := false
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if fenceRe.MatchString(line) {
			inFence = !inFence
		}
		if !inFence && headingRe.MatchString(line) {
			sections = append(sections, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	return append(sections, strings.TrimSpace(cur.String()))
}

// ReplaceSection swaps section i of body for text and joins the sections
// back with blank lines.
func ReplaceSection(body string, i int, text string) (string, error) {
	sections := []string{""}
	if body != "" {
		sections = Sections(body)
	}
	if i < 0 || i >= len(sections) {
		return "", apperr.ErrInvalidSection
	}
	sections[i] = text
	return strings.Join(sections, "\n\n"), nil
}
