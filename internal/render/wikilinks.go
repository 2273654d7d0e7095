package render

import (
	"regexp"
	"strings"

	"github.com/starford/moewiki/internal/parser"
)

var fenceRe = regexp.MustCompile("^[ \t]{0,3}(```|~~~)")

// rewriteWikilinks replaces [[target#anchor|text]] outside fenced code with
// Markdown links built by link.
func rewriteWikilinks(raw string, link func(target, anchor string) string) string {
	if link == nil || !strings.Contains(raw, "[[") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	inFence := false
	for i, line := range lines {
		if fenceRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		lines[i] = parser.WikilinkRe.ReplaceAllStringFunc(line, func(m string) string {
			target, anchor, text := parser.SplitLink(m[2 : len(m)-2])
			if target == "" && anchor == "" {
				return m
			}
			text = strings.NewReplacer("[", `\[`, "]", `\]`).Replace(text)
			return "[" + text + "](<" + link(target, anchor) + ">)"
		})
	}
	return strings.Join(lines, "\n")
}
