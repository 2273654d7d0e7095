package wikipath

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	nonDashRe    = regexp.MustCompile(`[^A-Za-z0-9-]`)
	nonUnderRe   = regexp.MustCompile(`[^A-Za-z0-9_]`)
	nonAlnumRe   = regexp.MustCompile(`[^A-Za-z0-9]`)
	dashRunRe    = regexp.MustCompile(`-+`)
	underRunRe   = regexp.MustCompile(`_+`)
	camelBoundRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// ToDashes lowercases s and keeps only alphanumerics, joining words with
// single dashes: " Foo  bar! " → "foo-bar".
func ToDashes(s string) string {
	s = spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = nonDashRe.ReplaceAllString(s, "")
	return strings.Trim(dashRunRe.ReplaceAllString(s, "-"), "-")
}

// ToUnder is ToDashes with underscores.
func ToUnder(s string) string {
	s = spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	s = nonUnderRe.ReplaceAllString(s, "")
	return strings.Trim(underRunRe.ReplaceAllString(s, "_"), "_")
}

// ToCamel converts "foo bar", "foo-bar" or "foo_bar" to "FooBar".
func ToCamel(s string) string {
	var b strings.Builder
	for _, part := range strings.Fields(nonAlnumRe.ReplaceAllString(s, " ")) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// CamelToDashes converts "camelCapsWord" and "CamelCapsWord" to
// "camel-caps-word". Free text is dash-cased as well.
func CamelToDashes(s string) string {
	return ToDashes(camelBoundRe.ReplaceAllString(s, "${1}-${2}"))
}

// CamelToUnder converts "CamelCapsWord" to "camel_caps_word".
func CamelToUnder(s string) string {
	return ToUnder(camelBoundRe.ReplaceAllString(s, "${1}_${2}"))
}

// PageName turns a dash-cased segment back into a display name:
// "baz-qux" → "Baz Qux".
func PageName(segment string) string {
	words := strings.Join(strings.Split(segment, "-"), " ")
	// Casers are stateful; one per call.
	return cases.Title(language.Und).String(words)
}
