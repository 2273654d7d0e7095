package wikipath

import (
	"errors"
	"reflect"
	"testing"

	"github.com/starford/moewiki/internal/apperr"
)

var testNormalizer = Normalizer{ProtectedPath: "pages", StartPage: "start", MaxDepth: 5}

func TestParse_CamelAndFreeText(t *testing.T) {
	p := testNormalizer.Parse("FooBar/Baz Qux")
	if want := []string{"foo-bar", "baz-qux"}; !reflect.DeepEqual(p.Parts, want) {
		t.Fatalf("parts = %v, want %v", p.Parts, want)
	}
	if p.Normalized != "foo-bar/baz-qux/" {
		t.Errorf("normalized = %q", p.Normalized)
	}
	if p.PageName != "Baz Qux" {
		t.Errorf("page name = %q, want %q", p.PageName, "Baz Qux")
	}
	if p.ParentPath != "foo-bar/" {
		t.Errorf("parent path = %q", p.ParentPath)
	}
	if want := []string{"foo-bar/", "foo-bar/baz-qux/"}; !reflect.DeepEqual(p.AllPaths, want) {
		t.Errorf("all paths = %v", p.AllPaths)
	}
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		"FooBar/Baz Qux",
		"/a//b/ /c/",
		"Hello_World!!/--x--/UPPER",
		"!!!/ok",
		"a/b/c/d/e/f/g",
		"",
		"camelCapsWord/123Go",
	}
	for _, in := range inputs {
		once := testNormalizer.Parse(in)
		twice := testNormalizer.Parse(once.Normalized)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent for %q: %+v vs %+v", in, once, twice)
		}
	}
}

func TestParse_TruncatesToMaxDepth(t *testing.T) {
	p := testNormalizer.Parse("a/b/c/d/e/f/g")
	if len(p.Parts) != 5 {
		t.Fatalf("len(parts) = %d, want 5", len(p.Parts))
	}
	if p.Normalized != "a/b/c/d/e/" {
		t.Errorf("normalized = %q", p.Normalized)
	}
}

func TestParse_Unlimited(t *testing.T) {
	n := Normalizer{ProtectedPath: "pages"}
	if p := n.Parse("a/b/c/d/e/f/g"); len(p.Parts) != 7 {
		t.Errorf("len(parts) = %d, want 7", len(p.Parts))
	}
}

func TestParse_Empty(t *testing.T) {
	p := testNormalizer.Parse("  /  ")
	if !p.IsRoot() || p.Normalized != "/" {
		t.Errorf("empty path = %+v", p)
	}
	if p.PageName != "" || p.ParentPath != "" {
		t.Errorf("empty path has name/parent: %+v", p)
	}
}

func TestNormalize_ProtectedPath(t *testing.T) {
	for _, raw := range []string{"pages", "Pages/edit", "/pages/"} {
		p, err := testNormalizer.Normalize(raw)
		if !errors.Is(err, apperr.ErrInvalidPath) {
			t.Errorf("Normalize(%q) err = %v, want ErrInvalidPath", raw, err)
		}
		if p.Valid() {
			t.Errorf("Parse(%q).Valid() = true", raw)
		}
	}
	if _, err := testNormalizer.Normalize("wiki/pages"); err != nil {
		t.Errorf("protected name below the root should be allowed: %v", err)
	}
}

func TestIsStart(t *testing.T) {
	if !testNormalizer.Parse("Start").IsStart() {
		t.Error("Start should be the start page")
	}
	if testNormalizer.Parse("start/sub").IsStart() {
		t.Error("start/sub is not the start page")
	}
}

func TestBreadcrumbs(t *testing.T) {
	got := testNormalizer.Parse("docs/GettingStarted").Breadcrumbs()
	want := []Crumb{
		{Path: "docs/", Name: "Docs"},
		{Path: "docs/getting-started/", Name: "Getting Started"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("breadcrumbs = %+v", got)
	}
}

func TestInflections(t *testing.T) {
	cases := []struct {
		fn   func(string) string
		in   string
		want string
	}{
		{ToDashes, "  Foo   bar! ", "foo-bar"},
		{ToDashes, "--a--b--", "a-b"},
		{ToUnder, "Foo bar", "foo_bar"},
		{ToCamel, "foo-bar_baz qux", "FooBarBazQux"},
		{CamelToDashes, "camelCapsWord", "camel-caps-word"},
		{CamelToDashes, "CamelCapsWord", "camel-caps-word"},
		{CamelToUnder, "CamelCapsWord", "camel_caps_word"},
	}
	for _, c := range cases {
		if got := c.fn(c.in); got != c.want {
			t.Errorf("%q → %q, want %q", c.in, got, c.want)
		}
	}
}
