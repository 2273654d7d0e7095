package paste

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.TestDB(t), "www", "github")
}

func TestCreate_HighlightsKnownLanguage(t *testing.T) {
	svc := newTestService(t)
	p, err := svc.Create(context.Background(), CreateRequest{Code: "package main\n\nfunc main() {}\n", Language: "go", UserKey: "alice"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Language != "go" {
		t.Errorf("language = %q", p.Language)
	}
	if !strings.Contains(p.Code, `class="`) {
		t.Errorf("code not highlighted: %q", p.Code)
	}
	if p.CodeRaw != "package main\n\nfunc main() {}" {
		t.Errorf("raw = %q", p.CodeRaw)
	}
	if p.Lines() != 3 {
		t.Errorf("lines = %d", p.Lines())
	}
}

func TestCreate_UnknownLanguageFallsBack(t *testing.T) {
	svc := newTestService(t)
	p, err := svc.Create(context.Background(), CreateRequest{Code: "hello", Language: "no-such-language"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Language != "plaintext" {
		t.Errorf("language = %q, want plaintext", p.Language)
	}
	if !strings.Contains(p.Code, "hello") {
		t.Errorf("code = %q", p.Code)
	}
}

func TestCreate_EmptyCode(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), CreateRequest{Code: "  \n"})
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("err = %v, want validation.Errors", err)
	}
}

func TestGetAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	first, _ := svc.Create(ctx, CreateRequest{Code: "one"})
	_, _ = svc.Create(ctx, CreateRequest{Code: "two"})

	got, err := svc.Get(ctx, "", first.ID)
	if err != nil || got.CodeRaw != "one" {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := svc.Get(ctx, "", 12345); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}

	list, err := svc.List(ctx, "", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Pastes) != 2 || list.Pastes[0].CodeRaw != "two" {
		t.Errorf("list = %+v", list.Pastes)
	}
}

func TestLanguagesAndCSS(t *testing.T) {
	langs := Languages()
	found := false
	for _, l := range langs {
		if l == "Go" {
			found = true
		}
	}
	if !found {
		t.Errorf("Go missing from %d languages", len(langs))
	}

	var buf bytes.Buffer
	if err := newTestService(t).WriteCSS(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("empty stylesheet")
	}
}
