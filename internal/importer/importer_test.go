package importer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/moewiki/internal/render"
	"github.com/starford/moewiki/internal/store"
	"github.com/starford/moewiki/internal/testutil"
	"github.com/starford/moewiki/internal/wiki"
	"github.com/starford/moewiki/internal/wikipath"
)

var quietLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type testEnv struct {
	dir string
	db  *store.DB
	svc *wiki.Service
	im  *Importer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir, files := testutil.TestSeedDir(t)
	db := testutil.TestDB(t)
	svc := wiki.NewService(db, render.NewMarkdown(), wiki.Config{
		Paths:       wikipath.Normalizer{ProtectedPath: "pages", StartPage: "start", MaxDepth: 5},
		DefaultArea: "www",
	})
	return &testEnv{dir: dir, db: db, svc: svc, im: New(svc, files, "www", "", quietLogger)}
}

func (e *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	abs := filepath.Join(e.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestPagePath(t *testing.T) {
	tests := map[string]string{
		"a/FooBar.md":   "a/FooBar",
		"top.md":        "top",
		`win\style.md`:  "win/style",
		"./x/../y/z.md": "y/z",
	}
	for in, want := range tests {
		if got := PagePath(in); got != want {
			t.Errorf("PagePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSync_ImportsAndIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.write(t, "docs/GettingStarted.md", "# Getting Started\n\nHello.")
	e.write(t, "plain.md", "no heading here")
	e.write(t, "pages/secret.md", "protected")

	st, err := e.im.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if st.Imported != 2 || st.Failed != 1 {
		t.Errorf("stats = %+v", st)
	}

	view, err := e.svc.View(ctx, "www", "docs/getting-started/", "")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if view.Revision.Title != "Getting Started" || view.Revision.EditorKey != DefaultEditor {
		t.Errorf("revision = %+v", view.Revision)
	}
	plain, _ := e.svc.View(ctx, "www", "plain/", "")
	if plain.Revision.Title != "Plain" {
		t.Errorf("fallback title = %q", plain.Revision.Title)
	}

	st, err = e.im.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Imported != 0 || st.Unchanged != 2 {
		t.Errorf("second sync = %+v", st)
	}
	hist, _ := e.svc.History(ctx, "www", "plain/", "", 0)
	if len(hist.Revisions) != 1 {
		t.Errorf("re-import added revisions: %d", len(hist.Revisions))
	}
}

func TestExport_RoundTrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	if _, err := e.svc.Edit(ctx, wiki.EditRequest{Area: "www", Path: "guide/intro", Title: "Intro", Body: "Welcome #start"}); err != nil {
		t.Fatal(err)
	}

	outDir, out := testutil.TestSeedDir(t)
	n, err := Export(ctx, e.db, out, "www", quietLogger)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 1 {
		t.Errorf("written = %d", n)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "guide", "intro.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "---\ntitle: Intro\n") || !strings.Contains(string(data), "Welcome #start") {
		t.Errorf("file = %q", data)
	}

	changed, err := e.im.ImportFile(ctx, "guide/intro.md", data)
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Error("re-importing an export must be a no-op")
	}
}

func TestWatcher_NewFileImported(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.im.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	e.write(t, "new.md", "# New")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		v, err := e.svc.View(context.Background(), "www", "new/", "")
		return err == nil && v.Revision.Title == "New"
	}, "new file not imported by watcher")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.im.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	if err := os.MkdirAll(filepath.Join(e.dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	e.write(t, "subdir/deep.md", "# Deep")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := e.svc.View(context.Background(), "www", "subdir/deep/", "")
		return err == nil
	}, "file in new subdir not imported by watcher")
}

func TestWatcher_RemoveKeepsPage(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "keep.md", "# Keep")
	if _, err := e.im.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.im.Watch(ctx)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(e.dir, "keep.md"))
	time.Sleep(200 * time.Millisecond)

	if _, err := e.svc.View(context.Background(), "www", "keep/", ""); err != nil {
		t.Errorf("page removed with its seed file: %v", err)
	}
}
