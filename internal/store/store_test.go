package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
)

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "moewiki-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testArea(t *testing.T, db *DB) string {
	t.Helper()
	a, err := db.EnsureArea(context.Background(), "www")
	if err != nil {
		t.Fatalf("EnsureArea: %v", err)
	}
	return a.ID
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func save(t *testing.T, db *DB, area, path, editor, body string) *models.Revision {
	t.Helper()
	r, err := db.SaveRevision(context.Background(), RevisionInput{
		AreaID: area, Path: path, EditorKey: editor, Title: "T", BodyRaw: body, Body: body,
	})
	if err != nil {
		t.Fatalf("SaveRevision: %v", err)
	}
	return r
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"areas", "pages", "page_links", "revision_heads", "revision_archive", "pastes"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestEnsureArea_Idempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a1, err := db.EnsureArea(ctx, "www")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := db.EnsureArea(ctx, "www")
	if err != nil {
		t.Fatal(err)
	}
	if a1.ID != a2.ID || a1.ID == "" {
		t.Errorf("ids = %q, %q", a1.ID, a2.ID)
	}
	if err := db.SetAreaTitle(ctx, "www", "Main"); err != nil {
		t.Fatal(err)
	}
	a3, _ := db.GetArea(ctx, "www")
	if a3.Title != "Main" {
		t.Errorf("title = %q", a3.Title)
	}
	if _, err := db.GetArea(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing area err = %v", err)
	}
}

func TestSaveRevision_CreateThenEdit(t *testing.T) {
	db := testDB(t, WithClock(fixedClock()))
	area := testArea(t, db)
	ctx := context.Background()

	first := save(t, db, area, "docs/", "alice", "one")
	if first.AuthorKey != "alice" || first.EditorKey != "alice" {
		t.Errorf("first author/editor = %q/%q", first.AuthorKey, first.EditorKey)
	}
	if !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Error("created != updated on save")
	}

	save(t, db, area, "docs/", "bob", "two")
	third := save(t, db, area, "docs/", "carol", "three")
	if third.AuthorKey != "alice" {
		t.Errorf("author = %q, want alice", third.AuthorKey)
	}

	head, err := db.GetHead(ctx, area, "docs/")
	if err != nil {
		t.Fatal(err)
	}
	if head.BodyRaw != "three" || head.EditorKey != "carol" || head.ID() != models.LatestID {
		t.Errorf("head = %+v", head)
	}

	revs, next, err := db.ListVersions(ctx, area, "docs/", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if next != "" {
		t.Errorf("unexpected cursor %q", next)
	}
	if len(revs) != 3 {
		t.Fatalf("got %d versions, want 3", len(revs))
	}
	want := []string{"three", "two", "one"}
	for i, r := range revs {
		if r.BodyRaw != want[i] {
			t.Errorf("revs[%d] = %q, want %q", i, r.BodyRaw, want[i])
		}
		if i > 0 && !revs[i-1].UpdatedAt.After(r.UpdatedAt) {
			t.Errorf("revs[%d] not strictly older than revs[%d]", i, i-1)
		}
	}
	if !revs[0].IsHead() || revs[1].IsHead() {
		t.Error("head must come first")
	}

	v := revs[2].Version
	old, err := db.GetVersion(ctx, area, "docs/", &v)
	if err != nil {
		t.Fatal(err)
	}
	if old.BodyRaw != "one" || old.EditorKey != "alice" {
		t.Errorf("archived = %+v", old)
	}
}

func TestGetVersion_Missing(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	v := int64(42)
	if _, err := db.GetVersion(context.Background(), area, "x/", &v); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := db.GetVersion(context.Background(), area, "x/", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("head err = %v", err)
	}
}

func TestLatestTwo(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()

	save(t, db, area, "p/", "a", "v1")
	revs, err := db.LatestTwo(ctx, area, "p/")
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 1 {
		t.Fatalf("got %d, want 1", len(revs))
	}
	save(t, db, area, "p/", "a", "v2")
	save(t, db, area, "p/", "a", "v3")
	revs, _ = db.LatestTwo(ctx, area, "p/")
	if len(revs) != 2 || revs[0].BodyRaw != "v3" || revs[1].BodyRaw != "v2" {
		t.Errorf("latest two = %+v", revs)
	}
}

func TestListVersions_Paginates(t *testing.T) {
	db := testDB(t, WithClock(fixedClock()))
	area := testArea(t, db)
	ctx := context.Background()
	for _, b := range []string{"1", "2", "3", "4", "5"} {
		save(t, db, area, "p/", "a", b)
	}

	var got []string
	cursor := ""
	for range 5 {
		revs, next, err := db.ListVersions(ctx, area, "p/", cursor, 2)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range revs {
			got = append(got, r.BodyRaw)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	want := "54321"
	if s := strings.Join(got, ""); s != want {
		t.Errorf("walk = %q, want %q", s, want)
	}
}

func TestSaveRevision_Concurrent(t *testing.T) {
	db := testDB(t, WithRetries(10))
	area := testArea(t, db)
	save(t, db, area, "hot/", "seed", "seed")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.SaveRevision(context.Background(), RevisionInput{
				AreaID: area, Path: "hot/", EditorKey: "w", BodyRaw: string(rune('a' + i)),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent save: %v", err)
		}
	}

	revs, _, err := db.ListVersions(context.Background(), area, "hot/", "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != n+1 {
		t.Errorf("got %d revisions, want %d", len(revs), n+1)
	}
}

func TestRetryable(t *testing.T) {
	if !retryable(errStaleHead) {
		t.Error("stale head must be retryable")
	}
	if retryable(apperr.ErrNotFound) {
		t.Error("not found must not be retryable")
	}
}

func TestUpdateRendering_CAS(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	r := save(t, db, area, "p/", "a", "x")

	if err := db.UpdateRendering(ctx, area, "p/", r.Generation, "<p>new</p>", ""); err != nil {
		t.Fatalf("UpdateRendering: %v", err)
	}
	head, _ := db.GetHead(ctx, area, "p/")
	if head.Body != "<p>new</p>" || !head.UpdatedAt.Equal(r.UpdatedAt) {
		t.Errorf("head = %+v", head)
	}
	revs, _, _ := db.ListVersions(ctx, area, "p/", "", 10)
	if len(revs) != 1 {
		t.Errorf("rendering update created a version: %d", len(revs))
	}

	save(t, db, area, "p/", "a", "y")
	if err := db.UpdateRendering(ctx, area, "p/", r.Generation, "stale", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale generation err = %v", err)
	}
}

func TestUpsertPage_FullReplaceKeepsCreated(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()

	p1, err := db.UpsertPage(ctx, models.Page{
		AreaID: area, Path: "a/b/", ParentPath: "a/", ParentPaths: []string{"a/"},
		Tags: []string{"x"}, Deps: []byte(`["c/"]`),
	})
	if err != nil {
		t.Fatalf("UpsertPage: %v", err)
	}
	p2, err := db.UpsertPage(ctx, models.Page{
		AreaID: area, Path: "a/b/", ParentPath: "a/", ParentPaths: []string{"a/"},
		UpdatedAt: p1.UpdatedAt.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !p2.CreatedAt.Equal(p1.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", p1.CreatedAt, p2.CreatedAt)
	}
	if len(p2.Tags) != 0 || len(p2.Deps) != 0 {
		t.Errorf("tags/deps not replaced: %+v", p2)
	}
	bl, _ := db.Backlinks(ctx, area, "c/")
	if len(bl) != 0 {
		t.Errorf("stale backlinks: %v", bl)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "a/", Deps: []byte(`["b/"]`)})
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "c/", Deps: []byte(`["b/","d/"]`)})

	bl, err := db.Backlinks(ctx, area, "b/")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 || bl[0] != "a/" || bl[1] != "c/" {
		t.Fatalf("backlinks = %v", bl)
	}
}

func TestDepTargets_Opaque(t *testing.T) {
	if got := DepTargets([]byte("not json")); got != nil {
		t.Errorf("got %v", got)
	}
	if got := DepTargets(nil); got != nil {
		t.Errorf("got %v", got)
	}
}

func TestSaveEdit_WritesPageAndRevision(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()

	rev, page, err := db.SaveEdit(ctx, RevisionInput{AreaID: area, Path: "docs/api/", EditorKey: "e", Title: "API", BodyRaw: "b"},
		models.Page{ParentPath: "docs/", ParentPaths: []string{"docs/"}})
	if err != nil {
		t.Fatalf("SaveEdit: %v", err)
	}
	if page.Path != "docs/api/" || page.Title != "API" || !page.UpdatedAt.Equal(rev.UpdatedAt) {
		t.Errorf("page = %+v", page)
	}
}

func TestListPages_ChildrenAndCursor(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	for _, p := range []string{"docs/a/", "docs/b/", "docs/c/", "other/"} {
		parent := "docs/"
		if p == "other/" {
			parent = ""
		}
		if _, err := db.UpsertPage(ctx, models.Page{AreaID: area, Path: p, ParentPath: parent}); err != nil {
			t.Fatal(err)
		}
	}

	pages, next, err := db.ListPages(ctx, area, "docs/", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || pages[0].Path != "docs/a/" || next == "" {
		t.Fatalf("first page = %+v next=%q", pages, next)
	}
	pages, next, err = db.ListPages(ctx, area, "docs/", next, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 || pages[0].Path != "docs/c/" || next != "" {
		t.Fatalf("second page = %+v next=%q", pages, next)
	}

	roots, _, _ := db.ListPages(ctx, area, "", "", 10)
	if len(roots) != 1 || roots[0].Path != "other/" {
		t.Errorf("roots = %+v", roots)
	}
}

func TestListPages_ExactLimitHasNoCursor(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "a/"})
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "b/"})

	pages, next, err := db.ListPages(ctx, area, "", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || next != "" {
		t.Errorf("pages=%d next=%q", len(pages), next)
	}
}

func TestCursor_ShapeMismatch(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	for _, p := range []string{"a/", "b/", "c/"} {
		_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: p})
	}
	_, next, err := db.ListPages(ctx, area, "", "", 1)
	if err != nil || next == "" {
		t.Fatalf("next=%q err=%v", next, err)
	}
	if _, _, err := db.ListRecentChanges(ctx, area, next, 1); !errors.Is(err, apperr.ErrInvalidCursor) {
		t.Errorf("changes with pages cursor: %v", err)
	}
	if _, _, err := db.ListPages(ctx, area, "a/", next, 1); !errors.Is(err, apperr.ErrInvalidCursor) {
		t.Errorf("other parent with cursor: %v", err)
	}
	if _, _, err := db.ListPages(ctx, area, "", "%%%garbage", 1); !errors.Is(err, apperr.ErrInvalidCursor) {
		t.Errorf("garbage cursor: %v", err)
	}
}

func TestListRecentChanges_Order(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "old/", UpdatedAt: base})
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "new/", UpdatedAt: base.Add(time.Hour)})
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "tie/", UpdatedAt: base})

	var got []string
	cursor := ""
	for {
		pages, next, err := db.ListRecentChanges(ctx, area, cursor, 1)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range pages {
			got = append(got, p.Path)
		}
		if next == "" {
			break
		}
		cursor = next
	}
	want := []string{"new/", "old/", "tie/"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListAllPages(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "a/"})
	_, _ = db.UpsertPage(ctx, models.Page{AreaID: area, Path: "a/b/", ParentPath: "a/"})

	pages, next, err := db.ListAllPages(ctx, area, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 || next != "" {
		t.Errorf("pages = %+v", pages)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	_, err := db.SaveRevision(ctx, RevisionInput{AreaID: area, Path: "go/", Title: "Go", BodyRaw: "goroutines and channels"})
	if err != nil {
		t.Fatal(err)
	}
	results, err := db.Search(ctx, area, "goroutines", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "go/" {
		t.Errorf("results = %+v", results)
	}
}

func TestPastes(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()

	var ids []int64
	for _, code := range []string{"a", "b", "c"} {
		p, err := db.CreatePaste(ctx, models.Paste{AreaID: area, CodeRaw: code, Language: "text"})
		if err != nil {
			t.Fatalf("CreatePaste: %v", err)
		}
		ids = append(ids, p.ID)
	}
	got, err := db.GetPaste(ctx, area, ids[1])
	if err != nil || got.CodeRaw != "b" {
		t.Fatalf("GetPaste = %+v, %v", got, err)
	}
	if _, err := db.GetPaste(ctx, area, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing paste err = %v", err)
	}

	list, next, err := db.ListPastes(ctx, area, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].CodeRaw != "c" || next == "" {
		t.Fatalf("list = %+v next=%q", list, next)
	}
	list, next, _ = db.ListPastes(ctx, area, next, 2)
	if len(list) != 1 || list[0].CodeRaw != "a" || next != "" {
		t.Errorf("second = %+v next=%q", list, next)
	}
}

func TestSaveEdit_RollsBackOnPageFailure(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()

	in := RevisionInput{AreaID: area, Path: "doc/", EditorKey: "alice", Title: "T", BodyRaw: "one", Body: "one"}
	if _, _, err := db.SaveEdit(ctx, in, models.Page{}); err != nil {
		t.Fatalf("first SaveEdit: %v", err)
	}

	if _, err := db.conn.Exec(`
		CREATE TRIGGER reject_page_write BEFORE UPDATE ON pages
		BEGIN SELECT RAISE(ABORT, 'page write rejected'); END
	`); err != nil {
		t.Fatal(err)
	}

	in.BodyRaw, in.Body, in.EditorKey = "two", "two", "bob"
	if _, _, err := db.SaveEdit(ctx, in, models.Page{}); err == nil {
		t.Fatal("SaveEdit succeeded despite page write failure")
	}

	head, err := db.GetHead(ctx, area, "doc/")
	if err != nil {
		t.Fatal(err)
	}
	if head.BodyRaw != "one" || head.Generation != 1 || head.EditorKey != "alice" {
		t.Errorf("head changed: body=%q gen=%d editor=%q", head.BodyRaw, head.Generation, head.EditorKey)
	}
	revs, _, err := db.ListVersions(ctx, area, "doc/", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 1 {
		t.Errorf("versions = %d, want 1", len(revs))
	}
	var archived int
	if err := db.conn.QueryRow(`SELECT count(*) FROM revision_archive`).Scan(&archived); err != nil {
		t.Fatal(err)
	}
	if archived != 0 {
		t.Errorf("archive rows = %d, want 0", archived)
	}
}

func TestSaveEdit_RollsBackNewPage(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()

	if _, err := db.conn.Exec(`
		CREATE TRIGGER reject_page_insert BEFORE INSERT ON pages
		BEGIN SELECT RAISE(ABORT, 'page insert rejected'); END
	`); err != nil {
		t.Fatal(err)
	}

	in := RevisionInput{AreaID: area, Path: "fresh/", EditorKey: "alice", Title: "T", BodyRaw: "x", Body: "x"}
	if _, _, err := db.SaveEdit(ctx, in, models.Page{}); err == nil {
		t.Fatal("SaveEdit succeeded despite page insert failure")
	}
	if _, err := db.GetHead(ctx, area, "fresh/"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetHead err = %v, want not found", err)
	}
}
