//go:build sqlite_fts5

package store

import (
	"context"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM heads_fts`).Scan(&count); err != nil {
		t.Fatalf("heads_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	if _, err := db.SaveRevision(ctx, RevisionInput{AreaID: area, Path: "fts/", Title: "FTS Page",
		BodyRaw: "The wiki provides powerful full-text search capabilities."}); err != nil {
		t.Fatalf("SaveRevision: %v", err)
	}

	results, err := db.Search(ctx, area, "powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts/" {
		t.Errorf("path = %q", results[0].Path)
	}
	// FTS5 snippet should contain bold markers.
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_SaveReplacesContent(t *testing.T) {
	db := testDB(t)
	area := testArea(t, db)
	ctx := context.Background()
	_, _ = db.SaveRevision(ctx, RevisionInput{AreaID: area, Path: "evo/", Title: "Old", BodyRaw: "original text"})
	_, _ = db.SaveRevision(ctx, RevisionInput{AreaID: area, Path: "evo/", Title: "New", BodyRaw: "replacement text"})

	results, _ := db.Search(ctx, area, "original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search(ctx, area, "replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
