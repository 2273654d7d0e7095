// Package testutil provides shared test helpers for setting up seed
// directories and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/moewiki/internal/storage"
	"github.com/starford/moewiki/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T, opts ...store.Option) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "moewiki-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSeedDir creates a temporary seed directory with a storage.Provider.
func TestSeedDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}
