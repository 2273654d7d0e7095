package store

import (
	"context"

	"github.com/starford/moewiki/internal/models"
)

// PageStore defines the page metadata operations. Consumers should depend
// on this interface rather than the concrete *DB type to facilitate
// testing with mocks.
type PageStore interface {
	GetPage(ctx context.Context, areaID, path string) (*models.Page, error)
	UpsertPage(ctx context.Context, p models.Page) (*models.Page, error)
	ListPages(ctx context.Context, areaID, parentPath, cursor string, limit int) ([]models.Page, string, error)
	ListAllPages(ctx context.Context, areaID, cursor string, limit int) ([]models.Page, string, error)
	ListRecentChanges(ctx context.Context, areaID, cursor string, limit int) ([]models.Page, string, error)
	Backlinks(ctx context.Context, areaID, target string) ([]string, error)
	Search(ctx context.Context, areaID, query string, limit int) ([]SearchResult, error)
}

// RevisionChain defines the versioned content operations.
type RevisionChain interface {
	GetHead(ctx context.Context, areaID, path string) (*models.Revision, error)
	GetVersion(ctx context.Context, areaID, path string, version *int64) (*models.Revision, error)
	ListVersions(ctx context.Context, areaID, path, cursor string, limit int) ([]models.Revision, string, error)
	LatestTwo(ctx context.Context, areaID, path string) ([]models.Revision, error)
	SaveRevision(ctx context.Context, in RevisionInput) (*models.Revision, error)
	SaveEdit(ctx context.Context, in RevisionInput, p models.Page) (*models.Revision, *models.Page, error)
	UpdateRendering(ctx context.Context, areaID, path string, generation int64, body, toc string) error
}

// Areas resolves area names to records.
type Areas interface {
	EnsureArea(ctx context.Context, name string) (*models.Area, error)
	GetArea(ctx context.Context, name string) (*models.Area, error)
	ListAreas(ctx context.Context) ([]models.Area, error)
}

// Pastes defines the pastebin operations.
type Pastes interface {
	CreatePaste(ctx context.Context, p models.Paste) (*models.Paste, error)
	GetPaste(ctx context.Context, areaID string, id int64) (*models.Paste, error)
	ListPastes(ctx context.Context, areaID, cursor string, limit int) ([]models.Paste, string, error)
}

// Verify *DB satisfies the store interfaces at compile time.
var (
	_ PageStore     = (*DB)(nil)
	_ RevisionChain = (*DB)(nil)
	_ Areas         = (*DB)(nil)
	_ Pastes        = (*DB)(nil)
)
