package importer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/moewiki/internal/apperr"
	"github.com/starford/moewiki/internal/models"
	"github.com/starford/moewiki/internal/storage"
)

// Source is what Export reads pages from.
type Source interface {
	GetArea(ctx context.Context, name string) (*models.Area, error)
	ListAllPages(ctx context.Context, areaID, cursor string, limit int) ([]models.Page, string, error)
	GetHead(ctx context.Context, areaID, path string) (*models.Revision, error)
}

// Export writes the head of every page in area to files, one Markdown
// file per page. It returns the number of files written.
func Export(ctx context.Context, src Source, files storage.Provider, area string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a, err := src.GetArea(ctx, area)
	if err != nil {
		return 0, err
	}
	written := 0
	cursor := ""
	for {
		pages, next, err := src.ListAllPages(ctx, a.ID, cursor, 100)
		if err != nil {
			return written, err
		}
		for _, p := range pages {
			head, err := src.GetHead(ctx, a.ID, p.Path)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return written, err
			}
			data, err := EncodeFile(head.Title, p.Tags, head.BodyRaw)
			if err != nil {
				return written, err
			}
			if err := files.Write(FilePath(p.Path), data); err != nil {
				logger.Warn("export: write failed", slog.String("path", p.Path), slog.String("error", err.Error()))
				continue
			}
			written++
		}
		if next == "" {
			return written, nil
		}
		cursor = next
	}
}
