package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/moewiki/internal/storage"
)

// Watch starts an fsnotify watcher on the seed directory and re-imports
// files on create and write until ctx is cancelled. Removed and renamed
// files are logged; their pages are kept.
//
// New directories created at runtime are automatically added to the watch
// list and their files imported.
func (im *Importer) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := im.files.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	im.logger.Info("watcher: started", slog.String("root", root))

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						im.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						im.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Import any .md files already in the new directory.
					im.importDir(ctx, root, absPath)
					continue
				}
			}

			// Only seed files from here on; temp files of atomic writes
			// are hidden.
			if filepath.Ext(absPath) != storage.Ext || storage.Hidden(filepath.Base(absPath)) {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				im.importPath(ctx, rel)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				im.logger.Info("watcher: seed file gone, page kept", slog.String("path", rel))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (im *Importer) importPath(ctx context.Context, rel string) {
	data, err := im.files.Read(rel)
	if err != nil {
		im.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	changed, err := im.ImportFile(ctx, rel, data)
	if err != nil {
		im.logger.Warn("watcher: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	im.logger.Debug("watcher: imported", slog.String("path", rel), slog.Bool("changed", changed))
}

// importDir imports the seed files found in a newly created directory.
func (im *Importer) importDir(ctx context.Context, root, dirPath string) {
	rel, err := filepath.Rel(root, dirPath)
	if err != nil {
		return
	}
	metas, err := im.files.List(filepath.ToSlash(rel))
	if err != nil {
		im.logger.Warn("watcher: list new dir failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	for _, m := range metas {
		im.importPath(ctx, m.Path)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && storage.Hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
