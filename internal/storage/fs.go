package storage

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/moewiki/internal/checksum"
)

// Ext is the extension of seed files.
const Ext = ".md"

const tmpPattern = ".moewiki-tmp-*"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the seed directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root implements Provider.
func (f *FS) Root() string { return f.root }

// resolve maps a slash-separated path relative to the root to an absolute
// path, rejecting absolute input and anything escaping the root.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if filepath.IsAbs(local) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, local)
	if abs != f.root && !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// Hidden reports whether a file or directory name is skipped by List:
// dot entries such as .git or in-flight temp files.
func Hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// List walks dir (relative to root) in lexical order and returns metadata
// for every seed file. Hidden directories are not descended into.
func (f *FS) List(dir string) ([]FileMeta, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []FileMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != base && Hidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != Ext {
			return nil
		}
		meta, err := f.stat(p, d)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

func (f *FS) stat(p string, d fs.DirEntry) (FileMeta, error) {
	info, err := d.Info()
	if err != nil {
		return FileMeta{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return FileMeta{}, err
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil {
		return FileMeta{}, err
	}
	return FileMeta{
		Path:      filepath.ToSlash(rel),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a file under the root.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces the file at path with content. A file that
// already holds exactly content is left untouched, so a watcher on the
// same directory sees no event.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if old, err := os.ReadFile(abs); err == nil && bytes.Equal(old, content) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	return writeAtomic(abs, content)
}

// writeAtomic writes a temp file next to abs, syncs it and renames it
// into place.
func writeAtomic(abs string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(abs), tmpPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}
