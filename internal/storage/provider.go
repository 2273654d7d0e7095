// Package storage defines the seed directory file-system abstraction used
// by the importer and the exporter.
package storage

import "time"

// FileMeta describes one Markdown file under the root.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for seed directory file operations.
type Provider interface {
	// Root returns the absolute directory the provider is rooted at.
	Root() string
	// List returns metadata for every .md file under dir (relative to root).
	List(dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}
