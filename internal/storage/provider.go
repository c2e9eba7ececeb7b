// Package storage provides atomic, root-confined file access for the page
// vault and the generated feed.
package storage

import "time"

// FileInfo describes one file under the storage root.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for file operations relative to a root.
type Provider interface {
	// List returns every file with the given extension under dir.
	List(dir, ext string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Root is the absolute root directory.
	Root() string
}
