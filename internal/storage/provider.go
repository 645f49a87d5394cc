// Package storage defines the library file-system abstraction.
package storage

import "github.com/starford/deckhand/internal/models"

// Provider is the interface for library file operations. All paths are
// relative to the library root.
type Provider interface {
	// Root returns the absolute library root.
	Root() string
	// ListDirs returns the names of the non-hidden sub-directories of dir.
	ListDirs(dir string) ([]string, error)
	// ListFiles returns metadata for the non-hidden regular files directly in dir.
	ListFiles(dir string) ([]models.FileInfo, error)
	// Exists reports whether path exists.
	Exists(path string) bool
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Abs resolves path to an absolute path inside the root.
	Abs(path string) (string, error)
}
