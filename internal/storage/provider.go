// Package storage defines the workspace file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/tessera/internal/models"
)

// Provider is the interface for workspace file operations. Paths are
// relative to the workspace root.
type Provider interface {
	// List returns metadata for every document with ext under dir, skipping
	// hidden directories.
	List(dir, ext string) ([]models.FileMetadata, error)
	// Stat returns metadata for the file at path.
	Stat(path string) (models.FileMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Root returns the absolute workspace directory.
	Root() string
}

// DocumentExt is the extension of canvas documents.
const DocumentExt = ".json"

// DocumentPath returns the workspace-relative path of the canvas with id.
func DocumentPath(id string) string {
	return id + DocumentExt
}

// DocumentID returns the canvas id stored at path.
func DocumentID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), DocumentExt)
}
