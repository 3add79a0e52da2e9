// Package storage defines the workspace file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// Provider is the interface for workspace file access.
type Provider interface {
	// Root returns the absolute workspace directory.
	Root() string
	// Walk calls fn for every document under dir (absolute, or relative to
	// the root) in lexical order. Returning an error from fn stops the walk.
	Walk(dir string, fn func(models.FileMeta) error) error
	// List collects the documents Walk would visit.
	List(dir string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Ignored reports whether the walk skips path.
	Ignored(path string, isDir bool) bool
}
