package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/starford/ansuz/internal/models"
)

// Ext is the document file extension.
const Ext = ".norg"

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // absolute path to the workspace directory
	ignore *ignore.GitIgnore
}

// Option configures an FS.
type Option func(*FS) error

// WithGitignore makes the walk honour the workspace root's .gitignore.
// A missing .gitignore is not an error.
func WithGitignore() Option {
	return func(f *FS) error {
		gi, err := ignore.CompileIgnoreFile(filepath.Join(f.root, ".gitignore"))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("storage: compile .gitignore: %w", err)
		}
		f.ignore = gi
		return nil
	}
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, opts ...Option) (*FS, error) {
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
	f := &FS{root: abs}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Root returns the absolute workspace directory.
func (f *FS) Root() string { return f.root }

// resolve turns path into an absolute path under the root, rejecting
// anything that escapes it.
func (f *FS) resolve(path string) (string, error) {
	if path == "" {
		return f.root, nil
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(f.root, abs)
	}
	abs = filepath.Clean(abs)
	if abs != f.root && !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes workspace root: %s", path)
	}
	return abs, nil
}

// Ignored reports whether path is hidden or matched by .gitignore.
func (f *FS) Ignored(path string, isDir bool) bool {
	abs, err := f.resolve(path)
	if err != nil || abs == f.root {
		return err != nil
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	if f.ignore == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return f.ignore.MatchesPath(rel) || (isDir && f.ignore.MatchesPath(rel+"/"))
}

// Walk visits every document under dir.
func (f *FS) Walk(dir string, fn func(models.FileMeta) error) error {
	base, err := f.resolve(dir)
	if err != nil {
		return err
	}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != base && f.Ignored(p, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(models.FileMeta{Path: p, ModTime: info.ModTime(), Size: info.Size()})
	})
	if err != nil {
		return fmt.Errorf("storage: walk: %w", err)
	}
	return nil
}

// List returns metadata for every document under dir.
func (f *FS) List(dir string) ([]models.FileMeta, error) {
	var out []models.FileMeta
	err := f.Walk(dir, func(m models.FileMeta) error {
		out = append(out, m)
		return nil
	})
	return out, err
}

// Read returns the raw bytes of a workspace file.
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
