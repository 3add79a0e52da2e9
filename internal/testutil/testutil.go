// Package testutil provides shared test helpers for setting up workspaces and services.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/docservice"
)

// Logger returns a JSON logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestWorkspace creates a temporary workspace directory and returns its absolute path.
func TestWorkspace(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

// WriteDoc writes content to rel under root, creating parent directories.
func WriteDoc(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestService opens a service over root backed by a temporary database that
// is automatically cleaned up. The workspace is indexed when initial is true.
func TestService(t *testing.T, root string, initial bool) *docservice.Service {
	t.Helper()
	svc, err := docservice.Initialize(context.Background(), docservice.Config{
		DBPath:           filepath.Join(t.TempDir(), "ansuz-test.db"),
		Workspace:        root,
		InitialIndex:     initial,
		RespectGitignore: true,
	}, Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}
