// Package docservice is the host-facing facade over the document index: it
// owns the store handle and exposes the operations every transport shares.
package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// Config holds what Initialize needs.
type Config struct {
	DBPath           string
	Workspace        string
	InitialIndex     bool
	RespectGitignore bool
	StalenessSlack   time.Duration
}

// Service coordinates the store and the indexer.
type Service struct {
	store     index.DocumentIndex
	indexer   *index.Indexer
	workspace string
	logger    *slog.Logger
}

// Initialize opens (or creates) the store and, when cfg.InitialIndex is
// set, indexes the whole workspace before returning.
func Initialize(ctx context.Context, cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DBPath == "" || cfg.Workspace == "" {
		return nil, fmt.Errorf("docservice: database and workspace paths are required: %w", apperr.ErrInvalidArgument)
	}
	workspace, err := filepath.Abs(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("docservice: resolve workspace: %w", err)
	}

	store, err := index.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}
	opts := []index.IndexerOption{index.WithGitignore(cfg.RespectGitignore)}
	if cfg.StalenessSlack > 0 {
		opts = append(opts, index.WithSlack(cfg.StalenessSlack))
	}
	svc := New(store, workspace, logger, opts...)

	if cfg.InitialIndex {
		if _, err := svc.indexer.IndexWorkspace(ctx, workspace); err != nil {
			store.Close()
			return nil, err
		}
	}
	return svc, nil
}

// New wraps an already open store.
func New(store index.DocumentIndex, workspace string, logger *slog.Logger, opts ...index.IndexerOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		indexer:   index.NewIndexer(store, logger, opts...),
		workspace: workspace,
		logger:    logger,
	}
}

// Workspace returns the absolute workspace root.
func (s *Service) Workspace() string { return s.workspace }

// Close releases the store.
func (s *Service) Close() error { return s.store.Close() }

// Index indexes a file unconditionally or a directory as a workspace.
// A relative path is resolved against the workspace root.
func (s *Service) Index(ctx context.Context, path string) (index.Report, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return index.Report{}, fmt.Errorf("docservice: path is required: %w", apperr.ErrInvalidArgument)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.workspace, path)
	}
	return s.indexer.IndexPath(ctx, path)
}

// CategoryQuery returns documents tagged with all of cats, or any of them.
func (s *Service) CategoryQuery(ctx context.Context, cats []string, matchAny bool) ([]models.DocumentSummary, error) {
	return s.store.CategoryQuery(ctx, cats, matchAny)
}

// AllCategories lists every distinct category.
func (s *Service) AllCategories(ctx context.Context) ([]string, error) {
	return s.store.AllCategories(ctx)
}

// UserQuery runs a read-only query with string parameters and decodes every
// row into a map keyed by column name.
func (s *Service) UserQuery(ctx context.Context, q string, params []string) ([]map[string]any, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("docservice: query is required: %w", apperr.ErrInvalidArgument)
	}
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}

	out := []map[string]any{}
	for row, err := range s.store.Query(ctx, q, args...) {
		if err != nil {
			return nil, err
		}
		out = append(out, row.Map())
	}
	return out, nil
}

// Tasks returns the stored task tree of one document.
func (s *Service) Tasks(ctx context.Context, path string) ([]models.Task, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("docservice: path is required: %w", apperr.ErrInvalidArgument)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.workspace, path)
	}
	return s.store.Tasks(ctx, path)
}

// Watch re-indexes workspace changes until ctx is cancelled, calling cb
// after each change.
func (s *Service) Watch(ctx context.Context, cb index.EventCallback) error {
	ws, err := s.indexer.Workspace(s.workspace)
	if err != nil {
		return err
	}
	return index.Watch(ctx, s.indexer, ws, s.logger, cb)
}
