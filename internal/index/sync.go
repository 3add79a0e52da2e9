package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// DefaultSlack is how much newer than its index entry a file must be before
// a workspace scan re-parses it.
const DefaultSlack = 3 * time.Second

// Report summarises one workspace run.
type Report struct {
	RunID   string        `json:"run_id"`
	Seen    int           `json:"seen"`
	Skipped int           `json:"skipped"`
	Parsed  int           `json:"parsed"`
	Written int           `json:"written"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
}

// Indexer walks workspaces and feeds parsed documents to the store.
type Indexer struct {
	store     DocumentIndex
	logger    *slog.Logger
	slack     time.Duration
	gitignore bool
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithSlack sets the freshness slack. Negative values are ignored.
func WithSlack(d time.Duration) IndexerOption {
	return func(ix *Indexer) {
		if d >= 0 {
			ix.slack = d
		}
	}
}

// WithGitignore makes workspace walks honour the root .gitignore.
func WithGitignore(on bool) IndexerOption {
	return func(ix *Indexer) { ix.gitignore = on }
}

// NewIndexer creates an Indexer writing to store.
func NewIndexer(store DocumentIndex, logger *slog.Logger, opts ...IndexerOption) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Indexer{store: store, logger: logger, slack: DefaultSlack}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Workspace opens the directory at root as a storage provider using the
// indexer's walk settings.
func (ix *Indexer) Workspace(root string) (*storage.FS, error) {
	var opts []storage.Option
	if ix.gitignore {
		opts = append(opts, storage.WithGitignore())
	}
	return storage.NewFS(root, opts...)
}

// shouldParse reports whether a file modified at mtime needs parsing given
// its index entry.
func shouldParse(mtime, indexed time.Time, known bool, slack time.Duration) bool {
	return !known || mtime.Sub(indexed) > slack
}

// IndexPath indexes a file unconditionally, or a directory as a workspace.
// A missing path fails with apperr.ErrNotFound before any work is done.
func (ix *Indexer) IndexPath(ctx context.Context, path string) (Report, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Report{}, fmt.Errorf("index: resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return Report{}, fmt.Errorf("index: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return Report{}, fmt.Errorf("index: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ix.IndexWorkspace(ctx, abs)
	}

	start := time.Now()
	rep := Report{RunID: uuid.NewString(), Seen: 1}
	if err := ix.IndexFile(ctx, abs); err != nil {
		return rep, err
	}
	rep.Parsed, rep.Written = 1, 1
	rep.Elapsed = time.Since(start)
	return rep, nil
}

// IndexFile parses and persists one file with no freshness check.
func (ix *Indexer) IndexFile(ctx context.Context, path string) error {
	doc, err := parser.ParseFile(path, ix.logger)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if _, err := ix.store.Persist(ctx, doc); err != nil {
		return err
	}
	ix.logger.Debug("index: indexed", slog.String("path", path))
	return nil
}

// IndexWorkspace brings every document under root up to date.
//
// The walk and parse run on the calling goroutine; a single writer persists
// parsed records in arrival order through an unbounded queue. IndexWorkspace
// returns once the writer has drained. Per-file failures are logged and
// counted, never returned. Cancelling ctx stops the walk between files.
func (ix *Indexer) IndexWorkspace(ctx context.Context, root string) (Report, error) {
	start := time.Now()
	rep := Report{RunID: uuid.NewString()}
	logger := ix.logger.With(slog.String("run_id", rep.RunID))

	ws, err := ix.Workspace(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rep, fmt.Errorf("index: workspace %s: %w", root, apperr.ErrNotFound)
		}
		return rep, fmt.Errorf("index: workspace: %w", err)
	}
	logger.Info("index: run started", slog.String("root", ws.Root()))

	in, out := unbounded[*models.Document]()

	var written, writeFailed int
	var g errgroup.Group
	g.Go(func() error {
		for doc := range out {
			if _, err := ix.store.Persist(ctx, doc); err != nil {
				writeFailed++
				logger.Warn("index: persist failed", slog.String("path", doc.Path), slog.String("error", err.Error()))
				continue
			}
			written++
		}
		return nil
	})

	walkErr := ws.Walk("", func(m models.FileMeta) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.Seen++

		indexed, known, err := ix.store.LastIndexed(ctx, m.Path)
		if err != nil {
			logger.Warn("index: freshness check failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		}
		if err == nil && !shouldParse(m.ModTime, indexed, known, ix.slack) {
			rep.Skipped++
			return nil
		}

		doc, err := parser.ParseFile(m.Path, logger)
		if err != nil {
			rep.Failed++
			logger.Warn("index: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			return nil
		}
		rep.Parsed++
		in <- doc
		return nil
	})
	close(in)
	_ = g.Wait()
	rep.Written = written
	rep.Failed += writeFailed

	rep.Elapsed = time.Since(start)
	logger.Info("index: run complete",
		slog.Int("seen", rep.Seen),
		slog.Int("skipped", rep.Skipped),
		slog.Int("parsed", rep.Parsed),
		slog.Int("written", rep.Written),
		slog.Int("failed", rep.Failed),
		slog.Duration("elapsed", rep.Elapsed),
	)
	if walkErr != nil {
		return rep, fmt.Errorf("index: %w", walkErr)
	}
	return rep, nil
}

// Prune removes index entries under root whose files no longer exist or
// are now ignored. It returns the removed paths.
func (ix *Indexer) Prune(ctx context.Context, ws storage.Provider) ([]string, error) {
	indexed, err := ix.store.AllPaths(ctx)
	if err != nil {
		return nil, err
	}
	root := ws.Root()
	var removed []string
	for p := range indexed {
		if !strings.HasPrefix(p, root+string(filepath.Separator)) {
			continue
		}
		if _, statErr := os.Stat(p); statErr == nil && !ws.Ignored(p, false) {
			continue
		}
		ok, err := ix.store.DeleteDocument(ctx, p)
		if err != nil {
			ix.logger.Warn("index: prune failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if ok {
			removed = append(removed, p)
		}
	}
	return removed, nil
}
