package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	EventIndexed = "indexed"
	EventRemoved = "removed"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

// watchState remembers the digest of the last content persisted per path so
// repeated saves of identical bytes are not re-written.
type watchState struct {
	ix     *Indexer
	ws     storage.Provider
	logger *slog.Logger
	cb     EventCallback
	sums   *checksum.Tracker
}

// Watch starts an fsnotify watcher on the workspace root and processes file
// change events until ctx is cancelled.
//
// Created or written documents are re-indexed without a freshness check,
// removed ones are dropped from the index. New directories are added to the
// watch list. Rename events trigger a debounced prune of entries whose files
// no longer exist.
func Watch(ctx context.Context, ix *Indexer, ws storage.Provider, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := ws.Root()
	if err := addDirsRecursive(w, ws, root); err != nil {
		return err
	}

	st := &watchState{ix: ix, ws: ws, logger: logger, cb: cb, sums: checksum.NewTracker()}
	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			st.reconcile(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if ws.Ignored(path, true) {
						continue
					}
					if addErr := addDirsRecursive(w, ws, path); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", path),
							slog.String("error", addErr.Error()))
					}
					st.indexDir(ctx, path)
					continue
				}
			}

			if !strings.HasSuffix(path, storage.Ext) || ws.Ignored(path, false) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				st.index(ctx, path)

			case ev.Op&fsnotify.Remove != 0:
				st.remove(ctx, path)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports the old name only; the new name arrives
				// as a Create if it stays inside a watched directory.
				st.remove(ctx, path)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (st *watchState) index(ctx context.Context, path string) {
	data, err := st.ws.Read(path)
	if err != nil {
		st.logger.Warn("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	sum, same := st.sums.Unchanged(path, data)
	if same {
		return
	}
	if err := st.ix.IndexFile(ctx, path); err != nil {
		st.logger.Warn("watcher: index failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	st.sums.Record(path, sum)
	st.logger.Debug("watcher: indexed", slog.String("path", path))
	if st.cb != nil {
		st.cb(EventIndexed, path)
	}
}

func (st *watchState) remove(ctx context.Context, path string) {
	st.sums.Forget(path)
	ok, err := st.ix.store.DeleteDocument(ctx, path)
	if err != nil {
		st.logger.Warn("watcher: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if ok {
		st.logger.Debug("watcher: removed", slog.String("path", path))
		if st.cb != nil {
			st.cb(EventRemoved, path)
		}
	}
}

// reconcile prunes stale entries and indexes documents the index has not
// seen, catching renames whose Create was missed.
func (st *watchState) reconcile(ctx context.Context) {
	removed, err := st.ix.Prune(ctx, st.ws)
	if err != nil {
		st.logger.Warn("reconcile: prune failed", slog.String("error", err.Error()))
		return
	}
	for _, p := range removed {
		st.sums.Forget(p)
		if st.cb != nil {
			st.cb(EventRemoved, p)
		}
	}

	indexed, err := st.ix.store.AllPaths(ctx)
	if err != nil {
		st.logger.Warn("reconcile: all paths failed", slog.String("error", err.Error()))
		return
	}
	docs, err := st.ws.List("")
	if err != nil {
		st.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}
	for _, m := range docs {
		if _, ok := indexed[m.Path]; !ok {
			st.index(ctx, m.Path)
		}
	}
}

// indexDir indexes the documents already present in a new directory.
func (st *watchState) indexDir(ctx context.Context, dir string) {
	docs, err := st.ws.List(dir)
	if err != nil {
		st.logger.Warn("watcher: list new dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return
	}
	for _, m := range docs {
		st.index(ctx, m.Path)
	}
}

func addDirsRecursive(w *fsnotify.Watcher, ws storage.Provider, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != ws.Root() && ws.Ignored(path, true) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
