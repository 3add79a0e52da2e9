package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/ansuz/internal/models"
)

// Persist writes doc as one unit: upsert the row, then replace its
// categories and tasks, all in one transaction. If a step fails nothing is
// kept, so the file stays stale and is parsed again on the next scan.
//
// indexed advances whenever any part of the stored record changed,
// including a task-only or category-only edit.
func (s *Store) Persist(ctx context.Context, doc *models.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if id, err = upsertDocument(ctx, tx, doc); err != nil {
			return err
		}
		catsChanged, err := replaceCategories(ctx, tx, id, doc.Categories)
		if err != nil {
			return err
		}
		tasksChanged, err := s.replaceTasks(ctx, tx, id, doc.Tasks)
		if err != nil {
			return err
		}
		if catsChanged || tasksChanged {
			return touch(ctx, tx, id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// UpsertDocument inserts doc or updates the mutable fields of the row with
// the same path, leaving id and created untouched. An update that changes
// nothing does not touch the row, so indexed only advances on real change.
func (s *Store) UpsertDocument(ctx context.Context, doc *models.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = upsertDocument(ctx, tx, doc)
		return err
	})
	return id, err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("index: commit: %w", err)
	}
	return nil
}

// touch advances indexed for a change the docs columns do not show.
// Writing indexed directly does not fire the docs_indexed trigger.
func touch(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `UPDATE docs SET indexed = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: touch doc %d: %w", id, err)
	}
	return nil
}

func upsertDocument(ctx context.Context, tx *sql.Tx, doc *models.Document) (int64, error) {
	authors := doc.Authors
	if authors == nil {
		authors = []string{}
	}
	authorsJSON, _ := json.Marshal(authors)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO docs (path, title, description, authors, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			description = excluded.description,
			authors     = excluded.authors,
			updated     = excluded.updated
		WHERE docs.title IS NOT excluded.title
			OR docs.description IS NOT excluded.description
			OR docs.authors IS NOT excluded.authors
			OR docs.updated IS NOT excluded.updated
	`, doc.Path, nullString(doc.Title), nullString(doc.Description), string(authorsJSON),
		nullString(doc.Created), nullString(doc.Updated))
	if err != nil {
		return 0, fmt.Errorf("index: upsert doc %s: %w", doc.Path, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM docs WHERE path = ?`, doc.Path).Scan(&id); err != nil {
		return 0, fmt.Errorf("index: doc id %s: %w", doc.Path, err)
	}
	return id, nil
}

// ReplaceCategories swaps the categories of document id for names.
// Names are NFC-normalised; duplicates and blanks are dropped. indexed
// advances when the stored set changes.
func (s *Store) ReplaceCategories(ctx context.Context, id int64, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		changed, err := replaceCategories(ctx, tx, id, names)
		if err != nil || !changed {
			return err
		}
		return touch(ctx, tx, id)
	})
}

func replaceCategories(ctx context.Context, tx *sql.Tx, id int64, names []string) (bool, error) {
	before, err := categoryNames(ctx, tx, id)
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE file_id = ?`, id); err != nil {
		return false, fmt.Errorf("index: clear categories: %w", err)
	}
	if names = normalizeCategories(names); len(names) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO categories (file_id, name) VALUES (?, ?)`)
		if err != nil {
			return false, fmt.Errorf("index: prepare category insert: %w", err)
		}
		defer stmt.Close()
		for _, name := range names {
			if _, err := stmt.ExecContext(ctx, id, name); err != nil {
				return false, fmt.Errorf("index: insert category %q: %w", name, err)
			}
		}
	}

	after := slices.Clone(names)
	slices.Sort(after)
	return !slices.Equal(before, after), nil
}

func categoryNames(ctx context.Context, tx *sql.Tx, id int64) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM categories WHERE file_id = ? ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("index: read categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("index: scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func normalizeCategories(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = norm.NFC.String(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

type markers struct {
	created, updated sql.NullString
}

// taskShape is the content of one stored task row. parent is the position
// of the parent row in insertion order, -1 for top-level tasks.
type taskShape struct {
	parent   int
	text     string
	status   string
	due      sql.NullString
	starts   sql.NullString
	recurs   sql.NullString
	priority sql.NullString
	stamp    sql.NullString
}

// ReplaceTasks deletes the task rows of document id and inserts tasks in
// their place. A task whose text matched a deleted row anywhere in the
// document inherits that row's created and updated markers.
//
// A task that fails to insert is logged and skipped together with its
// subtree; the remaining tasks are still written. indexed advances when
// the stored tree changes.
func (s *Store) ReplaceTasks(ctx context.Context, id int64, tasks []models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		changed, err := s.replaceTasks(ctx, tx, id, tasks)
		if err != nil || !changed {
			return err
		}
		return touch(ctx, tx, id)
	})
}

func (s *Store) replaceTasks(ctx context.Context, tx *sql.Tx, id int64, tasks []models.Task) (bool, error) {
	before, prior, err := storedTasks(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE file_id = ?`, id); err != nil {
		return false, fmt.Errorf("index: clear tasks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (file_id, text, status, due, starts, recurs, priority, timestamp, parent_id, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), COALESCE(?, CURRENT_TIMESTAMP))
	`)
	if err != nil {
		return false, fmt.Errorf("index: prepare task insert: %w", err)
	}
	defer stmt.Close()

	var insert func(ts []models.Task, parent sql.NullInt64)
	insert = func(ts []models.Task, parent sql.NullInt64) {
		for _, t := range ts {
			m := prior[t.Text]
			res, err := stmt.ExecContext(ctx, id, t.Text, string(t.Status),
				nullTime(t.Due), nullTime(t.Starts), nullTime(t.Recurs),
				nullString(t.Priority), nullTime(t.Timestamp), parent,
				m.created, m.updated)
			if err == nil {
				var taskID int64
				if taskID, err = res.LastInsertId(); err == nil {
					insert(t.Children, sql.NullInt64{Int64: taskID, Valid: true})
					continue
				}
			}
			s.logger.Warn("task insert failed, skipping subtree",
				slog.Int64("doc_id", id),
				slog.String("task", t.Text),
				slog.String("error", err.Error()),
			)
		}
	}
	insert(tasks, sql.NullInt64{})

	after, _, err := storedTasks(ctx, tx, id)
	if err != nil {
		return false, err
	}
	return !slices.Equal(before, after), nil
}

// storedTasks reads the task rows of document id in insertion order, and
// maps task text to the markers of its first row.
func storedTasks(ctx context.Context, tx *sql.Tx, id int64) ([]taskShape, map[string]markers, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT task_id, parent_id, text, status, due, starts, recurs, priority, timestamp, created, updated
		FROM tasks WHERE file_id = ? ORDER BY task_id
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("index: read stored tasks: %w", err)
	}
	defer rows.Close()

	var shapes []taskShape
	pos := make(map[int64]int)
	prior := make(map[string]markers)
	for rows.Next() {
		var (
			taskID   int64
			parentID sql.NullInt64
			sh       taskShape
			m        markers
		)
		if err := rows.Scan(&taskID, &parentID, &sh.text, &sh.status, &sh.due, &sh.starts,
			&sh.recurs, &sh.priority, &sh.stamp, &m.created, &m.updated); err != nil {
			return nil, nil, fmt.Errorf("index: scan stored task: %w", err)
		}
		sh.parent = -1
		if parentID.Valid {
			if p, ok := pos[parentID.Int64]; ok {
				sh.parent = p
			}
		}
		pos[taskID] = len(shapes)
		shapes = append(shapes, sh)
		if _, ok := prior[sh.text]; !ok {
			prior[sh.text] = m
		}
	}
	return shapes, prior, rows.Err()
}

// LastIndexed returns when path was last written to the index. ok is false
// when the path has never been indexed.
func (s *Store) LastIndexed(ctx context.Context, path string) (t time.Time, ok bool, err error) {
	err = s.read.QueryRowContext(ctx, `SELECT indexed FROM docs WHERE path = ?`, path).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("index: last indexed %s: %w", path, err)
	}
	return t, true, nil
}

// DeleteDocument removes path with its categories and tasks. It reports
// whether a row existed.
func (s *Store) DeleteDocument(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM docs WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: delete %s: %w", path, err)
	}
	for _, q := range []string{
		`DELETE FROM tasks WHERE file_id = ?`,
		`DELETE FROM categories WHERE file_id = ?`,
		`DELETE FROM docs WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return false, fmt.Errorf("index: delete %s: %w", path, err)
		}
	}
	return true, tx.Commit()
}

// AllPaths returns every indexed document path.
func (s *Store) AllPaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT path FROM docs`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
