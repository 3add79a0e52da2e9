package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Kind is the storage class of a column value.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	}
	return "null"
}

// Value is one decoded column value.
type Value struct {
	Kind Kind
	Int  int64
	Real float64
	Text string
	Blob []byte
}

// temporalColumns are reinterpreted as epoch seconds by Row.Map.
var temporalColumns = map[string]struct{}{
	"due": {}, "start": {}, "starts": {}, "recurs": {}, "timestamp": {}, "indexed": {},
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Epoch returns the value as Unix seconds when it is text holding a date.
func (v Value) Epoch() (int64, bool) {
	if v.Kind != KindText {
		return 0, false
	}
	s := strings.TrimSuffix(v.Text, "Z")
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Unix(), true
		}
	}
	return 0, false
}

func decodeValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindNull}
	case int64:
		return Value{Kind: KindInteger, Int: v}
	case float64:
		return Value{Kind: KindReal, Real: v}
	case string:
		return Value{Kind: KindText, Text: v}
	case []byte:
		return Value{Kind: KindBlob, Blob: v}
	case bool:
		if v {
			return Value{Kind: KindInteger, Int: 1}
		}
		return Value{Kind: KindInteger}
	case time.Time:
		// The driver hands back date-typed columns as time.Time and
		// unparseable ones as the zero time.
		if v.IsZero() {
			return Value{Kind: KindNull}
		}
		return Value{Kind: KindText, Text: v.UTC().Format(time.RFC3339)}
	}
	return Value{Kind: KindText, Text: fmt.Sprint(raw)}
}

// Row is one result row of an ad-hoc query.
type Row struct {
	Columns []string
	Values  []Value
}

// Map decodes the row by column name. NULL columns are omitted and temporal
// columns holding a date become epoch seconds.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, col := range r.Columns {
		v := r.Values[i]
		switch v.Kind {
		case KindNull:
			continue
		case KindInteger:
			out[col] = v.Int
		case KindReal:
			out[col] = v.Real
		case KindBlob:
			out[col] = v.Blob
		case KindText:
			if _, ok := temporalColumns[strings.ToLower(col)]; ok {
				if epoch, ok := v.Epoch(); ok {
					out[col] = epoch
					continue
				}
			}
			out[col] = v.Text
		}
	}
	return out
}

// Query runs q with positional args on the read-only connection. Rows are
// produced lazily; the first error ends the sequence.
func (s *Store) Query(ctx context.Context, q string, args ...any) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		rows, err := s.read.QueryContext(ctx, q, args...)
		if err != nil {
			yield(Row{}, fmt.Errorf("index: query: %w", err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(Row{}, fmt.Errorf("index: query columns: %w", err))
			return
		}
		for rows.Next() {
			raw := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range raw {
				ptrs[i] = &raw[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				yield(Row{}, fmt.Errorf("index: query scan: %w", err))
				return
			}
			row := Row{Columns: cols, Values: make([]Value, len(cols))}
			for i, v := range raw {
				row.Values[i] = decodeValue(v)
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Row{}, fmt.Errorf("index: query: %w", err))
		}
	}
}

// CategoryQuery returns the documents carrying every category in cats, or
// any of them when matchAny is set. An empty list is rejected.
func (s *Store) CategoryQuery(ctx context.Context, cats []string, matchAny bool) ([]models.DocumentSummary, error) {
	cats = normalizeCategories(cats)
	if len(cats) == 0 {
		return nil, fmt.Errorf("index: category query needs at least one category: %w", apperr.ErrInvalidArgument)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cats)), ",")
	args := make([]any, 0, len(cats)+1)
	for _, c := range cats {
		args = append(args, c)
	}

	q := `
		SELECT d.path, d.title, d.description, d.created, d.updated
		FROM docs d
		JOIN categories c ON c.file_id = d.id
		WHERE c.name IN (` + placeholders + `)
		GROUP BY d.id`
	if !matchAny {
		q += ` HAVING COUNT(DISTINCT c.name) = ?`
		args = append(args, len(cats))
	}
	q += ` ORDER BY d.path`

	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: category query: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentSummary{}
	for rows.Next() {
		var d models.DocumentSummary
		var title, desc, created, updated sql.NullString
		if err := rows.Scan(&d.Path, &title, &desc, &created, &updated); err != nil {
			return nil, fmt.Errorf("index: category query scan: %w", err)
		}
		d.Title, d.Description = title.String, desc.String
		d.Created, d.Updated = created.String, updated.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// AllCategories returns the distinct category names across all documents.
func (s *Store) AllCategories(ctx context.Context) ([]string, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT DISTINCT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("index: all categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Tasks rebuilds the stored task tree of path. It returns apperr.ErrNotFound
// when the path is not indexed.
func (s *Store) Tasks(ctx context.Context, path string) ([]models.Task, error) {
	var id int64
	err := s.read.QueryRowContext(ctx, `SELECT id FROM docs WHERE path = ?`, path).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: tasks of %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: tasks of %s: %w", path, err)
	}

	rows, err := s.read.QueryContext(ctx, `
		SELECT task_id, parent_id, text, status, priority, due, starts, recurs, timestamp, created, updated
		FROM tasks WHERE file_id = ? ORDER BY task_id`, id)
	if err != nil {
		return nil, fmt.Errorf("index: tasks of %s: %w", path, err)
	}
	defer rows.Close()

	var flat []models.Task
	for rows.Next() {
		var t models.Task
		var parent sql.NullInt64
		var priority, created, updated sql.NullString
		var due, starts, recurs, stamp sql.NullTime
		if err := rows.Scan(&t.ID, &parent, &t.Text, &t.Status, &priority,
			&due, &starts, &recurs, &stamp, &created, &updated); err != nil {
			return nil, fmt.Errorf("index: scan task: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			t.ParentID = &p
		}
		t.Priority, t.Created, t.Updated = priority.String, created.String, updated.String
		t.Due, t.Starts, t.Recurs, t.Timestamp = timePtr(due), timePtr(starts), timePtr(recurs), timePtr(stamp)
		flat = append(flat, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildTree(flat), nil
}

// buildTree nests flat rows by ParentID. Parents precede children in task_id
// order, so a single pass over children lists is enough.
func buildTree(flat []models.Task) []models.Task {
	children := make(map[int64][]int)
	var roots []int
	for i, t := range flat {
		if t.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		children[*t.ParentID] = append(children[*t.ParentID], i)
	}

	var assemble func(idx []int) []models.Task
	assemble = func(idx []int) []models.Task {
		if len(idx) == 0 {
			return nil
		}
		out := make([]models.Task, 0, len(idx))
		for _, i := range idx {
			t := flat[i]
			t.Children = assemble(children[t.ID])
			out = append(out, t)
		}
		return out
	}
	out := assemble(roots)
	if out == nil {
		out = []models.Task{}
	}
	return out
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid || t.Time.IsZero() {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
