package index

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "ansuz-test-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + "-wal")
		os.Remove(f.Name() + "-shm")
	})

	s, err := Open(f.Name(), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setIndexed(t *testing.T, s *Store, path string, at time.Time) {
	t.Helper()
	_, err := s.conn.Exec(`UPDATE docs SET indexed = ? WHERE path = ?`, at.UTC(), path)
	require.NoError(t, err)
}

func docColumn(t *testing.T, s *Store, path, col string) string {
	t.Helper()
	var v string
	require.NoError(t, s.conn.QueryRow(`SELECT COALESCE(`+col+`, '') FROM docs WHERE path = ?`, path).Scan(&v))
	return v
}

func taskCreated(t *testing.T, s *Store, text string) string {
	t.Helper()
	var v string
	require.NoError(t, s.conn.QueryRow(`SELECT created FROM tasks WHERE text = ?`, text).Scan(&v))
	return v
}

func TestSchemaCreation(t *testing.T) {
	s := testStore(t)
	for _, table := range []string{"docs", "categories", "tasks"} {
		var n int
		require.NoError(t, s.conn.QueryRow(`SELECT count(*) FROM `+table).Scan(&n), table)
	}
}

func TestUpsertDocument_KeepsIdentityAndCreated(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1, err := s.UpsertDocument(ctx, &models.Document{Path: "/w/a.norg", Title: "A", Created: "2024-01-01"})
	require.NoError(t, err)
	id2, err := s.UpsertDocument(ctx, &models.Document{Path: "/w/a.norg", Title: "A2", Created: "2030-01-01", Authors: []string{"alice"}})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, "A2", docColumn(t, s, "/w/a.norg", "title"))
	assert.Equal(t, "2024-01-01", docColumn(t, s, "/w/a.norg", "created"))
	assert.Equal(t, `["alice"]`, docColumn(t, s, "/w/a.norg", "authors"))

	var n int
	require.NoError(t, s.conn.QueryRow(`SELECT count(*) FROM docs`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUpsertDocument_IndexedAdvancesOnlyOnChange(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	doc := &models.Document{Path: "/w/a.norg", Title: "A", Description: "d", Authors: []string{"x"}, Updated: "u1"}

	_, err := s.UpsertDocument(ctx, doc)
	require.NoError(t, err)

	old := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	setIndexed(t, s, doc.Path, old)

	_, err = s.UpsertDocument(ctx, doc)
	require.NoError(t, err)
	got, ok, err := s.LastIndexed(ctx, doc.Path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(old), "no-op upsert moved indexed to %v", got)

	changed := *doc
	changed.Updated = "u2"
	_, err = s.UpsertDocument(ctx, &changed)
	require.NoError(t, err)
	got, _, err = s.LastIndexed(ctx, doc.Path)
	require.NoError(t, err)
	assert.True(t, got.After(old), "indexed = %v, want after %v", got, old)
}

func TestPersist_IndexedTracksCategoryAndTaskChanges(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	doc := &models.Document{
		Path:       "/w/a.norg",
		Title:      "A",
		Categories: []string{"work"},
		Tasks:      []models.Task{{Text: "One", Status: models.StatusUndone}},
	}
	_, err := s.Persist(ctx, doc)
	require.NoError(t, err)

	old := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	lastIndexed := func() time.Time {
		t.Helper()
		got, ok, err := s.LastIndexed(ctx, doc.Path)
		require.NoError(t, err)
		require.True(t, ok)
		return got
	}

	setIndexed(t, s, doc.Path, old)
	_, err = s.Persist(ctx, doc)
	require.NoError(t, err)
	assert.True(t, lastIndexed().Equal(old), "unchanged document moved indexed")

	done := *doc
	done.Tasks = []models.Task{{Text: "One", Status: models.StatusDone}}
	_, err = s.Persist(ctx, &done)
	require.NoError(t, err)
	assert.True(t, lastIndexed().After(old), "task-only edit left indexed at %v", old)

	setIndexed(t, s, doc.Path, old)
	recat := done
	recat.Categories = []string{"work", "home"}
	_, err = s.Persist(ctx, &recat)
	require.NoError(t, err)
	assert.True(t, lastIndexed().After(old), "category-only edit left indexed at %v", old)

	setIndexed(t, s, doc.Path, old)
	id, err := s.UpsertDocument(ctx, &recat)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceTasks(ctx, id, recat.Tasks))
	require.NoError(t, s.ReplaceCategories(ctx, id, []string{"home", "work"}))
	assert.True(t, lastIndexed().Equal(old), "rewriting identical rows moved indexed")

	require.NoError(t, s.ReplaceTasks(ctx, id, nil))
	assert.True(t, lastIndexed().After(old))
}

func TestPersist_FailedStepKeepsNothing(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	doc := &models.Document{
		Path:       "/w/a.norg",
		Title:      "A",
		Categories: []string{"old"},
		Tasks:      []models.Task{{Text: "Keep", Status: models.StatusUndone}},
	}
	_, err := s.Persist(ctx, doc)
	require.NoError(t, err)

	old := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	setIndexed(t, s, doc.Path, old)

	// Make the task step fail after the metadata and categories were written.
	_, err = s.conn.Exec(`CREATE TRIGGER tasks_frozen BEFORE DELETE ON tasks BEGIN SELECT RAISE(ABORT, 'frozen'); END`)
	require.NoError(t, err)

	_, err = s.Persist(ctx, &models.Document{
		Path:       "/w/a.norg",
		Title:      "B",
		Categories: []string{"new"},
		Tasks:      []models.Task{{Text: "Other", Status: models.StatusDone}},
	})
	require.Error(t, err)

	assert.Equal(t, "A", docColumn(t, s, doc.Path, "title"))
	got, _, err := s.LastIndexed(ctx, doc.Path)
	require.NoError(t, err)
	assert.True(t, got.Equal(old), "failed write moved indexed to %v", got)
	all, err := s.AllCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, all)
}

func TestLastIndexed_Unknown(t *testing.T) {
	s := testStore(t)
	_, ok, err := s.LastIndexed(context.Background(), "/nope.norg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceCategories_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id, err := s.UpsertDocument(ctx, &models.Document{Path: "/w/a.norg"})
	require.NoError(t, err)

	cats := []string{"work", "work", " urgent ", "caf\u00e9", "cafe\u0301", ""}
	require.NoError(t, s.ReplaceCategories(ctx, id, cats))
	require.NoError(t, s.ReplaceCategories(ctx, id, cats))

	var n int
	require.NoError(t, s.conn.QueryRow(`SELECT count(*) FROM categories WHERE file_id = ?`, id).Scan(&n))
	assert.Equal(t, 3, n)

	all, err := s.AllCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"caf\u00e9", "urgent", "work"}, all)

	require.NoError(t, s.ReplaceCategories(ctx, id, nil))
	all, err = s.AllCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReplaceTasks_PreservesCreatedByText(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id, err := s.UpsertDocument(ctx, &models.Document{Path: "/w/a.norg"})
	require.NoError(t, err)

	first := []models.Task{
		{Text: "Parent", Status: models.StatusUndone, Children: []models.Task{
			{Text: "Moved", Status: models.StatusDone},
		}},
	}
	require.NoError(t, s.ReplaceTasks(ctx, id, first))
	_, err = s.conn.Exec(`UPDATE tasks SET created = 'first-seen', updated = 'touched' WHERE text = 'Moved'`)
	require.NoError(t, err)

	// Same text, new position and status.
	second := []models.Task{
		{Text: "Parent", Status: models.StatusUndone},
		{Text: "Other", Status: models.StatusUndone, Children: []models.Task{
			{Text: "Moved", Status: models.StatusPaused},
		}},
	}
	require.NoError(t, s.ReplaceTasks(ctx, id, second))

	assert.Equal(t, "first-seen", taskCreated(t, s, "Moved"))
	assert.NotEmpty(t, taskCreated(t, s, "Other"))

	tasks, err := s.Tasks(ctx, "/w/a.norg")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Len(t, tasks[1].Children, 1)
	moved := tasks[1].Children[0]
	assert.Equal(t, models.StatusPaused, moved.Status)
	assert.Equal(t, "touched", moved.Updated)
	require.NotNil(t, moved.ParentID)
	assert.Equal(t, tasks[1].ID, *moved.ParentID)
}

func TestReplaceTasks_FailedInsertSkipsSubtree(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id, err := s.UpsertDocument(ctx, &models.Document{Path: "/w/a.norg"})
	require.NoError(t, err)

	tasks := []models.Task{
		{Text: "Root", Status: models.StatusUndone, Children: []models.Task{
			{Text: "Dup", Status: models.StatusUndone},
			{Text: "Dup", Status: models.StatusDone, Children: []models.Task{
				{Text: "Lost", Status: models.StatusUndone},
			}},
			{Text: "After", Status: models.StatusUndone},
		}},
	}
	require.NoError(t, s.ReplaceTasks(ctx, id, tasks))

	got, err := s.Tasks(ctx, "/w/a.norg")
	require.NoError(t, err)
	require.Len(t, got, 1)
	var texts []string
	for _, c := range got[0].Children {
		texts = append(texts, c.Text)
	}
	assert.Equal(t, []string{"Dup", "After"}, texts)

	var n int
	require.NoError(t, s.conn.QueryRow(`SELECT count(*) FROM tasks WHERE text = 'Lost'`).Scan(&n))
	assert.Zero(t, n)
}

func TestTasks_Dates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	due := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	_, err := s.Persist(ctx, &models.Document{
		Path:  "/w/a.norg",
		Tasks: []models.Task{{Text: "Due", Status: models.StatusUndone, Priority: "A", Due: &due}},
	})
	require.NoError(t, err)

	tasks, err := s.Tasks(ctx, "/w/a.norg")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].Due)
	assert.True(t, tasks[0].Due.Equal(due))
	assert.Nil(t, tasks[0].Starts)
	assert.Equal(t, "A", tasks[0].Priority)

	_, err = s.Tasks(ctx, "/w/missing.norg")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func seedCategories(t *testing.T, s *Store) {
	t.Helper()
	docs := map[string][]string{
		"/w/both.norg":   {"work", "urgent"},
		"/w/work.norg":   {"work"},
		"/w/urgent.norg": {"urgent"},
		"/w/home.norg":   {"home"},
	}
	for path, cats := range docs {
		_, err := s.Persist(context.Background(), &models.Document{Path: path, Title: path, Categories: cats})
		require.NoError(t, err)
	}
}

func summaryPaths(ds []models.DocumentSummary) []string {
	out := []string{}
	for _, d := range ds {
		out = append(out, d.Path)
	}
	return out
}

func TestCategoryQuery(t *testing.T) {
	s := testStore(t)
	seedCategories(t, s)
	ctx := context.Background()

	all, err := s.CategoryQuery(ctx, []string{"work", "urgent"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/both.norg"}, summaryPaths(all))

	anyOf, err := s.CategoryQuery(ctx, []string{"work", "urgent"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/w/both.norg", "/w/urgent.norg", "/w/work.norg"}, summaryPaths(anyOf))

	repeated, err := s.CategoryQuery(ctx, []string{"work", "work"}, false)
	require.NoError(t, err)
	assert.Len(t, repeated, 2)

	_, err = s.CategoryQuery(ctx, nil, false)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestDeleteDocument(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, err := s.Persist(ctx, &models.Document{
		Path:       "/w/a.norg",
		Categories: []string{"work"},
		Tasks:      []models.Task{{Text: "T", Status: models.StatusUndone}},
	})
	require.NoError(t, err)

	ok, err := s.DeleteDocument(ctx, "/w/a.norg")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, table := range []string{"docs", "categories", "tasks"} {
		var n int
		require.NoError(t, s.conn.QueryRow(`SELECT count(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}

	ok, err = s.DeleteDocument(ctx, "/w/a.norg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuery_DecodesRows(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	due := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	_, err := s.Persist(ctx, &models.Document{
		Path:  "/w/a.norg",
		Title: "A",
		Tasks: []models.Task{{Text: "T", Status: models.StatusDone, Due: &due}},
	})
	require.NoError(t, err)

	var rows []Row
	for row, err := range s.Query(ctx, `
		SELECT d.path, d.description, t.due, t.task_id, 1.5 AS ratio
		FROM docs d JOIN tasks t ON t.file_id = d.id WHERE d.path = ?`, "/w/a.norg") {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, []string{"path", "description", "due", "task_id", "ratio"}, row.Columns)
	assert.Equal(t, KindText, row.Values[0].Kind)
	assert.Equal(t, KindNull, row.Values[1].Kind)
	assert.Equal(t, KindInteger, row.Values[3].Kind)
	assert.Equal(t, KindReal, row.Values[4].Kind)

	m := row.Map()
	assert.Equal(t, "/w/a.norg", m["path"])
	assert.NotContains(t, m, "description")
	assert.Equal(t, due.Unix(), m["due"])
	assert.Equal(t, 1.5, m["ratio"])
}

func TestQuery_ReadOnly(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, err := s.Persist(ctx, &models.Document{Path: "/w/a.norg"})
	require.NoError(t, err)

	var gotErr error
	for _, err := range s.Query(ctx, `DELETE FROM docs`) {
		gotErr = err
	}
	assert.Error(t, gotErr)

	paths, err := s.AllPaths(ctx)
	require.NoError(t, err)
	assert.Contains(t, paths, "/w/a.norg")
}

func TestQuery_StopsEarly(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, p := range []string{"/w/a.norg", "/w/b.norg", "/w/c.norg"} {
		_, err := s.Persist(ctx, &models.Document{Path: p})
		require.NoError(t, err)
	}

	n := 0
	for _, err := range s.Query(ctx, `SELECT path FROM docs`) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestValueEpoch(t *testing.T) {
	cases := []struct {
		v    Value
		want int64
		ok   bool
	}{
		{Value{Kind: KindText, Text: "2025-01-05 00:00:00"}, 1736035200, true},
		{Value{Kind: KindText, Text: "2025-01-05T00:00:00Z"}, 1736035200, true},
		{Value{Kind: KindText, Text: "2025-01-05"}, 1736035200, true},
		{Value{Kind: KindText, Text: "next week"}, 0, false},
		{Value{Kind: KindInteger, Int: 5}, 0, false},
	}
	for _, tc := range cases {
		got, ok := tc.v.Epoch()
		assert.Equal(t, tc.ok, ok, tc.v.Text)
		assert.Equal(t, tc.want, got, tc.v.Text)
	}
}
