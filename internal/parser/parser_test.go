package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/norgdate"
)

func TestParse_Golden(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "project.norg"))
	require.NoError(t, err)

	doc := Parse("project.norg", data, nil)
	out, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "project", append(out, '\n'))
}

func TestParse_TaskDates(t *testing.T) {
	src := "* (x|< 5th Jan 2025|> 1st Jan 2025 09:30|@ Wed 1st Jan 2025) Dated\n" +
		"* (+ 1st Feb 2025) Monthly review\n"
	doc := Parse("dated.norg", []byte(src), nil)
	require.Len(t, doc.Tasks, 2)

	want := func(phrase string) *time.Time {
		ts, err := norgdate.Parse(phrase)
		require.NoError(t, err)
		return &ts
	}
	dated := doc.Tasks[0]
	assert.Equal(t, models.StatusDone, dated.Status)
	assert.Equal(t, want("5th Jan 2025"), dated.Due)
	assert.Equal(t, want("1st Jan 2025 09:30"), dated.Starts)
	assert.Equal(t, want("Wed 1st Jan 2025"), dated.Timestamp)

	review := doc.Tasks[1]
	assert.Equal(t, models.StatusRecurring, review.Status)
	assert.Equal(t, want("1st Feb 2025"), review.Recurs)
}

func TestParse_BadDateKeepsTask(t *testing.T) {
	doc := Parse("bad.norg", []byte("* (< Friday, 29th October 2020) Mismatch\n"), nil)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "Mismatch", doc.Tasks[0].Text)
	assert.Equal(t, models.StatusUndone, doc.Tasks[0].Status)
	assert.Nil(t, doc.Tasks[0].Due)
}

func TestParse_InterleavedSiblings(t *testing.T) {
	// Each annotated heading must own exactly the annotated headings beneath
	// it, even when plain sections and deeper levels alternate.
	src := strings.Join([]string{
		"* ( ) A",
		"** Section",
		"*** ( ) A.1",
		"**** ( ) A.1.a",
		"** ( ) A.2",
		"* Plain",
		"** ( ) B",
		"*** Section",
		"**** ( ) B.1",
		"** ( ) C",
		"* ( ) D",
	}, "\n")
	doc := Parse("tree.norg", []byte(src), nil)

	type shape struct {
		Text     string
		Children []shape
	}
	var toShape func([]models.Task) []shape
	toShape = func(ts []models.Task) []shape {
		var out []shape
		for _, t := range ts {
			out = append(out, shape{Text: t.Text, Children: toShape(t.Children)})
		}
		return out
	}

	want := []shape{
		{Text: "A", Children: []shape{
			{Text: "A.1", Children: []shape{{Text: "A.1.a"}}},
			{Text: "A.2"},
		}},
		{Text: "B", Children: []shape{{Text: "B.1"}}},
		{Text: "C"},
		{Text: "D"},
	}
	assert.Equal(t, want, toShape(doc.Tasks))
}

func TestParse_MetadataShapes(t *testing.T) {
	src := "@document.meta\ntitle: Solo\ncategories: work\nauthors: {\n  name: alice\n}\n@end\n"
	doc := Parse("solo.norg", []byte(src), nil)
	assert.Equal(t, "Solo", doc.Title)
	assert.Equal(t, []string{"work"}, doc.Categories)
	assert.Equal(t, []string{}, doc.Authors)
}

func TestParse_FirstMetadataWins(t *testing.T) {
	src := "* Notes\n  @document.meta\n  title: Nested\n  @end\n@document.meta\ntitle: Second\n@end\n"
	doc := Parse("nested.norg", []byte(src), nil)
	assert.Equal(t, "Nested", doc.Title)
}

func TestParse_MalformedMetadataIsNonFatal(t *testing.T) {
	src := "@document.meta\ntitle: Broken\ncategories: [\n  work\n@end\n* (x) Still a task\n"
	doc := Parse("broken.norg", []byte(src), nil)
	assert.Empty(t, doc.Title)
	assert.Empty(t, doc.Categories)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "Still a task", doc.Tasks[0].Text)
}

func TestParse_UnparseableTree(t *testing.T) {
	doc := Parse("/w/broken.norg", []byte("@document.meta\ntitle: x\n* (x) task\n"), nil)
	assert.Equal(t, "/w/broken.norg", doc.Path)
	assert.Empty(t, doc.Title)
	assert.Empty(t, doc.Tasks)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.norg")
	require.NoError(t, os.WriteFile(p, []byte("* (x) Done\n"), 0o644))

	doc, err := ParseFile(p, nil)
	require.NoError(t, err)
	assert.Equal(t, p, doc.Path)
	require.Len(t, doc.Tasks, 1)

	_, err = ParseFile(filepath.Join(dir, "missing.norg"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
