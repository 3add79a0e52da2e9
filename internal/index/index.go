package index

import (
	"context"
	"iter"
	"time"

	"github.com/starford/ansuz/internal/models"
)

// DocumentIndex is the store surface used by the service layer.
// Consumers should depend on this interface rather than *Store.
type DocumentIndex interface {
	Persist(ctx context.Context, doc *models.Document) (int64, error)
	UpsertDocument(ctx context.Context, doc *models.Document) (int64, error)
	ReplaceCategories(ctx context.Context, id int64, names []string) error
	ReplaceTasks(ctx context.Context, id int64, tasks []models.Task) error
	LastIndexed(ctx context.Context, path string) (time.Time, bool, error)
	DeleteDocument(ctx context.Context, path string) (bool, error)
	AllPaths(ctx context.Context) (map[string]struct{}, error)
	Query(ctx context.Context, q string, args ...any) iter.Seq2[Row, error]
	CategoryQuery(ctx context.Context, cats []string, matchAny bool) ([]models.DocumentSummary, error)
	AllCategories(ctx context.Context) ([]string, error)
	Tasks(ctx context.Context, path string) ([]models.Task, error)
	Close() error
}

// Verify *Store satisfies DocumentIndex at compile time.
var _ DocumentIndex = (*Store)(nil)
