// Package parser extracts the normalized document record (metadata,
// categories, authors and the task tree) from Norg source.
package parser

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/norg"
	"github.com/starford/ansuz/internal/norgdate"
)

var todoStatus = map[norg.TodoState]models.TaskStatus{
	norg.TodoUndone:             models.StatusUndone,
	norg.TodoDone:               models.StatusDone,
	norg.TodoNeedsClarification: models.StatusNeedsClarification,
	norg.TodoPaused:             models.StatusPaused,
	norg.TodoUrgent:             models.StatusUrgent,
	norg.TodoRecurring:          models.StatusRecurring,
	norg.TodoPending:            models.StatusPending,
	norg.TodoCanceled:           models.StatusCanceled,
}

// ParseFile reads path and extracts its document record. Only I/O failures
// are returned; markup problems degrade to an empty record.
func ParseFile(path string, logger *slog.Logger) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read %s: %w", path, err)
	}
	return Parse(path, data, logger), nil
}

// Parse extracts the document record for path from data.
//
// An unparseable tree yields a record carrying only the path. Malformed
// metadata and unparseable dates are logged and leave the affected fields
// empty.
func Parse(path string, data []byte, logger *slog.Logger) *models.Document {
	if logger == nil {
		logger = slog.Default()
	}
	doc := &models.Document{
		Path:       path,
		Categories: []string{},
		Authors:    []string{},
		Tasks:      []models.Task{},
	}

	nodes, err := norg.Parse(data)
	if err != nil {
		logger.Warn("unparseable document", slog.String("path", path), slog.String("error", err.Error()))
		return doc
	}

	w := &walker{doc: doc, logger: logger.With(slog.String("path", path))}
	doc.Tasks = w.walk(nodes)
	return doc
}

type walker struct {
	doc      *models.Document
	logger   *slog.Logger
	haveMeta bool
}

// walk returns the tasks found in nodes, nested by heading containment.
// Headings without extensions are transparent: their tasks surface to the
// caller.
func (w *walker) walk(nodes []*norg.Node) []models.Task {
	out := []models.Task{}
	for _, n := range nodes {
		switch n.Kind {
		case norg.KindMeta:
			w.meta(n)
		case norg.KindHeading:
			inner := w.walk(n.Children)
			if len(n.Extensions) == 0 {
				out = append(out, inner...)
				continue
			}
			task := w.task(n)
			if len(inner) > 0 {
				task.Children = inner
			}
			out = append(out, task)
		}
	}
	return out
}

func (w *walker) meta(n *norg.Node) {
	if w.haveMeta {
		return
	}
	w.haveMeta = true

	meta, err := norg.ParseMeta(n.Content)
	if err != nil {
		w.logger.Warn("malformed metadata", slog.Int("line", n.Line), slog.String("error", err.Error()))
		return
	}
	w.doc.Title = scalar(meta["title"])
	w.doc.Description = scalar(meta["description"])
	w.doc.Created = scalar(meta["created"])
	w.doc.Updated = scalar(meta["updated"])
	w.doc.Categories = list(meta["categories"])
	w.doc.Authors = list(meta["authors"])
}

func (w *walker) task(n *norg.Node) models.Task {
	t := models.Task{Text: n.Title, Status: models.StatusUndone}
	for _, ext := range n.Extensions {
		switch ext.Kind {
		case norg.ExtTodo:
			t.Status = todoStatus[ext.Todo]
			if ext.Todo == norg.TodoRecurring && ext.Value != "" {
				t.Recurs = w.date(n, "recurs", ext.Value)
			}
		case norg.ExtPriority:
			t.Priority = ext.Value
		case norg.ExtTimestamp:
			t.Timestamp = w.date(n, "timestamp", ext.Value)
		case norg.ExtDue:
			t.Due = w.date(n, "due", ext.Value)
		case norg.ExtStart:
			t.Starts = w.date(n, "starts", ext.Value)
		}
	}
	return t
}

func (w *walker) date(n *norg.Node, field, phrase string) *time.Time {
	ts, err := norgdate.Parse(phrase)
	if err != nil {
		w.logger.Warn("unparseable task date",
			slog.Int("line", n.Line),
			slog.String("field", field),
			slog.String("value", phrase),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &ts
}

func scalar(v any) string {
	s, _ := v.(string)
	return s
}

// list flattens a string or an array of strings. Other shapes give an empty list.
func list(v any) []string {
	out := []string{}
	switch v := v.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
