package api

import (
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
)

// IndexRequest is the request body for POST /api/index.
type IndexRequest struct {
	Path string `json:"path" example:"projects/ansuz.norg" validate:"required"`
}

// IndexResponse reports the outcome of an index call.
type IndexResponse = index.Report

// CategoriesResponse lists distinct category names.
type CategoriesResponse struct {
	Categories []string `json:"categories" validate:"required"`
}

// DocumentsResponse wraps a category query result.
type DocumentsResponse struct {
	Documents []models.DocumentSummary `json:"documents" validate:"required"`
}

// QueryRequest is the request body for POST /api/query.
type QueryRequest struct {
	Query  string   `json:"query" example:"SELECT path FROM docs WHERE title = ?" validate:"required"`
	Params []string `json:"params" example:"Weekly review"`
}

// QueryResponse wraps decoded rows of an ad-hoc query.
type QueryResponse struct {
	Rows []map[string]any `json:"rows" validate:"required"`
}

// TasksResponse is the stored task tree of one document.
type TasksResponse struct {
	Path  string        `json:"path" validate:"required"`
	Tasks []models.Task `json:"tasks" validate:"required"`
}
