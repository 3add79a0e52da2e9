package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/docservice"
	"github.com/starford/ansuz/internal/sse"
)

// Publisher receives events produced by API calls.
type Publisher interface {
	Publish(sse.Event)
}

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
	pub Publisher
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service, pub Publisher) *Handler {
	return &Handler{svc: svc, pub: pub}
}

// Index handles POST /api/index.
//
//	@Summary		Index a file or directory
//	@Tags			index
//	@Accept			json
//	@Produce		json
//	@Param			body	body		IndexRequest	true	"Path to index"
//	@Success		200		{object}	IndexResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index [post]
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !readJSON(w, r, &req) {
		return
	}
	rep, err := h.svc.Index(r.Context(), req.Path)
	if err != nil {
		writeError(w, "index", err)
		return
	}
	if h.pub != nil {
		h.pub.Publish(sse.Event{Type: sse.TypeIndexCompleted, Data: rep})
	}
	writeJSON(w, http.StatusOK, rep)
}

// Categories handles GET /api/categories.
//
//	@Summary		List all categories
//	@Tags			categories
//	@Produce		json
//	@Success		200	{object}	CategoriesResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.AllCategories(r.Context())
	if err != nil {
		writeError(w, "list categories", err)
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: cats})
}

// Documents handles GET /api/documents?category=a&category=b&any=true.
//
//	@Summary		Find documents by category
//	@Tags			categories
//	@Produce		json
//	@Param			category	query		[]string	true	"Category (repeatable)"
//	@Param			any			query		bool		false	"Match any category instead of all"
//	@Success		200			{object}	DocumentsResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	matchAny, _ := strconv.ParseBool(q.Get("any"))

	docs, err := h.svc.CategoryQuery(r.Context(), q["category"], matchAny)
	if err != nil {
		writeError(w, "category query", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentsResponse{Documents: docs})
}

// Query handles POST /api/query.
//
//	@Summary		Run a read-only SQL query
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Query and positional parameters"
//	@Success		200		{object}	QueryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query [post]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !readJSON(w, r, &req) {
		return
	}
	rows, err := h.svc.UserQuery(r.Context(), req.Query, req.Params)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidArgument) {
			writeError(w, "query", err)
			return
		}
		// The caller owns query correctness; report driver errors verbatim.
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Rows: rows})
}

// Tasks handles GET /api/tasks?path=.
//
//	@Summary		Get the task tree of a document
//	@Tags			tasks
//	@Produce		json
//	@Param			path	query		string	true	"Document path"
//	@Success		200		{object}	TasksResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	tasks, err := h.svc.Tasks(r.Context(), path)
	if err != nil {
		writeError(w, "tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, TasksResponse{Path: path, Tasks: tasks})
}
