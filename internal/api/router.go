package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// pub, if non-nil, receives an index.completed event after each index call.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler, pub Publisher) chi.Router {
	h := NewHandler(svc, pub)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/index", h.Index)
	r.Get("/categories", h.Categories)
	r.Get("/documents", h.Documents)
	r.Post("/query", h.Query)
	r.Get("/tasks", h.Tasks)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
