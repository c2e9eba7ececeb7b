package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// The public feed endpoint is not part of this router; mount h.Feed
// separately so feed readers can fetch it without a token.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/entries", h.ListEntries)
	r.Get("/preview", h.Preview)
	r.Post("/publish", h.Publish)

	r.Get("/runs", h.ListRuns)
	r.Get("/publications", h.ListPublications)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
