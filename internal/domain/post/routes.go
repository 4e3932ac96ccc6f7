package post

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns post routes behind user auth
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/comments", h.Comment)

	return r
}
