package moderation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwork/moderation-api/internal/middleware"
)

// AdminRoutes returns operator-only moderation routes
func (h *Handler) AdminRoutes(operatorAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(operatorAuth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(middleware.PermViewModeration))
		r.Get("/accounts/{id}", h.GetProfile)
		r.Get("/accounts/{id}/events", h.ListEvents)
		r.Post("/evaluate", h.Evaluate)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(middleware.PermOverride))
		r.Post("/accounts/{id}/override", h.Override)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(middleware.PermModerateContent))
		r.Post("/accounts/{id}/mute", h.Mute)
		r.Post("/accounts/{id}/unmute", h.Unmute)
		r.Put("/accounts/{id}/auto-mute", h.SetAutoMute)
		r.Post("/accounts/{id}/notes", h.AddNote)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePermission(middleware.PermManageRisk))
		r.Put("/accounts/{id}/probation", h.SetProbation)
		r.Put("/accounts/{id}/risk", h.SetRisk)
		r.Post("/accounts/{id}/violations", h.RecordViolation)
	})

	return r
}
