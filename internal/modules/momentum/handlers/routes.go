package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all momentum routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/momentum", func(r chi.Router) {
		r.Get("/", h.HandleGetMomentum)
	})
}
