package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all historical data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/historical", func(r chi.Router) {
		r.Get("/totals", h.HandleGetTotals)
		r.Get("/totals/latest", h.HandleGetLatest)
		r.Get("/totals.xlsx", h.HandleExportXLSX)
	})
}
