package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.HandleGetPortfolio)          // Current holdings
		r.Put("/currency", h.HandleSetCurrency)   // Reporting currency
		r.Get("/summary", h.HandleGetSummary)     // Live valuation
		r.Get("/allocation", h.HandleGetAllocation) // Category weights vs targets

		r.Route("/import", func(r chi.Router) {
			r.Post("/", h.HandleImport)             // Multipart upload
			r.Post("/remote", h.HandleImportRemote) // Configured URL only
		})
	})
}
