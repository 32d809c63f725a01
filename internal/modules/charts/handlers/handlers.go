// Package handlers provides HTTP handlers for chart images.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/beam/internal/modules/charts"
	"github.com/rs/zerolog"
)

// ChartService renders portfolio charts
type ChartService interface {
	ValueChart(ctx context.Context, period, currency string, now time.Time) ([]byte, error)
	IndicatorChart(ctx context.Context, kind, period, currency string, now time.Time) ([]byte, error)
}

// Handler handles chart HTTP requests
type Handler struct {
	service ChartService
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service ChartService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// HandleValueChart handles GET /api/charts/value.png
func (h *Handler) HandleValueChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	img, err := h.service.ValueChart(r.Context(), q.Get("period"), q.Get("currency"), h.now())
	h.writePNG(w, img, err)
}

// HandleIndicatorChart handles GET /api/charts/indicators.png?kind=
func (h *Handler) HandleIndicatorChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = charts.KindZScore
	}
	img, err := h.service.IndicatorChart(r.Context(), kind, q.Get("period"), q.Get("currency"), h.now())
	h.writePNG(w, img, err)
}

func (h *Handler) writePNG(w http.ResponseWriter, img []byte, err error) {
	switch {
	case errors.Is(err, charts.ErrUnknownKind):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, charts.ErrNoData):
		http.Error(w, "No data for this period", http.StatusNotFound)
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to render chart")
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.log.Error().Err(err).Msg("Failed to write chart")
	}
}
