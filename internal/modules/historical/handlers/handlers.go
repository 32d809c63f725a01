// Package handlers provides HTTP handlers for stored daily totals.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/modules/historical"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// TotalsReader reads persisted daily totals
type TotalsReader interface {
	Range(start, end time.Time) ([]domain.DailyTotal, error)
	Latest() (domain.DailyTotal, error)
}

// Handler handles historical totals HTTP requests
type Handler struct {
	repo TotalsReader
	now  func() time.Time
	log  zerolog.Logger
}

// NewHandler creates a new historical handler
func NewHandler(repo TotalsReader, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		now:  time.Now,
		log:  log.With().Str("handler", "historical").Logger(),
	}
}

// parseRange reads start and end, defaulting to the last year
func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	end := domain.Day(h.now())
	start := end.AddDate(-1, 0, 0)

	if s := r.URL.Query().Get("start"); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			return start, end, fmt.Errorf("invalid start: %w", err)
		}
		start = d
	}
	if e := r.URL.Query().Get("end"); e != "" {
		d, err := domain.ParseDate(e)
		if err != nil {
			return start, end, fmt.Errorf("invalid end: %w", err)
		}
		end = d
	}
	if end.Before(start) {
		return start, end, errors.New("end must not be before start")
	}
	return start, end, nil
}

// HandleGetTotals handles GET /api/historical/totals
func (h *Handler) HandleGetTotals(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	totals, err := h.repo.Range(start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read daily totals")
		http.Error(w, "Failed to read daily totals", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"start":  domain.DateKey(start),
			"end":    domain.DateKey(end),
			"totals": totals,
			"count":  len(totals),
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleGetLatest handles GET /api/historical/totals/latest
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.repo.Latest()
	if errors.Is(err, historical.ErrNoTotals) {
		http.Error(w, "No daily totals stored yet", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read latest total")
		http.Error(w, "Failed to read latest total", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"total":             latest,
			"gain_abs":          latest.GainAbs(),
			"gain_pct":          latest.GainPct(),
			"current_value_fmt": utils.FormatFRCurrency(latest.Current, 2, latest.Currency),
			"gain_pct_fmt":      utils.FormatFRPercent(latest.GainPct(), 2),
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleExportXLSX handles GET /api/historical/totals.xlsx
func (h *Handler) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.parseRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	totals, err := h.repo.Range(start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read daily totals")
		http.Error(w, "Failed to read daily totals", http.StatusInternalServerError)
		return
	}

	data, err := historical.ExportXLSX(totals)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to export daily totals")
		http.Error(w, "Failed to export daily totals", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("historique_%s_%s.xlsx", domain.DateKey(start), domain.DateKey(end))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to write export")
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
