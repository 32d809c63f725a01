// Package handlers provides HTTP handlers for portfolio snapshot operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/modules/snapshots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Store persists snapshots keyed by date
type Store interface {
	Save(s domain.PortfolioSnapshot) (domain.PortfolioSnapshot, error)
	Get(date time.Time) (domain.PortfolioSnapshot, error)
	List() ([]domain.PortfolioSnapshot, error)
	Delete(date time.Time) error
}

// Portfolio exposes the composition captured by a new snapshot
type Portfolio interface {
	Holdings() []domain.Holding
	TargetCurrency() string
}

// Handler handles snapshot HTTP requests
type Handler struct {
	store     Store
	portfolio Portfolio
	events    *events.Manager
	now       func() time.Time
	log       zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(store Store, portfolio Portfolio, eventManager *events.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		portfolio: portfolio,
		events:    eventManager,
		now:       time.Now,
		log:       log.With().Str("handler", "snapshots").Logger(),
	}
}

// SnapshotResponse is the JSON form of a snapshot
type SnapshotResponse struct {
	ID             string             `json:"id"`
	Date           string             `json:"date"`
	TargetCurrency string             `json:"target_currency"`
	CreatedAt      string             `json:"created_at"`
	HoldingCount   int                `json:"holding_count"`
	Holdings       []snapshots.Record `json:"holdings,omitempty"`
}

func toResponse(s domain.PortfolioSnapshot, withHoldings bool) SnapshotResponse {
	resp := SnapshotResponse{
		ID:             s.ID,
		Date:           domain.DateKey(s.Date),
		TargetCurrency: s.TargetCurrency,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		HoldingCount:   len(s.Holdings),
	}
	if withHoldings {
		resp.Holdings = make([]snapshots.Record, len(s.Holdings))
		for i, h := range s.Holdings {
			resp.Holdings[i] = snapshots.RecordOf(h)
		}
	}
	return resp
}

type saveRequest struct {
	Date     string `json:"date"`
	Currency string `json:"currency"`
}

// HandleSave handles POST /api/snapshots.
// The body is optional; date defaults to today and currency to the portfolio's.
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	date := domain.Day(h.now())
	if req.Date != "" {
		parsed, err := domain.ParseDate(req.Date)
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}
	currency := req.Currency
	if currency == "" {
		currency = h.portfolio.TargetCurrency()
	}

	holdings := h.portfolio.Holdings()
	if len(holdings) == 0 {
		http.Error(w, "Portfolio is empty, import holdings first", http.StatusConflict)
		return
	}

	saved, err := h.store.Save(domain.PortfolioSnapshot{
		Date:           date,
		TargetCurrency: currency,
		Holdings:       holdings,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to save snapshot")
		http.Error(w, "Failed to save snapshot", http.StatusInternalServerError)
		return
	}

	h.events.EmitTyped("snapshots", &events.SnapshotSavedData{
		ID:       saved.ID,
		Date:     domain.DateKey(saved.Date),
		Holdings: len(saved.Holdings),
	})

	h.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": toResponse(saved, false),
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleList handles GET /api/snapshots
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}

	items := make([]SnapshotResponse, len(all))
	for i, s := range all {
		items[i] = toResponse(s, false)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"snapshots": items,
			"count":     len(items),
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/snapshots/{date}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	s, err := h.store.Get(date)
	if errors.Is(err, snapshots.ErrNotFound) {
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("date", domain.DateKey(date)).Msg("Failed to load snapshot")
		http.Error(w, "Failed to load snapshot", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": toResponse(s, true),
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleDelete handles DELETE /api/snapshots/{date}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	err = h.store.Delete(date)
	if errors.Is(err, snapshots.ErrNotFound) {
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("date", domain.DateKey(date)).Msg("Failed to delete snapshot")
		http.Error(w, "Failed to delete snapshot", http.StatusInternalServerError)
		return
	}

	h.events.EmitTyped("snapshots", &events.SnapshotDeletedData{Date: domain.DateKey(date)})
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
