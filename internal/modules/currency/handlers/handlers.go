// Package handlers provides HTTP handlers for currency operations.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/modules/currency"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// RateSource builds a one-day FX table for the given currencies
type RateSource interface {
	Spot(ctx context.Context, currencies []string, target string, now time.Time) (*currency.FXTable, []string, error)
}

// Portfolio exposes the currencies in use
type Portfolio interface {
	Holdings() []domain.Holding
	TargetCurrency() string
}

// Handler handles currency HTTP requests
type Handler struct {
	rates     RateSource
	converter *currency.Converter
	portfolio Portfolio
	now       func() time.Time
	log       zerolog.Logger
}

// NewHandler creates a new currency handler
func NewHandler(
	rates RateSource,
	converter *currency.Converter,
	portfolio Portfolio,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		rates:     rates,
		converter: converter,
		portfolio: portfolio,
		now:       time.Now,
		log:       log.With().Str("handler", "currency").Logger(),
	}
}

// ConvertRequest represents a request to convert an amount at today's rate
type ConvertRequest struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
	Factor       float64 `json:"factor"`
}

// HandleConvert handles POST /api/currency/convert
func (h *Handler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	from := domain.NormalizeCurrency(req.FromCurrency)
	to := domain.NormalizeCurrency(req.ToCurrency)
	if from == "" || to == "" {
		http.Error(w, "from_currency and to_currency are required", http.StatusBadRequest)
		return
	}
	if req.Factor == 0 {
		req.Factor = 1
	}

	now := h.now()
	table, _, err := h.rates.Spot(r.Context(), []string{from}, to, now)
	if err != nil {
		h.log.Error().Err(err).Str("from", from).Str("to", to).Msg("Failed to fetch spot rate")
		http.Error(w, "Failed to fetch exchange rate", http.StatusBadGateway)
		return
	}

	conv := h.converter.Convert(req.Amount, from, to, table, domain.Day(now), req.Factor)

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"from_currency": from,
			"to_currency":   to,
			"amount":        req.Amount,
			"factor":        req.Factor,
			"value":         utils.Nullable(conv.Value),
			"rate":          utils.Nullable(conv.Rate),
			"converted":     conv.Converted,
			"reason":        conv.Reason,
			"value_fmt":     utils.FormatFRCurrency(conv.Value, 2, resultCurrency(conv, from, to)),
		},
		"metadata": map[string]interface{}{
			"timestamp": now.Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

func resultCurrency(conv currency.Conversion, from, to string) string {
	if conv.Converted {
		return to
	}
	return from
}

// HandleGetRates handles GET /api/currency/rates.
// Rates are quoted into ?target= or the portfolio currency, for ?currencies=
// or every holding currency.
func (h *Handler) HandleGetRates(w http.ResponseWriter, r *http.Request) {
	target := domain.NormalizeCurrency(r.URL.Query().Get("target"))
	if target == "" {
		target = h.portfolio.TargetCurrency()
	}

	currencies := h.currencies()
	if q := utils.ParseSymbols(r.URL.Query().Get("currencies")); len(q) > 0 {
		currencies = q
	}
	now := h.now()
	table, missing, err := h.rates.Spot(r.Context(), currencies, target, now)
	if err != nil {
		h.log.Error().Err(err).Str("target", target).Msg("Failed to fetch spot rates")
		http.Error(w, "Failed to fetch exchange rates", http.StatusBadGateway)
		return
	}

	day := domain.Day(now)
	rates := make(map[string]float64)
	for _, pair := range table.Pairs() {
		if rate, ok := table.Lookup(day, pair); ok {
			rates[pair] = rate
		}
	}
	if missing == nil {
		missing = []string{}
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"target":  target,
			"date":    domain.DateKey(day),
			"rates":   rates,
			"missing": missing,
		},
		"metadata": map[string]interface{}{
			"timestamp": now.Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleGetAvailableCurrencies handles GET /api/currency/available-currencies
func (h *Handler) HandleGetAvailableCurrencies(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"data": map[string]interface{}{
			"currencies": h.currencies(),
			"target":     h.portfolio.TargetCurrency(),
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// currencies returns the distinct holding currencies, sorted
func (h *Handler) currencies() []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, hd := range h.portfolio.Holdings() {
		c := domain.NormalizeCurrency(hd.Currency)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
