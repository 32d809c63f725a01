// Package handlers provides HTTP handlers for portfolio valuation history.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/modules/valuation"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// Runner computes valuation history
type Runner interface {
	Run(ctx context.Context, req valuation.Request) (valuation.Result, error)
}

// Handler handles valuation HTTP requests
type Handler struct {
	history Runner
	now     func() time.Time
	log     zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(history Runner, log zerolog.Logger) *Handler {
	return &Handler{
		history: history,
		now:     time.Now,
		log:     log.With().Str("handler", "valuation").Logger(),
	}
}

// TotalRow is one day of the history response
type TotalRow struct {
	Date          string   `json:"date"`
	Acquisition   float64  `json:"acquisition_value"`
	Current       float64  `json:"current_value"`
	H52           float64  `json:"h52_value"`
	LT            float64  `json:"lt_value"`
	GainAbs       float64  `json:"gain_abs"`
	GainPct       float64  `json:"gain_pct"`
	CumulativePct *float64 `json:"cumulative_pct"`
}

// parseRequest reads period, start, end, currency and mode from the query.
// Explicit start/end override the period preset.
func (h *Handler) parseRequest(r *http.Request) (valuation.Request, string, error) {
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		period = valuation.DefaultPeriod
	}
	start, end := valuation.ParsePeriod(period, h.now())

	if s := q.Get("start"); s != "" {
		parsed, err := domain.ParseDate(s)
		if err != nil {
			return valuation.Request{}, "", err
		}
		start = parsed
	}
	if e := q.Get("end"); e != "" {
		parsed, err := domain.ParseDate(e)
		if err != nil {
			return valuation.Request{}, "", err
		}
		end = parsed
	}

	mode, err := valuation.ParseMode(q.Get("mode"))
	if err != nil {
		return valuation.Request{}, "", err
	}

	return valuation.Request{
		Start:    start,
		End:      end,
		Currency: q.Get("currency"),
		Mode:     mode,
	}, period, nil
}

// HandleGetHistory handles GET /api/valuation/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	req, period, err := h.parseRequest(r)
	if err != nil {
		http.Error(w, "Invalid query: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.End.Before(req.Start) {
		http.Error(w, "end must not be before start", http.StatusBadRequest)
		return
	}

	res, err := h.history.Run(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reconstruct valuation history")
		http.Error(w, "Failed to reconstruct valuation history", http.StatusInternalServerError)
		return
	}

	cumulative := valuation.CumulativePerformance(res.Totals)
	rows := make([]TotalRow, len(res.Totals))
	currency := ""
	for i, t := range res.Totals {
		currency = t.Currency
		rows[i] = TotalRow{
			Date:          domain.DateKey(t.Date),
			Acquisition:   t.Acquisition,
			Current:       t.Current,
			H52:           t.H52,
			LT:            t.LT,
			GainAbs:       t.GainAbs(),
			GainPct:       t.GainPct(),
			CumulativePct: utils.Nullable(cumulative[i]),
		}
	}

	data := map[string]interface{}{
		"period":   period,
		"start":    domain.DateKey(req.Start),
		"end":      domain.DateKey(req.End),
		"mode":     req.Mode,
		"currency": currency,
		"totals":   rows,
		"warnings": nonNil(res.Warnings),
	}
	if n := len(res.Totals); n > 0 {
		last := res.Totals[n-1]
		data["latest"] = map[string]interface{}{
			"date":              domain.DateKey(last.Date),
			"current_value_fmt": utils.FormatFRCurrency(last.Current, 2, last.Currency),
			"gain_pct_fmt":      utils.FormatFRPercent(last.GainPct(), 2),
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleGetBreakdown handles GET /api/valuation/breakdown
func (h *Handler) HandleGetBreakdown(w http.ResponseWriter, r *http.Request) {
	req, period, err := h.parseRequest(r)
	if err != nil {
		http.Error(w, "Invalid query: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.history.Run(r.Context(), req)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reconstruct valuation breakdown")
		http.Error(w, "Failed to reconstruct valuation breakdown", http.StatusInternalServerError)
		return
	}

	tickers := make([]string, 0, len(res.Breakdown))
	for t := range res.Breakdown {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	series := make([]map[string]interface{}, 0, len(tickers))
	for _, t := range tickers {
		points := res.Breakdown[t]
		values := make([]map[string]interface{}, len(points))
		for i, p := range points {
			values[i] = map[string]interface{}{"date": domain.DateKey(p.Date), "value": p.Value}
		}
		series = append(series, map[string]interface{}{"ticker": t, "values": values})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"period":   period,
			"start":    domain.DateKey(req.Start),
			"end":      domain.DateKey(req.End),
			"series":   series,
			"warnings": nonNil(res.Warnings),
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleGetPeriods handles GET /api/valuation/periods
func (h *Handler) HandleGetPeriods(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"periods": valuation.Periods,
			"default": valuation.DefaultPeriod,
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
