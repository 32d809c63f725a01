// Package handlers provides HTTP handlers for technical indicators.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/modules/analytics"
	"github.com/aristath/beam/internal/modules/valuation"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// TotalsSource returns the daily totals a set of indicators is derived from
type TotalsSource interface {
	Totals(ctx context.Context, start, end time.Time, currency string) ([]domain.DailyTotal, error)
}

// Handler handles analytics HTTP requests
type Handler struct {
	totals TotalsSource
	params analytics.Params
	now    func() time.Time
	log    zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(totals TotalsSource, log zerolog.Logger) *Handler {
	return &Handler{
		totals: totals,
		params: analytics.DefaultParams(),
		now:    time.Now,
		log:    log.With().Str("handler", "analytics").Logger(),
	}
}

// HandleGetIndicators handles GET /api/analytics/indicators
func (h *Handler) HandleGetIndicators(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = valuation.DefaultPeriod
	}
	start, end := valuation.ParsePeriod(period, h.now())
	currency := r.URL.Query().Get("currency")

	totals, from, err := analytics.Load(r.Context(), h.totals, start, end, currency, h.params)
	if err != nil {
		h.log.Error().Err(err).Str("period", period).Msg("Failed to load daily totals")
		http.Error(w, "Failed to load daily totals", http.StatusInternalServerError)
		return
	}

	// Windows are warmed on the lookback, only the requested range is returned
	set := analytics.Compute(totals, h.params).Trim(from)

	dates := make([]string, len(set.Dates))
	for i, d := range set.Dates {
		dates[i] = domain.DateKey(d)
	}
	ma := make(map[string][]*float64, len(set.MA))
	for k, v := range set.MA {
		ma[strconv.Itoa(k)] = utils.NullableSeries(v)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"period": period,
			"dates":  dates,
			"values": utils.NullableSeries(set.Values),
			"ma":     ma,
			"rsi":    utils.NullableSeries(set.RSI),
			"macd": map[string]interface{}{
				"macd":      utils.NullableSeries(set.MACD.MACD),
				"signal":    utils.NullableSeries(set.MACD.Signal),
				"histogram": utils.NullableSeries(set.MACD.Histogram),
			},
			"bollinger": map[string]interface{}{
				"upper":  utils.NullableSeries(set.Bollinger.Upper),
				"middle": utils.NullableSeries(set.Bollinger.Middle),
				"lower":  utils.NullableSeries(set.Bollinger.Lower),
			},
			"volatility": utils.NullableSeries(set.Volatility),
			"z_short":    utils.NullableSeries(set.ZShort),
			"z_long":     utils.NullableSeries(set.ZLong),
			"latest": map[string]interface{}{
				"z_short": utils.Nullable(set.Latest.ZShort),
				"z_long":  utils.Nullable(set.Latest.ZLong),
				"signal":  set.Latest.Signal,
				"action":  set.Latest.Action,
			},
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
			"windows": map[string]interface{}{
				"z_short": h.params.ZShortWindow,
				"z_long":  h.params.ZLongWindow,
			},
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
