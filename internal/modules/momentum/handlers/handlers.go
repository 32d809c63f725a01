// Package handlers provides HTTP handlers for per-asset momentum.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/beam/internal/modules/momentum"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// Analyzer classifies tickers
type Analyzer interface {
	Analyze(ctx context.Context, tickers []string, strategy momentum.Strategy) ([]momentum.Result, error)
}

// TickerLister supplies the portfolio tickers when none are requested
type TickerLister interface {
	Tickers() []string
}

// Handler handles momentum HTTP requests
type Handler struct {
	analyzer Analyzer
	tickers  TickerLister
	log      zerolog.Logger
}

// NewHandler creates a new momentum handler
func NewHandler(analyzer Analyzer, tickers TickerLister, log zerolog.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		tickers:  tickers,
		log:      log.With().Str("handler", "momentum").Logger(),
	}
}

// Row is one ticker in the momentum response
type Row struct {
	Ticker        string   `json:"ticker"`
	Status        string   `json:"status"`
	LastPrice     *float64 `json:"last_price"`
	MomentumPct   *float64 `json:"momentum_pct"`
	Z             *float64 `json:"z_score"`
	Signal        string   `json:"signal"`
	Action        string   `json:"action"`
	Justification string   `json:"justification"`
	MomentumFmt   string   `json:"momentum_fmt"`
}

// HandleGetMomentum handles GET /api/momentum
func (h *Handler) HandleGetMomentum(w http.ResponseWriter, r *http.Request) {
	strategy, err := momentum.StrategyByName(r.URL.Query().Get("strategy"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tickers := utils.ParseSymbols(r.URL.Query().Get("tickers"))
	if len(tickers) == 0 && h.tickers != nil {
		tickers = h.tickers.Tickers()
	}

	results, err := h.analyzer.Analyze(r.Context(), tickers, strategy)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to analyze momentum")
		http.Error(w, "Failed to analyze momentum", http.StatusInternalServerError)
		return
	}

	rows := make([]Row, len(results))
	for i, res := range results {
		rows[i] = Row{
			Ticker:        res.Ticker,
			Status:        string(res.Status),
			LastPrice:     utils.Nullable(res.LastPrice),
			MomentumPct:   utils.Nullable(res.MomentumPct),
			Z:             utils.Nullable(res.Z),
			Signal:        res.Signal,
			Action:        res.Action,
			Justification: res.Justification,
			MomentumFmt:   utils.FormatFRPercent(res.MomentumPct, 2),
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"strategy":   strategy.Name(),
			"strategies": momentum.StrategyNames(),
			"results":    rows,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
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
