// Package handlers provides HTTP handlers for portfolio management.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/modules/importer"
	"github.com/aristath/beam/internal/modules/portfolio"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// maxUploadBytes bounds multipart imports
const maxUploadBytes = 10 << 20

// SnapshotSaver records the composition produced by an import
type SnapshotSaver interface {
	Save(s domain.PortfolioSnapshot) (domain.PortfolioSnapshot, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	service   *portfolio.PortfolioService
	importer  *importer.Importer
	fetcher   *importer.RemoteFetcher
	remoteURL string
	snapshots SnapshotSaver
	events    *events.Manager
	targets   map[string]float64
	now       func() time.Time
	log       zerolog.Logger
}

// NewHandler creates a new portfolio handler. snapshots and eventManager may be nil.
func NewHandler(
	service *portfolio.PortfolioService,
	imp *importer.Importer,
	fetcher *importer.RemoteFetcher,
	remoteURL string,
	snapshots SnapshotSaver,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:   service,
		importer:  imp,
		fetcher:   fetcher,
		remoteURL: remoteURL,
		snapshots: snapshots,
		events:    eventManager,
		targets:   portfolio.DefaultTargets(),
		now:       time.Now,
		log:       log.With().Str("handler", "portfolio").Logger(),
	}
}

// HoldingResponse is one holding of the current composition
type HoldingResponse struct {
	Ticker           string  `json:"ticker"`
	Name             string  `json:"name"`
	Quantity         float64 `json:"quantity"`
	AcquisitionPrice float64 `json:"acquisition_price"`
	Currency         string  `json:"currency"`
	Category         string  `json:"category"`
	TargetLT         float64 `json:"target_lt"`
	AdjustmentFactor float64 `json:"adjustment_factor"`
}

func toHoldingResponses(holdings []domain.Holding) []HoldingResponse {
	out := make([]HoldingResponse, len(holdings))
	for i, h := range holdings {
		out[i] = HoldingResponse{
			Ticker:           h.Ticker,
			Name:             h.Name,
			Quantity:         h.Quantity,
			AcquisitionPrice: h.AcquisitionPrice,
			Currency:         h.Currency,
			Category:         h.Category,
			TargetLT:         h.TargetLT,
			AdjustmentFactor: h.Factor(),
		}
	}
	return out
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	store := h.service.Store()
	batchID, importedAt := store.Import()

	data := map[string]interface{}{
		"currency": store.TargetCurrency(),
		"holdings": toHoldingResponses(store.Holdings()),
		"batch_id": batchID,
	}
	if !importedAt.IsZero() {
		data["imported_at"] = importedAt.Format(time.RFC3339)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleSetCurrency handles PUT /api/portfolio/currency
func (h *Handler) HandleSetCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	code := domain.NormalizeCurrency(req.Currency)
	if len(code) != 3 {
		h.writeError(w, http.StatusBadRequest, "Currency must be a 3-letter code")
		return
	}

	prev := h.service.Store().SetCurrency(code)
	if prev != code {
		h.events.EmitTyped("portfolio", &events.CurrencyChangedData{From: prev, To: code})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"currency": code,
			"previous": prev,
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleGetSummary handles GET /api/portfolio/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.GetSummary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute portfolio summary")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute portfolio summary")
		return
	}

	rows := make([]map[string]interface{}, len(sum.Rows))
	for i, row := range sum.Rows {
		rows[i] = map[string]interface{}{
			"ticker":            row.Ticker,
			"name":              row.Name,
			"category":          row.Category,
			"currency":          row.Currency,
			"quantity":          row.Quantity,
			"acquisition_price": row.AcquisitionPrice,
			"price":             utils.Nullable(row.Price),
			"high_52w":          utils.Nullable(row.High52),
			"target_lt":         row.TargetLT,
			"fx_rate":           utils.Nullable(row.FXRate),
			"acquisition_value": utils.Nullable(row.AcquisitionValue),
			"current_value":     utils.Nullable(row.CurrentValue),
			"h52_value":         utils.Nullable(row.H52Value),
			"lt_value":          utils.Nullable(row.LTValue),
			"gain_abs":          utils.Nullable(row.GainAbs),
			"gain_pct":          utils.Nullable(row.GainPct),
			"current_value_fmt": utils.FormatFRCurrency(row.CurrentValue, 2, sum.Currency),
			"gain_pct_fmt":      utils.FormatFRPercent(row.GainPct, 2),
		}
	}

	t := sum.Totals
	warnings := sum.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"date":     domain.DateKey(sum.Date),
			"currency": sum.Currency,
			"totals": map[string]interface{}{
				"acquisition_value":     t.Acquisition,
				"current_value":         t.Current,
				"h52_value":             t.H52,
				"lt_value":              t.LT,
				"gain_abs":              t.GainAbs(),
				"gain_pct":              t.GainPct(),
				"acquisition_value_fmt": utils.FormatFRCurrency(t.Acquisition, 0, sum.Currency),
				"current_value_fmt":     utils.FormatFRCurrency(t.Current, 0, sum.Currency),
				"gain_abs_fmt":          utils.FormatFRCurrency(t.GainAbs(), 0, sum.Currency),
				"gain_pct_fmt":          utils.FormatFRPercent(t.GainPct(), 2),
				"lt_value_fmt":          utils.FormatFRCurrency(t.LT, 0, sum.Currency),
			},
			"holdings": rows,
			"warnings": warnings,
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleGetAllocation handles GET /api/portfolio/allocation
func (h *Handler) HandleGetAllocation(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.GetSummary(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute allocation")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute allocation")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"currency":   sum.Currency,
			"categories": portfolio.Allocation(sum.Rows, h.targets),
		},
		"metadata": map[string]interface{}{
			"timestamp": h.now().Format(time.RFC3339),
		},
	})
}

// HandleImport handles POST /api/portfolio/import with a multipart "file" field
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Missing file upload")
		return
	}
	defer file.Close()

	res, err := h.importer.Import(file, header.Filename)
	h.finishImport(w, res, err, header.Filename)
}

// HandleImportRemote handles POST /api/portfolio/import/remote.
// Only the configured portfolio URL is fetched. A body {"url": ...} naming
// any other URL is refused.
func (h *Handler) HandleImportRemote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if h.remoteURL == "" {
		h.writeError(w, http.StatusBadRequest, "No portfolio URL configured")
		return
	}
	if req.URL != "" && req.URL != h.remoteURL {
		h.log.Warn().Str("url", req.URL).Msg("Refused remote import from unconfigured URL")
		h.writeError(w, http.StatusForbidden, "Only the configured portfolio URL can be imported")
		return
	}
	req.URL = h.remoteURL

	res, err := h.importer.FetchRemote(r.Context(), h.fetcher, req.URL)
	h.finishImport(w, res, err, req.URL)
}

func (h *Handler) finishImport(w http.ResponseWriter, res *importer.Result, err error, source string) {
	var missing *importer.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":           err.Error(),
			"missing_columns": missing.Missing,
		})
		return
	case errors.Is(err, importer.ErrUnsupportedFormat):
		h.writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case err != nil:
		h.log.Warn().Err(err).Str("source", source).Msg("Import failed")
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now()
	store := h.service.Store()
	store.Replace(res.Holdings, res.BatchID, now)

	var snapshotDate string
	if h.snapshots != nil && len(res.Holdings) > 0 {
		saved, err := h.snapshots.Save(domain.PortfolioSnapshot{
			ID:             res.BatchID,
			Date:           now,
			TargetCurrency: store.TargetCurrency(),
			Holdings:       res.Holdings,
		})
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to snapshot imported portfolio")
		} else {
			snapshotDate = domain.DateKey(saved.Date)
		}
	}

	h.events.EmitTyped("portfolio", &events.PortfolioImportedData{
		BatchID:  res.BatchID,
		Source:   source,
		Holdings: len(res.Holdings),
		Rejected: len(res.Errors),
	})

	rowErrors := res.Errors
	if rowErrors == nil {
		rowErrors = []importer.RowError{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"batch_id":      res.BatchID,
			"holdings":      len(res.Holdings),
			"skipped":       res.Skipped,
			"errors":        rowErrors,
			"snapshot_date": snapshotDate,
		},
		"metadata": map[string]interface{}{
			"timestamp": now.Format(time.RFC3339),
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

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
