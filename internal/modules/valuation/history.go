package valuation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/events"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/rs/zerolog"
)

// Mode selects how the composition evolves over the reconstructed range
type Mode string

const (
	// ModeCurrent projects today's holdings backwards
	ModeCurrent Mode = "current"
	// ModeJournal replays dated snapshots
	ModeJournal Mode = "journal"
)

// ParseMode maps a query value to a Mode, defaulting to ModeCurrent.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCurrent:
		return ModeCurrent, nil
	case ModeJournal:
		return ModeJournal, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// HoldingsProvider exposes the current portfolio composition
type HoldingsProvider interface {
	Holdings() []domain.Holding
	TargetCurrency() string
}

// SnapshotLister lists dated snapshots in any order
type SnapshotLister interface {
	List() ([]domain.PortfolioSnapshot, error)
}

// TotalsStore persists daily totals keyed by date, tagged with the
// composition they were computed from
type TotalsStore interface {
	Upsert(composition string, totals []domain.DailyTotal) error
	RangeFor(composition string, start, end time.Time) ([]domain.DailyTotal, error)
}

// Request describes one history computation
type Request struct {
	Start    time.Time
	End      time.Time
	Currency string // empty uses the portfolio target currency
	Mode     Mode
}

// History ties reconstruction to the portfolio state, the journal and
// the daily totals table.
type History struct {
	service   *Service
	holdings  HoldingsProvider
	snapshots SnapshotLister // optional
	store     TotalsStore    // optional
	events    *events.Manager
	log       zerolog.Logger
}

// NewHistory creates the history orchestrator. snapshots, store and
// eventManager may be nil.
func NewHistory(service *Service, holdings HoldingsProvider, snapshots SnapshotLister, store TotalsStore, eventManager *events.Manager, log zerolog.Logger) *History {
	return &History{
		service:   service,
		holdings:  holdings,
		snapshots: snapshots,
		store:     store,
		events:    eventManager,
		log:       log.With().Str("service", "valuation_history").Logger(),
	}
}

// Service returns the underlying reconstructor
func (h *History) Service() *Service {
	return h.service
}

// Run reconstructs the requested range. Current-mode totals are persisted
// under the composition key of the holdings they were computed from;
// journal replays are not stored.
func (h *History) Run(ctx context.Context, req Request) (Result, error) {
	currency := domain.NormalizeCurrency(req.Currency)
	if currency == "" {
		currency = h.holdings.TargetCurrency()
	}

	var (
		res         Result
		err         error
		composition string
	)
	switch req.Mode {
	case ModeJournal:
		if h.snapshots == nil {
			return Result{}, fmt.Errorf("journal mode requires a snapshot store")
		}
		snaps, listErr := h.snapshots.List()
		if listErr != nil {
			return Result{}, fmt.Errorf("failed to list snapshots: %w", listErr)
		}
		res, err = h.service.ReconstructJournal(ctx, snaps, req.Start, req.End, currency)
	default:
		holdings := h.holdings.Holdings()
		composition = CompositionKey(ModeCurrent, marketdata.ChooseInterval(req.Start, req.End), holdings)
		res, err = h.service.Reconstruct(ctx, holdings, req.Start, req.End, currency)
	}
	if err != nil {
		return Result{}, err
	}

	if h.store != nil && composition != "" && len(res.Totals) > 0 {
		if err := h.store.Upsert(composition, res.Totals); err != nil {
			h.log.Warn().Err(err).Int("days", len(res.Totals)).Msg("Failed to persist daily totals")
		}
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeCurrent
	}
	h.events.EmitTyped("valuation", &events.ValuationCompletedData{
		Mode:     string(mode),
		Currency: currency,
		Start:    domain.DateKey(req.Start),
		End:      domain.DateKey(req.End),
		Days:     len(res.Totals),
		Warnings: len(res.Warnings),
	})

	return res, nil
}

// Totals returns persisted totals for the range when they cover it in the
// requested currency and were computed from the current holdings, and
// reconstructs otherwise.
func (h *History) Totals(ctx context.Context, start, end time.Time, currency string) ([]domain.DailyTotal, error) {
	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		currency = h.holdings.TargetCurrency()
	}

	if h.store != nil {
		composition := CompositionKey(ModeCurrent, marketdata.ChooseInterval(start, end), h.holdings.Holdings())
		stored, err := h.store.RangeFor(composition, start, end)
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read daily totals, reconstructing")
		} else if covers(stored, start, end, currency) {
			return stored, nil
		}
	}

	res, err := h.Run(ctx, Request{Start: start, End: end, Currency: currency, Mode: ModeCurrent})
	if err != nil {
		return nil, err
	}
	return res.Totals, nil
}

// covers reports whether stored totals span the business days of the range
// in a single currency.
func covers(stored []domain.DailyTotal, start, end time.Time, currency string) bool {
	days := marketdata.BusinessDays(start, end)
	if len(stored) == 0 || len(days) == 0 || len(stored) < len(days) {
		return false
	}
	for _, t := range stored {
		if t.Currency != currency {
			return false
		}
	}
	first, last := stored[0].Date, stored[len(stored)-1].Date
	return !first.After(days[0]) && !last.Before(days[len(days)-1])
}
