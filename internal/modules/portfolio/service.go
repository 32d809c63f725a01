package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/aristath/beam/internal/modules/currency"
	"github.com/rs/zerolog"
)

// SpotRates builds a one-day FX table for the given currencies
type SpotRates interface {
	Spot(ctx context.Context, currencies []string, target string, now time.Time) (*currency.FXTable, []string, error)
}

// HoldingRow is one holding valued at today's quote, in the target currency
type HoldingRow struct {
	Ticker           string
	Name             string
	Category         string
	Currency         string
	Quantity         float64
	AcquisitionPrice float64 // source currency
	Price            float64 // source currency, NaN without a quote
	High52           float64 // source currency, NaN without a quote
	TargetLT         float64
	FXRate           float64 // NaN when left unconverted
	AcquisitionValue float64
	CurrentValue     float64
	H52Value         float64
	LTValue          float64
	GainAbs          float64
	GainPct          float64
}

// Summary is the live valuation of the current portfolio
type Summary struct {
	Date     time.Time
	Currency string
	Totals   domain.DailyTotal
	Rows     []HoldingRow
	Warnings []string
}

// PortfolioService values the current composition from live quotes
type PortfolioService struct {
	store     *Store
	quotes    marketdata.QuoteSource
	fx        SpotRates
	converter *currency.Converter
	workers   int
	now       func() time.Time
	log       zerolog.Logger
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(store *Store, quotes marketdata.QuoteSource, fx SpotRates, workers int, log zerolog.Logger) *PortfolioService {
	if workers <= 0 {
		workers = marketdata.DefaultFetchWorkers
	}
	return &PortfolioService{
		store:     store,
		quotes:    quotes,
		fx:        fx,
		converter: currency.NewConverter(log),
		workers:   workers,
		now:       time.Now,
		log:       log.With().Str("service", "portfolio").Logger(),
	}
}

// Store returns the underlying composition store
func (s *PortfolioService) Store() *Store {
	return s.store
}

// GetSummary values every holding at its latest quote. Holdings without a
// quote keep their acquisition value out of the current total and are
// reported in Warnings.
func (s *PortfolioService) GetSummary(ctx context.Context) (Summary, error) {
	holdings := s.store.Holdings()
	target := s.store.TargetCurrency()
	today := domain.Day(s.now())

	sum := Summary{
		Date:     today,
		Currency: target,
		Totals:   domain.DailyTotal{Date: today, Currency: target},
		Rows:     []HoldingRow{},
	}
	if len(holdings) == 0 {
		return sum, nil
	}

	var tickers, currencies []string
	for _, h := range holdings {
		if h.Contributes() {
			tickers = append(tickers, h.Ticker)
			currencies = append(currencies, h.Currency)
		}
	}

	quotes := s.fetchQuotes(ctx, tickers)
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	table, missing, err := s.fx.Spot(ctx, currencies, target, today)
	if err != nil {
		return sum, fmt.Errorf("failed to load FX rates: %w", err)
	}
	for _, pair := range missing {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("no FX rate for %s, values left unconverted", pair))
	}

	for _, h := range holdings {
		if !h.Contributes() {
			continue
		}
		row := HoldingRow{
			Ticker:           h.Ticker,
			Name:             h.Name,
			Category:         h.Category,
			Currency:         h.Currency,
			Quantity:         h.Quantity,
			AcquisitionPrice: h.AcquisitionPrice,
			Price:            math.NaN(),
			High52:           math.NaN(),
			TargetLT:         h.TargetLT,
		}
		if row.Category == "" {
			row.Category = domain.DefaultCategory
		}
		if q, ok := quotes[h.Ticker]; ok {
			row.Price = q.Price
			if q.High52 > 0 {
				row.High52 = q.High52
			}
			if row.Name == "" {
				row.Name = q.Name
			}
		} else {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("no quote for %s", h.Ticker))
		}

		factor := h.Factor()
		acq := s.converter.Convert(h.Quantity*h.AcquisitionPrice, h.Currency, target, table, today, factor)
		row.FXRate = acq.Rate
		row.AcquisitionValue = acq.Value
		row.CurrentValue = s.converter.Convert(h.Quantity*row.Price, h.Currency, target, table, today, factor).Value
		row.H52Value = s.converter.Convert(h.Quantity*row.High52, h.Currency, target, table, today, factor).Value
		row.LTValue = s.converter.Convert(h.Quantity*h.TargetLT, h.Currency, target, table, today, factor).Value
		row.GainAbs = row.CurrentValue - row.AcquisitionValue
		if row.AcquisitionValue != 0 {
			row.GainPct = row.GainAbs / row.AcquisitionValue * 100
		}

		sum.Totals.Acquisition += finiteOrZero(row.AcquisitionValue)
		sum.Totals.Current += finiteOrZero(row.CurrentValue)
		sum.Totals.H52 += finiteOrZero(row.H52Value)
		sum.Totals.LT += finiteOrZero(row.LTValue)
		sum.Rows = append(sum.Rows, row)
	}

	sort.SliceStable(sum.Rows, func(i, j int) bool { return sum.Rows[i].Ticker < sum.Rows[j].Ticker })
	return sum, nil
}

// fetchQuotes loads quotes with at most s.workers concurrent calls.
// Failed tickers are absent from the result.
func (s *PortfolioService) fetchQuotes(ctx context.Context, tickers []string) map[string]marketdata.Quote {
	out := make(map[string]marketdata.Quote, len(tickers))
	if s.quotes == nil {
		return out
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.workers)
	)
	seen := make(map[string]bool)
	for _, ticker := range tickers {
		if seen[ticker] {
			continue
		}
		seen[ticker] = true

		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			q, err := s.quotes.FetchQuote(ctx, ticker)
			if err != nil || q.Price <= 0 {
				s.log.Warn().Err(err).Str("ticker", ticker).Msg("No usable quote")
				return
			}
			mu.Lock()
			out[ticker] = q
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()
	return out
}

func finiteOrZero(v float64) float64 {
	if isFinite(v) {
		return v
	}
	return 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
