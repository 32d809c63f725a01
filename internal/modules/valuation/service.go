// Package valuation reconstructs the daily value of a portfolio from
// historical prices and FX rates.
package valuation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/aristath/beam/internal/modules/currency"
	"github.com/aristath/beam/internal/utils"
	"github.com/rs/zerolog"
)

// TickerValue is the converted current value of one ticker on one day
type TickerValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Result is the outcome of one reconstruction
type Result struct {
	Totals    []domain.DailyTotal      `json:"totals"`
	Breakdown map[string][]TickerValue `json:"breakdown"`
	Warnings  []string                 `json:"warnings"`
}

// Service reconstructs historical portfolio values
type Service struct {
	pool      *marketdata.FetchPool
	quotes    marketdata.QuoteSource // optional, feeds the 52-week basis
	fx        *marketdata.FXTableBuilder
	converter *currency.Converter
	log       zerolog.Logger
}

// NewService creates a valuation service. quotes may be nil, in which case
// the 52-week basis stays at zero.
func NewService(source marketdata.Source, quotes marketdata.QuoteSource, workers int, log zerolog.Logger) *Service {
	return &Service{
		pool:      marketdata.NewFetchPool(source, workers),
		quotes:    quotes,
		fx:        marketdata.NewFXTableBuilder(source, log),
		converter: currency.NewConverter(log),
		log:       log.With().Str("service", "valuation").Logger(),
	}
}

// phase is a portfolio composition valid from a given day
type phase struct {
	from     time.Time
	holdings []domain.Holding
}

// Reconstruct values the given composition on every business day in
// [start, end], as if it had been held throughout.
func (s *Service) Reconstruct(ctx context.Context, holdings []domain.Holding, start, end time.Time, target string) (Result, error) {
	return s.reconstruct(ctx, []phase{{holdings: holdings}}, start, end, target)
}

// ReconstructJournal replays dated snapshots. Each day uses the latest
// snapshot dated on or before it; days before the first snapshot use the first.
func (s *Service) ReconstructJournal(ctx context.Context, snapshots []domain.PortfolioSnapshot, start, end time.Time, target string) (Result, error) {
	sorted := make([]domain.PortfolioSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if len(snap.Holdings) > 0 {
			sorted = append(sorted, snap)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	phases := make([]phase, len(sorted))
	for i, snap := range sorted {
		phases[i] = phase{from: domain.Day(snap.Date), holdings: snap.Holdings}
	}
	if len(phases) == 0 {
		return Result{Totals: []domain.DailyTotal{}, Breakdown: map[string][]TickerValue{}, Warnings: []string{"no snapshots in journal"}}, nil
	}
	return s.reconstruct(ctx, phases, start, end, target)
}

type warnings struct {
	seen map[string]bool
	list []string
}

func (w *warnings) add(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.seen == nil {
		w.seen = make(map[string]bool)
	}
	if !w.seen[msg] {
		w.seen[msg] = true
		w.list = append(w.list, msg)
	}
}

func (s *Service) reconstruct(ctx context.Context, phases []phase, start, end time.Time, target string) (Result, error) {
	defer utils.OperationTimer("valuation_reconstruct", s.log)()

	target = domain.NormalizeCurrency(target)
	res := Result{Totals: []domain.DailyTotal{}, Breakdown: map[string][]TickerValue{}}
	var warn warnings

	tickers, currencies := collect(phases)
	if len(tickers) == 0 {
		warn.add("no holdings to value")
		res.Warnings = warn.list
		return res, nil
	}

	days := marketdata.BusinessDays(start, end)
	if len(days) == 0 {
		warn.add("no business days between %s and %s", domain.DateKey(start), domain.DateKey(end))
		res.Warnings = warn.list
		return res, nil
	}

	interval := marketdata.ChooseInterval(start, end)
	fetchStart := days[0]
	if interval == domain.IntervalWeekly {
		fetchStart = fetchStart.AddDate(0, 0, -7)
	}

	prices := make(map[string][]float64, len(tickers))
	for _, fetched := range s.pool.FetchAll(ctx, tickers, fetchStart, days[len(days)-1], interval) {
		if fetched.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, ctxErr
			}
			s.log.Warn().Err(fetched.Err).Str("ticker", fetched.Symbol).Msg("Price fetch failed")
		}
		if len(fetched.Points) == 0 {
			warn.add("no price data for %s, using acquisition price", fetched.Symbol)
			continue
		}
		prices[fetched.Symbol] = marketdata.Align(fetched.Points, days, interval)
	}

	table, missing, err := s.fx.Build(ctx, currencies, target, days, interval)
	if err != nil {
		return Result{}, err
	}
	for _, pair := range missing {
		warn.add("no FX rate for %s, values left unconverted", pair)
	}

	highs := s.fetchHighs(ctx, tickers)

	current := 0
	for i, day := range days {
		for current+1 < len(phases) && !phases[current+1].from.After(day) {
			current++
		}

		total := domain.DailyTotal{Date: day, Currency: target}
		perTicker := make(map[string]float64)

		for _, h := range phases[current].holdings {
			if !h.Contributes() {
				continue
			}
			ticker := normalizeTicker(h.Ticker)
			price := math.NaN()
			if series, ok := prices[ticker]; ok {
				price = series[i]
			}
			if math.IsNaN(price) {
				price = h.AcquisitionPrice
			}

			factor := h.Factor()
			acq := s.converter.Convert(h.Quantity*h.AcquisitionPrice, h.Currency, target, table, day, factor)
			cur := s.converter.Convert(h.Quantity*price, h.Currency, target, table, day, factor)
			total.Acquisition += acq.Value
			total.Current += cur.Value
			perTicker[ticker] += cur.Value

			if high := highs[ticker]; high > 0 {
				total.H52 += s.converter.Convert(h.Quantity*high, h.Currency, target, table, day, factor).Value
			}
			if h.TargetLT > 0 {
				total.LT += s.converter.Convert(h.Quantity*h.TargetLT, h.Currency, target, table, day, factor).Value
			}
		}

		if math.IsNaN(total.Acquisition) || math.IsNaN(total.Current) {
			continue
		}
		res.Totals = append(res.Totals, total)
		for ticker, v := range perTicker {
			res.Breakdown[ticker] = append(res.Breakdown[ticker], TickerValue{Date: day, Value: v})
		}
	}

	res.Warnings = warn.list
	s.log.Info().
		Int("days", len(res.Totals)).
		Int("tickers", len(tickers)).
		Str("currency", target).
		Str("interval", string(interval)).
		Int("warnings", len(res.Warnings)).
		Msg("Valuation reconstructed")

	return res, nil
}

// fetchHighs loads the 52-week high per ticker with at most pool-size concurrent calls.
func (s *Service) fetchHighs(ctx context.Context, tickers []string) map[string]float64 {
	highs := make(map[string]float64, len(tickers))
	if s.quotes == nil {
		return highs
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.pool.Workers())
	)
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			q, err := s.quotes.FetchQuote(ctx, ticker)
			if err != nil {
				s.log.Debug().Err(err).Str("ticker", ticker).Msg("No quote for 52-week high")
				return
			}
			mu.Lock()
			highs[ticker] = q.High52
			mu.Unlock()
		}(ticker)
	}
	wg.Wait()
	return highs
}

func normalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// collect returns the sorted distinct tickers and currencies of all phases.
func collect(phases []phase) (tickers, currencies []string) {
	seenT := make(map[string]bool)
	seenC := make(map[string]bool)
	for _, p := range phases {
		for _, h := range p.holdings {
			if !h.Contributes() {
				continue
			}
			t := normalizeTicker(h.Ticker)
			if !seenT[t] {
				seenT[t] = true
				tickers = append(tickers, t)
			}
			c := domain.NormalizeCurrency(h.Currency)
			if c != "" && !seenC[c] {
				seenC[c] = true
				currencies = append(currencies, c)
			}
		}
	}
	sort.Strings(tickers)
	sort.Strings(currencies)
	return tickers, currencies
}
