package marketdata

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/modules/currency"
	"github.com/rs/zerolog"
)

// FXTableBuilder fetches FX series for the currencies of a portfolio and
// aligns them onto a calendar.
type FXTableBuilder struct {
	source   Source
	fallback SpotFallback
	log      zerolog.Logger
}

// SpotFallback supplies a latest rate when the price source has no pair
type SpotFallback interface {
	LatestRate(ctx context.Context, from, to string) (float64, error)
}

// NewFXTableBuilder creates a builder backed by source.
func NewFXTableBuilder(source Source, log zerolog.Logger) *FXTableBuilder {
	return &FXTableBuilder{
		source: source,
		log:    log.With().Str("service", "fx_builder").Logger(),
	}
}

// SetFallback sets the provider consulted by Spot for missing pairs.
func (b *FXTableBuilder) SetFallback(f SpotFallback) {
	b.fallback = f
}

// Build returns a table with one rate per day for every source currency
// that has data, plus the list of pairs for which nothing was found.
// The direct pair is tried first, then the inverse pair inverted.
func (b *FXTableBuilder) Build(ctx context.Context, currencies []string, target string, days []time.Time, interval domain.Interval) (*currency.FXTable, []string, error) {
	table := currency.NewFXTable()
	target = domain.NormalizeCurrency(target)
	if len(days) == 0 {
		return table, nil, nil
	}

	start, end := days[0], days[len(days)-1]
	// Weekly FX bars may start after the range; widen so bfill has data.
	fetchStart := start.AddDate(0, 0, -7)

	type result struct {
		pair   string
		values []float64
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []result
		missing []string
	)

	for _, src := range uniqueCurrencies(currencies, target) {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			pair := currency.PairKey(src, target)

			points, err := b.source.FetchSeries(ctx, FXPairSymbol(src, target), fetchStart, end, interval)
			if err != nil {
				b.log.Warn().Err(err).Str("pair", pair).Msg("FX fetch failed")
			}
			if len(points) == 0 {
				inverse, err := b.source.FetchSeries(ctx, FXPairSymbol(target, src), fetchStart, end, interval)
				if err != nil {
					b.log.Warn().Err(err).Str("pair", pair).Msg("Inverse FX fetch failed")
				}
				points = invert(inverse)
				if len(points) > 0 {
					b.log.Debug().Str("pair", pair).Msg("Using inverted FX pair")
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if len(points) == 0 {
				missing = append(missing, pair)
				return
			}
			results = append(results, result{pair: pair, values: Align(points, days, interval)})
		}(src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	for _, r := range results {
		for i, day := range days {
			table.Set(day, r.pair, r.values[i])
		}
	}

	sort.Strings(missing)
	if len(missing) > 0 {
		b.log.Warn().Strs("pairs", missing).Msg("No FX data for pairs, values will stay unconverted")
	}
	return table, missing, nil
}

// Spot returns a single-day table holding the latest known rate per pair.
func (b *FXTableBuilder) Spot(ctx context.Context, currencies []string, target string, now time.Time) (*currency.FXTable, []string, error) {
	today := domain.Day(now)
	days := BusinessDays(today.AddDate(0, 0, -10), today)
	if len(days) == 0 {
		days = []time.Time{today}
	}
	full, missing, err := b.Build(ctx, currencies, target, days, domain.IntervalDaily)
	if err != nil {
		return nil, nil, err
	}

	last := days[len(days)-1]
	spot := currency.NewFXTable()
	for _, pair := range full.Pairs() {
		if rate, ok := full.Lookup(last, pair); ok {
			spot.Set(today, pair, rate)
		}
	}
	if b.fallback != nil && len(missing) > 0 {
		missing = b.fillMissing(ctx, spot, today, currencies, target, missing)
	}
	return spot, missing, nil
}

// fillMissing asks the fallback for every missing pair and returns the
// pairs still without a rate.
func (b *FXTableBuilder) fillMissing(ctx context.Context, spot *currency.FXTable, day time.Time, currencies []string, target string, missing []string) []string {
	target = domain.NormalizeCurrency(target)
	want := make(map[string]bool, len(missing))
	for _, pair := range missing {
		want[pair] = true
	}

	var still []string
	for _, src := range uniqueCurrencies(currencies, target) {
		pair := currency.PairKey(src, target)
		if !want[pair] {
			continue
		}
		rate, err := b.fallback.LatestRate(ctx, src, target)
		if err != nil || rate <= 0 || math.IsNaN(rate) {
			b.log.Warn().Err(err).Str("pair", pair).Msg("Fallback FX rate unavailable")
			still = append(still, pair)
			continue
		}
		b.log.Info().Str("pair", pair).Float64("rate", rate).Msg("Using fallback FX rate")
		spot.Set(day, pair, rate)
	}
	return still
}

func uniqueCurrencies(currencies []string, target string) []string {
	seen := make(map[string]bool, len(currencies))
	out := make([]string, 0, len(currencies))
	for _, c := range currencies {
		c = domain.NormalizeCurrency(c)
		if c == "" || c == target || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func invert(points []domain.PricePoint) []domain.PricePoint {
	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Value == 0 || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		out = append(out, domain.PricePoint{Date: p.Date, Value: 1 / p.Value})
	}
	return out
}
