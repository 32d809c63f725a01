package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/beam/internal/clientdata"
	"github.com/aristath/beam/internal/domain"
	"github.com/rs/zerolog"
)

// SeriesKey identifies one fetch. Dates are truncated to days.
type SeriesKey struct {
	Symbol   string
	Start    time.Time
	End      time.Time
	Interval domain.Interval
}

func (k SeriesKey) persistentKey() string {
	return strings.Join([]string{k.Symbol, domain.DateKey(k.Start), domain.DateKey(k.End), string(k.Interval)}, "|")
}

// CachedSource decorates a Source with an in-memory TTL cache and a
// persistent stale fallback. It never returns an upstream error: failures
// are logged and yield the stale copy or an empty series.
type CachedSource struct {
	upstream Source
	quotes   QuoteSource
	series   *clientdata.MemoryCache[SeriesKey, []domain.PricePoint]
	quoteMem *clientdata.MemoryCache[string, Quote]
	repo     *clientdata.Repository // optional
	log      zerolog.Logger
}

// NewCachedSource wraps upstream. quotes and repo may be nil.
func NewCachedSource(upstream Source, quotes QuoteSource, repo *clientdata.Repository, log zerolog.Logger) *CachedSource {
	return &CachedSource{
		upstream: upstream,
		quotes:   quotes,
		series:   clientdata.NewMemoryCache[SeriesKey, []domain.PricePoint](clientdata.TTLPriceSeries),
		quoteMem: clientdata.NewMemoryCache[string, Quote](clientdata.TTLQuoteMeta),
		repo:     repo,
		log:      log.With().Str("service", "marketdata").Logger(),
	}
}

// SeriesCache exposes the in-memory series cache for scheduled eviction.
func (s *CachedSource) SeriesCache() *clientdata.MemoryCache[SeriesKey, []domain.PricePoint] {
	return s.series
}

// QuoteCache exposes the in-memory quote cache for scheduled eviction.
func (s *CachedSource) QuoteCache() *clientdata.MemoryCache[string, Quote] {
	return s.quoteMem
}

func isFXSymbol(symbol string) bool {
	return strings.HasSuffix(symbol, "=X")
}

// FetchSeries implements Source. The returned error is non-nil only when ctx is done.
func (s *CachedSource) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval domain.Interval) ([]domain.PricePoint, error) {
	key := SeriesKey{
		Symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		Start:    domain.Day(start),
		End:      domain.Day(end),
		Interval: interval,
	}

	if points, ok := s.series.Get(key); ok {
		return points, nil
	}

	table, ttl := clientdata.TablePriceSeries, clientdata.TTLPriceSeries
	if isFXSymbol(key.Symbol) {
		table, ttl = clientdata.TableFXSeries, clientdata.TTLFXSeries
	}

	if s.repo != nil {
		var cached []domain.PricePoint
		if found, err := s.repo.GetIfFresh(table, key.persistentKey(), &cached); err == nil && found {
			s.series.SetWithTTL(key, cached, ttl)
			return cached, nil
		}
	}

	points, err := s.upstream.FetchSeries(ctx, key.Symbol, key.Start, key.End, interval)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if stale, ok := s.stale(table, key); ok {
			s.log.Warn().
				Err(err).
				Str("symbol", key.Symbol).
				Int("points", len(stale)).
				Msg("Upstream failed, using stale cached series")
			return stale, nil
		}
		s.log.Warn().Err(err).Str("symbol", key.Symbol).Msg("Upstream failed, no data available")
		return []domain.PricePoint{}, nil
	}

	if len(points) == 0 {
		s.log.Warn().Str("symbol", key.Symbol).Str("interval", string(interval)).Msg("No data returned for symbol")
	}

	s.series.SetWithTTL(key, points, ttl)
	if s.repo != nil && len(points) > 0 {
		if err := s.repo.Store(table, key.persistentKey(), points, ttl); err != nil {
			s.log.Warn().Err(err).Str("symbol", key.Symbol).Msg("Failed to persist series")
		}
	}

	return points, nil
}

func (s *CachedSource) stale(table string, key SeriesKey) ([]domain.PricePoint, bool) {
	if s.repo == nil {
		return nil, false
	}
	var cached []domain.PricePoint
	found, err := s.repo.Get(table, key.persistentKey(), &cached)
	if err != nil || !found {
		return nil, false
	}
	return cached, true
}

// FetchQuote returns the latest quote for symbol with the same caching policy as series.
func (s *CachedSource) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s.quotes == nil {
		return Quote{}, fmt.Errorf("no quote source configured")
	}

	if q, ok := s.quoteMem.Get(symbol); ok {
		return q, nil
	}

	q, err := s.quotes.FetchQuote(ctx, symbol)
	if err != nil {
		if s.repo != nil {
			var cached Quote
			if found, getErr := s.repo.Get(clientdata.TableQuoteMeta, symbol, &cached); getErr == nil && found {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote fetch failed, using stale cached quote")
				return cached, nil
			}
		}
		return Quote{}, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	s.quoteMem.Set(symbol, q)
	if s.repo != nil {
		if err := s.repo.Store(clientdata.TableQuoteMeta, symbol, q, clientdata.TTLQuoteMeta); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist quote")
		}
	}
	return q, nil
}
