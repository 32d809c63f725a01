package momentum

import (
	"context"
	"time"

	"github.com/aristath/beam/internal/clientdata"
	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/rs/zerolog"
)

// LookbackYears of weekly closes feed the classifier
const LookbackYears = 5

type resultKey struct {
	ticker   string
	strategy string
	day      string
}

// Service classifies many tickers in parallel
type Service struct {
	pool  *marketdata.FetchPool
	cache *clientdata.MemoryCache[resultKey, Result]
	now   func() time.Time
	log   zerolog.Logger
}

// NewService creates a momentum service over a price source
func NewService(source marketdata.Source, workers int, log zerolog.Logger) *Service {
	return &Service{
		pool:  marketdata.NewFetchPool(source, workers),
		cache: clientdata.NewMemoryCache[resultKey, Result](clientdata.TTLMomentum),
		now:   time.Now,
		log:   log.With().Str("service", "momentum").Logger(),
	}
}

// Cache exposes the result cache for cleanup registration
func (s *Service) Cache() clientdata.Evictor {
	return s.cache
}

// Analyze returns one Result per ticker, in input order. Tickers whose
// history cannot be fetched come back as insufficient data.
func (s *Service) Analyze(ctx context.Context, tickers []string, strategy Strategy) ([]Result, error) {
	end := domain.Day(s.now())
	start := end.AddDate(-LookbackYears, 0, 0)
	dayKey := domain.DateKey(end)

	results := make([]Result, len(tickers))
	var missing []string
	var missingIdx []int
	for i, t := range tickers {
		if r, ok := s.cache.Get(resultKey{ticker: t, strategy: strategy.Name(), day: dayKey}); ok {
			results[i] = r
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return results, nil
	}

	fetched := s.pool.FetchAll(ctx, missing, start, end, domain.IntervalWeekly)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for j, f := range fetched {
		i := missingIdx[j]
		if f.Err != nil {
			s.log.Warn().Err(f.Err).Str("ticker", f.Symbol).Msg("Failed to fetch weekly closes")
			results[i] = Classify(nil, strategy)
			results[i].Ticker = f.Symbol
			continue
		}

		r := Classify(marketdata.Closes(f.Points), strategy)
		r.Ticker = f.Symbol
		results[i] = r
		s.cache.Set(resultKey{ticker: f.Symbol, strategy: strategy.Name(), day: dayKey}, r)
	}

	s.log.Debug().
		Int("tickers", len(tickers)).
		Int("fetched", len(missing)).
		Str("strategy", strategy.Name()).
		Msg("Momentum analysis complete")

	return results, nil
}
