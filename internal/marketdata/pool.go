package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/beam/internal/domain"
)

// DefaultFetchWorkers bounds concurrent upstream fetches
const DefaultFetchWorkers = 5

// FetchPool fetches many symbols in parallel with a fixed number of workers
type FetchPool struct {
	source     Source
	numWorkers int
}

// NewFetchPool creates a pool over source. Non-positive worker counts use the default.
func NewFetchPool(source Source, numWorkers int) *FetchPool {
	if numWorkers <= 0 {
		numWorkers = DefaultFetchWorkers
	}
	return &FetchPool{source: source, numWorkers: numWorkers}
}

// Workers returns the configured concurrency
func (p *FetchPool) Workers() int {
	return p.numWorkers
}

// FetchResult is the outcome of one symbol fetch
type FetchResult struct {
	Symbol string
	Points []domain.PricePoint
	Err    error
}

type fetchJob struct {
	index  int
	symbol string
}

// FetchAll fetches every symbol over the same range. Results keep the
// order of symbols. A failed symbol carries its error and no points.
func (p *FetchPool) FetchAll(ctx context.Context, symbols []string, start, end time.Time, interval domain.Interval) []FetchResult {
	if len(symbols) == 0 {
		return []FetchResult{}
	}

	jobs := make(chan fetchJob, len(symbols))
	results := make([]FetchResult, len(symbols))

	numActualWorkers := p.numWorkers
	if len(symbols) < numActualWorkers {
		numActualWorkers = len(symbols)
	}

	var wg sync.WaitGroup
	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := FetchResult{Symbol: job.symbol}
				if err := ctx.Err(); err != nil {
					res.Err = err
				} else {
					res.Points, res.Err = p.source.FetchSeries(ctx, job.symbol, start, end, interval)
				}
				// Each worker writes a distinct index
				results[job.index] = res
			}
		}()
	}

	for idx, symbol := range symbols {
		jobs <- fetchJob{index: idx, symbol: symbol}
	}
	close(jobs)
	wg.Wait()

	return results
}
