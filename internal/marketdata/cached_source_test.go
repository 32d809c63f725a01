package marketdata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/aristath/beam/internal/clientdata"
	"github.com/aristath/beam/internal/database"
	"github.com/aristath/beam/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *clientdata.Repository {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := database.Schema("client_data")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return clientdata.NewRepository(db)
}

type stubQuotes struct {
	quote Quote
	err   error
	calls int
}

func (s *stubQuotes) FetchQuote(_ context.Context, symbol string) (Quote, error) {
	s.calls++
	if s.err != nil {
		return Quote{}, s.err
	}
	q := s.quote
	q.Symbol = symbol
	return q, nil
}

func TestCachedSource_MemoizesSeries(t *testing.T) {
	days := BusinessDays(day("2024-01-01"), day("2024-01-05"))
	src := newStubSource()
	src.series["AAPL"] = flat(days, 100)

	cached := NewCachedSource(src, nil, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		points, err := cached.FetchSeries(ctx, "aapl", days[0], days[len(days)-1], domain.IntervalDaily)
		require.NoError(t, err)
		assert.Len(t, points, 5)
	}
	assert.Equal(t, 1, src.callCount("AAPL"))
	assert.Equal(t, 1, cached.SeriesCache().Len())
}

func TestCachedSource_DistinctKeys(t *testing.T) {
	days := BusinessDays(day("2024-01-01"), day("2024-01-05"))
	src := newStubSource()
	src.series["AAPL"] = flat(days, 100)

	cached := NewCachedSource(src, nil, nil, zerolog.Nop())
	ctx := context.Background()

	_, err := cached.FetchSeries(ctx, "AAPL", days[0], days[4], domain.IntervalDaily)
	require.NoError(t, err)
	_, err = cached.FetchSeries(ctx, "AAPL", days[0], days[4], domain.IntervalWeekly)
	require.NoError(t, err)
	_, err = cached.FetchSeries(ctx, "AAPL", days[1], days[4], domain.IntervalDaily)
	require.NoError(t, err)

	assert.Equal(t, 3, src.callCount("AAPL"))
}

func TestCachedSource_StaleFallback(t *testing.T) {
	days := BusinessDays(day("2024-01-01"), day("2024-01-05"))
	repo := newTestRepo(t)
	src := newStubSource()
	src.series["MSFT"] = flat(days, 50)
	ctx := context.Background()

	first := NewCachedSource(src, nil, repo, zerolog.Nop())
	_, err := first.FetchSeries(ctx, "MSFT", days[0], days[4], domain.IntervalDaily)
	require.NoError(t, err)

	// A fresh process with an empty memory cache still serves the persisted copy
	// while upstream is failing.
	src.errs["MSFT"] = errors.New("rate limited")
	second := NewCachedSource(src, nil, repo, zerolog.Nop())

	points, err := second.FetchSeries(ctx, "MSFT", days[0], days[4], domain.IntervalDaily)
	require.NoError(t, err)
	assert.Len(t, points, 5)
}

func TestCachedSource_FailureWithoutCacheIsEmpty(t *testing.T) {
	days := BusinessDays(day("2024-01-01"), day("2024-01-05"))
	src := newStubSource()
	src.errs["XXX"] = errors.New("down")

	cached := NewCachedSource(src, nil, nil, zerolog.Nop())
	points, err := cached.FetchSeries(context.Background(), "XXX", days[0], days[4], domain.IntervalDaily)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestCachedSource_ContextErrorPropagates(t *testing.T) {
	days := BusinessDays(day("2024-01-01"), day("2024-01-05"))
	src := newStubSource()
	src.errs["XXX"] = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cached := NewCachedSource(src, nil, nil, zerolog.Nop())
	_, err := cached.FetchSeries(ctx, "XXX", days[0], days[4], domain.IntervalDaily)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedSource_FetchQuote(t *testing.T) {
	repo := newTestRepo(t)
	quotes := &stubQuotes{quote: Quote{Name: "Apple", Price: 190, High52: 200, Currency: "USD"}}
	cached := NewCachedSource(newStubSource(), quotes, repo, zerolog.Nop())
	ctx := context.Background()

	q, err := cached.FetchQuote(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, 200.0, q.High52)

	_, err = cached.FetchQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, quotes.calls)

	// Memory miss plus upstream failure falls back to the persisted quote
	cached.QuoteCache().Clear()
	quotes.err = errors.New("down")
	q, err = cached.FetchQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.0, q.Price)

	_, err = cached.FetchQuote(ctx, "MSFT")
	assert.Error(t, err)
}

func TestCachedSource_NoQuoteSource(t *testing.T) {
	cached := NewCachedSource(newStubSource(), nil, nil, zerolog.Nop())
	_, err := cached.FetchQuote(context.Background(), "AAPL")
	assert.Error(t, err)
}
