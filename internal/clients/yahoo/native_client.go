package yahoo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// NativeClient reads Yahoo Finance through the go-yfinance library.
// The library only takes a period, so the narrowest period covering the
// requested start is fetched and trimmed locally.
type NativeClient struct {
	log zerolog.Logger
	now func() time.Time
}

// NewNativeClient creates a go-yfinance backed client
func NewNativeClient(log zerolog.Logger) *NativeClient {
	return &NativeClient{
		log: log.With().Str("client", "yahoo-native").Logger(),
		now: time.Now,
	}
}

// periodFor returns the smallest Yahoo period reaching back to start.
func periodFor(start, now time.Time) string {
	age := now.Sub(start)
	day := 24 * time.Hour
	switch {
	case age <= 5*day:
		return "5d"
	case age <= 31*day:
		return "1mo"
	case age <= 92*day:
		return "3mo"
	case age <= 183*day:
		return "6mo"
	case age <= 366*day:
		return "1y"
	case age <= 2*366*day:
		return "2y"
	case age <= 5*366*day:
		return "5y"
	case age <= 10*366*day:
		return "10y"
	default:
		return "max"
	}
}

// FetchSeries implements marketdata.Source.
func (c *NativeClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval domain.Interval) ([]domain.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	bars, err := t.History(models.HistoryParams{
		Period:     periodFor(start, c.now()),
		Interval:   string(interval),
		AutoAdjust: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}

	from, to := domain.Day(start), domain.Day(end)
	points := make([]domain.PricePoint, 0, len(bars))
	for _, bar := range bars {
		d := domain.Day(bar.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		if bar.Close <= 0 || math.IsNaN(bar.Close) {
			continue
		}
		points = append(points, domain.PricePoint{Date: d, Value: bar.Close})
	}
	return points, nil
}

// FetchQuote implements marketdata.QuoteSource. The 52-week high is taken
// from one year of daily highs.
func (c *NativeClient) FetchQuote(ctx context.Context, symbol string) (marketdata.Quote, error) {
	if err := ctx.Err(); err != nil {
		return marketdata.Quote{}, err
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return marketdata.Quote{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	q := marketdata.Quote{Symbol: symbol}

	if quote, err := t.Quote(); err == nil && quote != nil {
		q.Price = quote.RegularMarketPrice
	}
	if info, err := t.Info(); err == nil && info != nil {
		q.Name = info.LongName
		if q.Name == "" {
			q.Name = info.ShortName
		}
		if q.Price <= 0 {
			q.Price = info.CurrentPrice
		}
	}

	bars, err := t.History(models.HistoryParams{Period: "1y", Interval: "1d", AutoAdjust: true})
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to load yearly history for 52-week high")
	}
	for _, bar := range bars {
		if bar.High > q.High52 {
			q.High52 = bar.High
		}
	}
	if q.Price <= 0 && len(bars) > 0 {
		q.Price = bars[len(bars)-1].Close
	}

	if q.Price <= 0 {
		return marketdata.Quote{}, fmt.Errorf("no valid price for %s", symbol)
	}
	return q, nil
}
