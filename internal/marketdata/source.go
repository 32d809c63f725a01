// Package marketdata fetches, caches and aligns price and FX series onto
// business-day calendars.
package marketdata

import (
	"context"
	"time"

	"github.com/aristath/beam/internal/domain"
)

// Source returns closing prices for a symbol over a date range.
// Unknown symbols yield an empty slice, not an error. Errors are reserved
// for transport or decoding failures.
type Source interface {
	FetchSeries(ctx context.Context, symbol string, start, end time.Time, interval domain.Interval) ([]domain.PricePoint, error)
}

// Quote is the latest market snapshot for a symbol
type Quote struct {
	Symbol   string  `msgpack:"s" json:"symbol"`
	Name     string  `msgpack:"n" json:"name"`
	Price    float64 `msgpack:"p" json:"price"`
	High52   float64 `msgpack:"h" json:"high_52w"`
	Currency string  `msgpack:"c" json:"currency"`
}

// QuoteSource returns the latest quote for a symbol
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// FXPairSymbol returns the vendor symbol for a currency pair, e.g. "USDEUR=X".
func FXPairSymbol(source, target string) string {
	return domain.NormalizeCurrency(source) + domain.NormalizeCurrency(target) + "=X"
}
