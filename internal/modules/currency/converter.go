package currency

import (
	"math"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/rs/zerolog"
)

// Conversion is the outcome of converting one value.
// Rate is NaN and Converted false when no real conversion happened.
type Conversion struct {
	Value     float64
	Rate      float64
	Converted bool
	Reason    string // Set when the value was left unconverted
}

// Converter applies FX tables to values, logging fallbacks.
type Converter struct {
	log zerolog.Logger
}

// NewConverter creates a converter. Fallback warnings are sampled so a
// missing pair over a long range does not flood the log.
func NewConverter(log zerolog.Logger) *Converter {
	return &Converter{
		log: log.With().Str("service", "currency").Logger().
			Sample(&zerolog.BurstSampler{Burst: 10, Period: time.Minute}),
	}
}

// Convert converts value from source to target currency on date.
// The adjustment factor is applied before the FX rate. When the rate is
// missing, non-finite or zero, the original value is returned unconverted.
func (c *Converter) Convert(value float64, source, target string, table *FXTable, date time.Time, factor float64) Conversion {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		c.log.Warn().
			Str("source", source).
			Str("target", target).
			Str("date", domain.DateKey(date)).
			Msg("Undefined value, nothing to convert")
		return Conversion{Value: math.NaN(), Rate: math.NaN(), Reason: "undefined value"}
	}

	source = domain.NormalizeCurrency(source)
	target = domain.NormalizeCurrency(target)

	if source == target {
		return Conversion{Value: value * factor, Rate: 1.0, Converted: true}
	}

	pair := source + target
	rate, ok := table.Lookup(date, pair)
	if !ok || math.IsNaN(rate) || math.IsInf(rate, 0) || rate == 0 {
		reason := "missing rate"
		if ok {
			reason = "invalid rate"
		}
		c.log.Warn().
			Str("pair", pair).
			Str("date", domain.DateKey(date)).
			Str("reason", reason).
			Msg("No usable FX rate, leaving value unconverted")
		return Conversion{Value: value, Rate: math.NaN(), Reason: reason}
	}

	return Conversion{Value: value * factor * rate, Rate: rate, Converted: true}
}
