package clientdata

import "time"

// TTL constants for cached market data.
const (
	TTLPriceSeries = time.Hour        // Daily/weekly closes for a date range
	TTLFXSeries    = 24 * time.Hour   // Historical FX rates rarely get revised
	TTLQuoteMeta   = 15 * time.Minute // Last price and 52-week high
	TTLMomentum    = time.Hour        // Weekly closes used by the momentum classifier
	TTLSpotRate    = time.Hour        // Latest rate from the fallback FX provider

	// StaleRetention is how long an expired row is kept as a fallback
	// for failed upstream calls before cleanup deletes it.
	StaleRetention = 7 * 24 * time.Hour
)
