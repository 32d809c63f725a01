package domain

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the canonical day format used for keys and persistence
const DateLayout = "2006-01-02"

// DefaultCategory is applied to holdings imported without a category
const DefaultCategory = "Non classé"

// Holding is one row of portfolio composition
type Holding struct {
	Ticker           string  // Exchange-qualified symbol (e.g. "AAPL", "RIO.L")
	Name             string  // Display name, optional
	Quantity         float64 // May be fractional
	AcquisitionPrice float64 // In Currency
	Currency         string  // Normalized 3-letter code
	Category         string  // Allocation bucket
	TargetLT         float64 // Long-term target price, 0 when unset
	AdjustmentFactor float64 // Vendor quoting correction (0.01 for pence-quoted), 1 when unset
}

// Contributes reports whether the holding takes part in valuation.
func (h Holding) Contributes() bool {
	return strings.TrimSpace(h.Ticker) != "" && h.Quantity != 0
}

// Factor returns the adjustment factor, treating an unset value as 1.
func (h Holding) Factor() float64 {
	if h.AdjustmentFactor == 0 || math.IsNaN(h.AdjustmentFactor) {
		return 1.0
	}
	return h.AdjustmentFactor
}

// PortfolioSnapshot is an immutable, dated record of full portfolio composition
type PortfolioSnapshot struct {
	ID             string
	Date           time.Time
	TargetCurrency string
	Holdings       []Holding
	CreatedAt      time.Time
}

// DailyTotal is the valuation of the whole portfolio on one business day
type DailyTotal struct {
	Date        time.Time `json:"date"`
	Acquisition float64   `json:"acquisition_value"`
	Current     float64   `json:"current_value"`
	H52         float64   `json:"h52_value"`
	LT          float64   `json:"lt_value"`
	Currency    string    `json:"currency"`
}

// GainAbs returns current minus acquisition value.
func (d DailyTotal) GainAbs() float64 {
	return d.Current - d.Acquisition
}

// GainPct returns the gain as a percentage of acquisition value, 0 when acquisition is 0.
func (d DailyTotal) GainPct() float64 {
	if d.Acquisition == 0 {
		return 0
	}
	return d.GainAbs() / d.Acquisition * 100
}

// Interval is the sampling interval of a price series
type Interval string

const (
	IntervalDaily  Interval = "1d"
	IntervalWeekly Interval = "1wk"
)

// PricePoint is one observation of a price or rate series
type PricePoint struct {
	Date  time.Time `msgpack:"d" json:"date"`
	Value float64   `msgpack:"v" json:"value"`
}

// NormalizeCurrency trims and upper-cases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into a UTC day.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}
