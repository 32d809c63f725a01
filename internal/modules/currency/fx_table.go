// Package currency converts values between currencies using dated FX rate tables.
package currency

import (
	"sort"
	"time"

	"github.com/aristath/beam/internal/domain"
)

// PairKey builds the lookup key for a conversion, e.g. ("USD", "EUR") -> "USDEUR".
func PairKey(source, target string) string {
	return domain.NormalizeCurrency(source) + domain.NormalizeCurrency(target)
}

// FXTable maps a business day to the rates of every currency pair on that day.
// It is filled once by a builder and treated as read-only afterwards.
type FXTable struct {
	rates map[string]map[string]float64
}

// NewFXTable creates an empty table
func NewFXTable() *FXTable {
	return &FXTable{rates: make(map[string]map[string]float64)}
}

// Set records the rate for pair on date. Pairs converting a currency to itself are ignored.
func (t *FXTable) Set(date time.Time, pair string, rate float64) {
	if len(pair) == 6 && pair[:3] == pair[3:] {
		return
	}
	key := domain.DateKey(date)
	day, ok := t.rates[key]
	if !ok {
		day = make(map[string]float64)
		t.rates[key] = day
	}
	day[pair] = rate
}

// Lookup returns the stored rate for pair on date.
func (t *FXTable) Lookup(date time.Time, pair string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	day, ok := t.rates[domain.DateKey(date)]
	if !ok {
		return 0, false
	}
	rate, ok := day[pair]
	return rate, ok
}

// Pairs returns the distinct pairs present in the table, sorted.
func (t *FXTable) Pairs() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, day := range t.rates {
		for pair := range day {
			seen[pair] = true
		}
	}
	pairs := make([]string, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return pairs
}

// Len returns the number of dates covered.
func (t *FXTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}
