// Package portfolio holds the current composition and its live summary.
package portfolio

import (
	"sort"
	"sync"
	"time"

	"github.com/aristath/beam/internal/domain"
)

// DefaultTargetCurrency is used until the user picks one
const DefaultTargetCurrency = "EUR"

// Store holds the current holdings and target currency. Imports replace
// the composition wholesale; readers get copies.
type Store struct {
	mu         sync.RWMutex
	holdings   []domain.Holding
	currency   string
	batchID    string
	importedAt time.Time
}

// NewStore creates an empty store with the given target currency
func NewStore(currency string) *Store {
	currency = domain.NormalizeCurrency(currency)
	if currency == "" {
		currency = DefaultTargetCurrency
	}
	return &Store{currency: currency}
}

// Holdings returns a copy of the current holdings
func (s *Store) Holdings() []domain.Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Holding, len(s.holdings))
	copy(out, s.holdings)
	return out
}

// TargetCurrency returns the reporting currency
func (s *Store) TargetCurrency() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currency
}

// SetCurrency changes the reporting currency and returns the previous one
func (s *Store) SetCurrency(code string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.currency
	s.currency = domain.NormalizeCurrency(code)
	return prev
}

// Replace swaps in a new composition
func (s *Store) Replace(holdings []domain.Holding, batchID string, at time.Time) {
	cp := make([]domain.Holding, len(holdings))
	copy(cp, holdings)

	s.mu.Lock()
	s.holdings = cp
	s.batchID = batchID
	s.importedAt = at
	s.mu.Unlock()
}

// Restore loads a stored snapshot, keeping its currency
func (s *Store) Restore(snap domain.PortfolioSnapshot) {
	s.Replace(snap.Holdings, snap.ID, snap.CreatedAt)
	if snap.TargetCurrency != "" {
		s.SetCurrency(snap.TargetCurrency)
	}
}

// Import reports the batch that produced the current composition
func (s *Store) Import() (batchID string, at time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchID, s.importedAt
}

// Tickers returns the sorted distinct tickers of contributing holdings
func (s *Store) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, h := range s.holdings {
		if !h.Contributes() || seen[h.Ticker] {
			continue
		}
		seen[h.Ticker] = true
		out = append(out, h.Ticker)
	}
	sort.Strings(out)
	return out
}
