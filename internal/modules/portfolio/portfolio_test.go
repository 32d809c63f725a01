package portfolio

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/marketdata"
	"github.com/aristath/beam/internal/modules/currency"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 14, 15, 0, 0, 0, time.UTC)

type stubQuotes map[string]marketdata.Quote

func (s stubQuotes) FetchQuote(_ context.Context, symbol string) (marketdata.Quote, error) {
	q, ok := s[symbol]
	if !ok {
		return marketdata.Quote{}, errors.New("unknown symbol")
	}
	return q, nil
}

type stubSpot struct {
	rates   map[string]float64
	missing []string
	err     error
}

func (s stubSpot) Spot(_ context.Context, _ []string, _ string, now time.Time) (*currency.FXTable, []string, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	t := currency.NewFXTable()
	for pair, r := range s.rates {
		t.Set(domain.Day(now), pair, r)
	}
	return t, s.missing, nil
}

func newTestService(store *Store, quotes marketdata.QuoteSource, fx SpotRates) *PortfolioService {
	svc := NewPortfolioService(store, quotes, fx, 2, zerolog.New(nil).Level(zerolog.Disabled))
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestStore(t *testing.T) {
	s := NewStore("")
	assert.Equal(t, "EUR", s.TargetCurrency())
	assert.Empty(t, s.Holdings())

	in := []domain.Holding{
		{Ticker: "BBB", Quantity: 1, Currency: "EUR"},
		{Ticker: "AAA", Quantity: 2, Currency: "USD"},
		{Ticker: "AAA", Quantity: 3, Currency: "USD"},
		{Ticker: "ZZZ", Quantity: 0, Currency: "USD"},
	}
	s.Replace(in, "batch-1", testNow)
	in[0].Ticker = "MUTATED"

	assert.Equal(t, "BBB", s.Holdings()[0].Ticker)
	assert.Equal(t, []string{"AAA", "BBB"}, s.Tickers())
	id, at := s.Import()
	assert.Equal(t, "batch-1", id)
	assert.Equal(t, testNow, at)

	assert.Equal(t, "EUR", s.SetCurrency(" usd "))
	assert.Equal(t, "USD", s.TargetCurrency())

	s.Restore(domain.PortfolioSnapshot{ID: "snap", TargetCurrency: "GBP", Holdings: in[:1]})
	assert.Equal(t, "GBP", s.TargetCurrency())
	assert.Len(t, s.Holdings(), 1)
}

func TestGetSummary(t *testing.T) {
	store := NewStore("EUR")
	store.Replace([]domain.Holding{
		{Ticker: "AAA", Quantity: 10, AcquisitionPrice: 100, Currency: "USD", Category: "Asie", TargetLT: 150},
		{Ticker: "BBB", Quantity: 5, AcquisitionPrice: 200, Currency: "EUR"},
		{Ticker: "NOQ", Quantity: 1, AcquisitionPrice: 50, Currency: "EUR"},
	}, "b", testNow)

	svc := newTestService(store, stubQuotes{
		"AAA": {Symbol: "AAA", Name: "Alpha", Price: 110, High52: 120},
		"BBB": {Symbol: "BBB", Price: 210},
	}, stubSpot{rates: map[string]float64{"USDEUR": 0.9}})

	sum, err := svc.GetSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "EUR", sum.Currency)
	assert.InDelta(t, 10*100*0.9+5*200+50, sum.Totals.Acquisition, 1e-9)
	assert.InDelta(t, 10*110*0.9+5*210, sum.Totals.Current, 1e-9)
	assert.InDelta(t, 10*120*0.9, sum.Totals.H52, 1e-9)
	assert.InDelta(t, 10*150*0.9, sum.Totals.LT, 1e-9)
	assert.Contains(t, sum.Warnings, "no quote for NOQ")

	require.Len(t, sum.Rows, 3)
	aaa := sum.Rows[0]
	assert.Equal(t, "Alpha", aaa.Name)
	assert.Equal(t, 0.9, aaa.FXRate)
	assert.InDelta(t, 10.0, aaa.GainPct, 1e-9)
	assert.Equal(t, domain.DefaultCategory, sum.Rows[1].Category)
	assert.True(t, math.IsNaN(sum.Rows[2].CurrentValue))
}

func TestGetSummary_MissingFXLeavesValuesUnconverted(t *testing.T) {
	store := NewStore("EUR")
	store.Replace([]domain.Holding{{Ticker: "AAA", Quantity: 1, AcquisitionPrice: 100, Currency: "USD"}}, "b", testNow)

	svc := newTestService(store, stubQuotes{"AAA": {Price: 120}}, stubSpot{missing: []string{"USDEUR"}})
	sum, err := svc.GetSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100.0, sum.Totals.Acquisition)
	assert.Equal(t, 120.0, sum.Totals.Current)
	assert.True(t, math.IsNaN(sum.Rows[0].FXRate))
	assert.Contains(t, sum.Warnings, "no FX rate for USDEUR, values left unconverted")
}

func TestGetSummary_Errors(t *testing.T) {
	store := NewStore("EUR")
	store.Replace([]domain.Holding{{Ticker: "AAA", Quantity: 1, AcquisitionPrice: 100, Currency: "USD"}}, "b", testNow)

	svc := newTestService(store, stubQuotes{}, stubSpot{err: errors.New("down")})
	_, err := svc.GetSummary(context.Background())
	assert.Error(t, err)

	empty := newTestService(NewStore("EUR"), stubQuotes{}, stubSpot{})
	sum, err := empty.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum.Rows)
}

func TestAllocation(t *testing.T) {
	rows := []HoldingRow{
		{Category: "Minières", CurrentValue: 500},
		{Category: "Asie", CurrentValue: 250},
		{Category: "Energie", CurrentValue: 150},
		{Category: "Devises", CurrentValue: 100},
		{Category: "Non classé", CurrentValue: math.NaN()},
	}
	got := Allocation(rows, DefaultTargets())

	byCat := make(map[string]CategoryAllocation)
	for _, a := range got {
		byCat[a.Category] = a
	}
	require.Contains(t, byCat, "Crypto")
	assert.Equal(t, "Minières", got[0].Category, "sorted by current share")

	mines := byCat["Minières"]
	assert.InDelta(t, 50, mines.CurrentPct, 1e-9)
	assert.InDelta(t, 41, mines.TargetPct, 1e-9)
	assert.InDelta(t, -9, mines.Adjustment, 1e-9)

	// Base from non-anchor categories: (250+150+100)/0.59
	base := 500 / 0.59
	assert.InDelta(t, 0.25*base-150, byCat["Energie"].AdjustmentValue, 1e-9)
	assert.InDelta(t, 0.41*base-500, mines.AdjustmentValue, 1e-9)
	assert.InDelta(t, 0, byCat["Crypto"].AdjustmentValue, 1e-9)
}

func TestAllocation_Empty(t *testing.T) {
	got := Allocation(nil, map[string]float64{"Asie": 1})
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].CurrentPct)
	assert.Equal(t, 0.0, got[0].AdjustmentValue)
}
