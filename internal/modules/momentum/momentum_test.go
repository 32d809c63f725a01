package momentum

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekly(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestClassify_InsufficientData(t *testing.T) {
	res := Classify(weekly(38, func(i int) float64 { return 100 + float64(i) }), FineStrategy{})
	assert.Equal(t, StatusInsufficientData, res.Status)
	assert.True(t, math.IsNaN(res.Z))
	assert.Empty(t, res.Signal)
}

func TestClassify_FlatSeriesIsUndefined(t *testing.T) {
	res := Classify(weekly(60, func(int) float64 { return 50 }), FineStrategy{})
	assert.Equal(t, StatusUndefined, res.Status)
	assert.Equal(t, 50.0, res.LastPrice)
	assert.InDelta(t, 0, res.MomentumPct, 1e-12)
	assert.True(t, math.IsNaN(res.Z))
}

func TestClassify_SpikeIsOverheated(t *testing.T) {
	// Steady drift then a jump in the last week
	prices := weekly(80, func(i int) float64 { return 100 + 0.1*float64(i%3) })
	prices[79] = 140

	res := Classify(prices, FineStrategy{})
	require.Equal(t, StatusOK, res.Status)
	assert.Greater(t, res.Z, 2.0)
	assert.Equal(t, "Surchauffe", res.Signal)
	assert.Equal(t, "Alléger / Prendre profits", res.Action)
	assert.Equal(t, 140.0, res.LastPrice)
	assert.Greater(t, res.MomentumPct, 0.0)
}

func TestClassify_CrashIsOversold(t *testing.T) {
	prices := weekly(80, func(i int) float64 { return 100 + 0.1*float64(i%3) })
	prices[79] = 60

	fine := Classify(prices, FineStrategy{})
	require.Equal(t, StatusOK, fine.Status)
	assert.Equal(t, "Survendu", fine.Signal)

	coarse := Classify(prices, CoarseStrategy{})
	require.Equal(t, StatusOK, coarse.Status)
	assert.Equal(t, "Très baissier", coarse.Signal)
	assert.Equal(t, fine.Z, coarse.Z)
}

func TestFineStrategy_Buckets(t *testing.T) {
	tests := []struct {
		z    float64
		want string
	}{
		{2.5, "Surchauffe"},
		{2.0, "Fort"},
		{1.6, "Fort"},
		{1.5, "Haussier"},
		{0.6, "Haussier"},
		{0.5, "Neutre"},
		{0, "Neutre"},
		{-0.5, "Faible"},
		{-1.4, "Faible"},
		{-1.5, "Survendu"},
		{-3, "Survendu"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FineStrategy{}.Classify(tt.z, 0).Signal, "z=%v", tt.z)
	}
}

func TestCoarseStrategy_Buckets(t *testing.T) {
	tests := []struct {
		z, momentum float64
		want        string
		action      string
	}{
		{2.1, 0, "Très haussier", "Renforcer / Acheter"},
		{1.8, 0, "Haussier", "Acheter"},
		{-2.1, 0, "Très baissier", "Renforcer la vente"},
		{-1.8, 0, "Baissier", "Vendre"},
		{0.3, 0.05, "Neutre haussier", "Conserver"},
		{0.3, -0.05, "Neutre baissier", "Surveiller"},
		{1.5, 0, "Neutre haussier", "Conserver"},
	}
	for _, tt := range tests {
		v := CoarseStrategy{}.Classify(tt.z, tt.momentum)
		assert.Equal(t, tt.want, v.Signal, "z=%v m=%v", tt.z, tt.momentum)
		assert.Equal(t, tt.action, v.Action)
	}
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, StrategyFine, s.Name())

	s, err = StrategyByName("coarse")
	require.NoError(t, err)
	assert.Equal(t, StrategyCoarse, s.Name())

	_, err = StrategyByName("aggressive")
	assert.Error(t, err)

	assert.Equal(t, []string{"coarse", "fine"}, StrategyNames())
}

type countingSource struct {
	mu     sync.Mutex
	calls  map[string]int
	series map[string][]domain.PricePoint
	errs   map[string]error
}

func (s *countingSource) FetchSeries(_ context.Context, symbol string, start, end time.Time, interval domain.Interval) ([]domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[symbol]++
	if interval != domain.IntervalWeekly {
		return nil, errors.New("expected weekly interval")
	}
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	return s.series[symbol], nil
}

func points(values []float64) []domain.PricePoint {
	start := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PricePoint, len(values))
	for i, v := range values {
		out[i] = domain.PricePoint{Date: start.AddDate(0, 0, 7*i), Value: v}
	}
	return out
}

func TestService_Analyze(t *testing.T) {
	spike := weekly(80, func(i int) float64 { return 100 + 0.1*float64(i%3) })
	spike[79] = 140
	src := &countingSource{
		series: map[string][]domain.PricePoint{
			"AAA": points(spike),
			"NEW": points(weekly(10, func(int) float64 { return 5 })),
		},
		errs: map[string]error{"ERR": errors.New("timeout")},
	}
	svc := NewService(src, 2, zerolog.New(nil).Level(zerolog.Disabled))
	svc.now = func() time.Time { return time.Date(2024, 6, 14, 12, 0, 0, 0, time.UTC) }

	res, err := svc.Analyze(context.Background(), []string{"AAA", "NEW", "ERR"}, FineStrategy{})
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.Equal(t, "AAA", res[0].Ticker)
	assert.Equal(t, StatusOK, res[0].Status)
	assert.Equal(t, "Surchauffe", res[0].Signal)
	assert.Equal(t, "NEW", res[1].Ticker)
	assert.Equal(t, StatusInsufficientData, res[1].Status)
	assert.Equal(t, "ERR", res[2].Ticker)
	assert.Equal(t, StatusInsufficientData, res[2].Status)

	// Successful results are cached per strategy, failures are retried
	_, err = svc.Analyze(context.Background(), []string{"AAA", "NEW", "ERR"}, FineStrategy{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls["AAA"])
	assert.Equal(t, 1, src.calls["NEW"])
	assert.Equal(t, 2, src.calls["ERR"])

	coarse, err := svc.Analyze(context.Background(), []string{"AAA"}, CoarseStrategy{})
	require.NoError(t, err)
	assert.Equal(t, "Très haussier", coarse[0].Signal)
	assert.Equal(t, 2, src.calls["AAA"])
}

func TestService_AnalyzeCancelled(t *testing.T) {
	svc := NewService(&countingSource{}, 2, zerolog.New(nil).Level(zerolog.Disabled))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, []string{"AAA"}, FineStrategy{})
	assert.ErrorIs(t, err, context.Canceled)
}
