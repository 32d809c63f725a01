package charts

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG")

type stubTotals struct {
	totals []domain.DailyTotal
	err    error
}

func (s stubTotals) Totals(_ context.Context, _, _ time.Time, _ string) ([]domain.DailyTotal, error) {
	return s.totals, s.err
}

func series(n int) []domain.DailyTotal {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]domain.DailyTotal, n)
	for i := range out {
		out[i] = domain.DailyTotal{
			Date:        start.AddDate(0, 0, i),
			Acquisition: 1000,
			Current:     1000 + 50*math.Sin(float64(i)/7) + float64(i),
			Currency:    "EUR",
		}
	}
	return out
}

func TestTrimUndefined(t *testing.T) {
	nan := math.NaN()
	start, out := trimUndefined([][]float64{
		{nan, 1, 2, nan, 4},
		{nan, nan, 5, 6, nan},
	})
	assert.Equal(t, 2, start)
	assert.Equal(t, [][]float64{{2, 2, 4}, {5, 6, 6}}, out)

	start, _ = trimUndefined([][]float64{{nan, nan}})
	assert.Equal(t, -1, start)
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name   string
		values [][]float64
		lo, hi float64
	}{
		{"range", [][]float64{{0, 100}}, -5, 105},
		{"flat", [][]float64{{200, 200}}, 190, 210},
		{"zero", [][]float64{{0, 0}}, -1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := bounds(tt.values)
			assert.InDelta(t, tt.lo, lo, 1e-9)
			assert.InDelta(t, tt.hi, hi, 1e-9)
		})
	}
}

func TestLineChart(t *testing.T) {
	r := NewRenderer(zerolog.Nop())
	dates := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}

	img, err := r.LineChart("Test", dates, map[string][]float64{"a": {1, 2, 3}, "b": {math.NaN(), 1, 1}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	_, err = r.LineChart("Test", dates, map[string][]float64{"a": {1, 2}})
	assert.Error(t, err)

	_, err = r.LineChart("Test", dates, map[string][]float64{"a": {math.NaN(), math.NaN(), math.NaN()}})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestValueChart(t *testing.T) {
	svc := NewService(stubTotals{totals: series(60)}, NewRenderer(zerolog.Nop()), zerolog.Nop())
	img, err := svc.ValueChart(context.Background(), "3M", "EUR", time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))
}

func TestIndicatorChart(t *testing.T) {
	svc := NewService(stubTotals{totals: series(120)}, NewRenderer(zerolog.Nop()), zerolog.Nop())
	for _, kind := range Kinds {
		t.Run(kind, func(t *testing.T) {
			img, err := svc.IndicatorChart(context.Background(), kind, "6M", "", time.Now())
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(img, pngMagic))
		})
	}
}

func TestIndicatorChart_Errors(t *testing.T) {
	r := NewRenderer(zerolog.Nop())

	_, err := NewService(stubTotals{totals: series(10)}, r, zerolog.Nop()).IndicatorChart(context.Background(), "candles", "", "", time.Now())
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = NewService(stubTotals{}, r, zerolog.Nop()).IndicatorChart(context.Background(), KindRSI, "", "", time.Now())
	assert.ErrorIs(t, err, ErrNoData)

	_, err = NewService(stubTotals{err: errors.New("down")}, r, zerolog.Nop()).ValueChart(context.Background(), "", "", time.Now())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

type recordingTotals struct {
	ranges [][2]time.Time
}

func (r *recordingTotals) Totals(_ context.Context, start, end time.Time, currency string) ([]domain.DailyTotal, error) {
	r.ranges = append(r.ranges, [2]time.Time{start, end})
	var out []domain.DailyTotal
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, domain.DailyTotal{Date: d, Current: 1000 + float64(d.YearDay()), Acquisition: 900, Currency: currency})
	}
	return out, nil
}

func TestIndicatorChart_WarmsWindowsBeforePeriod(t *testing.T) {
	src := &recordingTotals{}
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	svc := NewService(src, NewRenderer(zerolog.Nop()), zerolog.Nop())

	img, err := svc.IndicatorChart(context.Background(), KindZScore, "1M", "EUR", now)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, pngMagic))

	require.Len(t, src.ranges, 2)
	requested, lookback := src.ranges[0], src.ranges[1]
	assert.True(t, lookback[1].Before(requested[0]))
	assert.True(t, lookback[0].Before(requested[0].AddDate(-2, 0, 0)))
}
