package charts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/modules/analytics"
	"github.com/aristath/beam/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// Indicator chart kinds
const (
	KindZScore      = "zscore"
	KindRSI         = "rsi"
	KindMACD        = "macd"
	KindBollinger   = "bollinger"
	KindVolatility  = "volatility"
	KindPerformance = "performance"
)

// Kinds lists the accepted indicator chart kinds
var Kinds = []string{KindZScore, KindRSI, KindMACD, KindBollinger, KindVolatility, KindPerformance}

// ErrUnknownKind is returned for an indicator kind outside Kinds
var ErrUnknownKind = errors.New("unknown chart kind")

// TotalsSource returns daily totals for a range
type TotalsSource interface {
	Totals(ctx context.Context, start, end time.Time, currency string) ([]domain.DailyTotal, error)
}

// Service loads daily totals and renders them
type Service struct {
	totals   TotalsSource
	renderer *Renderer
	params   analytics.Params
	log      zerolog.Logger
}

// NewService creates a new charts service
func NewService(totals TotalsSource, renderer *Renderer, log zerolog.Logger) *Service {
	return &Service{
		totals:   totals,
		renderer: renderer,
		params:   analytics.DefaultParams(),
		log:      log.With().Str("service", "charts").Logger(),
	}
}

// ValueChart plots current and acquisition value over the period ending at now
func (s *Service) ValueChart(ctx context.Context, period, currency string, now time.Time) ([]byte, error) {
	totals, err := s.load(ctx, period, currency, now)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(totals))
	current := make([]float64, len(totals))
	acquisition := make([]float64, len(totals))
	for i, t := range totals {
		dates[i] = t.Date
		current[i] = t.Current
		acquisition[i] = t.Acquisition
	}

	return s.renderer.LineChart(title("Valeur du portefeuille", period, totals), dates, map[string][]float64{
		"Valeur actuelle":      current,
		"Valeur d'acquisition": acquisition,
	})
}

// IndicatorChart plots one indicator family computed on the period's totals
func (s *Service) IndicatorChart(ctx context.Context, kind, period, currency string, now time.Time) ([]byte, error) {
	if !validKind(kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if period == "" {
		period = valuation.DefaultPeriod
	}
	start, end := valuation.ParsePeriod(period, now)
	all, from, err := analytics.Load(ctx, s.totals, start, end, currency, s.params)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily totals: %w", err)
	}
	totals := all[from:]
	if len(totals) == 0 {
		return nil, ErrNoData
	}
	set := analytics.Compute(all, s.params).Trim(from)

	var (
		name   string
		series map[string][]float64
	)
	switch kind {
	case KindZScore:
		name = "Z-score"
		series = map[string][]float64{
			"Z " + strconv.Itoa(s.params.ZShortWindow) + "j": zeroFill(set.ZShort),
			"Z " + strconv.Itoa(s.params.ZLongWindow) + "j":  zeroFill(set.ZLong),
		}
	case KindRSI:
		name = "RSI"
		series = map[string][]float64{"RSI " + strconv.Itoa(s.params.RSIPeriod): set.RSI}
	case KindMACD:
		name = "MACD"
		series = map[string][]float64{
			"MACD":        set.MACD.MACD,
			"Signal":      set.MACD.Signal,
			"Histogramme": set.MACD.Histogram,
		}
	case KindBollinger:
		name = "Bandes de Bollinger"
		series = map[string][]float64{
			"Valeur":  set.Values,
			"Haute":   set.Bollinger.Upper,
			"Médiane": set.Bollinger.Middle,
			"Basse":   set.Bollinger.Lower,
		}
	case KindVolatility:
		name = "Volatilité"
		series = map[string][]float64{"Volatilité " + strconv.Itoa(s.params.VolWindow) + "j": set.Volatility}
	case KindPerformance:
		name = "Performance cumulée (%)"
		series = map[string][]float64{"Performance": valuation.CumulativePerformance(totals)}
	}

	return s.renderer.LineChart(title(name, period, totals), set.Dates, series)
}

func (s *Service) load(ctx context.Context, period, currency string, now time.Time) ([]domain.DailyTotal, error) {
	if period == "" {
		period = valuation.DefaultPeriod
	}
	start, end := valuation.ParsePeriod(period, now)
	totals, err := s.totals.Totals(ctx, start, end, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily totals: %w", err)
	}
	if len(totals) == 0 {
		return nil, ErrNoData
	}
	return totals, nil
}

func validKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// zeroFill maps undefined z-scores to 0 so the line stays continuous
func zeroFill(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if finite(v) {
			out[i] = v
		}
	}
	return out
}

func title(name, period string, totals []domain.DailyTotal) string {
	if period == "" {
		period = valuation.DefaultPeriod
	}
	cur := ""
	if len(totals) > 0 {
		cur = " (" + totals[0].Currency + ")"
	}
	return name + " " + period + cur
}
