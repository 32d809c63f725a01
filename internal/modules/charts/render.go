// Package charts renders portfolio value and indicator series as PNG line charts.
package charts

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	gocharts "github.com/vicanso/go-charts/v2"
)

// ErrNoData is returned when no series has a single plottable point
var ErrNoData = errors.New("no data to plot")

const (
	defaultWidth  = 900
	defaultHeight = 500
)

// Renderer draws line charts
type Renderer struct {
	width  int
	height int
	log    zerolog.Logger
}

// NewRenderer creates a renderer with the default canvas size
func NewRenderer(log zerolog.Logger) *Renderer {
	return &Renderer{
		width:  defaultWidth,
		height: defaultHeight,
		log:    log.With().Str("service", "charts").Logger(),
	}
}

// LineChart renders one line per named series over dates and returns PNG bytes.
// Series are drawn in name order. Leading points where any series is undefined
// are dropped and later gaps carry the previous value forward.
func (r *Renderer) LineChart(title string, dates []time.Time, series map[string][]float64) ([]byte, error) {
	names := make([]string, 0, len(series))
	for name, values := range series {
		if len(values) != len(dates) {
			return nil, fmt.Errorf("series %q has %d points for %d dates", name, len(values), len(dates))
		}
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([][]float64, len(names))
	for i, name := range names {
		values[i] = series[name]
	}

	start, cleaned := trimUndefined(values)
	if start < 0 {
		return nil, ErrNoData
	}
	labels := dateLabels(dates[start:])
	yMin, yMax := bounds(cleaned)

	p, err := gocharts.LineRender(
		cleaned,
		gocharts.TitleTextOptionFunc(title),
		gocharts.XAxisOptionFunc(gocharts.XAxisOption{
			Data:        labels,
			SplitNumber: splitNumber(len(labels)),
			BoundaryGap: gocharts.FalseFlag(),
		}),
		gocharts.YAxisOptionFunc(gocharts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		gocharts.LegendOptionFunc(gocharts.LegendOption{Data: names}),
		gocharts.ThemeOptionFunc(gocharts.ThemeLight),
		gocharts.WidthOptionFunc(r.width),
		gocharts.HeightOptionFunc(r.height),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	r.log.Debug().Str("title", title).Int("points", len(labels)).Int("series", len(names)).Msg("Chart rendered")
	return buf, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// trimUndefined returns the first index where every series is finite and
// copies of the series from there on with gaps forward-filled. The index is
// -1 when no such point exists.
func trimUndefined(values [][]float64) (int, [][]float64) {
	if len(values) == 0 || len(values[0]) == 0 {
		return -1, nil
	}

	start := -1
	for i := range values[0] {
		ok := true
		for _, s := range values {
			if !finite(s[i]) {
				ok = false
				break
			}
		}
		if ok {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, nil
	}

	out := make([][]float64, len(values))
	for k, s := range values {
		cp := make([]float64, len(s)-start)
		copy(cp, s[start:])
		for i := 1; i < len(cp); i++ {
			if !finite(cp[i]) {
				cp[i] = cp[i-1]
			}
		}
		out[k] = cp
	}
	return start, out
}

// bounds returns the y-axis range padded by 5%
func bounds(values [][]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range values {
		for _, v := range s {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	padding := (hi - lo) * 0.05
	if padding == 0 {
		padding = math.Abs(hi) * 0.05
	}
	if padding == 0 {
		padding = 1
	}
	return lo - padding, hi + padding
}

func dateLabels(dates []time.Time) []string {
	layout := "02/01"
	if len(dates) > 0 && dates[len(dates)-1].Sub(dates[0]) > 180*24*time.Hour {
		layout = "01/2006"
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(layout)
	}
	return out
}

func splitNumber(n int) int {
	if n > 30 {
		return 6
	}
	split := n / 3
	if split < 3 {
		split = 3
	}
	return split
}
