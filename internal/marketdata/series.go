package marketdata

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/beam/internal/domain"
)

// weeklyThreshold is the range length above which weekly data is fetched
// and interpolated to business days.
const weeklyThreshold = 365 * 24 * time.Hour

// BusinessDays enumerates Monday to Friday dates in [start, end].
// Holidays are not excluded.
func BusinessDays(start, end time.Time) []time.Time {
	start, end = domain.Day(start), domain.Day(end)
	if end.Before(start) {
		return nil
	}

	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24*5/7)+2)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

// BusinessDaysBefore returns the date n business days before t.
func BusinessDaysBefore(t time.Time, n int) time.Time {
	d := domain.Day(t)
	for n > 0 {
		d = d.AddDate(0, 0, -1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return d
}

// ChooseInterval picks weekly sampling for ranges longer than one year.
func ChooseInterval(start, end time.Time) domain.Interval {
	if end.Sub(start) > weeklyThreshold {
		return domain.IntervalWeekly
	}
	return domain.IntervalDaily
}

// normalize sorts points by day, drops undefined values and keeps the last
// observation for duplicated days.
func normalize(points []domain.PricePoint) []domain.PricePoint {
	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		out = append(out, domain.PricePoint{Date: domain.Day(p.Date), Value: p.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

// Reindex maps points onto days, carrying the last observation forward and
// back-filling days before the first observation. An empty series yields NaN.
func Reindex(points []domain.PricePoint, days []time.Time) []float64 {
	pts := normalize(points)
	out := make([]float64, len(days))
	if len(pts) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	j := 0
	for i, d := range days {
		for j+1 < len(pts) && !pts[j+1].Date.After(d) {
			j++
		}
		// Before the first observation pts[0] is used, which is the back-fill.
		out[i] = pts[j].Value
	}
	return out
}

// Interpolate maps sparse points onto days by linear interpolation in time.
// Days outside the observed range take the nearest edge value.
func Interpolate(points []domain.PricePoint, days []time.Time) []float64 {
	pts := normalize(points)
	out := make([]float64, len(days))
	if len(pts) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	j := 0
	for i, d := range days {
		switch {
		case !d.After(pts[0].Date):
			out[i] = pts[0].Value
		case !d.Before(pts[len(pts)-1].Date):
			out[i] = pts[len(pts)-1].Value
		default:
			for pts[j+1].Date.Before(d) {
				j++
			}
			a, b := pts[j], pts[j+1]
			span := b.Date.Sub(a.Date).Hours()
			w := d.Sub(a.Date).Hours() / span
			out[i] = a.Value + (b.Value-a.Value)*w
		}
	}
	return out
}

// Align maps points onto days using the method suited to the sampling interval.
func Align(points []domain.PricePoint, days []time.Time, interval domain.Interval) []float64 {
	if interval == domain.IntervalWeekly {
		return Interpolate(points, days)
	}
	return Reindex(points, days)
}

// Closes extracts the values of points in chronological order.
func Closes(points []domain.PricePoint) []float64 {
	pts := normalize(points)
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Value
	}
	return out
}
