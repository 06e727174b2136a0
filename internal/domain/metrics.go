package domain

import (
	"math"
	"time"
)

// Metric names used in UndefinedMetricError.
const (
	MetricGrowthRate      = "growth rate"
	MetricDeathRate       = "death rate"
	MetricCumulativeCurve = "cumulative curve"
	MetricCurrentVsNew    = "current vs new"
)

// GrowthRate returns the day-over-day percentage change of region's
// cumulative series. Transitions from a zero predecessor are dropped.
func GrowthRate(t *SeriesTable, region string) ([]Point, error) {
	v, ok := t.Series(region)
	if !ok {
		return nil, unknownRegion(MetricGrowthRate, region)
	}

	out := make([]Point, 0, len(v))
	for i := 1; i < len(v); i++ {
		rate, ok := percentChange(v[i-1], v[i])
		if !ok {
			continue
		}
		out = append(out, Point{Date: t.Dates[i], Value: rate})
	}
	return out, nil
}

// DeathRate returns deaths as a percentage of all recorded cases
// (confirmed + recovered + deaths) for each date present in all three
// tables. Dates with a zero denominator are dropped.
func DeathRate(s *Snapshot, region string) ([]Point, error) {
	if s == nil || s.Confirmed == nil || s.Recovered == nil || s.Deaths == nil {
		return nil, ErrNotReady
	}
	c, ok := s.Confirmed.Series(region)
	if !ok {
		return nil, unknownRegion(MetricDeathRate, region)
	}
	r, ok := s.Recovered.Series(region)
	if !ok {
		return nil, unknownRegion(MetricDeathRate, region)
	}
	d, ok := s.Deaths.Series(region)
	if !ok {
		return nil, unknownRegion(MetricDeathRate, region)
	}

	rIdx := dateIndex(s.Recovered.Dates)
	dIdx := dateIndex(s.Deaths.Dates)

	out := make([]Point, 0, len(c))
	for i, date := range s.Confirmed.Dates {
		ri, ok := rIdx[date]
		if !ok {
			continue
		}
		di, ok := dIdx[date]
		if !ok {
			continue
		}
		denom := c[i] + r[ri] + d[di]
		if denom == 0 {
			continue
		}
		rate := float64(d[di]) * 100 / float64(denom)
		if !finite(rate) {
			continue
		}
		out = append(out, Point{Date: date, Value: rate})
	}
	return out, nil
}

// CumulativeCurve returns region's cumulative counts unchanged.
func CumulativeCurve(t *SeriesTable, region string) ([]Point, error) {
	v, ok := t.Series(region)
	if !ok {
		return nil, unknownRegion(MetricCumulativeCurve, region)
	}
	out := make([]Point, len(v))
	for i, n := range v {
		out[i] = Point{Date: t.Dates[i], Value: float64(n)}
	}
	return out, nil
}

// CurrentVsNew pairs each date's cumulative count (X) with the change from
// the previous date (Y). The first date has no predecessor and is dropped.
func CurrentVsNew(t *SeriesTable, region string) ([]ScatterPoint, error) {
	v, ok := t.Series(region)
	if !ok {
		return nil, unknownRegion(MetricCurrentVsNew, region)
	}
	if len(v) < 2 {
		return []ScatterPoint{}, nil
	}
	out := make([]ScatterPoint, 0, len(v)-1)
	for i := 1; i < len(v); i++ {
		out = append(out, ScatterPoint{
			Date: t.Dates[i],
			X:    float64(v[i]),
			Y:    float64(v[i] - v[i-1]),
		})
	}
	return out, nil
}

func percentChange(prev, cur int64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	rate := float64(cur-prev) * 100 / float64(prev)
	return rate, finite(rate)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func dateIndex(dates []time.Time) map[time.Time]int {
	idx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		idx[d] = i
	}
	return idx
}
