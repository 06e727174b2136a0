package domain

import (
	"sort"
	"time"
)

// SourceName identifies one of the three upstream time-series tables.
type SourceName string

const (
	SourceConfirmed SourceName = "confirmed"
	SourceRecovered SourceName = "recovered"
	SourceDeath     SourceName = "death"
)

// Sources returns every source in fetch order.
func Sources() []SourceName {
	return []SourceName{SourceConfirmed, SourceRecovered, SourceDeath}
}

// RawTable is a CSV table exactly as fetched: one header row and the
// remaining records, rows keyed by (Province/State, Country/Region) and
// columns by date label.
type RawTable struct {
	Source  SourceName
	Header  []string
	Records [][]string
}

// SeriesTable is the date-indexed form of a RawTable. Dates are strictly
// increasing and every region has exactly one value per date.
type SeriesTable struct {
	Dates   []time.Time
	regions []string
	values  map[string][]int64
}

// NewSeriesTable builds a table from a date index and per-region values.
// Every slice in values must have len(dates) entries; the caller must not
// modify dates or values afterwards.
func NewSeriesTable(dates []time.Time, values map[string][]int64) *SeriesTable {
	regions := make([]string, 0, len(values))
	for r := range values {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return &SeriesTable{Dates: dates, regions: regions, values: values}
}

// Regions returns the sorted region names present in the table.
func (t *SeriesTable) Regions() []string {
	out := make([]string, len(t.regions))
	copy(out, t.regions)
	return out
}

// Series returns the cumulative counts for region, aligned with Dates.
// The returned slice is shared and must not be modified.
func (t *SeriesTable) Series(region string) ([]int64, bool) {
	v, ok := t.values[region]
	return v, ok
}

// Has reports whether region has a column in the table.
func (t *SeriesTable) Has(region string) bool {
	_, ok := t.values[region]
	return ok
}

// Total sums every cell of the table.
func (t *SeriesTable) Total() int64 {
	var sum int64
	for _, v := range t.values {
		for _, n := range v {
			sum += n
		}
	}
	return sum
}

// Latest returns the most recent count for region, or false when the region
// is unknown or the table has no dates.
func (t *SeriesTable) Latest(region string) (int64, bool) {
	v, ok := t.values[region]
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[len(v)-1], true
}

// Snapshot is the consistent triple of series valid at one point in time.
// A Snapshot is never mutated after it has been published.
type Snapshot struct {
	Version   uint64
	FetchedAt time.Time
	Confirmed *SeriesTable
	Recovered *SeriesTable
	Deaths    *SeriesTable
}

// Table returns the series table for a source name.
func (s *Snapshot) Table(name SourceName) (*SeriesTable, bool) {
	switch name {
	case SourceConfirmed:
		return s.Confirmed, s.Confirmed != nil
	case SourceRecovered:
		return s.Recovered, s.Recovered != nil
	case SourceDeath:
		return s.Deaths, s.Deaths != nil
	default:
		return nil, false
	}
}

// DateSpan returns the first and last date of the confirmed table.
func (s *Snapshot) DateSpan() (first, last time.Time) {
	if s.Confirmed == nil || len(s.Confirmed.Dates) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Confirmed.Dates[0], s.Confirmed.Dates[len(s.Confirmed.Dates)-1]
}

// Point is a single dated value of a derived metric.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ScatterPoint pairs two values observed on the same date.
type ScatterPoint struct {
	Date time.Time `json:"date"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}
