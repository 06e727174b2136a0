package domain

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Geographic columns present in every JHU time-series table.
const (
	ColumnSubRegion = "Province/State"
	ColumnRegion    = "Country/Region"
	ColumnLat       = "Lat"
	ColumnLong      = "Long"
)

// DateLayout is the JHU date label format, e.g. "3/15/20".
const DateLayout = "1/2/06"

var (
	errNegativeCount   = errors.New("negative count")
	errCountOutOfRange = errors.New("count out of range")
)

var geoColumns = []string{ColumnSubRegion, ColumnRegion, ColumnLat, ColumnLong}

// Reshape converts a wide RawTable (rows = sub-region, columns = dates) into
// a SeriesTable (rows = dates, columns = region). Lat/Long are dropped and
// rows that share a Country/Region are summed.
func Reshape(raw RawTable) (*SeriesTable, error) {
	colIdx := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		colIdx[strings.TrimSpace(h)] = i
	}
	for _, c := range geoColumns {
		if _, ok := colIdx[c]; !ok {
			return nil, malformed(raw.Source, "missing column %q", c)
		}
	}

	dateCols, err := parseDateColumns(raw.Source, raw.Header)
	if err != nil {
		return nil, err
	}

	dates := make([]time.Time, len(dateCols))
	for i, dc := range dateCols {
		dates[i] = dc.date
	}

	regionIdx := colIdx[ColumnRegion]
	values := make(map[string][]int64)
	for n, rec := range raw.Records {
		line := n + 2 // header is line 1
		if len(rec) < len(raw.Header) {
			return nil, malformed(raw.Source, "line %d: expected %d fields, got %d", line, len(raw.Header), len(rec))
		}
		region := strings.TrimSpace(rec[regionIdx])
		if region == "" {
			return nil, malformed(raw.Source, "line %d: empty %s", line, ColumnRegion)
		}

		acc, ok := values[region]
		if !ok {
			acc = make([]int64, len(dateCols))
			values[region] = acc
		}
		for i, dc := range dateCols {
			v, err := parseCount(rec[dc.col])
			if err != nil {
				return nil, malformed(raw.Source, "line %d column %q: %v", line, raw.Header[dc.col], err)
			}
			if acc[i] > math.MaxInt64-v {
				return nil, malformed(raw.Source, "line %d column %q: region %q total: %v", line, raw.Header[dc.col], region, errCountOutOfRange)
			}
			acc[i] += v
		}
	}

	return NewSeriesTable(dates, values), nil
}

type dateColumn struct {
	col  int
	date time.Time
}

// parseDateColumns parses every non-geographic header label and returns the
// columns ordered by date. Duplicate dates are rejected so the index stays
// strictly increasing.
func parseDateColumns(source SourceName, header []string) ([]dateColumn, error) {
	isGeo := make(map[string]bool, len(geoColumns))
	for _, c := range geoColumns {
		isGeo[c] = true
	}

	cols := make([]dateColumn, 0, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if isGeo[h] {
			continue
		}
		d, err := ParseDateLabel(h)
		if err != nil {
			return nil, malformed(source, "unparseable date label %q", h)
		}
		cols = append(cols, dateColumn{col: i, date: d})
	}

	sort.SliceStable(cols, func(a, b int) bool { return cols[a].date.Before(cols[b].date) })
	for i := 1; i < len(cols); i++ {
		if cols[i].date.Equal(cols[i-1].date) {
			return nil, malformed(source, "duplicate date %s", cols[i].date.Format(time.DateOnly))
		}
	}
	return cols, nil
}

// ParseDateLabel parses a JHU M/D/YY header label into a UTC date.
func ParseDateLabel(label string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(label), time.UTC)
}

// parseCount parses a cumulative count cell. Empty cells are zero; integral
// float spellings such as "12.0" are accepted.
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		if v < 0 {
			return 0, errNegativeCount
		}
		return v, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, errCountOutOfRange
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, strconv.ErrSyntax
	}
	if f < 0 {
		return 0, errNegativeCount
	}
	if f >= math.MaxInt64 {
		return 0, errCountOutOfRange
	}
	return int64(math.Round(f)), nil
}
