// Package domain models the JHU CSSE COVID-19 global time-series data and the
// per-country metrics derived from it.
//
// # Data Source
//
// The Johns Hopkins CSSE repository publishes three wide CSV files, one per
// case type, under csse_covid_19_data/csse_covid_19_time_series/:
//
//	time_series_covid19_confirmed_global.csv
//	time_series_covid19_recovered_global.csv
//	time_series_covid19_deaths_global.csv
//
// The files are regenerated daily and fetched by the refresh loop on a fixed
// interval. Each is parsed verbatim into a [RawTable].
//
// # CSV Conventions
//
// Header layout:
//
//	Province/State,Country/Region,Lat,Long,1/22/20,1/23/20,...
//
// Every column after the four geographic ones is a date label in M/D/YY form
// (month and day are not zero-padded). Lat and Long are ignored.
//
// Rows:
//
//	One row per (sub-region, region). Province/State is empty for countries
//	reported as a whole ("Germany") and populated for countries split into
//	provinces ("China", "France", "United Kingdom"). Rows sharing a
//	Country/Region are summed into one series by [Reshape].
//
// Cells:
//
//	Cumulative case counts as non-negative integers. Empty cells are treated
//	as zero. Counts are expected, but not required, to be non-decreasing.
//
// # Derived Metrics
//
// All metrics are pure functions of a [SeriesTable] or [Snapshot]:
//
//	GrowthRate       (v[t]/v[t-1] - 1) * 100, zero predecessors dropped
//	DeathRate        d / (c + r + d) * 100, zero denominators dropped
//	CumulativeCurve  v[t] unchanged
//	CurrentVsNew     (v[t], v[t] - v[t-1]), first date dropped
//
// Dropping, rather than emitting NaN or Inf, keeps every returned point
// plottable.
package domain
