package dashboard

import (
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// ChartID names one of the dashboard charts.
type ChartID string

const (
	ConfirmedGrowth    ChartID = "confirmed-growth"
	RecoveredGrowth    ChartID = "recovered-growth"
	ConfirmedRecovered ChartID = "confirmed-recovered"
	Deaths             ChartID = "deaths"
	DeathRate          ChartID = "death-rate"
	CurrentVsNew       ChartID = "current-vs-new"
)

// Kind is how a chart's series are drawn.
type Kind string

const (
	KindBars    Kind = "bars"
	KindCurves  Kind = "curves"
	KindScatter Kind = "scatter"
)

// Scale is an axis scale.
type Scale string

const (
	ScaleTime   Scale = "time"
	ScaleLinear Scale = "linear"
	ScaleLog    Scale = "log"
)

// Axis describes one chart axis. Min and Max are ignored for time axes.
type Axis struct {
	Label string  `json:"label"`
	Scale Scale   `json:"scale"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Definition is the fixed presentation contract of a chart.
type Definition struct {
	ID    ChartID `json:"id"`
	Title string  `json:"title"`
	Kind  Kind    `json:"kind"`
	X     Axis    `json:"x"`
	Y     Axis    `json:"y"`
}

// DataPoint is one plotted point. X is the Unix time in seconds of Date on
// time axes and the observed value otherwise.
type DataPoint struct {
	Date time.Time `json:"date"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// Series is a named, date-ordered run of points.
type Series struct {
	Name   string      `json:"name"`
	Points []DataPoint `json:"points"`
}

// Chart is a Definition filled with data for one region and snapshot.
type Chart struct {
	Definition
	Region  string   `json:"region"`
	Version uint64   `json:"version"`
	Series  []Series `json:"series"`
}

// builder computes a chart's series from a snapshot.
type builder func(snap *domain.Snapshot, region string) ([]Series, error)

type entry struct {
	def   Definition
	build builder
}

var (
	dateAxis   = Axis{Label: "Date", Scale: ScaleTime}
	growthAxis = Axis{Label: "Daily growth rate (%)", Scale: ScaleLinear, Min: 0, Max: 200}
	casesAxis  = Axis{Label: "Number of Cases", Scale: ScaleLog, Min: 1, Max: 1e6}
)

// catalog lists the charts in dashboard order.
var catalog = []entry{
	{
		def: Definition{
			ID: ConfirmedGrowth, Title: "Day-over-Day Growth of Confirmed Cases",
			Kind: KindBars, X: dateAxis, Y: growthAxis,
		},
		build: growthSeries(domain.SourceConfirmed, "Confirmed"),
	},
	{
		def: Definition{
			ID: RecoveredGrowth, Title: "Day-over-Day Growth of Recovered Cases",
			Kind: KindBars, X: dateAxis, Y: growthAxis,
		},
		build: growthSeries(domain.SourceRecovered, "Recovered"),
	},
	{
		def: Definition{
			ID: ConfirmedRecovered, Title: "Confirmed and Recovered Cases",
			Kind: KindCurves, X: dateAxis, Y: casesAxis,
		},
		build: cumulativeSeries(
			namedSource{domain.SourceConfirmed, "Confirmed"},
			namedSource{domain.SourceRecovered, "Recovered"},
		),
	},
	{
		def: Definition{
			ID: Deaths, Title: "Number of Death Cases",
			Kind: KindCurves, X: dateAxis, Y: casesAxis,
		},
		build: cumulativeSeries(namedSource{domain.SourceDeath, "Deaths"}),
	},
	{
		def: Definition{
			ID: DeathRate, Title: "Death Rate (% of infected)",
			Kind: KindBars, X: dateAxis,
			Y: Axis{Label: "Death rate (%)", Scale: ScaleLinear, Min: 0, Max: 10},
		},
		build: deathRateSeries,
	},
	{
		def: Definition{
			ID: CurrentVsNew, Title: "Number of Confirmed vs New Cases",
			Kind: KindScatter,
			X:    Axis{Label: "Confirmed cases", Scale: ScaleLog, Min: 1, Max: 1e6},
			Y:    Axis{Label: "New cases", Scale: ScaleLog, Min: 1, Max: 1e5},
		},
		build: currentVsNewSeries,
	},
}

// Catalog returns every chart definition in dashboard order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	for i, e := range catalog {
		out[i] = e.def
	}
	return out
}

// Lookup returns the definition for id.
func Lookup(id ChartID) (Definition, bool) {
	e, ok := lookup(id)
	return e.def, ok
}

func lookup(id ChartID) (entry, bool) {
	for _, e := range catalog {
		if e.def.ID == id {
			return e, true
		}
	}
	return entry{}, false
}

type namedSource struct {
	source domain.SourceName
	name   string
}

func growthSeries(source domain.SourceName, name string) builder {
	return func(snap *domain.Snapshot, region string) ([]Series, error) {
		t, ok := snap.Table(source)
		if !ok {
			return nil, domain.ErrNotReady
		}
		pts, err := domain.GrowthRate(t, region)
		if err != nil {
			return nil, err
		}
		return []Series{{Name: name, Points: timePoints(pts)}}, nil
	}
}

func cumulativeSeries(sources ...namedSource) builder {
	return func(snap *domain.Snapshot, region string) ([]Series, error) {
		out := make([]Series, 0, len(sources))
		for _, s := range sources {
			t, ok := snap.Table(s.source)
			if !ok {
				return nil, domain.ErrNotReady
			}
			pts, err := domain.CumulativeCurve(t, region)
			if err != nil {
				return nil, err
			}
			out = append(out, Series{Name: s.name, Points: timePoints(pts)})
		}
		return out, nil
	}
}

func deathRateSeries(snap *domain.Snapshot, region string) ([]Series, error) {
	pts, err := domain.DeathRate(snap, region)
	if err != nil {
		return nil, err
	}
	return []Series{{Name: "Death rate", Points: timePoints(pts)}}, nil
}

func currentVsNewSeries(snap *domain.Snapshot, region string) ([]Series, error) {
	if snap.Confirmed == nil {
		return nil, domain.ErrNotReady
	}
	pts, err := domain.CurrentVsNew(snap.Confirmed, region)
	if err != nil {
		return nil, err
	}
	out := make([]DataPoint, len(pts))
	for i, p := range pts {
		out[i] = DataPoint{Date: p.Date, X: p.X, Y: p.Y}
	}
	return []Series{{Name: "Confirmed", Points: out}}, nil
}

func timePoints(pts []domain.Point) []DataPoint {
	out := make([]DataPoint, len(pts))
	for i, p := range pts {
		out[i] = DataPoint{Date: p.Date, X: float64(p.Date.Unix()), Y: p.Value}
	}
	return out
}
