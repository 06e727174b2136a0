package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// SnapshotSource provides the current snapshot without blocking.
type SnapshotSource interface {
	Current() (*domain.Snapshot, bool)
}

// SnapshotFunc adapts a function to SnapshotSource.
type SnapshotFunc func() (*domain.Snapshot, bool)

func (f SnapshotFunc) Current() (*domain.Snapshot, bool) { return f() }

// Service answers chart requests for a closed set of regions.
type Service struct {
	src     SnapshotSource
	regions []string
	known   map[string]bool
}

// NewService creates a Service serving the given regions.
func NewService(src SnapshotSource, regions []string) *Service {
	sorted := append([]string(nil), regions...)
	sort.Strings(sorted)

	known := make(map[string]bool, len(sorted))
	for _, r := range sorted {
		known[r] = true
	}
	return &Service{src: src, regions: sorted, known: known}
}

// Regions returns the sorted supported regions.
func (s *Service) Regions() []string {
	return append([]string(nil), s.regions...)
}

// Catalog returns every chart definition in dashboard order.
func (s *Service) Catalog() []Definition {
	return Catalog()
}

// Snapshot returns the current snapshot or domain.ErrNotReady.
func (s *Service) Snapshot() (*domain.Snapshot, error) {
	snap, ok := s.src.Current()
	if !ok {
		return nil, domain.ErrNotReady
	}
	return snap, nil
}

// Chart computes chart id for region against the current snapshot. The
// snapshot is loaded once so the result never mixes two versions.
func (s *Service) Chart(ctx context.Context, id ChartID, region string) (*Chart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, ok := lookup(id)
	if !ok {
		return nil, &domain.UndefinedMetricError{
			Metric: "chart",
			Region: region,
			Reason: fmt.Sprintf("unknown chart %q", id),
		}
	}
	if !s.known[region] {
		return nil, &domain.UndefinedMetricError{
			Metric: string(id),
			Region: region,
			Reason: "region not supported",
		}
	}

	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return build(e, snap, region)
}

// ChartFor computes chart id for region against snap without checking the
// configured region set.
func ChartFor(snap *domain.Snapshot, id ChartID, region string) (*Chart, error) {
	e, ok := lookup(id)
	if !ok {
		return nil, &domain.UndefinedMetricError{
			Metric: "chart",
			Region: region,
			Reason: fmt.Sprintf("unknown chart %q", id),
		}
	}
	return build(e, snap, region)
}

func build(e entry, snap *domain.Snapshot, region string) (*Chart, error) {
	series, err := e.build(snap, region)
	if err != nil {
		return nil, err
	}
	return &Chart{
		Definition: e.def,
		Region:     region,
		Version:    snap.Version,
		Series:     series,
	}, nil
}

// Totals are the latest cumulative counts of one region.
type Totals struct {
	Confirmed int64 `json:"confirmed"`
	Recovered int64 `json:"recovered"`
	Deaths    int64 `json:"deaths"`
}

// Summary describes a snapshot without its series.
type Summary struct {
	Version   uint64            `json:"version"`
	FetchedAt time.Time         `json:"fetched_at"`
	FirstDate string            `json:"first_date"`
	LastDate  string            `json:"last_date"`
	Regions   int               `json:"regions"`
	Latest    map[string]Totals `json:"latest,omitempty"`
}

// Summarize builds a Summary of snap with latest totals for each of regions
// present in the snapshot.
func Summarize(snap *domain.Snapshot, regions []string) Summary {
	first, last := snap.DateSpan()
	sum := Summary{
		Version:   snap.Version,
		FetchedAt: snap.FetchedAt,
		FirstDate: first.Format(time.DateOnly),
		LastDate:  last.Format(time.DateOnly),
	}
	if snap.Confirmed != nil {
		sum.Regions = len(snap.Confirmed.Regions())
	}

	for _, r := range regions {
		c, ok := latest(snap.Confirmed, r)
		if !ok {
			continue
		}
		rec, _ := latest(snap.Recovered, r)
		d, _ := latest(snap.Deaths, r)
		if sum.Latest == nil {
			sum.Latest = make(map[string]Totals, len(regions))
		}
		sum.Latest[r] = Totals{Confirmed: c, Recovered: rec, Deaths: d}
	}
	return sum
}

// Summary summarises the current snapshot for the supported regions.
func (s *Service) Summary() (Summary, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return Summary{}, err
	}
	return Summarize(snap, s.regions), nil
}

func latest(t *domain.SeriesTable, region string) (int64, bool) {
	if t == nil {
		return 0, false
	}
	return t.Latest(region)
}
