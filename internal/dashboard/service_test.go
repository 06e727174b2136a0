package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

type staticSource struct {
	snap *domain.Snapshot
}

func (s staticSource) Current() (*domain.Snapshot, bool) {
	return s.snap, s.snap != nil
}

func day(d int) time.Time {
	return time.Date(2020, 3, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshot() *domain.Snapshot {
	dates := []time.Time{day(1), day(2), day(3)}
	return &domain.Snapshot{
		Version:   4,
		FetchedAt: time.Date(2020, 3, 3, 18, 0, 0, 0, time.UTC),
		Confirmed: domain.NewSeriesTable(dates, map[string][]int64{
			"Italy": {100, 100, 200},
			"Spain": {5, 5, 12},
			"Chad":  {0, 0, 1},
		}),
		Recovered: domain.NewSeriesTable(dates, map[string][]int64{
			"Italy": {0, 10, 20},
			"Spain": {0, 0, 1},
			"Chad":  {0, 0, 0},
		}),
		Deaths: domain.NewSeriesTable(dates, map[string][]int64{
			"Italy": {0, 5, 30},
			"Spain": {0, 0, 0},
			"Chad":  {0, 0, 0},
		}),
	}
}

func TestCatalog(t *testing.T) {
	defs := Catalog()

	ids := make([]ChartID, len(defs))
	for i, d := range defs {
		ids[i] = d.ID
	}
	assert.Equal(t, []ChartID{ConfirmedGrowth, RecoveredGrowth, ConfirmedRecovered, Deaths, DeathRate, CurrentVsNew}, ids)

	def, ok := Lookup(DeathRate)
	require.True(t, ok)
	assert.Equal(t, KindBars, def.Kind)
	assert.Equal(t, Axis{Label: "Death rate (%)", Scale: ScaleLinear, Min: 0, Max: 10}, def.Y)

	def, ok = Lookup(CurrentVsNew)
	require.True(t, ok)
	assert.Equal(t, ScaleLog, def.X.Scale)
	assert.Equal(t, 1e6, def.X.Max)
	assert.Equal(t, 1e5, def.Y.Max)

	_, ok = Lookup("hospitalised")
	assert.False(t, ok)
}

func TestService_Chart(t *testing.T) {
	svc := NewService(staticSource{testSnapshot()}, []string{"Spain", "Italy"})
	ctx := context.Background()

	t.Run("growth bars", func(t *testing.T) {
		c, err := svc.Chart(ctx, ConfirmedGrowth, "Italy")
		require.NoError(t, err)

		assert.Equal(t, "Italy", c.Region)
		assert.Equal(t, uint64(4), c.Version)
		require.Len(t, c.Series, 1)
		want := []DataPoint{
			{Date: day(2), X: float64(day(2).Unix()), Y: 0},
			{Date: day(3), X: float64(day(3).Unix()), Y: 100},
		}
		if diff := cmp.Diff(want, c.Series[0].Points); diff != "" {
			t.Errorf("points mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("confirmed and recovered curves", func(t *testing.T) {
		c, err := svc.Chart(ctx, ConfirmedRecovered, "Italy")
		require.NoError(t, err)

		require.Len(t, c.Series, 2)
		assert.Equal(t, "Confirmed", c.Series[0].Name)
		assert.Equal(t, "Recovered", c.Series[1].Name)
		assert.Len(t, c.Series[1].Points, 3)
		assert.Equal(t, 20.0, c.Series[1].Points[2].Y)
	})

	t.Run("death rate", func(t *testing.T) {
		c, err := svc.Chart(ctx, DeathRate, "Italy")
		require.NoError(t, err)

		pts := c.Series[0].Points
		require.Len(t, pts, 3)
		assert.Equal(t, 0.0, pts[0].Y)
		assert.Equal(t, 12.0, pts[2].Y)
	})

	t.Run("current vs new scatter", func(t *testing.T) {
		c, err := svc.Chart(ctx, CurrentVsNew, "Spain")
		require.NoError(t, err)

		assert.Equal(t, KindScatter, c.Kind)
		assert.Equal(t, []DataPoint{
			{Date: day(2), X: 5, Y: 0},
			{Date: day(3), X: 12, Y: 7},
		}, c.Series[0].Points)
	})

	t.Run("unknown chart", func(t *testing.T) {
		_, err := svc.Chart(ctx, "hospitalised", "Italy")

		var uErr *domain.UndefinedMetricError
		require.True(t, errors.As(err, &uErr))
		assert.Contains(t, uErr.Reason, "unknown chart")
	})

	t.Run("region outside supported set", func(t *testing.T) {
		_, err := svc.Chart(ctx, Deaths, "Chad")

		var uErr *domain.UndefinedMetricError
		require.True(t, errors.As(err, &uErr))
		assert.Equal(t, "Chad", uErr.Region)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.Chart(cctx, Deaths, "Italy")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestService_ChartRegionMissingFromSnapshot(t *testing.T) {
	svc := NewService(staticSource{testSnapshot()}, []string{"Iran"})

	_, err := svc.Chart(context.Background(), Deaths, "Iran")

	var uErr *domain.UndefinedMetricError
	require.True(t, errors.As(err, &uErr))
	assert.Equal(t, "unknown region", uErr.Reason)
}

func TestService_NotReady(t *testing.T) {
	svc := NewService(staticSource{}, []string{"Italy"})

	_, err := svc.Chart(context.Background(), Deaths, "Italy")
	assert.ErrorIs(t, err, domain.ErrNotReady)

	_, err = svc.Summary()
	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestService_Regions(t *testing.T) {
	svc := NewService(staticSource{}, []string{"Spain", "Italy", "Korea, South"})

	regions := svc.Regions()
	assert.Equal(t, []string{"Italy", "Korea, South", "Spain"}, regions)

	regions[0] = "mutated"
	assert.Equal(t, "Italy", svc.Regions()[0])
}

func TestService_Summary(t *testing.T) {
	svc := NewService(staticSource{testSnapshot()}, []string{"Italy", "Iran"})

	sum, err := svc.Summary()
	require.NoError(t, err)

	assert.Equal(t, uint64(4), sum.Version)
	assert.Equal(t, "2020-03-01", sum.FirstDate)
	assert.Equal(t, "2020-03-03", sum.LastDate)
	assert.Equal(t, 3, sum.Regions)
	assert.Equal(t, map[string]Totals{"Italy": {Confirmed: 200, Recovered: 20, Deaths: 30}}, sum.Latest)
}

func TestChartFor_IgnoresRegionSet(t *testing.T) {
	c, err := ChartFor(testSnapshot(), Deaths, "Chad")
	require.NoError(t, err)
	assert.Len(t, c.Series[0].Points, 3)
}

func TestSnapshotFunc_ReadsLazily(t *testing.T) {
	var snap *domain.Snapshot
	svc := NewService(SnapshotFunc(func() (*domain.Snapshot, bool) { return snap, snap != nil }), []string{"Italy"})

	_, err := svc.Snapshot()
	require.ErrorIs(t, err, domain.ErrNotReady)

	snap = testSnapshot()
	got, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Same(t, snap, got)
}
