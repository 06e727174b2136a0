package chart

import (
	"bytes"
	"context"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

func datedPoints(values ...float64) []dashboard.DataPoint {
	pts := make([]dashboard.DataPoint, len(values))
	for i, v := range values {
		d := time.Date(2020, 3, 1+i, 0, 0, 0, 0, time.UTC)
		pts[i] = dashboard.DataPoint{Date: d, X: float64(d.Unix()), Y: v}
	}
	return pts
}

func chartWith(id dashboard.ChartID, series ...dashboard.Series) *dashboard.Chart {
	def, _ := dashboard.Lookup(id)
	return &dashboard.Chart{Definition: def, Region: "Italy", Version: 1, Series: series}
}

func TestRenderer_RendersEveryKind(t *testing.T) {
	tests := []struct {
		name  string
		chart *dashboard.Chart
	}{
		{"bars", chartWith(dashboard.ConfirmedGrowth, dashboard.Series{Name: "Confirmed", Points: datedPoints(10, 250, -20, 50)})},
		{"two curves", chartWith(dashboard.ConfirmedRecovered,
			dashboard.Series{Name: "Confirmed", Points: datedPoints(0, 3, 20, 400, 9000)},
			dashboard.Series{Name: "Recovered", Points: datedPoints(0, 0, 1, 50, 2000)},
		)},
		{"single point curve", chartWith(dashboard.Deaths, dashboard.Series{Name: "Deaths", Points: datedPoints(12)})},
		{"scatter", chartWith(dashboard.CurrentVsNew, dashboard.Series{Name: "Confirmed", Points: []dashboard.DataPoint{
			{X: 5, Y: 0}, {X: 12, Y: 7}, {X: 40, Y: 28}, {X: 2e7, Y: 3e6},
		}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetricsForTesting()
			r := NewRenderer(700, 400, metrics)

			var buf bytes.Buffer
			require.NoError(t, r.Render(context.Background(), tt.chart, &buf))

			cfg, err := png.DecodeConfig(&buf)
			require.NoError(t, err)
			assert.Equal(t, 700, cfg.Width)
			assert.Equal(t, 400, cfg.Height)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.ChartRenders.WithLabelValues(string(tt.chart.ID))), 0)
		})
	}
}

func TestRenderer_NoData(t *testing.T) {
	r := NewRenderer(700, 400, observability.NewMetricsForTesting())

	tests := []struct {
		name  string
		chart *dashboard.Chart
	}{
		{"no series", chartWith(dashboard.Deaths)},
		{"empty series", chartWith(dashboard.ConfirmedGrowth, dashboard.Series{Name: "Confirmed"})},
		{"all zero on log axis", chartWith(dashboard.Deaths, dashboard.Series{Name: "Deaths", Points: datedPoints(0, 0, 0)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := r.Render(context.Background(), tt.chart, &buf)
			assert.ErrorIs(t, err, ErrNoData)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestRenderer_CancelledContext(t *testing.T) {
	r := NewRenderer(700, 400, observability.NewMetricsForTesting())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Render(ctx, chartWith(dashboard.Deaths, dashboard.Series{Points: datedPoints(1, 2)}), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAxisScale_Value(t *testing.T) {
	linear := newAxisScale(dashboard.Axis{Scale: dashboard.ScaleLinear, Min: 0, Max: 200})
	log := newAxisScale(dashboard.Axis{Scale: dashboard.ScaleLog, Min: 1, Max: 1e6})

	tests := []struct {
		name   string
		axis   axisScale
		in     float64
		want   float64
		wantOK bool
	}{
		{"linear inside", linear, 42, 42, true},
		{"linear clamped high", linear, 350, 200, true},
		{"linear clamped low", linear, -100, 0, true},
		{"linear NaN", linear, math.NaN(), 0, false},
		{"log decade", log, 1000, 3, true},
		{"log clamped high", log, 1e9, 6, true},
		{"log fraction clamped to min", log, 0.5, 0, true},
		{"log zero dropped", log, 0, 0, false},
		{"log negative dropped", log, -7, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.axis.value(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNewAxisScale_DegenerateRange(t *testing.T) {
	a := newAxisScale(dashboard.Axis{Scale: dashboard.ScaleLinear, Min: 5, Max: 5})
	assert.Equal(t, 6.0, a.Max)

	l := newAxisScale(dashboard.Axis{Scale: dashboard.ScaleLog, Min: 0, Max: 0})
	assert.Equal(t, 1.0, l.Min)
	assert.Equal(t, 10.0, l.Max)
}

func TestDecadeTicks(t *testing.T) {
	ticks := decadeTicks(1, 1e6)

	require.Len(t, ticks, 7)
	labels := make([]string, len(ticks))
	for i, tk := range ticks {
		labels[i] = tk.Label
		assert.Equal(t, float64(i), tk.Value)
	}
	assert.Equal(t, []string{"1", "10", "100", "1k", "10k", "100k", "1M"}, labels)
}

func TestEvenTicks(t *testing.T) {
	ticks := evenTicks(0, 10, 5)

	require.Len(t, ticks, 5)
	assert.Equal(t, "0", ticks[0].Label)
	assert.Equal(t, "2.5", ticks[1].Label)
	assert.Equal(t, "10", ticks[4].Label)
}
