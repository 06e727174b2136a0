package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// ErrNoData is returned when a chart has no point that can be drawn on its axes.
var ErrNoData = errors.New("chart has no drawable points")

const (
	dateTicks    = 8
	linearTicks  = 5
	dateLabel    = "Jan 2"
	dateLabelLog = "Jan 2 06"
)

var palette = []drawing.Color{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
}

// transparent is non-zero so go-chart does not substitute its default stroke.
var transparent = drawing.Color{R: 255, G: 255, B: 255, A: 0}

// Renderer draws dashboard charts as PNG images.
type Renderer struct {
	width   int
	height  int
	metrics *observability.Metrics
}

// NewRenderer creates a Renderer producing images of the given size.
func NewRenderer(width, height int, metrics *observability.Metrics) *Renderer {
	return &Renderer{width: width, height: height, metrics: metrics}
}

// Render writes c to w as a PNG. Nothing is written when an error is returned.
func (r *Renderer) Render(ctx context.Context, c *dashboard.Chart, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	ch, err := r.build(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := ch.Render(gochart.PNG, &buf); err != nil {
		return fmt.Errorf("render %s: %w", c.ID, err)
	}
	r.metrics.ChartRenders.WithLabelValues(string(c.ID)).Inc()
	r.metrics.ChartRenderDuration.Observe(time.Since(start).Seconds())

	_, err = buf.WriteTo(w)
	return err
}

func (r *Renderer) build(c *dashboard.Chart) (*gochart.Chart, error) {
	xs := newAxisScale(c.X)
	ys := newAxisScale(c.Y)

	var (
		series []gochart.Series
		xMin   = math.Inf(1)
		xMax   = math.Inf(-1)
	)
	for i, s := range c.Series {
		px, py := project(s.Points, xs, ys)
		if len(px) == 0 {
			continue
		}
		for _, x := range px {
			xMin = math.Min(xMin, x)
			xMax = math.Max(xMax, x)
		}
		series = append(series, r.series(c.Kind, s.Name, px, py, ys.low(), palette[i%len(palette)]))
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}

	ch := &gochart.Chart{
		Title:      c.Title + " - " + c.Region,
		Width:      r.width,
		Height:     r.height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      xs.xAxis(xMin, xMax),
		YAxis:      ys.yAxis(),
		Series:     series,
	}
	if len(series) > 1 {
		ch.Elements = []gochart.Renderable{gochart.Legend(ch)}
	}
	return ch, nil
}

func (r *Renderer) series(kind dashboard.Kind, name string, xs, ys []float64, base float64, col drawing.Color) gochart.Series {
	switch kind {
	case dashboard.KindBars:
		sx := make([]float64, 0, 3*len(xs))
		sy := make([]float64, 0, 3*len(ys))
		for i := range xs {
			sx = append(sx, xs[i], xs[i], xs[i])
			sy = append(sy, base, ys[i], base)
		}
		return gochart.ContinuousSeries{
			Name:    name,
			XValues: sx,
			YValues: sy,
			Style:   gochart.Style{StrokeWidth: 2, StrokeColor: col},
		}
	case dashboard.KindScatter:
		xs, ys = padSingle(xs, ys)
		return gochart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   gochart.Style{StrokeWidth: 1, StrokeColor: transparent, DotWidth: 4, DotColor: col},
		}
	default:
		xs, ys = padSingle(xs, ys)
		return gochart.ContinuousSeries{
			Name:    name,
			XValues: xs,
			YValues: ys,
			Style:   gochart.Style{StrokeWidth: 2, StrokeColor: col},
		}
	}
}

// project maps points into plot coordinates, dropping those an axis cannot
// show and clamping the rest into the axis range.
func project(pts []dashboard.DataPoint, xs, ys axisScale) ([]float64, []float64) {
	px := make([]float64, 0, len(pts))
	py := make([]float64, 0, len(pts))
	for _, p := range pts {
		x, ok := xs.plot(p)
		if !ok {
			continue
		}
		y, ok := ys.value(p.Y)
		if !ok {
			continue
		}
		px = append(px, x)
		py = append(py, y)
	}
	return px, py
}

// padSingle duplicates a lone point; go-chart needs two values to size a series.
func padSingle(xs, ys []float64) ([]float64, []float64) {
	if len(xs) != 1 {
		return xs, ys
	}
	return []float64{xs[0], xs[0]}, []float64{ys[0], ys[0]}
}

type axisScale struct {
	dashboard.Axis
}

func newAxisScale(a dashboard.Axis) axisScale {
	if a.Scale != dashboard.ScaleTime && a.Max <= a.Min {
		a.Max = a.Min + 1
	}
	if a.Scale == dashboard.ScaleLog && a.Min <= 0 {
		a.Min = 1
		if a.Max <= a.Min {
			a.Max = 10
		}
	}
	return axisScale{a}
}

// plot returns the x coordinate of p on this axis.
func (a axisScale) plot(p dashboard.DataPoint) (float64, bool) {
	if a.Scale == dashboard.ScaleTime {
		return gochart.TimeToFloat64(p.Date), true
	}
	return a.value(p.X)
}

// value clamps v into the axis range and, on log axes, returns log10(v).
// Non-finite values, and non-positive values on log axes, are not drawable.
func (a axisScale) value(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	switch a.Scale {
	case dashboard.ScaleLog:
		if v <= 0 {
			return 0, false
		}
		return math.Log10(clamp(v, a.Min, a.Max)), true
	default:
		return clamp(v, a.Min, a.Max), true
	}
}

// low is the plotted bottom of the axis, used as the bar baseline.
func (a axisScale) low() float64 {
	if a.Scale == dashboard.ScaleLog {
		return math.Log10(a.Min)
	}
	return a.Min
}

func (a axisScale) plotRange() (float64, float64) {
	if a.Scale == dashboard.ScaleLog {
		return math.Log10(a.Min), math.Log10(a.Max)
	}
	return a.Min, a.Max
}

func (a axisScale) ticks() []gochart.Tick {
	if a.Scale == dashboard.ScaleLog {
		return decadeTicks(a.Min, a.Max)
	}
	return evenTicks(a.Min, a.Max, linearTicks)
}

func (a axisScale) xAxis(dataMin, dataMax float64) gochart.XAxis {
	if a.Scale != dashboard.ScaleTime {
		lo, hi := a.plotRange()
		return gochart.XAxis{Name: a.Label, Range: &gochart.ContinuousRange{Min: lo, Max: hi}, Ticks: a.ticks()}
	}
	if dataMax <= dataMin {
		dataMax = dataMin + float64(24*time.Hour)
	}
	return gochart.XAxis{
		Name:  a.Label,
		Range: &gochart.ContinuousRange{Min: dataMin, Max: dataMax},
		Ticks: timeTicks(dataMin, dataMax, dateTicks),
	}
}

func (a axisScale) yAxis() gochart.YAxis {
	lo, hi := a.plotRange()
	return gochart.YAxis{Name: a.Label, Range: &gochart.ContinuousRange{Min: lo, Max: hi}, Ticks: a.ticks()}
}

func evenTicks(lo, hi float64, n int) []gochart.Tick {
	step := (hi - lo) / float64(n-1)
	ticks := make([]gochart.Tick, n)
	for i := range ticks {
		v := lo + float64(i)*step
		ticks[i] = gochart.Tick{Value: v, Label: formatNumber(v)}
	}
	return ticks
}

// decadeTicks returns one tick per power of ten, positioned in log10 space.
func decadeTicks(lo, hi float64) []gochart.Tick {
	first := int(math.Floor(math.Log10(lo)))
	last := int(math.Ceil(math.Log10(hi)))
	ticks := make([]gochart.Tick, 0, last-first+1)
	for k := first; k <= last; k++ {
		ticks = append(ticks, gochart.Tick{Value: float64(k), Label: formatNumber(math.Pow(10, float64(k)))})
	}
	return ticks
}

func timeTicks(lo, hi float64, n int) []gochart.Tick {
	layout := dateLabel
	if time.Duration(hi-lo) > 365*24*time.Hour {
		layout = dateLabelLog
	}
	step := (hi - lo) / float64(n-1)
	ticks := make([]gochart.Tick, n)
	for i := range ticks {
		v := lo + float64(i)*step
		ticks[i] = gochart.Tick{Value: v, Label: time.Unix(0, int64(v)).UTC().Format(layout)}
	}
	return ticks
}

func formatNumber(v float64) string {
	switch {
	case v >= 1e6:
		return trimFloat(v/1e6) + "M"
	case v >= 1e3:
		return trimFloat(v/1e3) + "k"
	default:
		return trimFloat(v)
	}
}

func trimFloat(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
