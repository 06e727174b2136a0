package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	RefresherRunning prometheus.Gauge

	// Refresh loop metrics.
	Refreshes           *prometheus.CounterVec // labels: outcome={success,failure}
	RefreshDuration     prometheus.Histogram
	SnapshotVersion     prometheus.Gauge
	SnapshotLastSuccess prometheus.Gauge
	SnapshotRegions     prometheus.Gauge

	// Source fetch metrics.
	SourceFetchDuration *prometheus.HistogramVec // labels: source
	SourceBytes         *prometheus.CounterVec   // labels: source
	SourceErrors        *prometheus.CounterVec   // labels: source

	// Chart rendering metrics.
	ChartRenders        *prometheus.CounterVec // labels: chart
	ChartRenderDuration prometheus.Histogram
	ChartCache          *prometheus.CounterVec // labels: result={hit,miss}

	// Publish fan-out metrics.
	NotifyErrors     *prometheus.CounterVec // labels: publisher
	WebSocketClients prometheus.Gauge
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsOn creates all dashboard metrics and registers them with reg.
func NewMetricsOn(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefresherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresher_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh attempts by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-reshape-publish cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SnapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_version",
			Help:      "Version of the currently published snapshot, 0 before the first publish.",
		}),
		SnapshotLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		SnapshotRegions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_regions",
			Help:      "Number of regions in the current confirmed table.",
		}),
		SourceFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Source download and parse duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		SourceBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_bytes_total",
			Help:      "Bytes read from each source.",
		}, []string{"source"}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Failed fetches by source.",
		}, []string{"source"}),
		ChartRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_renders_total",
			Help:      "PNG renders by chart.",
		}, []string{"chart"}),
		ChartRenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chart_render_duration_seconds",
			Help:      "Duration of a single PNG render.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ChartCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chart_cache_total",
			Help:      "Rendered chart cache lookups by result.",
		}, []string{"result"}),
		NotifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Snapshot notifications that failed, by publisher.",
		}, []string{"publisher"}),
		WebSocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected dashboard WebSocket clients.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RefresherRunning,
		m.Refreshes,
		m.RefreshDuration,
		m.SnapshotVersion,
		m.SnapshotLastSuccess,
		m.SnapshotRegions,
		m.SourceFetchDuration,
		m.SourceBytes,
		m.SourceErrors,
		m.ChartRenders,
		m.ChartRenderDuration,
		m.ChartCache,
		m.NotifyErrors,
		m.WebSocketClients,
	}
}
