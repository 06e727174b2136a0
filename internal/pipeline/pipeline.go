package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
)

// Defaults used when no option overrides them.
const (
	DefaultInterval     = time.Hour
	DefaultFetchTimeout = 30 * time.Second
)

// Fetcher downloads one raw source table.
type Fetcher interface {
	Fetch(ctx context.Context, name domain.SourceName) (domain.RawTable, error)
}

// Reshaper converts a raw table into its date-indexed form.
type Reshaper interface {
	Reshape(ctx context.Context, raw domain.RawTable) (*domain.SeriesTable, error)
}

// Publisher is told about every newly published snapshot.
type Publisher interface {
	Publish(ctx context.Context, snap *domain.Snapshot) error
}

type namedPublisher struct {
	name string
	pub  Publisher
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithClock replaces the wall clock, typically with a clockwork.FakeClock in tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Refresher) { r.clock = c }
}

// WithInterval sets the delay between the end of one refresh attempt and the
// start of the next.
func WithInterval(d time.Duration) Option {
	return func(r *Refresher) { r.interval = d }
}

// WithFetchTimeout bounds the time allowed to download all three sources.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Refresher) { r.fetchTimeout = d }
}

// WithPublisher registers a publisher notified after each successful refresh.
// name labels failures in logs and metrics.
func WithPublisher(name string, p Publisher) Option {
	return func(r *Refresher) { r.publishers = append(r.publishers, namedPublisher{name: name, pub: p}) }
}

// Refresher owns the current snapshot. It is the only writer; any number of
// readers may call Current concurrently.
type Refresher struct {
	fetcher  Fetcher
	reshaper Reshaper
	logger   *slog.Logger
	metrics  *observability.Metrics

	clock        clockwork.Clock
	interval     time.Duration
	fetchTimeout time.Duration
	publishers   []namedPublisher

	current atomic.Pointer[domain.Snapshot]
	mu      sync.Mutex // serialises RefreshOnce
	trigger chan struct{}
}

// New creates a Refresher in the empty state.
func New(f Fetcher, rs Reshaper, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Refresher {
	r := &Refresher{
		fetcher:      f,
		reshaper:     rs,
		logger:       logger,
		metrics:      metrics,
		clock:        clockwork.NewRealClock(),
		interval:     DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		trigger:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Current returns the published snapshot, or false while none exists.
func (r *Refresher) Current() (*domain.Snapshot, bool) {
	s := r.current.Load()
	return s, s != nil
}

// CheckReadiness returns nil once a snapshot has been published.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if r.current.Load() == nil {
		return domain.ErrNotReady
	}
	return nil
}

// Trigger asks Run to refresh now instead of waiting for the interval.
// Requests made while one is already pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes immediately and then once per interval, or sooner when
// triggered, until ctx is cancelled. Failed attempts keep the previous
// snapshot and wait a full interval; there is no backoff.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.interval, "fetch_timeout", r.fetchTimeout)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	for {
		_, _ = r.RefreshOnce(ctx)

		if ctx.Err() != nil {
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}

		timer := r.clock.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case <-timer.Chan():
		case <-r.trigger:
			timer.Stop()
			r.logger.Debug("refresh triggered")
		}
	}
}

// RefreshOnce fetches and reshapes all three sources and, if every step
// succeeds, publishes them as a new snapshot. On failure the current snapshot
// is left untouched and the error is returned.
func (r *Refresher) RefreshOnce(ctx context.Context) (*domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	tables, err := r.fetchAll(ctx)
	if err != nil {
		r.metrics.Refreshes.WithLabelValues("failure").Inc()
		if ctx.Err() == nil {
			r.logger.Error("refresh failed, keeping previous snapshot",
				"error", err,
				"version", r.version(),
			)
		}
		return nil, err
	}

	snap := &domain.Snapshot{
		Version:   r.version() + 1,
		FetchedAt: r.clock.Now().UTC(),
		Confirmed: tables[0],
		Recovered: tables[1],
		Deaths:    tables[2],
	}
	r.current.Store(snap)

	r.metrics.Refreshes.WithLabelValues("success").Inc()
	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	r.metrics.SnapshotVersion.Set(float64(snap.Version))
	r.metrics.SnapshotLastSuccess.Set(float64(snap.FetchedAt.Unix()))
	r.metrics.SnapshotRegions.Set(float64(len(snap.Confirmed.Regions())))

	first, last := snap.DateSpan()
	r.logger.Info("snapshot published",
		"version", snap.Version,
		"first_date", first.Format(time.DateOnly),
		"last_date", last.Format(time.DateOnly),
		"regions", len(snap.Confirmed.Regions()),
		"duration", time.Since(start),
	)

	r.notify(ctx, snap)
	return snap, nil
}

// fetchAll downloads and reshapes the sources concurrently, returning them in
// domain.Sources order.
func (r *Refresher) fetchAll(ctx context.Context) ([]*domain.SeriesTable, error) {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	names := domain.Sources()
	tables := make([]*domain.SeriesTable, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			raw, err := r.fetcher.Fetch(gctx, name)
			if err != nil {
				return err
			}
			t, err := r.reshaper.Reshape(gctx, raw)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *Refresher) notify(ctx context.Context, snap *domain.Snapshot) {
	for _, p := range r.publishers {
		if err := p.pub.Publish(ctx, snap); err != nil {
			r.metrics.NotifyErrors.WithLabelValues(p.name).Inc()
			r.logger.Warn("snapshot notification failed",
				"publisher", p.name,
				"version", snap.Version,
				"error", fmt.Errorf("publish: %w", err),
			)
		}
	}
}

func (r *Refresher) version() uint64 {
	if s := r.current.Load(); s != nil {
		return s.Version
	}
	return 0
}
