package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/chart"
	"github.com/couchcryptid/covid-dashboard/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/covid-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/covid-dashboard/internal/adapter/source"
	"github.com/couchcryptid/covid-dashboard/internal/adapter/ws"
	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := source.NewClient(source.Locations(cfg.Sources), metrics, logger)
	reshaper := pipeline.NewReshaper(cfg.Regions, logger)

	// The service and hub read the refresher's snapshot; the refresher
	// publishes to the hub.
	var refresher *pipeline.Refresher
	svc := dashboard.NewService(dashboard.SnapshotFunc(func() (*domain.Snapshot, bool) {
		return refresher.Current()
	}), cfg.Regions)
	hub := ws.New(svc, metrics, logger)

	opts := []pipeline.Option{
		pipeline.WithInterval(cfg.RefreshInterval),
		pipeline.WithFetchTimeout(cfg.FetchTimeout),
		pipeline.WithPublisher("websocket", hub),
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher("kafka", writer))
		logger.Info("kafka snapshot events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka snapshot events disabled")
	}

	refresher = pipeline.New(client, reshaper, logger, metrics, opts...)

	renderer := chart.NewCachedRenderer(chart.NewRenderer(cfg.ChartWidth, cfg.ChartHeight, metrics), cfg.ChartCacheSize, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, svc, renderer, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go hub.Run(ctx)

	// Start refresher.
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	if cfg.WatchLocalSources {
		startWatch(ctx, cfg, refresher, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// startWatch triggers a refresh whenever a local source file changes.
func startWatch(ctx context.Context, cfg *config.Config, refresher *pipeline.Refresher, logger *slog.Logger) {
	var paths []string
	for _, loc := range []string{cfg.Sources.Confirmed, cfg.Sources.Recovered, cfg.Sources.Death} {
		if p, ok := source.LocalPath(loc); ok {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		logger.Warn("source watching enabled but no source is a local file")
		return
	}

	go func() {
		err := source.Watch(ctx, paths, func(path string) {
			logger.Info("local source changed", "path", path)
			refresher.Trigger()
		}, logger)
		if err != nil {
			logger.Error("source watch error", "error", err)
		}
	}()
}
