// Package cmd provides the commands of the covidstats CLI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/source"
	"github.com/couchcryptid/covid-dashboard/internal/config"
	"github.com/couchcryptid/covid-dashboard/internal/domain"
	"github.com/couchcryptid/covid-dashboard/internal/observability"
	"github.com/couchcryptid/covid-dashboard/internal/pipeline"
)

// options are the persistent flags shared by every command.
type options struct {
	configFile string
	confirmed  string
	recovered  string
	death      string
	verbose    bool
}

// NewRootCommand builds the covidstats command tree.
func NewRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "covidstats",
		Short: "Inspect the JHU CSSE COVID-19 time series",
		Long: `covidstats downloads the confirmed, recovered and death time series once
and answers a single question about them.

Examples:
  covidstats regions
  covidstats chart death-rate Italy
  covidstats chart current-vs-new "Korea, South" --format json
  covidstats render deaths Spain -o spain-deaths.png`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configFile, "config", "", "YAML config file (default $DASHBOARD_CONFIG_FILE)")
	pf.StringVar(&o.confirmed, "confirmed", "", "confirmed cases CSV location (URL or path)")
	pf.StringVar(&o.recovered, "recovered", "", "recovered cases CSV location (URL or path)")
	pf.StringVar(&o.death, "death", "", "death cases CSV location (URL or path)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(newRegionsCommand(o))
	root.AddCommand(newChartCommand(o))
	root.AddCommand(newRenderCommand(o))
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *options) load() (*config.Config, error) {
	if o.configFile != "" {
		if err := os.Setenv("DASHBOARD_CONFIG_FILE", o.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.confirmed != "" {
		cfg.Sources.Confirmed = o.confirmed
	}
	if o.recovered != "" {
		cfg.Sources.Recovered = o.recovered
	}
	if o.death != "" {
		cfg.Sources.Death = o.death
	}
	return cfg, nil
}

// refresh loads configuration and performs a single refresh.
func (o *options) refresh(ctx context.Context) (*config.Config, *domain.Snapshot, *observability.Metrics, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewConsoleLogger(level)
	metrics := observability.NewMetricsOn(prometheus.NewRegistry())

	client := source.NewClient(source.Locations(cfg.Sources), metrics, logger)
	r := pipeline.New(client, pipeline.NewReshaper(cfg.Regions, logger), logger, metrics,
		pipeline.WithFetchTimeout(cfg.FetchTimeout),
	)
	snap, err := r.RefreshOnce(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("refresh: %w", err)
	}
	return cfg, snap, metrics, nil
}
