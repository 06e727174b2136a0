package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

const jhuBase = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series/"

// Default source locations and region set.
var (
	DefaultConfirmedURL = jhuBase + "time_series_covid19_confirmed_global.csv"
	DefaultRecoveredURL = jhuBase + "time_series_covid19_recovered_global.csv"
	DefaultDeathURL     = jhuBase + "time_series_covid19_deaths_global.csv"

	DefaultRegions = []string{
		"China", "Germany", "Italy", "France", "Austria", "Spain", "US",
		"Indonesia", "India", "Switzerland", "Korea, South", "Singapore",
		"United Kingdom", "Iran",
	}
)

// Sources holds the location of each upstream CSV. A location is an
// http(s) URL, a file:// URL, or a bare filesystem path.
type Sources struct {
	Confirmed string `yaml:"confirmed"`
	Recovered string `yaml:"recovered"`
	Death     string `yaml:"death"`
}

// Config holds all service settings. Values come from built-in defaults,
// then the optional YAML file named by DASHBOARD_CONFIG_FILE, then
// environment variables.
type Config struct {
	Sources Sources  `yaml:"sources"`
	Regions []string `yaml:"regions"`

	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout"`

	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Chart rendering.
	ChartCacheSize int `yaml:"chart_cache_size"`
	ChartWidth     int `yaml:"chart_width"`
	ChartHeight    int `yaml:"chart_height"`

	// WatchLocalSources triggers a refresh when a local source file changes.
	WatchLocalSources bool `yaml:"watch_local_sources"`

	// Kafka snapshot notifications; disabled when KafkaBrokers is empty.
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

// KafkaEnabled reports whether snapshot events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from the optional config file and environment
// variables, applying defaults where unset.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("DASHBOARD_CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	sort.Strings(cfg.Regions)
	return cfg, nil
}

func defaults() *Config {
	regions := make([]string, len(DefaultRegions))
	copy(regions, DefaultRegions)

	return &Config{
		Sources: Sources{
			Confirmed: DefaultConfirmedURL,
			Recovered: DefaultRecoveredURL,
			Death:     DefaultDeathURL,
		},
		Regions:         regions,
		RefreshInterval: time.Hour,
		FetchTimeout:    30 * time.Second,
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 10 * time.Second,
		ChartCacheSize:  256,
		ChartWidth:      700,
		ChartHeight:     400,
		KafkaTopic:      "covid-snapshots",
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse yaml %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Sources.Confirmed = sharedcfg.EnvOrDefault("SOURCE_CONFIRMED_URL", cfg.Sources.Confirmed)
	cfg.Sources.Recovered = sharedcfg.EnvOrDefault("SOURCE_RECOVERED_URL", cfg.Sources.Recovered)
	cfg.Sources.Death = sharedcfg.EnvOrDefault("SOURCE_DEATH_URL", cfg.Sources.Death)

	if v := os.Getenv("REGIONS"); v != "" {
		cfg.Regions = parseRegions(v)
	}

	cfg.HTTPAddr = sharedcfg.EnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = sharedcfg.EnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = sharedcfg.EnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.KafkaTopic = sharedcfg.EnvOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}

	if os.Getenv("SHUTDOWN_TIMEOUT") != "" {
		d, err := sharedcfg.ParseShutdownTimeout()
		if err != nil {
			return err
		}
		cfg.ShutdownTimeout = d
	}

	var err error
	if cfg.RefreshInterval, err = envDuration("REFRESH_INTERVAL", cfg.RefreshInterval); err != nil {
		return err
	}
	if cfg.FetchTimeout, err = envDuration("FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return err
	}
	if cfg.ChartCacheSize, err = envInt("CHART_CACHE_SIZE", cfg.ChartCacheSize); err != nil {
		return err
	}
	if cfg.ChartWidth, err = envInt("CHART_WIDTH", cfg.ChartWidth); err != nil {
		return err
	}
	if cfg.ChartHeight, err = envInt("CHART_HEIGHT", cfg.ChartHeight); err != nil {
		return err
	}
	if cfg.WatchLocalSources, err = envBool("WATCH_LOCAL_SOURCES", cfg.WatchLocalSources); err != nil {
		return err
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.Sources.Confirmed == "" || cfg.Sources.Recovered == "" || cfg.Sources.Death == "" {
		return errors.New("all three source locations are required")
	}
	if len(cfg.Regions) == 0 {
		return errors.New("REGIONS must name at least one region")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("invalid REFRESH_INTERVAL: must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return errors.New("invalid FETCH_TIMEOUT: must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("invalid SHUTDOWN_TIMEOUT: must be positive")
	}
	if cfg.ChartCacheSize <= 0 {
		return errors.New("invalid CHART_CACHE_SIZE: must be positive")
	}
	if cfg.ChartWidth <= 0 || cfg.ChartHeight <= 0 {
		return errors.New("invalid CHART_WIDTH/CHART_HEIGHT: must be positive")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// parseRegions splits a semicolon-separated region list. Commas are not
// separators because JHU region names such as "Korea, South" contain them.
func parseRegions(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range strings.Split(s, ";") {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
