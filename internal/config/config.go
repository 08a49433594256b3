// Package config loads settings from defaults, an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pable/go-cs-matchstats/internal/log"
)

var (
	ErrEmptyRoster     = errors.New("roster must name at least one player")
	ErrUnknownSink     = errors.New("unknown sink kind")
	ErrMissingEndpoint = errors.New("sink endpoint not configured")
	ErrNonPositive     = errors.New("value must be positive")
	ErrBadLevel        = errors.New("unknown log level")
	ErrBadTimezone     = errors.New("unknown timezone")
	ErrReadConfig      = errors.New("failed to read config file")
)

type SinkKind string

const (
	SinkAPI      SinkKind = "api"
	SinkSQLite   SinkKind = "sqlite"
	SinkPostgres SinkKind = "postgres"
)

// DefaultRoster is the tracked group used when none is configured.
var DefaultRoster = []string{"nifty", "Dybbis", "Togmannen", "Stutmunn", "martinsen"}

type Config struct {
	Roster            []string      `mapstructure:"roster"`
	UtilityWeapons    []string      `mapstructure:"utility_weapons"`
	SideLookbackTicks int           `mapstructure:"side_lookback_ticks"`
	Workers           int           `mapstructure:"workers"`
	Timezone          string        `mapstructure:"timezone"`
	Source            SourceConfig  `mapstructure:"source"`
	Sink              SinkConfig    `mapstructure:"sink"`
	Lock              LockConfig    `mapstructure:"lock"`
	Cleanup           CleanupConfig `mapstructure:"cleanup"`
	Log               LogConfig     `mapstructure:"log"`
	Metrics           MetricsConfig `mapstructure:"metrics"`
}

type SourceConfig struct {
	Dir       string `mapstructure:"dir"`
	Recursive bool   `mapstructure:"recursive"`
}

type SinkConfig struct {
	Kind        SinkKind      `mapstructure:"kind"`
	APIURL      string        `mapstructure:"api_url"`
	APIToken    string        `mapstructure:"api_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
}

// LockConfig selects the cross-host lock. An empty RedisURL keeps locking
// in-process.
type LockConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type CleanupConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Delay   time.Duration `mapstructure:"delay"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// legacyEnv maps keys to environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"sink.api_url":    "CS2_API_URL",
	"sink.api_token":  "CS2_API_TOKEN",
	"source.dir":      "download_folder",
	"cleanup.enabled": "clean",
}

func setDefaults(v *viper.Viper, defaultSQLitePath string) {
	v.SetDefault("roster", DefaultRoster)
	v.SetDefault("utility_weapons", []string{"hegrenade", "molotov", "incgrenade", "inferno"})
	v.SetDefault("side_lookback_ticks", 1000)
	v.SetDefault("workers", 4)
	v.SetDefault("timezone", "Local")

	v.SetDefault("source.dir", "")
	v.SetDefault("source.recursive", false)

	v.SetDefault("sink.kind", string(SinkAPI))
	v.SetDefault("sink.api_url", "")
	v.SetDefault("sink.api_token", "")
	v.SetDefault("sink.timeout", "30s")
	v.SetDefault("sink.sqlite_path", defaultSQLitePath)
	v.SetDefault("sink.postgres_dsn", "")

	v.SetDefault("lock.redis_url", "")
	v.SetDefault("lock.ttl", "1m")

	v.SetDefault("cleanup.enabled", false)
	v.SetDefault("cleanup.delay", "3h")

	v.SetDefault("log.level", string(log.Info))
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.textfile", "")
}

// New returns a viper instance with defaults and environment bindings.
// Environment names are MATCHSTATS_ followed by the upper-cased key with
// dots replaced by underscores.
func New(defaultSQLitePath string) *viper.Viper {
	v := viper.New()
	setDefaults(v, defaultSQLitePath)

	v.SetEnvPrefix("matchstats")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envName := "MATCHSTATS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		// Earlier names come first, so the prefixed name wins.
		_ = v.BindEnv(key, envName, legacy)
	}

	return v
}

// Load reads cfgFile when non-empty and decodes the merged settings.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Join(ErrReadConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config format: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem found, joined.
func (c Config) Validate() error {
	return errors.Join(c.ValidateDerivation(), c.validateSink())
}

// ValidateDerivation checks everything except the sink, for runs that
// never deliver.
func (c Config) ValidateDerivation() error {
	var errs []error

	if !hasName(c.Roster) {
		errs = append(errs, ErrEmptyRoster)
	}
	if c.SideLookbackTicks <= 0 {
		errs = append(errs, fmt.Errorf("side_lookback_ticks: %w", ErrNonPositive))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers: %w", ErrNonPositive))
	}
	if c.Cleanup.Enabled && c.Cleanup.Delay <= 0 {
		errs = append(errs, fmt.Errorf("cleanup.delay: %w", ErrNonPositive))
	}
	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("%w: %q", ErrBadLevel, c.Log.Level))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c Config) validateSink() error {
	if c.Sink.Timeout <= 0 {
		return fmt.Errorf("sink.timeout: %w", ErrNonPositive)
	}

	switch c.Sink.Kind {
	case SinkAPI:
		if c.Sink.APIURL == "" {
			return fmt.Errorf("%w: sink.api_url", ErrMissingEndpoint)
		}
	case SinkSQLite:
		if c.Sink.SQLitePath == "" {
			return fmt.Errorf("%w: sink.sqlite_path", ErrMissingEndpoint)
		}
	case SinkPostgres:
		if c.Sink.PostgresDSN == "" {
			return fmt.Errorf("%w: sink.postgres_dsn", ErrMissingEndpoint)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSink, c.Sink.Kind)
	}

	return nil
}

// Location resolves Timezone. An empty name means local time.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadTimezone, c.Timezone)
	}
	return loc, nil
}

func hasName(names []string) bool {
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			return true
		}
	}
	return false
}
