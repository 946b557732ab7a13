// Package config holds the runtime configuration for an update cycle.
// Commands hydrate it from a config file and environment via viper, then
// hand it to the engine wiring.
package config

import (
	"github.com/oneconcern/trawler/pkg/errors"
)

// Storage driver names.
const (
	DriverBadger  = "badger"
	DriverLocalFS = "localfs"
)

// ErrInvalidConfig indicates a configuration the cycle cannot run with.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	// DefaultDataURI locates the seed document. A cycle cannot run without it.
	DefaultDataURI string `mapstructure:"default_data_uri" json:"default_data_uri" yaml:"default_data_uri"`
	// CorrectionsURI locates the corrections document. Empty skips the pass.
	CorrectionsURI string `mapstructure:"corrections_uri" json:"corrections_uri,omitempty" yaml:"corrections_uri,omitempty"`
	// ProgramListURI locates the program descriptor feed. Empty skips the
	// taxonomy feed layer.
	ProgramListURI string `mapstructure:"program_list_uri" json:"program_list_uri,omitempty" yaml:"program_list_uri,omitempty"`
	// Concurrency caps how many repos are synchronized at once.
	Concurrency int  `mapstructure:"concurrency" json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	ForceUpdate bool `mapstructure:"force_update" json:"force_update,omitempty" yaml:"force_update,omitempty"`
	// LogLevel is one of debug, info, warn, none.
	LogLevel string `mapstructure:"log_level" json:"log_level,omitempty" yaml:"log_level,omitempty"`
	// WatchProcesses names consumer processes whose pids are recorded each
	// cycle, so they can be signaled when fresh data lands.
	WatchProcesses []string `mapstructure:"watch_processes" json:"watch_processes,omitempty" yaml:"watch_processes,omitempty"`

	Storage StorageConfig `mapstructure:"storage" json:"storage,omitempty" yaml:"storage,omitempty"`
	Sources SourcesConfig `mapstructure:"sources" json:"sources,omitempty" yaml:"sources,omitempty"`
	Review  ReviewConfig  `mapstructure:"review" json:"review,omitempty" yaml:"review,omitempty"`
	Members MembersConfig `mapstructure:"members" json:"members,omitempty" yaml:"members,omitempty"`
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// StorageConfig selects and locates the runtime store backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" json:"driver,omitempty" yaml:"driver,omitempty"`
	Path   string `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
}

// SourcesConfig locates local repo mirrors.
type SourcesConfig struct {
	Root         string `mapstructure:"root" json:"root,omitempty" yaml:"root,omitempty"`
	CollectStats bool   `mapstructure:"collect_stats" json:"collect_stats,omitempty" yaml:"collect_stats,omitempty"`
}

// ReviewConfig carries the review system connection. An empty host disables
// review harvesting.
type ReviewConfig struct {
	Host     string `mapstructure:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port,omitempty" yaml:"port,omitempty"`
	Username string `mapstructure:"username" json:"username,omitempty" yaml:"username,omitempty"`
	KeyFile  string `mapstructure:"key_file" json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// MembersConfig tunes the member roster walk.
type MembersConfig struct {
	LookAhead  int `mapstructure:"look_ahead" json:"look_ahead,omitempty" yaml:"look_ahead,omitempty"`
	RescanDays int `mapstructure:"rescan_days" json:"rescan_days,omitempty" yaml:"rescan_days,omitempty"`
}

// MetricsConfig points at the influxdb backend. An empty URL disables
// metrics publishing.
type MetricsConfig struct {
	URL      string `mapstructure:"url" json:"url,omitempty" yaml:"url,omitempty"`
	Database string `mapstructure:"database" json:"database,omitempty" yaml:"database,omitempty"`
}

// Default returns the configuration a bare deployment starts from.
func Default() Config {
	return Config{
		Concurrency: 4,
		LogLevel:    "info",
		Storage: StorageConfig{
			Driver: DriverBadger,
			Path:   ".trawler/runtime",
		},
		Sources: SourcesConfig{
			Root:         ".trawler/sources",
			CollectStats: true,
		},
		Review: ReviewConfig{
			Port: 29418,
		},
		Members: MembersConfig{
			LookAhead:  10,
			RescanDays: 30,
		},
		Metrics: MetricsConfig{
			Database: "trawler",
		},
	}
}

// Validate tells whether a cycle can run with this configuration.
func (c *Config) Validate() error {
	if c.DefaultDataURI == "" {
		return ErrInvalidConfig.WrapMessage("default_data_uri is required")
	}
	switch c.Storage.Driver {
	case DriverBadger, DriverLocalFS:
	default:
		return ErrInvalidConfig.WrapMessage("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Concurrency < 0 {
		return ErrInvalidConfig.WrapMessage("concurrency cannot be negative")
	}
	if c.Review.Host != "" && c.Review.Port <= 0 {
		return ErrInvalidConfig.WrapMessage("review host %q needs a port", c.Review.Host)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "none":
	default:
		return ErrInvalidConfig.WrapMessage("unknown log level %q", c.LogLevel)
	}
	return nil
}
