// Package config defines the trawl configuration model and its YAML
// loading, defaulting, validation, and environment override logic.
//
// Configuration is carried as an explicit struct passed into
// constructors; nothing reads ambient process state after loading.
package config

import "time"

// Config is the root configuration for trawl.
type Config struct {
	// API configures the analytics API client.
	API APIConfig `yaml:"api"`

	// Export configures the export pipeline.
	Export ExportConfig `yaml:"export"`

	// History configures the export run history store.
	History HistoryConfig `yaml:"history"`

	// Schedule configures recurring export runs.
	Schedule ScheduleConfig `yaml:"schedule"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// APIConfig contains the analytics API connection settings.
type APIConfig struct {
	// BaseURL is the API root, e.g. "https://api.example.com".
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates every request. Usually supplied via the
	// TRAWL_API_API_KEY environment variable rather than the file.
	APIKey string `yaml:"api_key"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// PageLimit is the page size requested when fetching records.
	PageLimit int `yaml:"page_limit"`

	// MaxIdleConns and MaxIdleConnsPerHost size the connection pool.
	MaxIdleConns        int `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout is how long idle connections are kept.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// ExportConfig contains export pipeline tuning.
type ExportConfig struct {
	// OutputRoot is the directory export trees are created under.
	OutputRoot string `yaml:"output_root"`

	// SampleSize is the record window used to infer the CSV header.
	SampleSize int `yaml:"sample_size"`

	// ProactiveDelay is the self-imposed delay between pages once
	// ThrottleAfterRecords records have been fetched.
	ProactiveDelay time.Duration `yaml:"proactive_delay"`

	// ThrottleAfterRecords is the cumulative record count after which
	// proactive throttling begins.
	ThrottleAfterRecords int `yaml:"throttle_after_records"`

	// MaxPages bounds one entity's pagination run.
	MaxPages int `yaml:"max_pages"`
}

// HistoryConfig contains the run history store settings.
type HistoryConfig struct {
	// Enabled turns run history recording on.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path"`

	// MaxOpenConns and MaxIdleConns size the connection pool.
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables Write-Ahead Logging.
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the wait when the database is locked.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// ScheduleConfig contains recurring export settings.
type ScheduleConfig struct {
	// Cron is a standard 5-field cron expression. Empty disables
	// scheduling.
	Cron string `yaml:"cron"`

	// WatchConfig reloads the configuration file when it changes
	// while running in scheduled mode.
	WatchConfig bool `yaml:"watch_config"`
}

// TelemetryConfig groups logging and metrics settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the output format: json or text.
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`

	// ListenAddress exposes /metrics in scheduled mode when set,
	// e.g. ":9105". One-shot runs never listen.
	ListenAddress string `yaml:"listen_address"`

	// Namespace and Subsystem prefix every metric name.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}
