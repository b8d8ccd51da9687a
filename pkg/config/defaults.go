package config

import "time"

// ApplyDefaults fills unset fields with sensible defaults. It is called
// by LoadConfig after parsing and may be used directly on hand-built
// configs in tests.
func ApplyDefaults(cfg *Config) {
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 60 * time.Second
	}
	if cfg.API.PageLimit <= 0 {
		cfg.API.PageLimit = 1000
	}
	if cfg.API.MaxIdleConns <= 0 {
		cfg.API.MaxIdleConns = 10
	}
	if cfg.API.MaxIdleConnsPerHost <= 0 {
		cfg.API.MaxIdleConnsPerHost = 10
	}
	if cfg.API.IdleConnTimeout <= 0 {
		cfg.API.IdleConnTimeout = 90 * time.Second
	}

	if cfg.Export.OutputRoot == "" {
		cfg.Export.OutputRoot = "exports"
	}
	if cfg.Export.SampleSize <= 0 {
		cfg.Export.SampleSize = 1000
	}
	if cfg.Export.ProactiveDelay <= 0 {
		cfg.Export.ProactiveDelay = 3 * time.Second
	}
	if cfg.Export.ThrottleAfterRecords <= 0 {
		cfg.Export.ThrottleAfterRecords = 1000
	}
	if cfg.Export.MaxPages <= 0 {
		cfg.Export.MaxPages = 10000
	}

	if cfg.History.Path == "" {
		cfg.History.Path = "data/trawl.db"
	}
	if cfg.History.MaxOpenConns <= 0 {
		cfg.History.MaxOpenConns = 10
	}
	if cfg.History.MaxIdleConns <= 0 {
		cfg.History.MaxIdleConns = 5
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "text"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "trawl"
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = "export"
	}
}
