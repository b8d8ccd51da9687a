package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults,
// applies TRAWL_* environment overrides, and validates the result.
// Environment variables always take precedence over file values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigOrDefault behaves like LoadConfig but treats a missing file
// as an empty one, so trawl can run from flags and environment alone.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		var cfg Config
		ApplyDefaults(&cfg)
		applyEnvOverrides(&cfg)
		if err := Validate(&cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return &cfg, nil
	}
	return LoadConfig(path)
}

// applyEnvOverrides applies TRAWL_SECTION_FIELD environment variables.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}
	setInt := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				*dst = b
			}
		}
	}

	setString("TRAWL_API_BASE_URL", &cfg.API.BaseURL)
	setString("TRAWL_API_API_KEY", &cfg.API.APIKey)
	setDuration("TRAWL_API_TIMEOUT", &cfg.API.Timeout)
	setInt("TRAWL_API_PAGE_LIMIT", &cfg.API.PageLimit)

	setString("TRAWL_EXPORT_OUTPUT_ROOT", &cfg.Export.OutputRoot)
	setInt("TRAWL_EXPORT_SAMPLE_SIZE", &cfg.Export.SampleSize)
	setDuration("TRAWL_EXPORT_PROACTIVE_DELAY", &cfg.Export.ProactiveDelay)
	setInt("TRAWL_EXPORT_THROTTLE_AFTER_RECORDS", &cfg.Export.ThrottleAfterRecords)
	setInt("TRAWL_EXPORT_MAX_PAGES", &cfg.Export.MaxPages)

	setBool("TRAWL_HISTORY_ENABLED", &cfg.History.Enabled)
	setString("TRAWL_HISTORY_PATH", &cfg.History.Path)

	setString("TRAWL_SCHEDULE_CRON", &cfg.Schedule.Cron)
	setBool("TRAWL_SCHEDULE_WATCH_CONFIG", &cfg.Schedule.WatchConfig)

	setString("TRAWL_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("TRAWL_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	setBool("TRAWL_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	setString("TRAWL_TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
}
