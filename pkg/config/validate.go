package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	// Field is the dotted configuration path.
	Field string

	// Message describes what is invalid.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Message)
}

// Validate checks a configuration after defaults have been applied.
// The API key is deliberately not required here: commands that never
// touch the API (history listing) work without one, and commands that
// do check it themselves.
func Validate(cfg *Config) error {
	if cfg.API.BaseURL != "" {
		u, err := url.Parse(cfg.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ValidationError{Field: "api.base_url", Message: "must be an absolute URL"}
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return &ValidationError{Field: "api.base_url", Message: "scheme must be http or https"}
		}
	}

	if cfg.API.PageLimit > 10000 {
		return &ValidationError{Field: "api.page_limit", Message: "must be at most 10000"}
	}

	if cfg.Export.SampleSize > 1000000 {
		return &ValidationError{Field: "export.sample_size", Message: "must be at most 1000000"}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (expected debug, info, warn, or error)", cfg.Telemetry.Logging.Level),
		}
	}

	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (expected json or text)", cfg.Telemetry.Logging.Format),
		}
	}

	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return &ValidationError{
				Field:   "schedule.cron",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			}
		}
	}

	return nil
}
