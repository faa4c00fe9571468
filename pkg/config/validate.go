package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "store.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects all validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var validBackends = map[string]bool{"memory": true, "sqlite": true}
var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "text": true}

// Validate checks the configuration and returns a ValidationError
// listing every failed rule, or nil when valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if !validBackends[cfg.Store.Backend] {
		errs = append(errs, FieldError{"store.backend", fmt.Sprintf("unknown backend %q", cfg.Store.Backend)})
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.Path == "" {
		errs = append(errs, FieldError{"store.path", "required for the sqlite backend"})
	}

	if cfg.Policy.Watch && cfg.Policy.Dir == "" {
		errs = append(errs, FieldError{"policy.dir", "required when policy.watch is enabled"})
	}

	if cfg.Audit.Enabled {
		if !validBackends[cfg.Audit.Backend] {
			errs = append(errs, FieldError{"audit.backend", fmt.Sprintf("unknown backend %q", cfg.Audit.Backend)})
		}
		if cfg.Audit.Backend == "sqlite" && cfg.Audit.Path == "" {
			errs = append(errs, FieldError{"audit.path", "required for the sqlite backend"})
		}
		if cfg.Audit.RetentionDays < 0 {
			errs = append(errs, FieldError{"audit.retention_days", "cannot be negative"})
		}
		if cfg.Audit.PruneSchedule != "" {
			if _, err := cron.ParseStandard(cfg.Audit.PruneSchedule); err != nil {
				errs = append(errs, FieldError{"audit.prune_schedule", fmt.Sprintf("invalid cron expression: %v", err)})
			}
		}
	}

	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{"logging.level", fmt.Sprintf("unknown level %q", cfg.Logging.Level)})
	}
	if !validLogFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{"logging.format", fmt.Sprintf("unknown format %q", cfg.Logging.Format)})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
