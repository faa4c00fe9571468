// Package config defines the YAML configuration for the ganymede engine:
// the account store backend, the policy document source, the audit log,
// and logging.
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Store configures the account store backend.
	Store StoreConfig `yaml:"store"`

	// Policy configures the policy document source and watcher.
	Policy PolicyConfig `yaml:"policy"`

	// Audit configures decision recording and retention.
	Audit AuditConfig `yaml:"audit"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects and configures the account store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path. Ignored for the memory
	// backend.
	// Default: "data/accounts.db"
	Path string `yaml:"path"`
}

// PolicyConfig configures the policy document source.
type PolicyConfig struct {
	// Dir is the directory of policy YAML documents. Empty disables the
	// file source.
	Dir string `yaml:"dir"`

	// Watch enables the fsnotify watcher over Dir.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a reload after file
	// changes.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// AuditConfig configures decision recording.
type AuditConfig struct {
	// Enabled turns decision recording on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// RetentionDays is how long decisions are kept. Zero disables
	// age-based pruning.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for the retention pruner. Empty
	// disables scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}
