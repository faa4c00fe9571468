package config

import "time"

// Default values for configuration fields.
const (
	DefaultStoreBackend = "memory"
	DefaultStorePath    = "data/accounts.db"

	DefaultPolicyWatch            = false
	DefaultPolicyDebounceInterval = 100 * time.Millisecond

	DefaultAuditEnabled       = true
	DefaultAuditBackend       = "sqlite"
	DefaultAuditPath          = "data/audit.db"
	DefaultAuditRetentionDays = 90
	DefaultAuditPruneSchedule = "0 3 * * *"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills unset fields with default values. Booleans cannot
// be distinguished from an explicit false in YAML, so boolean defaults
// are applied by DefaultConfig, not here.
func ApplyDefaults(cfg *Config) {
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = DefaultStoreBackend
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}

	if cfg.Policy.DebounceInterval <= 0 {
		cfg.Policy.DebounceInterval = DefaultPolicyDebounceInterval
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditPath
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultAuditPruneSchedule
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
}

// DefaultConfig returns a configuration with every field defaulted.
func DefaultConfig() *Config {
	cfg := &Config{
		Policy: PolicyConfig{Watch: DefaultPolicyWatch},
		Audit:  AuditConfig{Enabled: DefaultAuditEnabled},
	}
	ApplyDefaults(cfg)
	return cfg
}
