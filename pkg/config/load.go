package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the
// GANYMEDE_SECTION_FIELD convention (e.g. GANYMEDE_STORE_BACKEND) and
// take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString("GANYMEDE_STORE_BACKEND", &cfg.Store.Backend)
	setString("GANYMEDE_STORE_PATH", &cfg.Store.Path)

	setString("GANYMEDE_POLICY_DIR", &cfg.Policy.Dir)
	setBool("GANYMEDE_POLICY_WATCH", &cfg.Policy.Watch)
	setDuration("GANYMEDE_POLICY_DEBOUNCE_INTERVAL", &cfg.Policy.DebounceInterval)

	setBool("GANYMEDE_AUDIT_ENABLED", &cfg.Audit.Enabled)
	setString("GANYMEDE_AUDIT_BACKEND", &cfg.Audit.Backend)
	setString("GANYMEDE_AUDIT_PATH", &cfg.Audit.Path)
	setInt("GANYMEDE_AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays)
	setString("GANYMEDE_AUDIT_PRUNE_SCHEDULE", &cfg.Audit.PruneSchedule)

	setString("GANYMEDE_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("GANYMEDE_LOGGING_FORMAT", &cfg.Logging.Format)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
