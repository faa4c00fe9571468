package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: sqlite
  path: /var/lib/ganymede/accounts.db
policy:
  dir: /etc/ganymede/policies
  watch: true
  debounce_interval: 250ms
audit:
  enabled: true
  retention_days: 30
logging:
  level: debug
  format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("got store backend %q, want sqlite", cfg.Store.Backend)
	}
	if cfg.Policy.DebounceInterval != 250*time.Millisecond {
		t.Errorf("got debounce %v, want 250ms", cfg.Policy.DebounceInterval)
	}
	// Unset fields fall back to defaults.
	if cfg.Audit.Backend != DefaultAuditBackend {
		t.Errorf("got audit backend %q, want default %q", cfg.Audit.Backend, DefaultAuditBackend)
	}
	if cfg.Audit.PruneSchedule != DefaultAuditPruneSchedule {
		t.Errorf("got prune schedule %q, want default", cfg.Audit.PruneSchedule)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("got logging %s/%s, want debug/text", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Backend = "postgres"
	cfg.Policy.Watch = true
	cfg.Policy.Dir = ""
	cfg.Audit.PruneSchedule = "bogus"
	cfg.Logging.Level = "loud"

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %T, want ValidationError", err)
	}
	if len(verr.Errors) != 4 {
		t.Fatalf("got %d errors, want 4: %v", len(verr.Errors), verr)
	}

	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	for _, want := range []string{"store.backend", "policy.dir", "audit.prune_schedule", "logging.level"} {
		if !fields[want] {
			t.Errorf("missing error for %s", want)
		}
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "store: [")
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("got %v, want parse failure", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: memory\n")

	t.Setenv("GANYMEDE_STORE_BACKEND", "sqlite")
	t.Setenv("GANYMEDE_STORE_PATH", "/tmp/accounts.db")
	t.Setenv("GANYMEDE_AUDIT_ENABLED", "false")
	t.Setenv("GANYMEDE_POLICY_DEBOUNCE_INTERVAL", "1s")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.Path != "/tmp/accounts.db" {
		t.Errorf("got store %s/%s, want env overrides applied", cfg.Store.Backend, cfg.Store.Path)
	}
	if cfg.Audit.Enabled {
		t.Error("audit still enabled despite env override")
	}
	if cfg.Policy.DebounceInterval != time.Second {
		t.Errorf("got debounce %v, want 1s", cfg.Policy.DebounceInterval)
	}
}
