package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entweave.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestLoadSettingsDefaults(t *testing.T) {
	settings, err := LoadSettings("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if settings.Storage.Driver != "memory" {
		t.Errorf("driver = %q, want memory", settings.Storage.Driver)
	}
	if settings.Logging.Level != "info" || settings.Logging.Format != "console" {
		t.Errorf("logging = %+v", settings.Logging)
	}
}

func TestLoadSettingsFileOverlaysDefaults(t *testing.T) {
	path := writeSettings(t, `
definitions:
  - ./defs
storage:
  driver: sqlite
  path: /tmp/entweave.db
logging:
  level: debug
`)
	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(settings.Definitions) != 1 || settings.Definitions[0] != "./defs" {
		t.Errorf("definitions = %v", settings.Definitions)
	}
	if settings.Storage.Driver != "sqlite" || settings.Storage.Path != "/tmp/entweave.db" {
		t.Errorf("storage = %+v", settings.Storage)
	}
	if settings.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", settings.Logging.Level)
	}
	// Unset keys keep their defaults.
	if settings.Logging.Format != "console" {
		t.Errorf("format = %q, want default console", settings.Logging.Format)
	}
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"unknown driver":      "storage:\n  driver: cassandra\n",
		"sqlite without path": "storage:\n  driver: sqlite\n",
		"unknown log level":   "logging:\n  level: loud\n",
	} {
		path := writeSettings(t, content)
		if _, err := LoadSettings(path); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestSettingsTelemetryMapping(t *testing.T) {
	settings := DefaultSettings()
	settings.Logging.Level = "debug"
	settings.Metrics.Enabled = true
	settings.Tracing.Enabled = true
	settings.Tracing.Exporter = "otlp"
	settings.Tracing.Endpoint = "collector:4317"

	cfg := settings.Telemetry()
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics not enabled")
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("mapped config invalid: %v", err)
	}
}
