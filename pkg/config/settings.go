package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/entweave/entweave/pkg/telemetry"
)

var validate = validator.New()

// Settings is the YAML-backed CLI configuration. Entity definitions stay in
// CUE; this covers everything around them.
type Settings struct {
	// Definitions lists the default CUE files or directories to load.
	Definitions []string `yaml:"definitions"`

	// Storage selects and configures the instance store.
	Storage StorageSettings `yaml:"storage"`

	// Logging configures CLI logging.
	Logging LoggingSettings `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsSettings `yaml:"metrics"`

	// Tracing configures trace export.
	Tracing TracingSettings `yaml:"tracing"`
}

// StorageSettings selects the store binding.
type StorageSettings struct {
	// Driver is the store driver (memory, sqlite).
	Driver string `yaml:"driver" validate:"omitempty,oneof=memory sqlite"`

	// Path is the database file path for the sqlite driver.
	Path string `yaml:"path"`
}

// LoggingSettings configures CLI logging.
type LoggingSettings struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`

	// Format specifies the log format (console, json).
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`

	// Output specifies where logs are written (stdout, stderr, file path).
	Output string `yaml:"output"`
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
}

// TracingSettings configures trace export.
type TracingSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout none"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() *Settings {
	return &Settings{
		Storage: StorageSettings{Driver: "memory"},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsSettings{ListenAddress: ":9090"},
		Tracing: TracingSettings{Exporter: "stdout"},
	}
}

// LoadSettings reads a YAML settings file over the defaults. An empty path
// returns the defaults unchanged.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return settings, nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if s.Storage.Driver == "sqlite" && s.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for the sqlite driver")
	}
	return nil
}

// Telemetry maps the settings onto a telemetry configuration.
func (s *Settings) Telemetry() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	if s.Logging.Level != "" {
		cfg.Logging.Level = s.Logging.Level
	}
	if s.Logging.Format != "" {
		cfg.Logging.Format = s.Logging.Format
	}
	if s.Logging.Output != "" {
		cfg.Logging.Output = s.Logging.Output
	}
	cfg.Metrics.Enabled = s.Metrics.Enabled
	if s.Metrics.ListenAddress != "" {
		cfg.Metrics.ListenAddress = s.Metrics.ListenAddress
	}
	cfg.Tracing.Enabled = s.Tracing.Enabled
	if s.Tracing.Exporter != "" {
		cfg.Tracing.Exporter = s.Tracing.Exporter
	}
	cfg.Tracing.Endpoint = s.Tracing.Endpoint
	return cfg
}
