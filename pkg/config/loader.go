package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/conclavehq/conclave/pkg/governance"
	"github.com/conclavehq/conclave/pkg/telemetry"
)

var validate = validator.New()

// Default returns a configuration with all defaults applied, rooted at the
// given data directory.
func Default(dataDir string) *Config {
	return &Config{
		DatabasePath: filepath.Join(dataDir, "conclave.db"),
		PolicyPath:   filepath.Join(dataDir, "policy.yaml"),
		Transport: TransportConfig{
			ServiceName: "conclave.v1.Remote",
			GrantMethod: "submit_grant",
			CallTimeout: Duration(60 * time.Second),
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads and validates a configuration file. Missing transport fields
// fall back to defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := Default(filepath.Dir(path))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadPolicy reads and validates a governance policy document.
func LoadPolicy(path string) (governance.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return governance.Policy{}, fmt.Errorf("failed to read policy: %w", err)
	}
	var policy governance.Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return governance.Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return governance.Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return policy, nil
}

// Write serializes the configuration to path, creating parent directories.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// WritePolicy serializes a policy document to path.
func WritePolicy(path string, policy governance.Policy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid policy: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create policy directory: %w", err)
	}
	data, err := yaml.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to serialize policy: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write policy: %w", err)
	}
	return nil
}
