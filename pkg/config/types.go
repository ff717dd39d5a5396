package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conclavehq/conclave/pkg/telemetry"
)

// Duration is a time.Duration that reads "60s"-style YAML strings.
type Duration time.Duration

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts either a duration string or a nanosecond integer.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("invalid duration value")
}

// Config is the top-level conclave configuration document.
type Config struct {
	// DatabasePath locates the SQLite state database.
	DatabasePath string `yaml:"database_path" validate:"required"`

	// PolicyPath locates the initial governance policy document. It is
	// read only when the database holds no state yet.
	PolicyPath string `yaml:"policy_path" validate:"required"`

	// DefaultCaller is the principal used when a command omits --as.
	DefaultCaller string `yaml:"default_caller,omitempty"`

	// Transport configures the remote call layer.
	Transport TransportConfig `yaml:"transport"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// TransportConfig configures the gRPC caller.
type TransportConfig struct {
	// ServiceName is the gRPC service remote methods are invoked on.
	ServiceName string `yaml:"service_name" validate:"required"`

	// GrantMethod is the upload collaborator's grant submission method.
	GrantMethod string `yaml:"grant_method" validate:"required"`

	// CallTimeout bounds a single remote invocation.
	CallTimeout Duration `yaml:"call_timeout" validate:"gt=0"`

	// Endpoints maps principal text to a dialable gRPC address.
	Endpoints map[string]string `yaml:"endpoints,omitempty" validate:"dive,required"`
}
