// Package config loads and validates the conclave YAML configuration and
// the governance policy document.
package config
