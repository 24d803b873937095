// Package config loads, normalizes, and validates the TOML configuration
// consumed by the conversion pipeline.
package config
