// Package config loads and validates the YAML service configuration used
// by the enforcement CLI and any embedding service.
package config
