// Package config provides server configuration for SlateKV.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (addresses, path existence)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - storage.go: Mapping to the storage engine configuration
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
