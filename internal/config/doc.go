// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. It selects the storage backend and carries
// the DynamoDB connection settings, server timeouts and rate limits.
package config
