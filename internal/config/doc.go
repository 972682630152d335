// Package config loads and validates the noted-gateway YAML configuration.
// ${VAR} references are expanded from the environment before parsing, and
// NOTED_DB_PATH overrides the store location for deployments that prefer
// pure environment configuration.
package config
