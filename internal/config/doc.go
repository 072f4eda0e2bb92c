// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files, command line flags).
// It provides type-safe access to the settings needed by the storage layer,
// the background state writer and the scheduler.
package config
