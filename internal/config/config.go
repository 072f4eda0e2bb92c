package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	LogLevel    string            `mapstructure:"log_level"   validate:"required,oneof=debug info warn error"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Persistence PersistenceConfig `mapstructure:"persistence" validate:"required"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"   validate:"required"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the storage backend for cards and learning states.
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	// URL is a PostgreSQL connection URL or a SQLite DSN, depending on Driver.
	URL string `mapstructure:"url" validate:"required"`
}

// PersistenceConfig tunes the background writer that saves learning states.
type PersistenceConfig struct {
	QueueSize  int           `mapstructure:"queue_size"  validate:"gt=0"`
	Workers    int           `mapstructure:"workers"     validate:"gt=0"`
	MaxRetries uint64        `mapstructure:"max_retries" validate:"gte=0,lte=20"`
	RetryBase  time.Duration `mapstructure:"retry_base"  validate:"gt=0"`
}

// SchedulerConfig holds the spaced repetition policy knobs exposed to operators.
type SchedulerConfig struct {
	MasteryIntervalDays int `mapstructure:"mastery_interval_days" validate:"gte=1"`
	MaxIntervalDays     int `mapstructure:"max_interval_days"     validate:"gtefield=MasteryIntervalDays"`
}
