// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file and TAPP_ environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Persistence backends.
const (
	PersistenceMemory   = "memory"
	PersistencePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches log output to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SessionID scopes catalog and assignment reads to one hiring session.
	SessionID int64 `koanf:"session_id"`

	// CommandQueueSize bounds the store command queue.
	CommandQueueSize int `koanf:"command_queue_size"`

	// Persistence selects the assignment/catalog backend: memory or postgres.
	Persistence string `koanf:"persistence"`

	// PostgresURL is the pgx connection string used when Persistence is postgres.
	PostgresURL      string `koanf:"postgres_url"`
	PostgresMaxConns int32  `koanf:"postgres_max_conns"`
	PostgresMinConns int32  `koanf:"postgres_min_conns"`

	// CatalogFile is an optional YAML seed for the in-memory catalog.
	CatalogFile string `koanf:"catalog_file"`

	// MaxImportBytes caps the size of an uploaded import file.
	MaxImportBytes int64 `koanf:"max_import_bytes"`

	// FinalizeTimeoutMS bounds a single finalize batch submission.
	FinalizeTimeoutMS int `koanf:"finalize_timeout_ms"`

	// InflightLimit caps how many matches may be finalizing at once.
	InflightLimit int `koanf:"inflight_limit"`

	// SyncOnStart mirrors persisted assignments into the store at startup.
	SyncOnStart bool `koanf:"sync_on_start"`

	// Journal keeps every applied store command in memory for replay.
	Journal bool `koanf:"journal"`

	// Simulated latency of the in-memory backend, in milliseconds.
	MemoryLatencyMinMS int `koanf:"memory_latency_min_ms"`
	MemoryLatencyMaxMS int `koanf:"memory_latency_max_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		SessionID:         1,
		CommandQueueSize:  1024,
		Persistence:       PersistenceMemory,
		PostgresMaxConns:  10,
		PostgresMinConns:  1,
		MaxImportBytes:    10 << 20,
		FinalizeTimeoutMS: 15_000,
		InflightLimit:     10_000,
		SyncOnStart:       true,
	}
}

// FinalizeTimeout returns FinalizeTimeoutMS as a duration.
func (c *Config) FinalizeTimeout() time.Duration {
	return time.Duration(c.FinalizeTimeoutMS) * time.Millisecond
}

// MemoryLatency returns the simulated latency range of the in-memory backend.
func (c *Config) MemoryLatency() (minLatency, maxLatency time.Duration) {
	return time.Duration(c.MemoryLatencyMinMS) * time.Millisecond, time.Duration(c.MemoryLatencyMaxMS) * time.Millisecond
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.CommandQueueSize < 1:
		return fmt.Errorf("%w: command_queue_size must be positive", ErrInvalidConfig)
	case c.MaxImportBytes < 1:
		return fmt.Errorf("%w: max_import_bytes must be positive", ErrInvalidConfig)
	case c.FinalizeTimeoutMS < 1:
		return fmt.Errorf("%w: finalize_timeout_ms must be positive", ErrInvalidConfig)
	case c.InflightLimit < 0:
		return fmt.Errorf("%w: inflight_limit must not be negative", ErrInvalidConfig)
	case c.MemoryLatencyMinMS < 0 || c.MemoryLatencyMaxMS < c.MemoryLatencyMinMS:
		return fmt.Errorf("%w: memory latency range is invalid", ErrInvalidConfig)
	}
	switch c.Persistence {
	case PersistenceMemory:
	case PersistencePostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return fmt.Errorf("%w: postgres_url is required for postgres persistence", ErrInvalidConfig)
		}
		if c.PostgresMinConns > c.PostgresMaxConns {
			return fmt.Errorf("%w: postgres_min_conns exceeds postgres_max_conns", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown persistence %q", ErrInvalidConfig, c.Persistence)
	}
	return nil
}
