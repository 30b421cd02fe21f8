package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithSeed loads the catalog and any pre-existing assignments.
func WithSeed(seed Seed) Option {
	return func(s *MemoryStore) {
		s.seed = seed
	}
}

// WithLatencyRange makes every call sleep for a random duration in
// [minLatency, maxLatency) to mimic a remote backend.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *MemoryStore) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithSessionID scopes every query to one hiring session.
func WithSessionID(id int64) PostgresOption {
	return func(s *PostgresStore) {
		if id > 0 {
			s.sessionID = id
		}
	}
}
