package worker

import (
	"time"

	"github.com/okian/tapp/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithJournal keeps every successfully applied command so the store can
// be rebuilt with match.Replay.
func WithJournal(enabled bool) Option {
	return func(w *InMemoryWorker) {
		w.journaling = enabled
	}
}

// WithMetricsInterval sets how often runtime gauges are refreshed.
func WithMetricsInterval(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d > 0 {
			w.metricsInterval = d
		}
	}
}
