// Package worker runs the single dispatcher that applies queued commands
// to the match store one at a time.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/okian/tapp/internal/adapters/mq/queue"
	"github.com/okian/tapp/internal/domain/match"
	"github.com/okian/tapp/pkg/logger"
	"github.com/okian/tapp/pkg/metrics"
)

const defaultMetricsInterval = 5 * time.Second

// Applier is the store the worker mutates.
type Applier interface {
	Apply(cmd match.Command) (match.Result, error)
	Len() (entries, drafts int)
}

// Queue defines how the worker receives envelopes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Envelope
}

// Worker applies commands from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is
	// called, or the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the loop and waits for it to exit.
	Shutdown(ctx context.Context) error

	// Done is closed once Run has returned.
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker. Exactly one should run per store so
// that commands never interleave.
type InMemoryWorker struct {
	queue Queue
	store Applier
	name  string

	journaling bool
	journalMu  sync.Mutex
	journal    []match.Command

	metricsInterval time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, store Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:           q,
		store:           store,
		name:            "dispatcher",
		metricsInterval: defaultMetricsInterval,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.metricsInterval)
	defer ticker.Stop()
	updateRuntimeMetrics()

	envelopes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-ticker.C:
			updateRuntimeMetrics()
		case env, ok := <-envelopes:
			if !ok {
				return
			}
			w.process(ctx, env)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Journal returns the commands applied so far, oldest first. It is empty
// unless the worker was built WithJournal(true).
func (w *InMemoryWorker) Journal() []match.Command {
	w.journalMu.Lock()
	defer w.journalMu.Unlock()
	return slices.Clone(w.journal)
}

func (w *InMemoryWorker) process(ctx context.Context, env queue.Envelope) {
	name := env.Command.Name()
	start := time.Now()

	res, err := w.store.Apply(env.Command)
	metrics.RecordCommandApply(name, float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordCommandError(name)
		w.logger.Warn(ctx, "command rejected",
			logger.String("command", name),
			logger.String("envelope", env.ID),
			logger.Error(err),
		)
	} else {
		if w.journaling {
			w.journalMu.Lock()
			w.journal = append(w.journal, env.Command)
			w.journalMu.Unlock()
		}
		w.logger.Debug(ctx, "command applied",
			logger.String("command", name),
			logger.String("envelope", env.ID),
			logger.Uint64("version", res.Version),
			logger.Any("queued_for", time.Since(env.EnqueuedAt).String()),
		)
	}

	metrics.UpdateStoreSize(w.store.Len())
	env.Respond(queue.Reply{Result: res, Err: err})
}

func updateRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
