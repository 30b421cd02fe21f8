// Package service wires the match store, the command dispatcher, and the
// persistence adapters into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	commandqueue "github.com/okian/tapp/internal/adapters/mq/queue"
	dispatcher "github.com/okian/tapp/internal/adapters/mq/worker"
	"github.com/okian/tapp/internal/adapters/repository"
	"github.com/okian/tapp/internal/domain/inflight"
	"github.com/okian/tapp/internal/domain/match"
	"github.com/okian/tapp/internal/domain/model"
	"github.com/okian/tapp/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Service implements the API dependencies for draft matching.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       *match.Store
	queue       commandqueue.Queue
	worker      *dispatcher.InMemoryWorker
	inflight    inflight.Tracker
	assignments repository.AssignmentStore
	catalog     repository.Catalog

	// Configuration
	queueSize       int
	inflightLimit   int
	finalizeTimeout time.Duration
	maxImportBytes  int64
	journal         bool
	syncOnStart     bool

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the capacity of the command queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithInflightLimit caps how many matches may be finalizing at once.
func WithInflightLimit(limit int) Option {
	return func(s *Service) {
		s.inflightLimit = limit
	}
}

// WithFinalizeTimeout bounds each call to the assignment store.
func WithFinalizeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.finalizeTimeout = d
		}
	}
}

// WithMaxImportBytes caps the size of an import file.
func WithMaxImportBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxImportBytes = n
		}
	}
}

// WithJournal keeps applied commands for replay.
func WithJournal(enabled bool) Option {
	return func(s *Service) {
		s.journal = enabled
	}
}

// WithSyncOnStart mirrors persisted assignments into the store on Start.
func WithSyncOnStart(enabled bool) Option {
	return func(s *Service) {
		s.syncOnStart = enabled
	}
}

// WithAssignmentStore sets the persistence collaborator for finalize.
func WithAssignmentStore(store repository.AssignmentStore) Option {
	return func(s *Service) {
		if store != nil {
			s.assignments = store
		}
	}
}

// WithCatalog sets the applicant and position read model.
func WithCatalog(catalog repository.Catalog) Option {
	return func(s *Service) {
		if catalog != nil {
			s.catalog = catalog
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:       1024,
		inflightLimit:   10000,
		finalizeTimeout: 15 * time.Second,
		maxImportBytes:  10 << 20,
		syncOnStart:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the store and runs the dispatcher. Without an
// assignment store or catalog, an empty in-memory one is used.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.assignments == nil || s.catalog == nil {
		mem, err := repository.NewMemoryStore()
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("create memory store: %w", err)
		}
		if s.assignments == nil {
			s.assignments = mem
		}
		if s.catalog == nil {
			s.catalog = mem
		}
	}

	s.store = match.NewStore()
	s.inflight = inflight.New(inflight.WithMaxSize(s.inflightLimit))
	s.queue = commandqueue.NewInMemoryQueue(commandqueue.WithCapacity(s.queueSize))
	s.worker = dispatcher.NewInMemoryWorker(s.queue, s.store,
		dispatcher.WithJournal(s.journal),
		dispatcher.WithLogger(s.logger.Named("dispatcher")),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.mu.Unlock()

	s.logger.Info(ctx, "draft matching service started",
		logger.Int("queueSize", s.queueSize),
		logger.Bool("journal", s.journal),
	)

	if s.syncOnStart {
		if n, err := s.SyncAssignments(ctx); err != nil {
			s.logger.Warn(ctx, "initial assignment sync failed", logger.Error(err))
		} else {
			s.logger.Info(ctx, "initial assignment sync done", logger.Int("assignments", n))
		}
	}
	return nil
}

// Stop closes the queue, lets the dispatcher drain it, and stops.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping draft matching service...")

	_ = s.queue.Close()
	select {
	case <-s.worker.Done():
	case <-time.After(shutdownTimeout):
		s.logger.Warn(ctx, "dispatcher did not drain in time")
	}
	_ = s.worker.Shutdown(ctx)
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "draft matching service stopped")
}

// components returns the running store and queue, or ErrNotStarted.
func (s *Service) components() (*match.Store, commandqueue.Queue, *dispatcher.InMemoryWorker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, ErrNotStarted
	}
	return s.store, s.queue, s.worker, nil
}

// dispatch enqueues cmd and waits for the dispatcher to apply it.
func (s *Service) dispatch(ctx context.Context, cmd match.Command) (match.Result, error) {
	_, q, w, err := s.components()
	if err != nil {
		return match.Result{}, err
	}

	env := commandqueue.NewEnvelope(cmd)
	if err := q.Enqueue(ctx, env); err != nil {
		switch {
		case errors.Is(err, commandqueue.ErrFull):
			return match.Result{}, ErrBackpressure
		case errors.Is(err, commandqueue.ErrClosed):
			return match.Result{}, ErrNotStarted
		}
		return match.Result{}, err
	}

	select {
	case r := <-env.Reply():
		return r.Result, r.Err
	case <-w.Done():
		select {
		case r := <-env.Reply():
			return r.Result, r.Err
		default:
			return match.Result{}, commandqueue.ErrStopped
		}
	case <-ctx.Done():
		return match.Result{}, ctx.Err()
	}
}

// Journal returns the commands applied since Start when journaling is on.
func (s *Service) Journal() []match.Command {
	_, _, w, err := s.components()
	if err != nil {
		return nil
	}
	return w.Journal()
}

// SyncAssignments mirrors the persisted assignments into the store and
// returns how many were read.
func (s *Service) SyncAssignments(ctx context.Context) (int, error) {
	if _, _, _, err := s.components(); err != nil {
		return 0, err
	}
	list, err := s.assignments.ListAssignments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list assignments: %w", err)
	}
	if _, err := s.dispatch(ctx, match.SyncAssignmentsCommand{Assignments: list}); err != nil {
		return 0, err
	}
	return len(list), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":   s.started,
		"queueSize": s.queueSize,
	}

	if s.started {
		entries, drafts := s.store.Len()
		stats["queueLength"] = s.queue.Len(ctx)
		stats["entries"] = entries
		stats["drafts"] = drafts
		stats["updated"] = s.store.Updated()
		stats["version"] = s.store.Version()
		stats["inflight"] = s.inflight.Size()
	}
	return stats
}

// Matches returns every entry in the store.
func (s *Service) Matches(_ context.Context) ([]model.MatchableAssignment, error) {
	st, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return st.List(), nil
}

// Drafts returns the staged, unfinalized entries.
func (s *Service) Drafts(_ context.Context) ([]model.MatchableAssignment, error) {
	st, _, _, err := s.components()
	if err != nil {
		return nil, err
	}
	return st.Drafts(), nil
}
