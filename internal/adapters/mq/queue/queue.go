// Package queue carries store commands from callers to the single
// dispatcher that applies them.
//
// Callers enqueue an Envelope and wait on its reply channel; the
// dispatcher answers every envelope it dequeues exactly once.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tapp/internal/domain/match"
	"github.com/okian/tapp/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Reply is the outcome of one applied command.
type Reply struct {
	Result match.Result
	Err    error
}

// Envelope wraps a command with the channel its reply is sent on.
type Envelope struct {
	ID         string
	Command    match.Command
	EnqueuedAt time.Time
	reply      chan Reply
}

// NewEnvelope wraps cmd with a fresh ID and a buffered reply channel.
func NewEnvelope(cmd match.Command) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Command:    cmd,
		EnqueuedAt: time.Now(),
		reply:      make(chan Reply, 1),
	}
}

// Reply returns the channel the dispatcher answers on.
func (e Envelope) Reply() <-chan Reply { return e.reply }

// Respond delivers r to the waiting caller. It never blocks; only the
// first response is kept.
func (e Envelope) Respond(r Reply) {
	select {
	case e.reply <- r:
	default:
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an envelope to the queue. It fails with ErrFull when
	// the queue is at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, e Envelope) error

	// Dequeue returns a channel that will receive envelopes as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Envelope

	// Len returns the current number of queued envelopes.
	Len(ctx context.Context) int

	// Cap returns the configured capacity.
	Cap() int

	// Close stops accepting envelopes. Queued envelopes are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	commands chan Envelope
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.commands = make(chan Envelope, q.capacity)

	metrics.UpdateCommandQueueCapacity(q.capacity)
	metrics.UpdateCommandQueueSize(0)
	return q
}

// Enqueue adds an envelope to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Envelope) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordCommandEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordCommandEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.commands <- e:
		metrics.RecordCommandEnqueue()
		metrics.UpdateCommandQueueSize(len(q.commands))
		return nil
	default:
		metrics.RecordCommandEnqueueError("queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that will receive envelopes as they become
// available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Envelope {
	out := make(chan Envelope)
	go func() {
		defer close(out)
		for e := range q.commands {
			select {
			case out <- e:
				metrics.RecordCommandDequeue()
				metrics.UpdateCommandQueueSize(len(q.commands))
			case <-ctx.Done():
				e.Respond(Reply{Err: ctx.Err()})
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued envelopes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.commands)
	metrics.UpdateCommandQueueSize(size)
	return size
}

// Cap returns the configured capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.commands)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
