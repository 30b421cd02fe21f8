// Package inflight tracks match keys that belong to a finalize batch still
// waiting on the persistence layer.
package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrFull is returned when a claim would exceed the tracker's capacity.
var ErrFull = errors.New("in-flight tracker is full")

// Tracker guards keys against being submitted by two batches at once.
type Tracker interface {
	// Claim records every key as in flight, or none of them. When some
	// keys are already claimed it returns them and records nothing.
	Claim(ctx context.Context, keys ...string) (busy []string, err error)

	// Release forgets keys so they can be claimed again.
	Release(ctx context.Context, keys ...string)

	// Pending reports whether key is currently claimed.
	Pending(ctx context.Context, key string) bool

	Size() int64
}

type memoryTracker struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	maxSize int // 0 or negative means unbounded
	size    atomic.Int64
}

// New creates an in-memory tracker.
func New(opts ...Option) Tracker {
	t := &memoryTracker{maxSize: 10000}
	for _, opt := range opts {
		opt(t)
	}
	t.keys = make(map[string]struct{})
	return t
}

func (t *memoryTracker) Claim(_ context.Context, keys ...string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var busy []string
	fresh := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := t.keys[k]; ok {
			busy = append(busy, k)
			continue
		}
		fresh[k] = struct{}{}
	}
	if len(busy) > 0 {
		return busy, nil
	}
	if t.maxSize > 0 && len(t.keys)+len(fresh) > t.maxSize {
		return nil, ErrFull
	}

	for k := range fresh {
		t.keys[k] = struct{}{}
	}
	t.size.Add(int64(len(fresh)))
	return nil, nil
}

func (t *memoryTracker) Release(_ context.Context, keys ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range keys {
		if _, ok := t.keys[k]; ok {
			delete(t.keys, k)
			t.size.Add(-1)
		}
	}
}

func (t *memoryTracker) Pending(_ context.Context, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.keys[key]
	return ok
}

func (t *memoryTracker) Size() int64 {
	return t.size.Load()
}
