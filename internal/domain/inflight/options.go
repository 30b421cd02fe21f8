package inflight

// Option configures a tracker created by New.
type Option func(*memoryTracker)

// WithMaxSize caps how many keys may be in flight at once. Zero or a
// negative value removes the cap.
func WithMaxSize(maxSize int) Option {
	return func(t *memoryTracker) {
		t.maxSize = maxSize
	}
}
