// Package dedupe tracks callback event ids so at-least-once redelivery
// from the notification channel collapses to one engine invocation.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records seen callback event ids.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true when id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id so a redelivery of the same event is
	// processed instead of dropped. Used when handling an event failed
	// after its id was recorded.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the cache; oldest entries are evicted first.
// Zero or negative means unbounded.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = n
	}
}

// inMemoryDeduper is a map plus a FIFO eviction ring.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string
	head    int
	maxSize int
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize > 0 {
		d.order = make([]string, 0, d.maxSize)
	}
	return d
}

// SeenAndRecord atomically checks-and-records id.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		victim := d.order[d.head]
		delete(d.seen, victim)
		d.order[d.head] = id
		d.head = (d.head + 1) % d.maxSize
		d.seen[id] = struct{}{}
		return false
	}

	d.seen[id] = struct{}{}
	if d.maxSize > 0 {
		d.order = append(d.order, id)
	}
	return false
}

// Unrecord removes id from the seen set. The eviction ring keeps its slot;
// a stale slot just evicts nothing when its turn comes.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

// Size returns the number of live entries.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
