package weft

import (
	"sync"
	"sync/atomic"
)

// Computed is a cached derivation that tracks its own dependencies. When any
// dependency changes it is invalidated; the next read recomputes. Invalidation
// is pushed eagerly, computation is pulled lazily, so several writes between
// reads cost one recomputation.
//
// A Computed is itself a source: reading one inside a tracked context
// subscribes the reader, which is how chains of derived values propagate.
type Computed[T any] struct {
	src source

	compute func() T

	value   T
	valueMu sync.RWMutex

	// valid is the cached value's freshness bit. False means the next read
	// recomputes.
	valid atomic.Bool

	// sources are the signals and computeds read during the last
	// recomputation, kept for unsubscription before re-tracking.
	sources   []*source
	sourcesMu sync.Mutex

	equal func(T, T) bool

	// computing guards against recursive recomputation when the dependency
	// graph has a cycle through this value.
	computing atomic.Bool
}

// NewComputed creates a computed value. compute does not run until the first
// Get or Peek.
func NewComputed[T any](compute func() T) *Computed[T] {
	return &Computed[T]{
		src:     source{id: nextID()},
		compute: compute,
	}
}

// Get returns the value, recomputing first if a dependency changed since the
// last read, and subscribes the current listener.
func (c *Computed[T]) Get() T {
	c.src.track()

	if !c.valid.Load() {
		c.recompute()
	}

	c.valueMu.RLock()
	value := c.value
	c.valueMu.RUnlock()
	return value
}

// Peek returns the value without subscribing. It still recomputes when the
// cached value is stale, so Peek never observes an outdated derivation.
func (c *Computed[T]) Peek() T {
	if !c.valid.Load() {
		c.recompute()
	}

	c.valueMu.RLock()
	value := c.value
	c.valueMu.RUnlock()
	return value
}

// MarkDirty invalidates the cached value and propagates the invalidation to
// subscribers. Implements Listener. The CAS makes repeated invalidation
// between reads idempotent: only the first one cascades.
func (c *Computed[T]) MarkDirty() {
	if c.valid.CompareAndSwap(true, false) {
		c.src.notify()
	}
}

// ID implements Listener.
func (c *Computed[T]) ID() uint64 {
	return c.src.id
}

// WithEquals overrides the equality function. See Signal.WithEquals.
func (c *Computed[T]) WithEquals(fn func(T, T) bool) *Computed[T] {
	c.equal = fn
	return c
}

// Observers reports how many listeners are currently subscribed.
func (c *Computed[T]) Observers() int {
	return c.src.observerCount()
}

// addSource implements tracker.
func (c *Computed[T]) addSource(src *source) {
	c.sourcesMu.Lock()
	defer c.sourcesMu.Unlock()

	for _, s := range c.sources {
		if s == src {
			return
		}
	}
	c.sources = append(c.sources, src)
}

// recompute runs the derivation with this computed installed as the tracking
// listener, re-building the source set from scratch.
func (c *Computed[T]) recompute() {
	// A cycle through this value would recurse here; return the stale value
	// instead.
	if c.computing.Swap(true) {
		return
	}
	defer c.computing.Store(false)

	c.sourcesMu.Lock()
	for _, src := range c.sources {
		src.unsubscribe(c)
	}
	c.sources = c.sources[:0]
	c.sourcesMu.Unlock()

	old := swapListener(c)
	next := c.compute()
	swapListener(old)

	c.valueMu.Lock()
	// Keep the previous value when the recomputation came out equal, so
	// downstream identity comparisons stay cheap.
	if !c.equals(c.value, next) {
		c.value = next
	}
	c.valueMu.Unlock()

	c.valid.Store(true)
}

func (c *Computed[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return defaultEquals(a, b)
}

var _ tracker = (*Computed[int])(nil)
var _ Readable[int] = (*Computed[int])(nil)
