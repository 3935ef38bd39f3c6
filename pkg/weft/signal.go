// Package weft implements the reactive core: signals, computed values,
// effects, and the scopes that own them.
//
// A Signal is a value container. Reading it inside a tracked context (a
// computed recomputation, an effect run, or a component render) subscribes
// the reader, and writing a different value notifies every subscriber.
// Computed values cache a derivation and recompute lazily after
// invalidation; effects re-run after any of their dependencies change.
// Change propagation is push-invalidate, pull-recompute: writes push a dirty
// bit through the dependency graph, and values are recomputed only when read
// again.
//
// The package has no third-party dependencies so it can be embedded
// anywhere; the live session runtime, the CLI, and tests all build on it.
package weft

import (
	"encoding/json"
	"sync"
)

// Signal is a reactive value container.
//
// All methods are safe for concurrent use. Writes from goroutines outside
// the session loop should go through Ctx.Dispatch so notifications run on
// the loop; see Ctx.
type Signal[T any] struct {
	src source

	value T
	mu    sync.RWMutex

	// equal decides whether a write changed the value. nil means
	// defaultEquals.
	equal func(T, T) bool

	name       string
	persistKey string
	transient  bool
}

// NewSignal creates a signal holding initial. When a persist registry is
// installed on the current scope chain and the signal was created with
// Persist, it is registered for session snapshots.
func NewSignal[T any](initial T, opts ...SignalOption) *Signal[T] {
	cfg := applyOptions(opts)

	s := &Signal[T]{
		src:        source{id: nextID()},
		value:      initial,
		name:       cfg.name,
		persistKey: cfg.persistKey,
		transient:  cfg.transient,
	}

	if s.persistKey != "" && !s.transient {
		if scope := currentScope(); scope != nil {
			if reg, ok := scope.Value(PersistRegistryKey).(PersistRegistry); ok {
				reg.RegisterPersistable(s)
			}
		}
	}

	return s
}

// Get returns the current value and subscribes the current listener, if one
// is tracking. The subscription is what makes later writes re-run the
// reader.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track after releasing the value lock; subscriber bookkeeping must not
	// nest inside it.
	s.src.track()

	return value
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set writes value and notifies subscribers. Writing a value equal to the
// current one (under the signal's equality function) is a no-op.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.src.notify()
	}
}

// Update applies fn to the current value under the write lock, so the
// read-modify-write is atomic with respect to other writers.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	next := fn(s.value)
	changed := !s.equals(s.value, next)
	if changed {
		s.value = next
	}
	s.mu.Unlock()

	if changed {
		s.src.notify()
	}
}

// WithEquals overrides the equality function used to decide whether a write
// changed the value. Useful when reflect.DeepEqual is too expensive or has
// the wrong semantics for T. Returns the signal for chaining at creation:
//
//	pos := weft.NewSignal(Point{}).WithEquals(func(a, b Point) bool {
//	    return a.X == b.X && a.Y == b.Y
//	})
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the signal's unique identifier.
func (s *Signal[T]) ID() uint64 {
	return s.src.id
}

// Name returns the diagnostic name set with Named, or "".
func (s *Signal[T]) Name() string {
	return s.name
}

// Observers reports how many listeners are currently subscribed.
func (s *Signal[T]) Observers() int {
	return s.src.observerCount()
}

// PersistKey implements Persistable.
func (s *Signal[T]) PersistKey() string {
	return s.persistKey
}

// Transient implements Persistable.
func (s *Signal[T]) Transient() bool {
	return s.transient
}

// MarshalValue implements Persistable.
func (s *Signal[T]) MarshalValue() ([]byte, error) {
	return json.Marshal(s.Peek())
}

// UnmarshalValue implements Persistable.
func (s *Signal[T]) UnmarshalValue(data []byte) error {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	s.Set(value)
	return nil
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

var _ Writable[int] = (*Signal[int])(nil)
var _ Persistable = (*Signal[int])(nil)
