package weft

// Listener is anything that can be notified when a dependency changes.
// Computed values, effects, and mounted components all implement it.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	// For computed values this invalidates the cached result, for effects it
	// schedules a re-run, and for components it schedules a re-render.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication when batched notifications are delivered.
	ID() uint64
}

// Cleanup is returned by effect functions to release resources.
// It runs before the effect re-runs and when the effect is disposed.
type Cleanup func()

// tracker is a listener that records the sources it read during its last
// run so it can unsubscribe from them before re-tracking.
type tracker interface {
	Listener
	addSource(src *source)
}

// Readable is the read side shared by Signal, Computed, Input, and Model.
type Readable[T any] interface {
	// Get returns the current value and subscribes the current listener.
	Get() T

	// Peek returns the current value without subscribing.
	Peek() T
}

// Writable is a Readable that also accepts writes. Signal and Model satisfy it.
type Writable[T any] interface {
	Readable[T]

	Set(value T)
	Update(fn func(T) T)
}
