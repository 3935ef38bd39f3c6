package weft

import "sync"

// Input is a read-only component property. The parent either binds a
// reactive source, so the child re-renders when the parent's value changes,
// or sets a static value. The zero value is usable and reads as T's zero
// until bound.
//
//	type Badge struct {
//	    Label weft.Input[string]
//	    Count weft.Input[int]
//	}
//
//	badge.Label.SetStatic("inbox")
//	badge.Count.Bind(unread) // *weft.Signal[int] from the parent
type Input[T any] struct {
	mu     sync.RWMutex
	src    Readable[T]
	static T
}

// Bind connects the input to a reactive source. Reads become tracked reads
// of that source.
func (in *Input[T]) Bind(src Readable[T]) {
	in.mu.Lock()
	in.src = src
	in.mu.Unlock()
}

// SetStatic sets a fixed value, replacing any bound source.
func (in *Input[T]) SetStatic(value T) {
	in.mu.Lock()
	in.src = nil
	in.static = value
	in.mu.Unlock()
}

// Get returns the input's value. When a source is bound this is a tracked
// read, subscribing the current listener to the parent's value.
func (in *Input[T]) Get() T {
	in.mu.RLock()
	src := in.src
	static := in.static
	in.mu.RUnlock()

	if src != nil {
		return src.Get()
	}
	return static
}

// Peek returns the input's value without subscribing.
func (in *Input[T]) Peek() T {
	in.mu.RLock()
	src := in.src
	static := in.static
	in.mu.RUnlock()

	if src != nil {
		return src.Peek()
	}
	return static
}

// Model is a two-way component property. Unbound, it behaves as a local
// signal; bound to a parent signal, reads and writes go straight through to
// it, so parent and child observe one value with no echo between them.
type Model[T any] struct {
	mu  sync.Mutex
	sig *Signal[T]
	// bound marks sig as parent-owned, so a later local materialization
	// does not replace it.
	bound bool
}

// Bind connects the model to the parent's signal. Any state in a previously
// materialized local signal is discarded; the parent's value wins.
func (m *Model[T]) Bind(sig *Signal[T]) {
	m.mu.Lock()
	m.sig = sig
	m.bound = true
	m.mu.Unlock()
}

// Bound reports whether a parent signal is connected.
func (m *Model[T]) Bound() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound
}

// Signal returns the backing signal, materializing a local one on first use
// when unbound.
func (m *Model[T]) Signal() *Signal[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sig == nil {
		var zero T
		m.sig = NewSignal(zero)
	}
	return m.sig
}

// Get returns the current value as a tracked read.
func (m *Model[T]) Get() T {
	return m.Signal().Get()
}

// Peek returns the current value without subscribing.
func (m *Model[T]) Peek() T {
	return m.Signal().Peek()
}

// Set writes the value, propagating to the parent when bound.
func (m *Model[T]) Set(value T) {
	m.Signal().Set(value)
}

// Update applies fn atomically to the current value.
func (m *Model[T]) Update(fn func(T) T) {
	m.Signal().Update(fn)
}

// Output is a component event emitter. The parent registers handlers with
// Listen; the child calls Emit. Handlers run outside dependency tracking, so
// signal reads inside them do not subscribe the emitting component.
//
//	type Editor struct {
//	    Saved weft.Output[Document]
//	}
//
//	editor.Saved.Listen(func(doc Document) { store.Put(doc) })
type Output[T any] struct {
	mu       sync.RWMutex
	handlers []func(T)
}

// Listen registers a handler for emitted values. Handlers stay registered
// for the component's lifetime.
func (o *Output[T]) Listen(fn func(T)) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.handlers = append(o.handlers, fn)
	o.mu.Unlock()
}

// Emit invokes every registered handler with value, in registration order.
// Emitting with no handlers registered is a no-op.
func (o *Output[T]) Emit(value T) {
	o.mu.RLock()
	handlers := make([]func(T), len(o.handlers))
	copy(handlers, o.handlers)
	o.mu.RUnlock()

	for _, fn := range handlers {
		Untracked(func() { fn(value) })
	}
}

var _ Readable[int] = (*Input[int])(nil)
var _ Writable[int] = (*Model[int])(nil)
