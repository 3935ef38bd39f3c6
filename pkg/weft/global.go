package weft

import "sync/atomic"

// GlobalSignal wraps a Signal shared across all sessions in the process. It
// embeds *Signal[T], so the full Signal API applies; the wrapper type exists
// to make the sharing explicit at the definition site and to give the
// cluster replicator something to register.
//
// Global signals hold application-wide state: a maintenance banner, a
// feature flag, an online-user count. Every session observes the same value,
// so never put per-user data in one.
//
//	var Announcement = weft.NewGlobalSignal("")
type GlobalSignal[T any] struct {
	*Signal[T]
}

// NewGlobalSignal creates a process-wide signal. Typically assigned to a
// package-level variable.
func NewGlobalSignal[T any](initial T, opts ...SignalOption) *GlobalSignal[T] {
	return &GlobalSignal[T]{
		Signal: NewSignal(initial, opts...),
	}
}

// SessionVars lazily materializes per-session signals for SharedVar
// definitions. The session runtime installs its implementation on the
// session root scope under SessionVarsKey.
type SessionVars interface {
	// GetOrCreate returns the session's instance for the definition id,
	// creating it with create on first access.
	GetOrCreate(id uint64, create func() any) any
}

// SessionVarsKey is the scope-value key under which the session runtime
// installs its SessionVars.
var SessionVarsKey = &struct{ name string }{"weft.session-vars"}

// sharedVarID numbers SharedVar definitions, independent of the primitive ID
// space since definitions exist before any signal does.
var sharedVarID uint64

// SharedVar defines a session-scoped signal. The definition lives at package
// level; each live session lazily materializes its own independent Signal[T]
// on first access, resolved through the session's scope. Two users never see
// each other's value.
//
//	var Cart = weft.NewSharedVar([]Item(nil))
//
// Inside a component, Cart.Get() reads this session's cart.
type SharedVar[T any] struct {
	id      uint64
	initial T
	opts    []SignalOption
}

// NewSharedVar creates a session-scoped signal definition with the given
// initial value for every session.
func NewSharedVar[T any](initial T, opts ...SignalOption) *SharedVar[T] {
	return &SharedVar[T]{
		id:      atomic.AddUint64(&sharedVarID, 1),
		initial: initial,
		opts:    opts,
	}
}

// Signal returns this session's signal instance, creating it on first
// access. Returns nil outside of a session.
func (v *SharedVar[T]) Signal() *Signal[T] {
	vars, ok := Lookup(SessionVarsKey).(SessionVars)
	if !ok {
		return nil
	}

	instance := vars.GetOrCreate(v.id, func() any {
		return NewSignal(v.initial, v.opts...)
	})
	if instance == nil {
		return nil
	}

	return instance.(*Signal[T])
}

// Get returns the session's current value, or the initial value outside a
// session.
func (v *SharedVar[T]) Get() T {
	sig := v.Signal()
	if sig == nil {
		return v.initial
	}
	return sig.Get()
}

// Peek returns the session's current value without subscribing.
func (v *SharedVar[T]) Peek() T {
	sig := v.Signal()
	if sig == nil {
		return v.initial
	}
	return sig.Peek()
}

// Set writes the session's value. No-op outside a session.
func (v *SharedVar[T]) Set(value T) {
	if sig := v.Signal(); sig != nil {
		sig.Set(value)
	}
}

// Update applies fn atomically to the session's value. No-op outside a
// session.
func (v *SharedVar[T]) Update(fn func(T) T) {
	if sig := v.Signal(); sig != nil {
		sig.Update(fn)
	}
}
