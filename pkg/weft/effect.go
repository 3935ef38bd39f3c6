package weft

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// maxSyncReruns bounds back-to-back synchronous re-runs of a single effect.
// An effect that unconditionally writes one of its own dependencies would
// otherwise loop forever.
const maxSyncReruns = 100

// Effect is a side-effecting computation. It runs once on creation and
// re-runs whenever a signal or computed value it read during its last run
// changes. The effect function may return a Cleanup, which runs before every
// re-run and on disposal.
//
// Scheduling depends on ownership: an effect whose scope chain has a
// scheduler attached (a live session) is queued and runs at the next
// Scope.Flush; otherwise it re-runs synchronously on the writer's goroutine.
type Effect struct {
	id uint64

	fn func() Cleanup

	cleanup   Cleanup
	cleanupMu sync.Mutex

	// sources are the signals and computeds read during the last run.
	sources   []*source
	sourcesMu sync.Mutex

	// scope owns this effect; nil for free-standing effects.
	scope *Scope

	pending  atomic.Bool
	running  atomic.Bool
	disposed atomic.Bool

	// syncRerun is set when a synchronous MarkDirty arrives while the
	// effect body is running; the running invocation drains it. Queued
	// re-runs never touch it, so a scheduler-owned effect cannot be stolen
	// from its flush.
	syncRerun atomic.Bool

	name string
}

// EffectOption configures an effect at creation time.
type EffectOption func(*Effect)

// EffectNamed attaches a diagnostic name, reported by Name and used in
// session logs when an effect panics or overruns the flush budget.
func EffectNamed(name string) EffectOption {
	return func(e *Effect) {
		e.name = name
	}
}

// NewEffect creates an effect owned by the current scope and runs it
// immediately:
//
//	weft.NewEffect(func() weft.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
func NewEffect(fn func() Cleanup, opts ...EffectOption) *Effect {
	e := &Effect{
		id:    nextID(),
		fn:    fn,
		scope: currentScope(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.scope != nil {
		e.scope.registerEffect(e)
	}

	e.pending.Store(true)
	e.runSync()

	return e
}

// Watch runs fn with the source's current value, then again with the new
// value each time the source changes.
func Watch[T any](src Readable[T], fn func(T)) *Effect {
	return NewEffect(func() Cleanup {
		fn(src.Get())
		return nil
	})
}

// MarkDirty schedules the effect to re-run. Implements Listener.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}

	// CAS so an effect dirtied by several sources in one notification wave
	// is scheduled once.
	if !e.pending.CompareAndSwap(false, true) {
		return
	}

	if e.scope != nil && e.scope.queueEffect(e) {
		return
	}

	e.runSync()
}

// ID implements Listener.
func (e *Effect) ID() uint64 {
	return e.id
}

// Name returns the diagnostic name set with EffectNamed, or "".
func (e *Effect) Name() string {
	return e.name
}

// Dispose runs the pending cleanup and detaches the effect from all of its
// sources. A disposed effect never runs again.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	e.cleanupMu.Lock()
	cleanup := e.cleanup
	e.cleanup = nil
	e.cleanupMu.Unlock()
	if cleanup != nil {
		cleanup()
	}

	e.sourcesMu.Lock()
	for _, src := range e.sources {
		src.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// runSync runs the effect on the calling goroutine, then keeps re-running
// while synchronous MarkDirty calls arrived during the body.
func (e *Effect) runSync() {
	if !e.running.CompareAndSwap(false, true) {
		e.syncRerun.Store(true)
		return
	}
	defer e.running.Store(false)

	for i := 0; ; i++ {
		if i == maxSyncReruns {
			panic(fmt.Sprintf("weft: effect %s re-ran %d times without settling; it writes one of its own dependencies", e.describe(), maxSyncReruns))
		}
		e.run()
		if e.disposed.Load() || !e.syncRerun.Swap(false) {
			return
		}
	}
}

// run executes one iteration: previous cleanup, re-track, effect body.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	e.pending.Store(false)

	e.cleanupMu.Lock()
	cleanup := e.cleanup
	e.cleanup = nil
	e.cleanupMu.Unlock()
	if cleanup != nil {
		cleanup()
	}

	e.sourcesMu.Lock()
	for _, src := range e.sources {
		src.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	old := swapListener(e)
	next := e.fn()
	swapListener(old)

	e.cleanupMu.Lock()
	if e.disposed.Load() {
		e.cleanupMu.Unlock()
		if next != nil {
			next()
		}
		return
	}
	e.cleanup = next
	e.cleanupMu.Unlock()
}

// addSource implements tracker.
func (e *Effect) addSource(src *source) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == src {
			return
		}
	}
	e.sources = append(e.sources, src)
}

func (e *Effect) describe() string {
	if e.name != "" {
		return fmt.Sprintf("%q", e.name)
	}
	return fmt.Sprintf("#%d", e.id)
}

// OnMount runs fn once when the enclosing component mounts. It is an effect
// with no reactive dependencies, so it never re-runs.
func OnMount(fn func()) {
	NewEffect(func() Cleanup {
		Untracked(fn)
		return nil
	})
}

// OnCleanup runs fn when the current scope is disposed, typically on
// component unmount.
func OnCleanup(fn func()) {
	if scope := currentScope(); scope != nil {
		scope.OnCleanup(fn)
	}
}

// OnChange creates an effect that tracks the reads performed by deps but
// only invokes fn on re-runs, skipping the initial one. Use it to react to
// changes without acting on the starting value:
//
//	weft.OnChange(
//	    func() { _ = query.Get() },
//	    func() { resetPagination() },
//	)
func OnChange(deps func(), fn func()) *Effect {
	first := true
	return NewEffect(func() Cleanup {
		deps()
		if first {
			first = false
			return nil
		}
		Untracked(fn)
		return nil
	})
}

var _ tracker = (*Effect)(nil)
