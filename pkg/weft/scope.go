package weft

import (
	"sync"
	"sync/atomic"
)

// DefaultFlushBudget is the number of effect runs one Flush may perform
// before deferring the remainder to the next flush.
const DefaultFlushBudget = 1000

// Scope owns reactive primitives. Effects created while a scope is current
// belong to it; disposing the scope disposes its children, then its effects,
// then runs registered cleanups. Scopes form a tree mirroring the component
// tree: each mounted component gets a child scope of its parent's.
//
// A scope also carries context values (SetValue/Value, resolved up the
// parent chain) and the queue of effects awaiting the next Flush.
type Scope struct {
	id     uint64
	parent *Scope

	children   []*Scope
	childrenMu sync.Mutex

	effects   []*Effect
	effectsMu sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	// pending are effects queued for the next Flush.
	pending   []*Effect
	pendingMu sync.Mutex

	values   map[any]any
	valuesMu sync.RWMutex

	// schedule, when set, is invoked every time an effect is queued on this
	// scope or a descendant. The session runtime uses it to wake its loop.
	schedule   func()
	scheduleMu sync.RWMutex

	flushBudget int

	disposed atomic.Bool
}

// FlushStats reports what one Flush did.
type FlushStats struct {
	// Ran is the number of effect executions performed.
	Ran int

	// Deferred is the number of still-pending effects left for the next
	// flush because the budget ran out.
	Deferred int
}

// NewScope creates a scope under parent. A nil parent creates a root scope,
// typically one per session.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(s)
	}

	return s
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Disposed reports whether Dispose has run.
func (s *Scope) Disposed() bool {
	return s.disposed.Load()
}

// Run executes fn with this scope current, so primitives created inside
// belong to it.
func (s *Scope) Run(fn func()) {
	WithScope(s, fn)
}

// SetScheduler installs the callback invoked whenever an effect is queued on
// this scope or any descendant without a nearer scheduler. Pass nil to
// detach; queued effects then run synchronously on the next write.
func (s *Scope) SetScheduler(fn func()) {
	s.scheduleMu.Lock()
	s.schedule = fn
	s.scheduleMu.Unlock()
}

// SetFlushBudget overrides DefaultFlushBudget for flushes started at this
// scope. Values <= 0 restore the default.
func (s *Scope) SetFlushBudget(n int) {
	s.flushBudget = n
}

// OnCleanup registers fn to run when the scope is disposed. Cleanups run in
// reverse registration order. Registering on a disposed scope runs fn
// immediately.
func (s *Scope) OnCleanup(fn func()) {
	if s.disposed.Load() {
		fn()
		return
	}

	s.cleanupsMu.Lock()
	defer s.cleanupsMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// SetValue stores a context value on this scope, shadowing any value under
// the same key on ancestors.
func (s *Scope) SetValue(key, value any) {
	s.valuesMu.Lock()
	defer s.valuesMu.Unlock()

	if s.values == nil {
		s.values = make(map[any]any)
	}
	s.values[key] = value
}

// Value resolves a context value on this scope or the nearest ancestor that
// carries the key. Returns nil when no scope in the chain has it.
func (s *Scope) Value(key any) any {
	s.valuesMu.RLock()
	if s.values != nil {
		if v, ok := s.values[key]; ok {
			s.valuesMu.RUnlock()
			return v
		}
	}
	s.valuesMu.RUnlock()

	if s.parent != nil {
		return s.parent.Value(key)
	}

	return nil
}

// Flush runs queued effects in this scope's subtree until the queues are
// empty or the flush budget is spent. Effects queued while flushing run in
// the same flush, budget permitting, so cascades settle in one call.
func (s *Scope) Flush() FlushStats {
	budget := s.flushBudget
	if budget <= 0 {
		budget = DefaultFlushBudget
	}

	var stats FlushStats
	s.flush(budget, &stats)
	return stats
}

func (s *Scope) flush(budget int, stats *FlushStats) {
	if s.disposed.Load() {
		return
	}

	for {
		s.pendingMu.Lock()
		queue := s.pending
		s.pending = nil
		s.pendingMu.Unlock()

		if len(queue) == 0 {
			break
		}

		for i, e := range queue {
			if !e.pending.Load() || e.disposed.Load() {
				continue
			}

			if stats.Ran >= budget {
				s.requeue(queue[i:], stats)
				return
			}

			e.run()
			stats.Ran++
		}
	}

	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.childrenMu.Unlock()

	for _, child := range children {
		child.flush(budget, stats)
	}
}

// requeue puts unexecuted, still-pending effects back on the queue for the
// next flush.
func (s *Scope) requeue(rest []*Effect, stats *FlushStats) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	for _, e := range rest {
		if e.pending.Load() && !e.disposed.Load() {
			s.pending = append(s.pending, e)
			stats.Deferred++
		}
	}
}

// PendingEffects reports whether this scope or any descendant has queued
// effects.
func (s *Scope) PendingEffects() bool {
	if s.disposed.Load() {
		return false
	}

	s.pendingMu.Lock()
	has := len(s.pending) > 0
	s.pendingMu.Unlock()
	if has {
		return true
	}

	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.childrenMu.Unlock()

	for _, child := range children {
		if child.PendingEffects() {
			return true
		}
	}

	return false
}

// Dispose tears down the scope: children in reverse creation order, then
// effects, then cleanups in reverse registration order. Disposal is
// idempotent; a disposed scope refuses new registrations.
func (s *Scope) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	s.effectsMu.Lock()
	effects := s.effects
	s.effects = nil
	s.effectsMu.Unlock()

	for _, e := range effects {
		e.Dispose()
	}

	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	s.pendingMu.Lock()
	s.pending = nil
	s.pendingMu.Unlock()
}

func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

func (s *Scope) registerEffect(e *Effect) {
	if s.disposed.Load() {
		return
	}

	s.effectsMu.Lock()
	defer s.effectsMu.Unlock()
	s.effects = append(s.effects, e)
}

// queueEffect queues e for the next flush when a scheduler is reachable up
// the scope chain. Reports whether the effect was taken; false tells the
// caller to run it synchronously. Queueing on a disposed scope drops the
// effect, since disposal is about to dispose it anyway.
func (s *Scope) queueEffect(e *Effect) bool {
	if s.disposed.Load() {
		return true
	}

	sched := s.schedulerUp()
	if sched == nil {
		return false
	}

	s.pendingMu.Lock()
	s.pending = append(s.pending, e)
	s.pendingMu.Unlock()

	sched()
	return true
}

// schedulerUp returns the nearest scheduler on this scope or an ancestor.
func (s *Scope) schedulerUp() func() {
	for cur := s; cur != nil; cur = cur.parent {
		cur.scheduleMu.RLock()
		sched := cur.schedule
		cur.scheduleMu.RUnlock()
		if sched != nil {
			return sched
		}
	}
	return nil
}
