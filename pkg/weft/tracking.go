package weft

import (
	"runtime"
	"sync"
)

// frame holds the reactive state of one goroutine: the scope that owns newly
// created primitives, the listener currently tracking reads, batch nesting,
// queued batch notifications, and the runtime context for UseCtx.
//
// Frames are keyed by goroutine ID so concurrent sessions track
// independently without any coordination.
type frame struct {
	scope    *Scope
	listener Listener

	batchDepth int
	queued     []Listener

	ctx any
}

// empty reports whether the frame carries no state and can be dropped from
// the frame map.
func (f *frame) empty() bool {
	return f.scope == nil && f.listener == nil && f.batchDepth == 0 &&
		len(f.queued) == 0 && f.ctx == nil
}

// frames stores per-goroutine frames. sync.Map because distinct goroutines
// touch distinct keys and reads dominate.
var frames sync.Map

// goroutineID extracts the current goroutine's ID from the runtime stack
// header ("goroutine <id> ..."). An implementation detail; nothing outside
// this file may depend on goroutine identity.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// currentFrame returns the frame for the current goroutine, creating it on
// first use.
func currentFrame() *frame {
	gid := goroutineID()

	if f, ok := frames.Load(gid); ok {
		return f.(*frame)
	}

	f := &frame{}
	frames.Store(gid, f)
	return f
}

// releaseFrameIfEmpty drops the goroutine's frame once it carries no state.
// Goroutine IDs grow monotonically, so without this the frame map would grow
// with every short-lived goroutine that touched a signal.
func releaseFrameIfEmpty(f *frame) {
	if f.empty() {
		frames.Delete(goroutineID())
	}
}

// currentListener returns the listener tracking reads on this goroutine, or
// nil when reads are untracked.
func currentListener() Listener {
	return currentFrame().listener
}

// swapListener installs l as the tracking listener and returns the previous
// one for restoration.
func swapListener(l Listener) Listener {
	f := currentFrame()
	old := f.listener
	f.listener = l
	return old
}

// currentScope returns the scope owning new primitives on this goroutine.
func currentScope() *Scope {
	return currentFrame().scope
}

// swapScope installs s as the current scope and returns the previous one.
func swapScope(s *Scope) *Scope {
	f := currentFrame()
	old := f.scope
	f.scope = s
	return old
}

// batchDepth returns the current batch nesting depth for this goroutine.
func batchDepth() int {
	return currentFrame().batchDepth
}

// queueNotification records a listener to notify when the outermost batch on
// this goroutine completes.
func queueNotification(l Listener) {
	f := currentFrame()
	f.queued = append(f.queued, l)
}

// drainNotifications returns and clears the queued batch notifications.
func drainNotifications() []Listener {
	f := currentFrame()
	queued := f.queued
	f.queued = nil
	return queued
}

// WithScope runs fn with scope as the current scope, so signals, computed
// values, and effects created inside belong to it. The previous scope is
// restored afterwards. Use this when handing work to another goroutine that
// must create primitives owned by an existing scope:
//
//	go func() {
//	    weft.WithScope(scope, func() {
//	        ready := weft.NewSignal(false)
//	        ...
//	    })
//	}()
func WithScope(scope *Scope, fn func()) {
	f := currentFrame()
	old := f.scope
	f.scope = scope
	defer func() {
		f.scope = old
		releaseFrameIfEmpty(f)
	}()
	fn()
}

// WithListener runs fn with l tracking all signal reads. Used by the runtime
// to establish dependency tracking around component renders.
func WithListener(l Listener, fn func()) {
	f := currentFrame()
	old := f.listener
	f.listener = l
	defer func() {
		f.listener = old
		releaseFrameIfEmpty(f)
	}()
	fn()
}

// Untracked runs fn with dependency tracking suspended: signal reads inside
// do not subscribe the current listener. For a single read, Peek is clearer.
func Untracked(fn func()) {
	f := currentFrame()
	old := f.listener
	f.listener = nil
	defer func() {
		f.listener = old
		releaseFrameIfEmpty(f)
	}()
	fn()
}
