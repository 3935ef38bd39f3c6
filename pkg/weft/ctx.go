package weft

import "context"

// Ctx is the runtime context available during renders, effect runs, and
// event handlers inside a live session.
type Ctx interface {
	// Dispatch queues fn to run on the session's event loop. Safe to call
	// from any goroutine; it is the correct way to write signals from
	// asynchronous work:
	//
	//	go func() {
	//	    user, err := loadUser(ctx.StdContext(), id)
	//	    ctx.Dispatch(func() {
	//	        if err != nil {
	//	            loadErr.Set(err)
	//	            return
	//	        }
	//	        current.Set(user)
	//	    })
	//	}()
	Dispatch(fn func())

	// StdContext returns the standard library context for the current tick,
	// carrying cancellation and trace propagation. Pass it to anything that
	// does I/O.
	StdContext() context.Context
}

// UseCtx returns the runtime context for the active session tick, or nil
// outside of a render, effect, or event handler.
func UseCtx() Ctx {
	c := currentFrame().ctx
	if c == nil {
		return nil
	}
	if ctx, ok := c.(Ctx); ok {
		return ctx
	}
	return nil
}

// WithCtx runs fn with c installed as the runtime context. The session
// runtime wraps event handling and rendering in this; application code
// rarely calls it.
func WithCtx(c any, fn func()) {
	f := currentFrame()
	old := f.ctx
	f.ctx = c
	defer func() {
		f.ctx = old
		releaseFrameIfEmpty(f)
	}()
	fn()
}

// Provide stores a context value on the current scope, visible to Lookup
// calls in the scope's subtree. No-op outside a scope.
func Provide(key, value any) {
	if scope := currentScope(); scope != nil {
		scope.SetValue(key, value)
	}
}

// Lookup resolves a context value from the nearest scope in the current
// chain that provides the key. Returns nil when absent or outside a scope.
func Lookup(key any) any {
	if scope := currentScope(); scope != nil {
		return scope.Value(key)
	}
	return nil
}
