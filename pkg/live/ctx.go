package live

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/weft-dev/weft/pkg/weft"
)

// Ctx is the runtime context the live server installs around renders,
// effects, and event handlers. It implements weft.Ctx; component code
// that needs the session-level extras can assert:
//
//	if c, ok := weft.UseCtx().(*live.Ctx); ok {
//		c.Logger().Info().Msg("clicked")
//	}
type Ctx struct {
	sess *Session
	std  context.Context
}

// Dispatch queues fn onto the session's event loop, where it runs with
// the same flush-and-render cycle as a client event. Safe to call from
// any goroutine.
func (c *Ctx) Dispatch(fn func()) {
	c.sess.Dispatch(fn)
}

// StdContext returns the context for the current tick. For client
// events it carries the session ID and the event's trace span.
func (c *Ctx) StdContext() context.Context {
	if c.std != nil {
		return c.std
	}
	return context.Background()
}

// SessionID returns the owning session's ID.
func (c *Ctx) SessionID() string {
	return c.sess.ID()
}

// Logger returns the session's logger.
func (c *Ctx) Logger() zerolog.Logger {
	return c.sess.logger
}

var _ weft.Ctx = (*Ctx)(nil)

// sessionVars backs weft.SharedVar with per-session storage. One
// instance lives on each session's root scope under
// weft.SessionVarsKey.
type sessionVars struct {
	mu   sync.Mutex
	vars map[uint64]any
}

func newSessionVars() *sessionVars {
	return &sessionVars{vars: make(map[uint64]any)}
}

func (v *sessionVars) GetOrCreate(id uint64, create func() any) any {
	v.mu.Lock()
	defer v.mu.Unlock()
	if val, ok := v.vars[id]; ok {
		return val
	}
	val := create()
	v.vars[id] = val
	return val
}

var _ weft.SessionVars = (*sessionVars)(nil)
