package weft

import (
	"sync"
	"testing"
)

func TestGlobalSignal(t *testing.T) {
	status := NewGlobalSignal("online")

	if status.Get() != "online" {
		t.Errorf("expected online, got %s", status.Get())
	}

	listener := newTestListener()
	WithListener(listener, func() {
		_ = status.Get()
	})

	status.Set("maintenance")
	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 notification, got %d", listener.getDirtyCount())
	}
}

// fakeSessionVars is a minimal SessionVars for exercising SharedVar
// resolution without a live session.
type fakeSessionVars struct {
	mu   sync.Mutex
	vars map[uint64]any
}

func newFakeSessionVars() *fakeSessionVars {
	return &fakeSessionVars{vars: make(map[uint64]any)}
}

func (f *fakeSessionVars) GetOrCreate(id uint64, create func() any) any {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v, ok := f.vars[id]; ok {
		return v
	}
	v := create()
	f.vars[id] = v
	return v
}

func TestSharedVarPerSessionInstances(t *testing.T) {
	cart := NewSharedVar([]string(nil))

	sessionA := NewScope(nil)
	sessionB := NewScope(nil)
	defer sessionA.Dispose()
	defer sessionB.Dispose()
	sessionA.SetValue(SessionVarsKey, SessionVars(newFakeSessionVars()))
	sessionB.SetValue(SessionVarsKey, SessionVars(newFakeSessionVars()))

	sessionA.Run(func() {
		cart.Set([]string{"book"})
	})

	sessionA.Run(func() {
		items := cart.Get()
		if len(items) != 1 || items[0] != "book" {
			t.Errorf("session A expected [book], got %v", items)
		}
	})

	sessionB.Run(func() {
		if items := cart.Get(); len(items) != 0 {
			t.Errorf("session B must not see session A's cart, got %v", items)
		}
	})
}

func TestSharedVarStableWithinSession(t *testing.T) {
	counter := NewSharedVar(0)

	session := NewScope(nil)
	defer session.Dispose()
	session.SetValue(SessionVarsKey, SessionVars(newFakeSessionVars()))

	var first, second *Signal[int]
	session.Run(func() {
		first = counter.Signal()
		second = counter.Signal()
	})

	if first == nil || first != second {
		t.Error("expected the same instance on repeated access within a session")
	}
}

func TestSharedVarOutsideSession(t *testing.T) {
	pref := NewSharedVar("light")

	if pref.Get() != "light" {
		t.Errorf("expected initial value outside a session, got %s", pref.Get())
	}
	if pref.Signal() != nil {
		t.Error("expected nil signal outside a session")
	}

	// Writes outside a session are dropped, not panics.
	pref.Set("dark")
	pref.Update(func(s string) string { return s + "!" })
}
