package weft

import (
	"sync"
	"testing"
)

type testListener struct {
	id         uint64
	dirtyCount int
	mu         sync.Mutex
}

func newTestListener() *testListener {
	return &testListener{id: nextID()}
}

func (l *testListener) MarkDirty() {
	l.mu.Lock()
	l.dirtyCount++
	l.mu.Unlock()
}

func (l *testListener) ID() uint64 {
	return l.id
}

func (l *testListener) getDirtyCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirtyCount
}

func TestFrameIsPerGoroutine(t *testing.T) {
	f1 := currentFrame()
	f2 := currentFrame()
	if f1 != f2 {
		t.Error("same goroutine should get the same frame")
	}

	done := make(chan *frame)
	go func() {
		done <- currentFrame()
	}()
	other := <-done

	if other == f1 {
		t.Error("different goroutines should get different frames")
	}
}

func TestWithListenerRestoresPrevious(t *testing.T) {
	outer := newTestListener()
	inner := newTestListener()

	WithListener(outer, func() {
		if currentListener() != Listener(outer) {
			t.Error("expected outer listener to be current")
		}

		WithListener(inner, func() {
			if currentListener() != Listener(inner) {
				t.Error("expected inner listener to be current")
			}
		})

		if currentListener() != Listener(outer) {
			t.Error("expected outer listener to be restored")
		}
	})

	if currentListener() != nil {
		t.Error("expected no listener after WithListener returns")
	}
}

func TestWithScopeRestoresPrevious(t *testing.T) {
	outer := NewScope(nil)
	inner := NewScope(nil)

	WithScope(outer, func() {
		if currentScope() != outer {
			t.Error("expected outer scope to be current")
		}

		WithScope(inner, func() {
			if currentScope() != inner {
				t.Error("expected inner scope to be current")
			}
		})

		if currentScope() != outer {
			t.Error("expected outer scope to be restored")
		}
	})

	if currentScope() != nil {
		t.Error("expected no scope after WithScope returns")
	}
}

func TestUntrackedSuspendsTracking(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		Untracked(func() {
			_ = count.Get()
		})
	})

	count.Set(1)
	if listener.getDirtyCount() != 0 {
		t.Errorf("untracked read should not subscribe, got %d notifications", listener.getDirtyCount())
	}
}

func TestFrameReleasedWhenEmpty(t *testing.T) {
	done := make(chan uint64)
	go func() {
		WithListener(newTestListener(), func() {})
		done <- goroutineID()
	}()
	gid := <-done

	if _, ok := frames.Load(gid); ok {
		t.Error("empty frame should be removed from the frame map")
	}
}

func TestTrackingIsolatedAcrossGoroutines(t *testing.T) {
	count := NewSignal(0)
	tracked := newTestListener()

	var wg sync.WaitGroup
	wg.Add(1)
	WithListener(tracked, func() {
		_ = count.Get()

		// A concurrent goroutine reading the same signal must not inherit
		// this goroutine's listener.
		go func() {
			defer wg.Done()
			if currentListener() != nil {
				t.Error("listener leaked across goroutines")
			}
			_ = count.Get()
		}()
		wg.Wait()
	})

	count.Set(1)
	if tracked.getDirtyCount() != 1 {
		t.Errorf("expected exactly 1 notification, got %d", tracked.getDirtyCount())
	}
}
