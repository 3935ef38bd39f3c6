package weft

import "testing"

func TestScopeDisposeOrder(t *testing.T) {
	var order []string
	root := NewScope(nil)

	root.Run(func() {
		OnCleanup(func() { order = append(order, "root-1") })
		OnCleanup(func() { order = append(order, "root-2") })
	})

	childA := NewScope(root)
	childA.Run(func() {
		OnCleanup(func() { order = append(order, "a") })
	})
	childB := NewScope(root)
	childB.Run(func() {
		OnCleanup(func() { order = append(order, "b") })
	})

	root.Dispose()

	// Children in reverse creation order, then own cleanups in reverse
	// registration order.
	want := []string{"b", "a", "root-2", "root-1"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestScopeDisposeDisposesEffects(t *testing.T) {
	scope := NewScope(nil)
	count := NewSignal(0)
	runs := 0

	scope.Run(func() {
		NewEffect(func() Cleanup {
			_ = count.Get()
			runs++
			return nil
		})
	})

	scope.Dispose()
	count.Set(1)

	if runs != 1 {
		t.Errorf("effect owned by disposed scope must not re-run, got %d runs", runs)
	}
}

func TestScopeDisposeIsIdempotent(t *testing.T) {
	scope := NewScope(nil)
	cleanups := 0
	scope.OnCleanup(func() { cleanups++ })

	scope.Dispose()
	scope.Dispose()

	if cleanups != 1 {
		t.Errorf("expected 1 cleanup run, got %d", cleanups)
	}
}

func TestScopeOnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	scope := NewScope(nil)
	scope.Dispose()

	ran := false
	scope.OnCleanup(func() { ran = true })

	if !ran {
		t.Error("cleanup registered after dispose should run immediately")
	}
}

func TestScopeValues(t *testing.T) {
	type key struct{}

	parent := NewScope(nil)
	child := NewScope(parent)
	defer parent.Dispose()

	parent.SetValue(key{}, "from-parent")

	if got := child.Value(key{}); got != "from-parent" {
		t.Errorf("expected value from parent chain, got %v", got)
	}

	child.SetValue(key{}, "shadowed")
	if got := child.Value(key{}); got != "shadowed" {
		t.Errorf("expected shadowed value, got %v", got)
	}
	if got := parent.Value(key{}); got != "from-parent" {
		t.Errorf("parent value must be untouched, got %v", got)
	}

	if got := child.Value("missing"); got != nil {
		t.Errorf("expected nil for missing key, got %v", got)
	}
}

func TestProvideLookup(t *testing.T) {
	type themeKey struct{}

	scope := NewScope(nil)
	defer scope.Dispose()

	scope.Run(func() {
		Provide(themeKey{}, "dark")
		if got := Lookup(themeKey{}); got != "dark" {
			t.Errorf("expected dark, got %v", got)
		}
	})

	if got := Lookup(themeKey{}); got != nil {
		t.Errorf("Lookup outside a scope should return nil, got %v", got)
	}
}

func TestScopeFlushBudget(t *testing.T) {
	scope := NewScope(nil)
	defer scope.Dispose()
	scope.SetScheduler(func() {})
	scope.SetFlushBudget(5)

	count := NewSignal(0)
	scope.Run(func() {
		NewEffect(func() Cleanup {
			// Re-dirties itself every run until the counter stops moving.
			if v := count.Get(); v < 50 {
				count.Set(v + 1)
			}
			return nil
		})
	})

	stats := scope.Flush()
	if stats.Ran != 5 {
		t.Errorf("expected 5 runs within budget, got %d", stats.Ran)
	}
	if stats.Deferred != 1 {
		t.Errorf("expected 1 deferred effect, got %d", stats.Deferred)
	}
	if !scope.PendingEffects() {
		t.Error("deferred effect should remain pending")
	}

	// The next flush continues where the budget cut off.
	stats = scope.Flush()
	if stats.Ran != 5 {
		t.Errorf("expected 5 more runs, got %d", stats.Ran)
	}
}

func TestScopeFlushRunsChildQueues(t *testing.T) {
	root := NewScope(nil)
	defer root.Dispose()
	root.SetScheduler(func() {})

	child := NewScope(root)
	count := NewSignal(0)
	runs := 0
	child.Run(func() {
		NewEffect(func() Cleanup {
			_ = count.Get()
			runs++
			return nil
		})
	})

	count.Set(1)
	if runs != 1 {
		t.Fatalf("child effect should queue against the root scheduler, got %d runs", runs)
	}

	root.Flush()
	if runs != 2 {
		t.Errorf("root flush should drain child queues, got %d runs", runs)
	}
}

func TestScopeCascadeSettlesInOneFlush(t *testing.T) {
	scope := NewScope(nil)
	defer scope.Dispose()
	scope.SetScheduler(func() {})

	first := NewSignal(0)
	second := NewSignal(0)
	var secondSeen []int

	scope.Run(func() {
		// Effect A forwards first into second; effect B observes second.
		NewEffect(func() Cleanup {
			second.Set(first.Get())
			return nil
		})
		NewEffect(func() Cleanup {
			secondSeen = append(secondSeen, second.Get())
			return nil
		})
	})

	first.Set(7)
	scope.Flush()

	if len(secondSeen) == 0 || secondSeen[len(secondSeen)-1] != 7 {
		t.Errorf("cascaded write should settle within one flush, saw %v", secondSeen)
	}
	if scope.PendingEffects() {
		t.Error("no effects should remain pending after the cascade settles")
	}
}
