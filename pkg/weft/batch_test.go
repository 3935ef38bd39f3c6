package weft

import "testing"

func TestBatchDeliversOnce(t *testing.T) {
	first := NewSignal("")
	last := NewSignal("")
	age := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = first.Get()
		_ = last.Get()
		_ = age.Get()
	})

	Batch(func() {
		first.Set("Ada")
		last.Set("Lovelace")
		age.Set(36)
	})

	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 deduplicated notification, got %d", listener.getDirtyCount())
	}
}

func TestBatchDefersUntilOutermostEnds(t *testing.T) {
	count := NewSignal(0)
	listener := newTestListener()

	WithListener(listener, func() {
		_ = count.Get()
	})

	Batch(func() {
		count.Set(1)

		Batch(func() {
			count.Set(2)
		})

		// Inner batch ended, but the outer one still holds delivery.
		if listener.getDirtyCount() != 0 {
			t.Errorf("nested batch must not deliver early, got %d", listener.getDirtyCount())
		}
	})

	if listener.getDirtyCount() != 1 {
		t.Errorf("expected 1 notification after outermost batch, got %d", listener.getDirtyCount())
	}
}

func TestBatchDefersEffects(t *testing.T) {
	a := NewSignal(0)
	b := NewSignal(0)
	var sums []int

	NewEffect(func() Cleanup {
		sums = append(sums, a.Get()+b.Get())
		return nil
	})

	Batch(func() {
		a.Set(1)
		b.Set(2)

		if len(sums) != 1 {
			t.Errorf("effect must not run mid-batch, ran %d times", len(sums))
		}
	})

	// One re-run, observing both writes at once. The effect never sees the
	// half-applied state a=1, b=0.
	if len(sums) != 2 || sums[1] != 3 {
		t.Errorf("expected sums [0 3], got %v", sums)
	}
}

func TestBatchEmptyIsNoOp(t *testing.T) {
	Batch(func() {})

	if batchDepth() != 0 {
		t.Errorf("expected batch depth 0 after empty batch, got %d", batchDepth())
	}
}

func TestBatchComputedInvalidationIsDeferred(t *testing.T) {
	count := NewSignal(1)
	double := NewComputed(func() int { return count.Get() * 2 })

	if double.Get() != 2 {
		t.Fatalf("expected 2, got %d", double.Get())
	}

	Batch(func() {
		count.Set(5)

		// Derived invalidation queues with every other notification, so
		// inside the batch the computed still serves the pre-batch value.
		if double.Peek() != 2 {
			t.Errorf("expected stale 2 inside batch, got %d", double.Peek())
		}
	})

	if double.Get() != 10 {
		t.Errorf("expected 10 after batch, got %d", double.Get())
	}
}
