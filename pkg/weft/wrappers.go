package weft

// Typed wrappers over Signal for the value kinds component state most often
// takes. Each embeds the underlying signal, so the full Signal API stays
// available alongside the shorthand.

// Int wraps Signal[int] with counter operations.
type Int struct {
	*Signal[int]
}

// NewInt creates an integer signal.
func NewInt(initial int, opts ...SignalOption) *Int {
	return &Int{NewSignal(initial, opts...)}
}

// Inc increments by 1.
func (s *Int) Inc() {
	s.Update(func(n int) int { return n + 1 })
}

// Dec decrements by 1.
func (s *Int) Dec() {
	s.Update(func(n int) int { return n - 1 })
}

// Add adds n, which may be negative.
func (s *Int) Add(n int) {
	s.Update(func(v int) int { return v + n })
}

// Bool wraps Signal[bool] with toggle operations.
type Bool struct {
	*Signal[bool]
}

// NewBool creates a boolean signal.
func NewBool(initial bool, opts ...SignalOption) *Bool {
	return &Bool{NewSignal(initial, opts...)}
}

// Toggle flips the value.
func (s *Bool) Toggle() {
	s.Update(func(v bool) bool { return !v })
}

// SetTrue sets the value to true.
func (s *Bool) SetTrue() {
	s.Set(true)
}

// SetFalse sets the value to false.
func (s *Bool) SetFalse() {
	s.Set(false)
}

// List wraps Signal[[]T]. Mutating operations copy the backing slice before
// changing it; in-place mutation would leave old and new values equal under
// DeepEqual and suppress the notification.
type List[T any] struct {
	*Signal[[]T]
}

// NewList creates a list signal.
func NewList[T any](initial []T, opts ...SignalOption) *List[T] {
	return &List[T]{NewSignal(initial, opts...)}
}

// Append adds items to the end.
func (l *List[T]) Append(items ...T) {
	if len(items) == 0 {
		return
	}
	l.Update(func(cur []T) []T {
		next := make([]T, 0, len(cur)+len(items))
		next = append(next, cur...)
		return append(next, items...)
	})
}

// SetAt replaces the element at index i. Out-of-range indexes are ignored.
func (l *List[T]) SetAt(i int, item T) {
	l.Update(func(cur []T) []T {
		if i < 0 || i >= len(cur) {
			return cur
		}
		next := make([]T, len(cur))
		copy(next, cur)
		next[i] = item
		return next
	})
}

// RemoveAt deletes the element at index i. Out-of-range indexes are ignored.
func (l *List[T]) RemoveAt(i int) {
	l.Update(func(cur []T) []T {
		if i < 0 || i >= len(cur) {
			return cur
		}
		next := make([]T, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		return append(next, cur[i+1:]...)
	})
}

// Len returns the current length as a tracked read.
func (l *List[T]) Len() int {
	return len(l.Get())
}

// Dict wraps Signal[map[K]V]. Mutating operations copy the map first, for
// the same reason List copies its slice.
type Dict[K comparable, V any] struct {
	*Signal[map[K]V]
}

// NewDict creates a map signal.
func NewDict[K comparable, V any](initial map[K]V, opts ...SignalOption) *Dict[K, V] {
	return &Dict[K, V]{NewSignal(initial, opts...)}
}

// SetKey stores value under key.
func (d *Dict[K, V]) SetKey(key K, value V) {
	d.Update(func(cur map[K]V) map[K]V {
		next := make(map[K]V, len(cur)+1)
		for k, v := range cur {
			next[k] = v
		}
		next[key] = value
		return next
	})
}

// DeleteKey removes key. Deleting an absent key is a no-op.
func (d *Dict[K, V]) DeleteKey(key K) {
	d.Update(func(cur map[K]V) map[K]V {
		if _, ok := cur[key]; !ok {
			return cur
		}
		next := make(map[K]V, len(cur))
		for k, v := range cur {
			if k != key {
				next[k] = v
			}
		}
		return next
	})
}

// Key returns the value under key as a tracked read.
func (d *Dict[K, V]) Key(key K) (V, bool) {
	v, ok := d.Get()[key]
	return v, ok
}

// Len returns the current size as a tracked read.
func (d *Dict[K, V]) Len() int {
	return len(d.Get())
}
