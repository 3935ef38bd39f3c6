package weft

import "sync"

// source provides type-erased subscriber management. It is embedded in
// Signal[T] and Computed[T] so both share one subscription implementation.
type source struct {
	id uint64

	subs  []Listener
	subMu sync.RWMutex
}

// subscribe adds a listener, deduplicating by listener ID so a listener that
// reads the same source several times during one run subscribes once.
func (s *source) subscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}

	s.subs = append(s.subs, l)
}

// unsubscribe removes a listener. Order of the subscriber list is not
// meaningful, so removal swaps with the last element.
func (s *source) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			s.subs[i] = s.subs[len(s.subs)-1]
			s.subs = s.subs[:len(s.subs)-1]
			return
		}
	}
}

// notify marks every subscriber dirty. Subscribers are copied out under the
// read lock first so no lock is held while listener code runs. Inside a
// batch, notifications queue on the goroutine frame instead and are
// delivered, deduplicated, when the outermost batch ends.
func (s *source) notify() {
	s.subMu.RLock()
	subs := make([]Listener, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	if batchDepth() > 0 {
		for _, sub := range subs {
			queueNotification(sub)
		}
		return
	}

	for _, sub := range subs {
		sub.MarkDirty()
	}
}

// track subscribes the current listener, if any, and records this source on
// it for later unsubscription. Called on every tracked read.
func (s *source) track() {
	l := currentListener()
	if l == nil {
		return
	}
	s.subscribe(l)
	if t, ok := l.(tracker); ok {
		t.addSource(s)
	}
}

// observerCount reports the current number of subscribers. Used by tests and
// by the session runtime when deciding whether a detached signal is live.
func (s *source) observerCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}
