package weft

// Batch groups signal writes so subscribers are notified once, after fn
// returns, instead of once per write. Notifications are deduplicated by
// listener ID, so a component reading three of the written signals
// re-renders once. Batches nest; delivery happens when the outermost batch
// ends.
//
//	weft.Batch(func() {
//	    firstName.Set("Ada")
//	    lastName.Set("Lovelace")
//	    age.Set(36)
//	})
func Batch(fn func()) {
	f := currentFrame()
	f.batchDepth++

	defer func() {
		f.batchDepth--
		if f.batchDepth == 0 {
			deliverQueued()
			releaseFrameIfEmpty(f)
		}
	}()

	fn()
}

// deliverQueued drains the goroutine's queued notifications and marks each
// distinct listener dirty once.
func deliverQueued() {
	queued := drainNotifications()
	if len(queued) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(queued))
	for _, l := range queued {
		id := l.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		l.MarkDirty()
	}
}
