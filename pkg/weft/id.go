package weft

import "sync/atomic"

// idCounter is the source of unique IDs for all reactive primitives.
var idCounter uint64

// nextID returns the next unique ID. IDs are monotonically increasing and
// never reused for the lifetime of the process.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}
