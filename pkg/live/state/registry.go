package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/weft-dev/weft/internal/log"
	"github.com/weft-dev/weft/pkg/weft"
)

// Snapshot maps persist keys to their marshaled signal values.
type Snapshot map[string]json.RawMessage

// Encode serializes the snapshot for storage.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a stored snapshot payload.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("state: decode snapshot: %w", err)
	}
	return snap, nil
}

// Registry tracks a session's persisted signals. The live server installs
// one per session under weft.PersistRegistryKey, so signals created with
// weft.Persist register here as the component tree mounts.
//
// Restored values for signals that have not been re-created yet are held
// as pending and applied the moment the matching key registers. Pending
// values also survive Capture, so a snapshot taken before every component
// has remounted does not lose them.
type Registry struct {
	mu      sync.Mutex
	entries map[string]weft.Persistable
	pending Snapshot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]weft.Persistable),
		pending: make(Snapshot),
	}
}

// RegisterPersistable implements weft.PersistRegistry. Transient and
// keyless signals are ignored.
func (r *Registry) RegisterPersistable(p weft.Persistable) {
	if p == nil || p.Transient() {
		return
	}
	key := p.PersistKey()
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[key]; dup {
		logger := log.WithComponent("state")
		logger.Warn().
			Str("key", key).
			Msg("duplicate persist key overwrites earlier registration")
	}
	r.entries[key] = p
	if raw, ok := r.pending[key]; ok {
		delete(r.pending, key)
		if err := p.UnmarshalValue(raw); err != nil {
			logger := log.WithComponent("state")
			logger.Warn().
				Err(err).
				Str("key", key).
				Msg("restore persisted value")
		}
	}
}

// Capture marshals every registered signal into a snapshot. Pending values
// whose signals never re-registered are carried forward unchanged.
func (r *Registry) Capture() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(Snapshot, len(r.entries)+len(r.pending))
	for key, raw := range r.pending {
		snap[key] = raw
	}
	for key, p := range r.entries {
		raw, err := p.MarshalValue()
		if err != nil {
			return nil, fmt.Errorf("state: marshal %q: %w", key, err)
		}
		snap[key] = raw
	}
	return snap, nil
}

// Restore applies a loaded snapshot: values for already-registered keys
// rehydrate their signals immediately, the rest wait as pending.
func (r *Registry) Restore(snap Snapshot) {
	if len(snap) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, raw := range snap {
		p, ok := r.entries[key]
		if !ok {
			r.pending[key] = raw
			continue
		}
		if err := p.UnmarshalValue(raw); err != nil {
			logger := log.WithComponent("state")
			logger.Warn().
				Err(err).
				Str("key", key).
				Msg("restore persisted value")
		}
	}
}

// Len reports the number of registered signals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

var _ weft.PersistRegistry = (*Registry)(nil)
