package state

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryStore keeps snapshots in process memory. Expired entries are
// removed lazily on Load and by a background sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryStore creates a memory store and starts its sweep loop. Call
// Close to stop the sweeper.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) Save(ctx context.Context, token string, snapshot []byte, ttl time.Duration) error {
	if len(snapshot) > MaxSnapshotSize {
		return ErrSnapshotTooLarge
	}
	entry := memoryEntry{payload: append([]byte(nil), snapshot...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		return ErrClosed
	}
	s.entries[token] = entry
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, token string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(s.entries, token)
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.payload...), nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

// Close stops the sweep loop and drops all entries.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.entries = nil
		s.mu.Unlock()
	})
	return nil
}

// Len reports the number of stored snapshots, expired entries included
// until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			s.removeExpired(now)
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore) removeExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, entry := range s.entries {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(s.entries, token)
		}
	}
}
