package state

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store kinds accepted by Open. They match the state.store values of
// weft.json.
const (
	KindMemory = "memory"
	KindBadger = "badger"
)

// MaxSnapshotSize caps the encoded size of a single session snapshot.
// Stores reject larger payloads with ErrSnapshotTooLarge rather than let
// one session monopolize the store.
const MaxSnapshotSize = 256 << 10

var (
	// ErrNotFound is returned by Load when no snapshot exists for the
	// token, or when it has expired.
	ErrNotFound = errors.New("state: snapshot not found")

	// ErrSnapshotTooLarge is returned by Save when the payload exceeds
	// MaxSnapshotSize.
	ErrSnapshotTooLarge = errors.New("state: snapshot exceeds size cap")

	// ErrClosed is returned by Save after the store has been closed.
	ErrClosed = errors.New("state: store closed")
)

// Store persists encoded session snapshots keyed by resume token.
//
// Save overwrites any existing snapshot for the token. A positive ttl
// bounds the snapshot's lifetime; non-positive means it is kept until
// deleted.
type Store interface {
	Save(ctx context.Context, token string, snapshot []byte, ttl time.Duration) error
	Load(ctx context.Context, token string) ([]byte, error)
	Delete(ctx context.Context, token string) error
	Close() error
}

// Open returns the store selected by kind: KindMemory (or "") for an
// in-process store, KindBadger for an embedded database rooted at path.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", KindMemory:
		return NewMemoryStore(), nil
	case KindBadger:
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("state: unknown store kind %q (supported: %s, %s)", kind, KindMemory, KindBadger)
	}
}
