package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "snap:"

// BadgerStore keeps snapshots in an embedded Badger database so they
// survive server restarts. Expiry is delegated to Badger's entry TTLs.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if needed) a Badger database at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("state: create store dir: %w", err)
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("state: open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Save(ctx context.Context, token string, snapshot []byte, ttl time.Duration) error {
	if len(snapshot) > MaxSnapshotSize {
		return ErrSnapshotTooLarge
	}
	key := []byte(badgerKeyPrefix + token)
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, snapshot)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *BadgerStore) Load(ctx context.Context, token string) ([]byte, error) {
	key := []byte(badgerKeyPrefix + token)
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (s *BadgerStore) Delete(ctx context.Context, token string) error {
	key := []byte(badgerKeyPrefix + token)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BadgerStore)(nil)
)
