package state

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tok-1", []byte(`{"count":3}`), time.Minute))

	got, err := s.Load(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"count":3}`), got)

	require.NoError(t, s.Delete(ctx, "tok-1"))
	_, err = s.Load(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreLoadUnknownToken(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Load(context.Background(), "never-saved")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "short", []byte(`1`), time.Millisecond))
	require.NoError(t, s.Save(ctx, "long", []byte(`2`), time.Hour))
	require.NoError(t, s.Save(ctx, "forever", []byte(`3`), 0))

	time.Sleep(10 * time.Millisecond)
	_, err := s.Load(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound, "expired entry should be gone on load")

	// Sweep far in the future: only the un-expiring entry survives.
	s.removeExpired(time.Now().Add(2 * time.Hour))
	_, err = s.Load(ctx, "long")
	assert.ErrorIs(t, err, ErrNotFound)
	got, err := s.Load(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte(`3`), got)
}

func TestMemoryStoreSizeCap(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	big := bytes.Repeat([]byte("x"), MaxSnapshotSize+1)
	err := s.Save(context.Background(), "big", big, time.Minute)
	assert.ErrorIs(t, err, ErrSnapshotTooLarge)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreCopiesPayload(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	payload := []byte(`{"a":1}`)
	require.NoError(t, s.Save(ctx, "tok", payload, time.Minute))
	payload[2] = 'z'

	got, err := s.Load(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got, "store must not alias the caller's buffer")
}

func TestMemoryStoreCloseStopsSweeper(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewMemoryStore()
	require.NoError(t, s.Save(context.Background(), "tok", []byte(`{}`), time.Minute))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	assert.ErrorIs(t, s.Save(context.Background(), "tok", []byte(`{}`), time.Minute), ErrClosed)
	_, err := s.Load(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	s, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "tok-1", []byte(`{"query":"shoes"}`), time.Minute))

	got, err := s.Load(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"query":"shoes"}`), got)

	require.NoError(t, s.Delete(ctx, "tok-1"))
	_, err = s.Load(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, "tok-1"), "deleting a missing token is not an error")
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "tok", []byte(`{"cart":2}`), time.Hour))
	require.NoError(t, s.Close())

	s, err = OpenBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"cart":2}`), got)
}

func TestBadgerStoreSizeCap(t *testing.T) {
	s, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	big := bytes.Repeat([]byte("x"), MaxSnapshotSize+1)
	assert.ErrorIs(t, s.Save(context.Background(), "big", big, time.Minute), ErrSnapshotTooLarge)
}

func TestOpen(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	s.Close()

	s, err = Open(KindMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	s.Close()

	s, err = Open(KindBadger, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	s.Close()

	_, err = Open("postgres", "")
	assert.ErrorContains(t, err, "unknown store kind")
}
