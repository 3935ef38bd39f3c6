package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/weft-dev/weft/pkg/live/state"
)

func newTestManager(t *testing.T, limits Limits) *SessionManager {
	t.Helper()
	store := state.NewMemoryStore()
	m := newSessionManager(limits, sessionConfig{
		signer:       newTokenSigner([]byte("manager-test-secret")),
		store:        store,
		resumeWindow: limits.ResumeWindow,
		eventRate:    rate.Limit(1000),
		eventBurst:   1000,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, m.Shutdown(ctx))
		store.Close()
	})
	return m
}

func TestManagerCreateAndLookup(t *testing.T) {
	m := newTestManager(t, Limits{})

	s, err := m.Create("198.51.100.1")
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Same(t, s, m.Get(s.ID()))
	assert.Nil(t, m.Get("no-such-id"))
	assert.Equal(t, 1, m.Count())
}

func TestManagerPerIPLimit(t *testing.T) {
	m := newTestManager(t, Limits{MaxPerIP: 2})

	for i := 0; i < 2; i++ {
		_, err := m.Create("198.51.100.1")
		require.NoError(t, err)
	}
	_, err := m.Create("198.51.100.1")
	assert.ErrorIs(t, err, ErrTooManyPerIP)

	// Another address is unaffected.
	_, err = m.Create("198.51.100.2")
	assert.NoError(t, err)
}

func TestManagerPerIPCountDropsOnClose(t *testing.T) {
	m := newTestManager(t, Limits{MaxPerIP: 1})

	s, err := m.Create("198.51.100.1")
	require.NoError(t, err)
	_, err = m.Create("198.51.100.1")
	require.ErrorIs(t, err, ErrTooManyPerIP)

	s.Close("done")
	_, err = m.Create("198.51.100.1")
	assert.NoError(t, err)
}

func TestManagerEvictsIdleAtCap(t *testing.T) {
	m := newTestManager(t, Limits{MaxSessions: 2})

	oldest, err := m.Create("198.51.100.1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond) // order LastActive
	_, err = m.Create("198.51.100.2")
	require.NoError(t, err)

	// At the cap, the longest-idle detached session makes room.
	s3, err := m.Create("198.51.100.3")
	require.NoError(t, err)
	require.NotNil(t, s3)

	assert.Equal(t, 2, m.Count())
	assert.Nil(t, m.Get(oldest.ID()), "oldest detached session evicted")
	waitFor(t, func() bool { return oldest.closed.Load() }, "evicted session closed")
}

func TestManagerRefusesWhenAllAttached(t *testing.T) {
	m := newTestManager(t, Limits{MaxSessions: 2})

	for i := 0; i < 2; i++ {
		s, err := m.Create("198.51.100.1")
		require.NoError(t, err)
		s.MountRoot("/", newCounterComp())
		s.attach(newFakeConn(), 0, false)
	}

	_, err := m.Create("198.51.100.2")
	assert.ErrorIs(t, err, ErrMaxSessions)
	assert.Equal(t, 2, m.Count())
}

func TestManagerSweepExpiresDetached(t *testing.T) {
	m := newTestManager(t, Limits{ResumeWindow: time.Minute})

	s, err := m.Create("198.51.100.1")
	require.NoError(t, err)

	// Well within the window: nothing happens.
	m.sweep(time.Now())
	assert.Equal(t, 1, m.Count())

	// Past the window: the detached session is closed and dropped.
	m.sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, m.Count())
	assert.True(t, s.closed.Load())
}

func TestManagerSweepSparesAttached(t *testing.T) {
	m := newTestManager(t, Limits{ResumeWindow: time.Minute})

	s, err := m.Create("198.51.100.1")
	require.NoError(t, err)
	s.MountRoot("/", newCounterComp())
	s.attach(newFakeConn(), 0, false)

	m.sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 1, m.Count())
	assert.False(t, s.closed.Load())
}

func TestManagerStats(t *testing.T) {
	m := newTestManager(t, Limits{})

	a, err := m.Create("198.51.100.1")
	require.NoError(t, err)
	_, err = m.Create("198.51.100.2")
	require.NoError(t, err)
	a.MountRoot("/", newCounterComp())
	a.attach(newFakeConn(), 0, false)
	m.markResumed()

	stats := m.Stats()
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Attached)
	assert.Equal(t, 2, stats.Peak)
	assert.Equal(t, uint64(2), stats.Created)
	assert.Equal(t, uint64(1), stats.Resumed)
}

func TestManagerForEach(t *testing.T) {
	m := newTestManager(t, Limits{})

	for i := 0; i < 3; i++ {
		_, err := m.Create("198.51.100.1")
		require.NoError(t, err)
	}

	seen := 0
	m.ForEach(func(s *Session) {
		seen++
		// Session methods that take the session lock must be safe here.
		_ = s.Attached()
	})
	assert.Equal(t, 3, seen)
}

func TestManagerShutdownClosesSessions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := state.NewMemoryStore()
	m := newSessionManager(Limits{}, sessionConfig{
		signer:       newTokenSigner([]byte("manager-test-secret")),
		store:        store,
		resumeWindow: time.Minute,
		eventRate:    rate.Limit(1000),
		eventBurst:   1000,
	})

	attached, err := m.Create("198.51.100.1")
	require.NoError(t, err)
	attached.MountRoot("/", newCounterComp())
	attached.attach(newFakeConn(), 0, false)
	detached, err := m.Create("198.51.100.2")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	assert.True(t, attached.closed.Load())
	assert.True(t, detached.closed.Load())
	assert.Equal(t, 0, m.Count())
	require.NoError(t, store.Close())
}

func TestManagerShutdownHonorsContext(t *testing.T) {
	m := newTestManager(t, Limits{})
	_, err := m.Create("198.51.100.1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Shutdown(ctx), context.Canceled)
}
