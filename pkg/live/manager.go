package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/weft-dev/weft/internal/log"
)

// Errors returned by Create when the server is at capacity.
var (
	ErrMaxSessions  = errors.New("live: session limit reached")
	ErrTooManyPerIP = errors.New("live: too many sessions from this address")
)

const (
	// DefaultResumeWindow is how long a detached session stays
	// resumable when no window is configured.
	DefaultResumeWindow = 5 * time.Minute

	managerSweepInterval = 30 * time.Second
)

// Limits bounds what one server holds in memory.
type Limits struct {
	// MaxSessions caps sessions held in memory; 0 means unlimited.
	// At the cap, creating a session first tries to evict the
	// longest-idle detached one.
	MaxSessions int

	// MaxPerIP caps concurrent sessions per client address; 0 means
	// unlimited.
	MaxPerIP int

	// ResumeWindow is how long a detached session stays in memory
	// awaiting a reconnect. Snapshots outlive it slightly, so a
	// client can still restore after the session itself is swept.
	ResumeWindow time.Duration
}

// ManagerStats is a point-in-time summary of session occupancy.
type ManagerStats struct {
	Active   int    // sessions in memory
	Attached int    // sessions with a live connection
	Peak     int    // high-water mark of Active
	Created  uint64 // sessions created since start
	Resumed  uint64 // successful resumes since start
}

// SessionManager owns the sessions of one server: creation under
// limits, lookup, and expiry of detached sessions.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byIP     map[string]int
	peak     int

	limits Limits
	cfg    sessionConfig
	logger zerolog.Logger

	created atomic.Uint64
	resumed atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
}

func newSessionManager(limits Limits, cfg sessionConfig) *SessionManager {
	if limits.ResumeWindow <= 0 {
		limits.ResumeWindow = DefaultResumeWindow
	}
	m := &SessionManager{
		sessions: make(map[string]*Session),
		byIP:     make(map[string]int),
		limits:   limits,
		cfg:      cfg,
		logger:   log.WithComponent("live"),
		done:     make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Create makes a new session for a client at remote (address only, no
// port), or refuses when limits are hit.
func (m *SessionManager) Create(remote string) (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.limits.MaxSessions > 0 && len(m.sessions) >= m.limits.MaxSessions {
		if !m.evictIdleLocked() {
			return nil, ErrMaxSessions
		}
	}
	if m.limits.MaxPerIP > 0 && remote != "" && m.byIP[remote] >= m.limits.MaxPerIP {
		return nil, ErrTooManyPerIP
	}

	s, err := newSession(id, remote, m.cfg)
	if err != nil {
		return nil, err
	}
	s.onClose = m.remove

	m.sessions[id] = s
	if remote != "" {
		m.byIP[remote]++
	}
	if len(m.sessions) > m.peak {
		m.peak = len(m.sessions)
	}
	m.created.Add(1)
	metricSessionsCreated.Inc()
	setActiveSessions(len(m.sessions))
	return s, nil
}

// Get returns the session with the given ID, or nil.
func (m *SessionManager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Count returns the number of sessions in memory.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ForEach calls fn for every session. The snapshot is taken under the
// lock but fn runs outside it, so fn may use any session method.
func (m *SessionManager) ForEach(fn func(*Session)) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()
	for _, s := range all {
		fn(s)
	}
}

// Stats returns occupancy counters.
func (m *SessionManager) Stats() ManagerStats {
	m.mu.Lock()
	stats := ManagerStats{
		Active:  len(m.sessions),
		Peak:    m.peak,
		Created: m.created.Load(),
		Resumed: m.resumed.Load(),
	}
	for _, s := range m.sessions {
		if s.Attached() {
			stats.Attached++
		}
	}
	m.mu.Unlock()
	return stats
}

// markResumed records a successful reattach or restore.
func (m *SessionManager) markResumed() {
	m.resumed.Add(1)
	metricSessionsResumed.Inc()
}

// remove drops a closed session from the maps. Installed as the
// session's onClose hook; safe to call twice.
func (m *SessionManager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(s)
}

func (m *SessionManager) removeLocked(s *Session) {
	if _, ok := m.sessions[s.id]; !ok {
		return
	}
	delete(m.sessions, s.id)
	if s.remote != "" {
		if m.byIP[s.remote]--; m.byIP[s.remote] <= 0 {
			delete(m.byIP, s.remote)
		}
	}
	setActiveSessions(len(m.sessions))
}

// evictIdleLocked drops the longest-idle detached session to make
// room. Attached sessions are never evicted.
func (m *SessionManager) evictIdleLocked() bool {
	var victim *Session
	var oldest time.Time
	for _, s := range m.sessions {
		if s.Attached() {
			continue
		}
		if last := s.LastActive(); victim == nil || last.Before(oldest) {
			victim, oldest = s, last
		}
	}
	if victim == nil {
		return false
	}
	m.removeLocked(victim)
	recordEviction("lru")
	m.logger.Info().
		Str(log.FieldSessionID, victim.id).
		Msg("evicting idle session to make room")
	// Close detaches and saves the snapshot, which can block on the
	// store; do it off the manager lock.
	go victim.Close("evicted to make room")
	return true
}

func (m *SessionManager) sweepLoop() {
	ticker := time.NewTicker(managerSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now())
		case <-m.done:
			return
		}
	}
}

// sweep closes detached sessions idle beyond the resume window.
func (m *SessionManager) sweep(now time.Time) {
	var expired []*Session
	m.mu.Lock()
	for _, s := range m.sessions {
		if !s.Attached() && now.Sub(s.LastActive()) > m.limits.ResumeWindow {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		m.removeLocked(s)
	}
	m.mu.Unlock()

	for _, s := range expired {
		recordEviction("expired")
		s.Close("resume window expired")
	}
	if len(expired) > 0 {
		m.logger.Debug().Int(log.FieldSessions, len(expired)).Msg("swept expired sessions")
	}
}

// Shutdown stops the sweeper and closes every session. Sessions save
// their snapshots on the way down, so clients can resume after a
// restart when the signing secret is configured.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Close("server shutting down")
	}
	return nil
}
