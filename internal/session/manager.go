package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a session id is unknown
var ErrNotFound = errors.New("session not found")

// ErrLimitReached is returned when the manager is at capacity
var ErrLimitReached = errors.New("maximum sessions reached")

// Manager handles all active protocol sessions
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxSessions int
	timeout     time.Duration
	interval    time.Duration
	logger      zerolog.Logger

	totalCreated atomic.Int64
	totalClosed  atomic.Int64
	totalExpired atomic.Int64

	done      chan struct{}
	closeOnce sync.Once

	onSessionClosed func(*Session)
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithCleanupInterval sets how often idle sessions are swept
func WithCleanupInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// NewManager creates a session manager and starts its cleanup loop.
// A timeout of zero disables idle expiry.
func NewManager(maxSessions int, timeout time.Duration, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		timeout:     timeout,
		interval:    time.Minute,
		logger:      logger.With().Str("component", "session_manager").Logger(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.timeout > 0 {
		go m.cleanupLoop()
	}

	return m
}

// CreateSession registers a new session for the given transport
func (m *Manager) CreateSession(transport Transport) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("%w (%d)", ErrLimitReached, m.maxSessions)
	}

	s := NewSession(transport)
	s.OnClosed(func(s *Session) {
		m.removeSession(s)
		m.mu.RLock()
		callback := m.onSessionClosed
		m.mu.RUnlock()
		if callback != nil {
			callback(s)
		}
	})

	m.sessions[s.ID] = s
	m.totalCreated.Add(1)

	m.logger.Info().
		Str("session_id", s.ID).
		Str("transport", string(transport)).
		Int("active_sessions", len(m.sessions)).
		Msg("Session created")

	return s, nil
}

// GetSession retrieves a session by ID
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// EndSession closes a session by ID
func (m *Manager) EndSession(id string) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.Close()
	return nil
}

func (m *Manager) removeSession(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		return
	}
	delete(m.sessions, s.ID)
	m.totalClosed.Add(1)

	m.logger.Info().
		Str("session_id", s.ID).
		Str("transport", string(s.Transport)).
		Dur("duration", s.Duration()).
		Int("active_sessions", len(m.sessions)).
		Msg("Session removed")
}

// ListSessions returns a snapshot of all active sessions
func (m *Manager) ListSessions() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// OnSessionClosed sets a callback for closed sessions
func (m *Manager) OnSessionClosed(fn func(*Session)) {
	m.mu.Lock()
	m.onSessionClosed = fn
	m.mu.Unlock()
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.done:
			return
		}
	}
}

// cleanup closes sessions idle for longer than the timeout
func (m *Manager) cleanup() {
	m.mu.RLock()
	var stale []*Session
	for _, s := range m.sessions {
		if s.IdleFor() > m.timeout {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		m.logger.Warn().
			Str("session_id", s.ID).
			Dur("idle", s.IdleFor()).
			Msg("Cleaning up idle session")
		m.totalExpired.Add(1)
		s.Close()
	}
}

// Shutdown closes every session and stops the cleanup loop
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.done) })

	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	m.logger.Info().
		Int("active_sessions", len(sessions)).
		Msg("Shutting down session manager")

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Close()
	}

	return nil
}

// ManagerStats summarizes session activity
type ManagerStats struct {
	ActiveSessions int   `json:"active_sessions"`
	MaxSessions    int   `json:"max_sessions"`
	TotalCreated   int64 `json:"total_created"`
	TotalClosed    int64 `json:"total_closed"`
	TotalExpired   int64 `json:"total_expired"`
}

func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		ActiveSessions: len(m.sessions),
		MaxSessions:    m.maxSessions,
		TotalCreated:   m.totalCreated.Load(),
		TotalClosed:    m.totalClosed.Load(),
		TotalExpired:   m.totalExpired.Load(),
	}
}
