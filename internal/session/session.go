package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Transport identifies how a client is connected
type Transport string

const (
	TransportStdio     Transport = "stdio"
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// State represents the protocol lifecycle of a session
type State string

const (
	StateNew         State = "new"         // Created, initialize not yet answered
	StateInitialized State = "initialized" // Client sent notifications/initialized
	StateClosed      State = "closed"      // Ended by client, transport or timeout
)

// ClientInfo is what the client reported about itself during initialize
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Session represents one connected protocol client
type Session struct {
	mu sync.RWMutex

	ID        string    `json:"id"`
	Transport Transport `json:"transport"`

	Client          ClientInfo `json:"client"`
	ProtocolVersion string     `json:"protocol_version"`

	State     State      `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	LastSeen  time.Time  `json:"last_seen"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	Calls  int64 `json:"calls"`
	Errors int64 `json:"errors"`

	onClosed func(s *Session)
}

// NewSession creates a session in the new state
func NewSession(transport Transport) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		Transport: transport,
		State:     StateNew,
		CreatedAt: now,
		LastSeen:  now,
	}
}

// SetClient records the initialize handshake details
func (s *Session) SetClient(info ClientInfo, protocolVersion string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Client = info
	s.ProtocolVersion = protocolVersion
}

// MarkInitialized moves a new session to initialized
func (s *Session) MarkInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == StateNew {
		s.State = StateInitialized
	}
}

// Touch records activity on the session
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastSeen = time.Now()
	s.mu.Unlock()
}

// RecordCall counts an operation call and its outcome
func (s *Session) RecordCall(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if failed {
		s.Errors++
	}
	s.LastSeen = time.Now()
}

// GetState returns the current state
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// IdleFor returns how long the session has gone without activity
func (s *Session) IdleFor() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.LastSeen)
}

// Duration returns the session lifetime so far
func (s *Session) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ClosedAt != nil {
		return s.ClosedAt.Sub(s.CreatedAt)
	}
	return time.Since(s.CreatedAt)
}

// Close ends the session. Closing twice is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.State == StateClosed {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	s.State = StateClosed
	s.ClosedAt = &now
	callback := s.onClosed
	s.mu.Unlock()

	if callback != nil {
		callback(s)
	}
}

// OnClosed sets a callback invoked once when the session closes
func (s *Session) OnClosed(fn func(s *Session)) {
	s.mu.Lock()
	s.onClosed = fn
	s.mu.Unlock()
}

// Snapshot returns a copy safe to serialize
func (s *Session) Snapshot() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:              s.ID,
		Transport:       s.Transport,
		Client:          s.Client,
		ProtocolVersion: s.ProtocolVersion,
		State:           s.State,
		CreatedAt:       s.CreatedAt,
		LastSeen:        s.LastSeen,
		Calls:           s.Calls,
		Errors:          s.Errors,
	}
}

// Info is a point-in-time view of a session
type Info struct {
	ID              string     `json:"id"`
	Transport       Transport  `json:"transport"`
	Client          ClientInfo `json:"client"`
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	State           State      `json:"state"`
	CreatedAt       time.Time  `json:"created_at"`
	LastSeen        time.Time  `json:"last_seen"`
	Calls           int64      `json:"calls"`
	Errors          int64      `json:"errors"`
}
