package memoryhost

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Jacky-ZJQ/mcp-gateway/sessions"
)

// DefaultTTL is the idle window applied when no WithTTL option is given.
const DefaultTTL = 1800 * time.Second

var _ sessions.SessionHost = (*Host)(nil)

// Host is an in-memory implementation of sessions.SessionHost.
type Host struct {
	mu       sync.RWMutex
	sessions map[string]*sessions.Session

	ttl time.Duration
	now func() time.Time
}

// Option configures a Host.
type Option func(*Host)

// WithTTL sets the idle window after which a session is treated as absent.
// Non-positive values keep the default.
func WithTTL(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.ttl = d
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Host) {
		if now != nil {
			h.now = now
		}
	}
}

func New(opts ...Option) *Host {
	h := &Host{
		sessions: make(map[string]*sessions.Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// TTL returns the configured idle window.
func (h *Host) TTL() time.Duration { return h.ttl }

// Len returns the number of stored sessions, including any that have expired
// but have not been swept yet.
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Host) CreateSession(ctx context.Context, id, protocolVersion string) (sessions.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return sessions.Session{}, sessions.ErrInvalidSessionID
	}

	now := h.now()
	s := &sessions.Session{
		ID:              id,
		ProtocolVersion: protocolVersion,
		CreatedAt:       now,
		LastSeenAt:      now,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sweepLocked(now)
	h.sessions[id] = s
	return *s, nil
}

func (h *Host) ResolveSession(ctx context.Context, id string) (sessions.Session, error) {
	return h.update(strings.TrimSpace(id), nil)
}

func (h *Host) MarkInitialized(ctx context.Context, id string) (sessions.Session, error) {
	return h.update(strings.TrimSpace(id), func(s *sessions.Session) {
		s.Initialized = true
	})
}

func (h *Host) DeleteSession(ctx context.Context, id string) error {
	h.mu.Lock()
	delete(h.sessions, strings.TrimSpace(id))
	h.mu.Unlock()
	return nil
}

// update resolves id, rejects it when expired, applies fn and refreshes
// LastSeenAt, all under the write lock so concurrent callers never observe a
// half-applied change.
func (h *Host) update(id string, fn func(*sessions.Session)) (sessions.Session, error) {
	if id == "" {
		return sessions.Session{}, sessions.ErrInvalidSessionID
	}

	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[id]
	if !ok {
		h.sweepLocked(now)
		return sessions.Session{}, sessions.ErrSessionNotFound
	}
	if s.ExpiredAt(now, h.ttl) {
		delete(h.sessions, id)
		h.sweepLocked(now)
		return sessions.Session{}, sessions.ErrSessionExpired
	}
	h.sweepLocked(now)

	if fn != nil {
		fn(s)
	}
	s.LastSeenAt = now
	return *s, nil
}

func (h *Host) sweepLocked(now time.Time) {
	for id, s := range h.sessions {
		if s.ExpiredAt(now, h.ttl) {
			delete(h.sessions, id)
		}
	}
}
