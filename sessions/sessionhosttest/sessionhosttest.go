// Package sessionhosttest provides a conformance suite for sessions.SessionHost
// implementations.
package sessionhosttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Jacky-ZJQ/mcp-gateway/sessions"
)

// Clock is the time source a host under test must consult.
type Clock interface {
	Now() time.Time
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// HostFactory creates a new SessionHost that reads time from clock and
// expires sessions idle for longer than ttl.
type HostFactory func(t *testing.T, clock Clock, ttl time.Duration) sessions.SessionHost

const suiteTTL = 10 * time.Minute

// RunSessionHostTests runs the complete SessionHost test suite against the provided factory.
func RunSessionHostTests(t *testing.T, factory HostFactory) {
	t.Run("Create_StartsUninitialized", func(t *testing.T) { testCreateStartsUninitialized(t, factory) })
	t.Run("Create_RejectsEmptyID", func(t *testing.T) { testCreateRejectsEmptyID(t, factory) })
	t.Run("Create_ReplacesExisting", func(t *testing.T) { testCreateReplacesExisting(t, factory) })
	t.Run("Resolve_UnknownSession", func(t *testing.T) { testResolveUnknown(t, factory) })
	t.Run("Resolve_TouchesLastSeen", func(t *testing.T) { testResolveTouches(t, factory) })
	t.Run("Resolve_ExpiredSession", func(t *testing.T) { testResolveExpired(t, factory) })
	t.Run("Resolve_ActivityExtendsLifetime", func(t *testing.T) { testActivityExtendsLifetime(t, factory) })
	t.Run("MarkInitialized_FlipsOnce", func(t *testing.T) { testMarkInitialized(t, factory) })
	t.Run("MarkInitialized_UnknownSession", func(t *testing.T) { testMarkInitializedUnknown(t, factory) })
	t.Run("Delete_ForgetsSession", func(t *testing.T) { testDelete(t, factory) })
	t.Run("Snapshot_IsACopy", func(t *testing.T) { testSnapshotIsCopy(t, factory) })
}

func newHost(t *testing.T, factory HostFactory) (sessions.SessionHost, *ManualClock) {
	clock := NewManualClock(time.Date(2025, 6, 18, 9, 0, 0, 0, time.UTC))
	return factory(t, clock, suiteTTL), clock
}

func testCreateStartsUninitialized(t *testing.T, factory HostFactory) {
	h, clock := newHost(t, factory)
	ctx := context.Background()

	s, err := h.CreateSession(ctx, "sess-1", "2025-06-18")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if s.ID != "sess-1" {
		t.Fatalf("unexpected id: want %q got %q", "sess-1", s.ID)
	}
	if s.ProtocolVersion != "2025-06-18" {
		t.Fatalf("unexpected protocol version: %q", s.ProtocolVersion)
	}
	if s.Initialized {
		t.Fatal("new session must start uninitialized")
	}
	if !s.CreatedAt.Equal(clock.Now()) || !s.LastSeenAt.Equal(clock.Now()) {
		t.Fatalf("timestamps should match clock: created=%s last=%s", s.CreatedAt, s.LastSeenAt)
	}
}

func testCreateRejectsEmptyID(t *testing.T, factory HostFactory) {
	h, _ := newHost(t, factory)
	if _, err := h.CreateSession(context.Background(), "  ", "2025-06-18"); !errors.Is(err, sessions.ErrInvalidSessionID) {
		t.Fatalf("expected ErrInvalidSessionID, got %v", err)
	}
}

func testCreateReplacesExisting(t *testing.T, factory HostFactory) {
	h, _ := newHost(t, factory)
	ctx := context.Background()

	if _, err := h.CreateSession(ctx, "sess-1", "2024-11-05"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.MarkInitialized(ctx, "sess-1"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, err := h.CreateSession(ctx, "sess-1", "2025-06-18"); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	s, err := h.ResolveSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.Initialized || s.ProtocolVersion != "2025-06-18" {
		t.Fatalf("expected fresh session, got %+v", s)
	}
}

func testResolveUnknown(t *testing.T, factory HostFactory) {
	h, _ := newHost(t, factory)
	if _, err := h.ResolveSession(context.Background(), "nope"); !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := h.ResolveSession(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func testResolveTouches(t *testing.T, factory HostFactory) {
	h, clock := newHost(t, factory)
	ctx := context.Background()

	created, err := h.CreateSession(ctx, "sess-1", "2025-06-18")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clock.Advance(time.Minute)
	s, err := h.ResolveSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !s.LastSeenAt.After(created.LastSeenAt) {
		t.Fatalf("expected LastSeenAt to advance: before=%s after=%s", created.LastSeenAt, s.LastSeenAt)
	}
	if !s.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("CreatedAt must not change on resolve")
	}
}

func testResolveExpired(t *testing.T, factory HostFactory) {
	h, clock := newHost(t, factory)
	ctx := context.Background()

	if _, err := h.CreateSession(ctx, "sess-1", "2025-06-18"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.ResolveSession(ctx, "sess-1"); err != nil {
		t.Fatalf("session should be valid before ttl: %v", err)
	}

	clock.Advance(suiteTTL + time.Second)
	if _, err := h.ResolveSession(ctx, "sess-1"); !errors.Is(err, sessions.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	// Once reported expired the session is gone.
	if _, err := h.ResolveSession(ctx, "sess-1"); !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after expiry, got %v", err)
	}
}

func testActivityExtendsLifetime(t *testing.T, factory HostFactory) {
	h, clock := newHost(t, factory)
	ctx := context.Background()

	if _, err := h.CreateSession(ctx, "sess-1", "2025-06-18"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 5; i++ {
		clock.Advance(suiteTTL / 2)
		if _, err := h.ResolveSession(ctx, "sess-1"); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
}

func testMarkInitialized(t *testing.T, factory HostFactory) {
	h, _ := newHost(t, factory)
	ctx := context.Background()

	if _, err := h.CreateSession(ctx, "sess-1", "2025-06-18"); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 2; i++ {
		s, err := h.MarkInitialized(ctx, "sess-1")
		if err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
		if !s.Initialized {
			t.Fatalf("mark %d: expected initialized", i)
		}
		if s.ProtocolVersion != "2025-06-18" {
			t.Fatalf("protocol version must be immutable, got %q", s.ProtocolVersion)
		}
	}
	s, err := h.ResolveSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !s.Initialized {
		t.Fatal("initialized flag should persist")
	}
}

func testMarkInitializedUnknown(t *testing.T, factory HostFactory) {
	h, _ := newHost(t, factory)
	if _, err := h.MarkInitialized(context.Background(), "ghost"); !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, factory HostFactory) {
	h, _ := newHost(t, factory)
	ctx := context.Background()

	if _, err := h.CreateSession(ctx, "sess-1", "2025-06-18"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := h.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := h.ResolveSession(ctx, "sess-1"); !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := h.DeleteSession(ctx, "sess-1"); err != nil {
		t.Fatalf("deleting an unknown session should succeed: %v", err)
	}
}

func testSnapshotIsCopy(t *testing.T, factory HostFactory) {
	h, _ := newHost(t, factory)
	ctx := context.Background()

	s, err := h.CreateSession(ctx, "sess-1", "2025-06-18")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.Initialized = true
	s.ProtocolVersion = "tampered"

	got, err := h.ResolveSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Initialized || got.ProtocolVersion != "2025-06-18" {
		t.Fatalf("stored session was mutated through snapshot: %+v", got)
	}
}
