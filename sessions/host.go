package sessions

import (
	"context"
	"errors"
)

var (
	// ErrSessionNotFound is returned when no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when a session exists but has been idle
	// for longer than the host's TTL. The host forgets the session when it
	// reports this error.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidSessionID is returned when an empty id is supplied.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// SessionHost is the contract the dispatcher needs from a session store.
// Implementations must be safe for concurrent use and must never return an
// expired session as valid.
type SessionHost interface {
	// CreateSession stores a fresh, uninitialized session under id,
	// replacing any previous session with the same id.
	CreateSession(ctx context.Context, id, protocolVersion string) (Session, error)
	// ResolveSession looks up an active session and refreshes its liveness.
	ResolveSession(ctx context.Context, id string) (Session, error)
	// MarkInitialized flips the session to initialized and refreshes its
	// liveness. Marking an already initialized session is a no-op.
	MarkInitialized(ctx context.Context, id string) (Session, error)
	// DeleteSession forgets the session. Deleting an unknown id is not an error.
	DeleteSession(ctx context.Context, id string) error
}
