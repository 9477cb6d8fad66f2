package sessions

import "time"

// Session is a point-in-time snapshot of a negotiated session. Hosts hand out
// copies; mutating a Session value has no effect on the stored session.
type Session struct {
	ID              string    `json:"session_id"`
	ProtocolVersion string    `json:"protocol_version"` // immutable after creation
	Initialized     bool      `json:"initialized"`
	CreatedAt       time.Time `json:"created_at"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// State describes where a session sits in the initialization handshake.
type State string

const (
	StateAwaitingAck State = "awaiting_ack"
	StateReady       State = "ready"
)

// State reports the handshake state of the session.
func (s Session) State() State {
	if s.Initialized {
		return StateReady
	}
	return StateAwaitingAck
}

// ExpiredAt reports whether the session has been idle longer than ttl at now.
// A non-positive ttl never expires.
func (s Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return s.LastSeenAt.Add(ttl).Before(now)
}
