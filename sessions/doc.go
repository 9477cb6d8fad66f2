// Package sessions defines the session abstraction shared by the gateway's
// dispatcher and transports. A session represents a negotiated protocol
// version and the progress of the initialize handshake for one client.
//
// Layers & Roles
//
//	Transport   -> carries the session id and protocol version out of band (headers, stdio state)
//	Engine      -> drives the initialize / notifications/initialized state machine
//	SessionHost -> thread-safe id -> Session store with idle expiry
//
// # Lifecycle
//
// A session is created by a successful initialize call and starts in the
// awaiting-ack state. notifications/initialized flips it to ready exactly
// once. Every valid call refreshes LastSeenAt; a session idle for longer than
// the host TTL is treated as absent and reclaimed lazily on access.
//
// # Implementations
//
//	memoryhost : in-memory host with access-triggered sweep
//
// Session state is never persisted; a process restart drops every session
// and clients must initialize again.
package sessions
