// Package memoryhost provides an in-memory sessions.SessionHost implementation
// for single-process gateways and tests. All state is ephemeral and discarded
// on process exit.
//
// Characteristics
//
//	Durability        : none (RAM only)
//	Horizontal scale  : no (process local)
//	Expiry            : sliding idle TTL, swept on every create/resolve
//	Concurrency       : safe (single RWMutex over the id -> session map)
//
// Example:
//
//	host := memoryhost.New(memoryhost.WithTTL(30 * time.Minute))
//	eng := engine.NewEngine(host, registry)
package memoryhost
