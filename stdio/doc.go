// Package stdio implements a minimal single-connection transport over
// stdin/stdout. It is intended for running the gateway as a subprocess of a
// local MCP client, where spawning a child process and piping JSON is
// simpler than running an HTTP server.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Sessions         : one at a time; the id and negotiated version returned
//	                   by initialize are remembered and supplied on every
//	                   later message, so clients need not echo them
//	Transport        : newline-delimited JSON-RPC, one message per line
//
// Messages are handled in arrival order. Notifications produce no output.
//
// Example:
//
//	h := stdio.NewHandler(eng)
//	if err := h.Serve(context.Background()); err != nil { log.Fatal(err) }
package stdio
