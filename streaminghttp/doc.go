// Package streaminghttp exposes the gateway over plain HTTP. It mounts as a
// standard net/http handler and carries exactly one JSON-RPC message per
// POST, answered by exactly one JSON response (or an empty 202 for
// notifications).
//
// Routes (relative to the configured endpoint, "/ai/mcp" by default)
//   - POST   <endpoint>        JSON-RPC request or notification
//   - DELETE <endpoint>        terminate the session named by Mcp-Session-Id
//   - GET    <endpoint>/tools  debug listing of the tool catalog
//
// Session values travel in the Mcp-Session-Id and Mcp-Protocol-Version
// headers. Both are set on every successful reply that belongs to a session,
// so clients that cannot read the initialize result body can still follow
// the session.
//
// Construction
//
//	h, err := streaminghttp.New(
//	    eng,                                 // *engine.Engine
//	    streaminghttp.WithEndpoint("/ai/mcp"),
//	    streaminghttp.WithQuota(limiter),    // optional per-caller quota
//	)
//
// # Error Handling
//
// Transport-level rejections (unsupported media type, oversized body) are
// written as {"error":{"code":<httpStatus>,"message":"..."}}. Everything
// else is a JSON-RPC response whose HTTP status mirrors the engine's
// disposition: 200, 202, 400, 500 or 503.
//
// Example (mount in net/http):
//
//	mux := http.NewServeMux()
//	mux.Handle("/", h)
//	http.ListenAndServe(":8080", mux)
package streaminghttp
