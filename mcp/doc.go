// Package mcp contains protocol data types and constants shared by the
// gateway's transports, dispatcher and tool registry. It mirrors the wire
// representation used by Model Context Protocol clients while keeping the
// surface Go-friendly (exported structs with json tags, string constants for
// method names).
//
// The package is free of transport logic: the HTTP and stdio transports
// import these types but implement their own framing and header handling.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). Only the methods the gateway dispatches are listed.
//
// # Tools
//
// Tool is the descriptor returned by tools/list and by the debug catalog
// endpoint. Besides the standard name, title, description and inputSchema it
// reports the registration source (CONFIG_OVERRIDE, AUTO_TOOL or
// MANUAL_HANDLER) both at the top level and inside Annotations.
//
// # Protocol Versions
//
// SupportedProtocolVersions lists the revisions the gateway negotiates,
// newest first. A client proposing a revision outside the list is answered
// with the newest one rather than rejected.
package mcp
