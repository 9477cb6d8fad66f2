package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

// MCP method names and notifications handled by the gateway.
const (
	// Initialization
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"

	// Tools
	ToolsListMethod Method = "tools/list"
	ToolsCallMethod Method = "tools/call"

	// General
	PingMethod Method = "ping"
)

// Protocol revisions understood by the gateway, newest first.
const (
	LatestProtocolVersion = "2025-06-18"
)

// SupportedProtocolVersions is the default negotiation list, newest first.
var SupportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2025-03-26",
	"2024-11-05",
}

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns negotiated capabilities and server info. SessionID
// and Echo let clients without header access follow the session.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	SessionID       string             `json:"sessionId"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
	Echo            ClientEcho         `json:"echo"`
}

// ClientEcho repeats the client identity accepted during initialize.
type ClientEcho struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
}

// Tools
// ListToolsResult returns the available tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolRequestReceived is the server-received representation for a tool call.
type CallToolRequestReceived struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult represents a tool invocation result. IsError is always
// serialized so clients can branch on it.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
	// StructuredContent holds the tool's return value when it is a JSON
	// object or array.
	StructuredContent any `json:"structuredContent,omitempty"`
}

// EmptyResult is returned by ping and notifications/initialized when sent as requests.
type EmptyResult struct{}
