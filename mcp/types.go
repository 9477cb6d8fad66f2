package mcp

// Schema is a JSON-Schema document describing a tool's input. It is kept as
// a generic map so configuration can supply arbitrary schema documents.
type Schema map[string]any

// EmptyObjectSchema returns the schema used when a tool declares no input shape.
func EmptyObjectSchema() Schema {
	return Schema{"type": "object", "properties": map[string]any{}}
}

// Registration sources reported for each tool.
const (
	SourceConfigOverride = "CONFIG_OVERRIDE"
	SourceAutoTool       = "AUTO_TOOL"
	SourceManualHandler  = "MANUAL_HANDLER"
)

// Capabilities
// ClientCapabilities advertises client features. The gateway accepts any
// object and does not act on its contents.
type ClientCapabilities map[string]any

// ServerCapabilities advertises server features.
type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes the tools surface.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ImplementationInfo describes the implementation name and version.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// Content types
// ContentBlock is a typed content part of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ContentTypeText is the only content block type produced by the gateway.
const ContentTypeText = "text"

// Tool is the protocol descriptor for a callable tool.
type Tool struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Source      string          `json:"source"`
	InputSchema Schema          `json:"inputSchema"`
	Annotations ToolAnnotations `json:"annotations"`
}

// ToolAnnotations carries behavior hints and the provenance of a tool.
type ToolAnnotations struct {
	ReadOnlyHint       bool   `json:"readOnlyHint"`
	IdempotentHint     bool   `json:"idempotentHint"`
	RegistrationSource string `json:"registrationSource"`
}
