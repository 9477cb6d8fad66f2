package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/jsonrpc"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/logctx"
	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
	"github.com/Jacky-ZJQ/mcp-gateway/sessions"
)

// protocolError is a failure the engine reports to the caller verbatim.
type protocolError struct {
	code   jsonrpc.ErrorCode
	msg    string
	status Status
}

func (e *protocolError) Error() string { return e.msg }

func invalidRequest(msg string) error {
	return &protocolError{code: jsonrpc.ErrorCodeInvalidRequest, msg: msg, status: StatusRejected}
}

func invalidParams(msg string) error {
	return &protocolError{code: jsonrpc.ErrorCodeInvalidParams, msg: msg, status: StatusRejected}
}

func sessionError(msg string) error {
	return &protocolError{code: jsonrpc.ErrorCodeSessionError, msg: msg, status: StatusRejected}
}

func (e *Engine) dispatch(ctx context.Context, req *jsonrpc.Request, call *Call) (any, sessions.Session, error) {
	method := mcp.Method(req.Method)

	if method == mcp.InitializeMethod {
		if req.IsNotification() {
			return nil, sessions.Session{}, invalidRequest("initialize must be a request with id")
		}
		return e.handleInitialize(ctx, req, call.SessionID)
	}

	sess, err := e.resolveSession(ctx, call.SessionID)
	if err != nil {
		return nil, sessions.Session{}, err
	}
	if v := strings.TrimSpace(call.ProtocolVersion); v != "" && v != sess.ProtocolVersion {
		return nil, sessions.Session{}, invalidRequest("MCP-Protocol-Version mismatch")
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:       sess.ID,
		ProtocolVersion: sess.ProtocolVersion,
		State:           sess.State(),
	})

	switch method {
	case mcp.InitializedNotificationMethod:
		sess, err = e.host.MarkInitialized(ctx, sess.ID)
		if err != nil {
			return nil, sessions.Session{}, mapSessionError(err)
		}
		e.log.InfoContext(ctx, "engine.session.ready")
		return mcp.EmptyResult{}, sess, nil
	case mcp.PingMethod:
		return mcp.EmptyResult{}, sess, nil
	}

	if !sess.Initialized {
		return nil, sessions.Session{}, sessionError("Session not initialized. Send notifications/initialized first.")
	}

	switch method {
	case mcp.ToolsListMethod:
		return &mcp.ListToolsResult{Tools: e.registry.ListTools(ctx)}, sess, nil
	case mcp.ToolsCallMethod:
		res, err := e.handleToolsCall(ctx, req)
		if err != nil {
			return nil, sessions.Session{}, err
		}
		return res, sess, nil
	default:
		return nil, sessions.Session{}, &protocolError{
			code:   jsonrpc.ErrorCodeMethodNotFound,
			msg:    "Method not found: " + req.Method,
			status: StatusRejected,
		}
	}
}

func (e *Engine) handleInitialize(ctx context.Context, req *jsonrpc.Request, headerSessionID string) (any, sessions.Session, error) {
	params, err := paramsObject(req.Params)
	if err != nil {
		return nil, sessions.Session{}, err
	}

	requested, ok := nonEmptyString(params["protocolVersion"])
	if !ok {
		return nil, sessions.Session{}, invalidParams("protocolVersion is required")
	}
	if _, ok := params["capabilities"].(map[string]any); !ok {
		return nil, sessions.Session{}, invalidParams("capabilities is required and must be an object")
	}
	clientInfo, ok := params["clientInfo"].(map[string]any)
	if !ok {
		return nil, sessions.Session{}, invalidParams("clientInfo is required and must be an object")
	}
	clientName, ok := nonEmptyString(clientInfo["name"])
	if !ok {
		return nil, sessions.Session{}, invalidParams("clientInfo.name is required")
	}
	clientVersion, ok := nonEmptyString(clientInfo["version"])
	if !ok {
		return nil, sessions.Session{}, invalidParams("clientInfo.version is required")
	}

	negotiated := e.negotiate(requested)
	sessionID := strings.TrimSpace(headerSessionID)
	if sessionID == "" {
		sessionID = e.newID()
	}

	sess, err := e.host.CreateSession(ctx, sessionID, negotiated)
	if err != nil {
		return nil, sessions.Session{}, fmt.Errorf("create session: %w", err)
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID:       sess.ID,
		ProtocolVersion: sess.ProtocolVersion,
		State:           sess.State(),
	})
	e.log.InfoContext(ctx, "engine.session.created",
		slog.String("client_name", clientName),
		slog.String("client_version", clientVersion),
		slog.String("requested_version", requested),
	)

	return &mcp.InitializeResult{
		ProtocolVersion: sess.ProtocolVersion,
		SessionID:       sess.ID,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: false},
		},
		ServerInfo:   e.serverInfo,
		Instructions: initializeInstructions,
		Echo: mcp.ClientEcho{
			ClientName:    clientName,
			ClientVersion: clientVersion,
		},
	}, sess, nil
}

// negotiate echoes a supported client version and otherwise falls back to
// the newest one. Clients that cannot speak the fallback are expected to
// disconnect.
func (e *Engine) negotiate(requested string) string {
	if slices.Contains(e.versions, requested) {
		return requested
	}
	return e.versions[0]
}

func (e *Engine) resolveSession(ctx context.Context, sessionID string) (sessions.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return sessions.Session{}, sessionError("Missing MCP-Session-Id header")
	}
	sess, err := e.host.ResolveSession(ctx, sessionID)
	if err != nil {
		return sessions.Session{}, mapSessionError(err)
	}
	return sess, nil
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		return sessionError("Unknown MCP session")
	case errors.Is(err, sessions.ErrSessionExpired):
		return sessionError("MCP session expired")
	case errors.Is(err, sessions.ErrInvalidSessionID):
		return sessionError("Missing MCP-Session-Id header")
	default:
		return fmt.Errorf("resolve session: %w", err)
	}
}

func (e *Engine) handleToolsCall(ctx context.Context, req *jsonrpc.Request) (*mcp.CallToolResult, error) {
	params, err := paramsObject(req.Params)
	if err != nil {
		return nil, err
	}
	name, ok := nonEmptyString(params["name"])
	if !ok {
		return nil, invalidParams("name is required")
	}

	var args map[string]any
	switch a := params["arguments"].(type) {
	case nil:
		args = map[string]any{}
	case map[string]any:
		args = a
	default:
		return nil, invalidParams("params/arguments must be an object")
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{
		ToolName: name,
		Source:   e.registry.Source(name),
	})

	out, err := e.registry.CallTool(ctx, name, args)
	if err != nil {
		switch {
		case errors.Is(err, mcpservice.ErrFeatureDisabled):
			return nil, &protocolError{
				code:   jsonrpc.ErrorCodeFeatureDisabled,
				msg:    err.Error(),
				status: StatusDisabled,
			}
		case errors.Is(err, mcpservice.ErrUnsupportedTool), mcpservice.IsArgumentError(err):
			e.log.InfoContext(ctx, "engine.tool_call.rejected", slog.String("err", err.Error()))
			return nil, invalidParams(err.Error())
		default:
			e.log.ErrorContext(ctx, "engine.tool_call.fail", slog.String("err", err.Error()))
			return &mcp.CallToolResult{
				Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "Tool execution error: " + err.Error()}},
				IsError: true,
			}, nil
		}
	}

	res, err := toolResult(out)
	if err != nil {
		return nil, err
	}
	e.log.InfoContext(ctx, "engine.tool_call.ok")
	return res, nil
}

// toolResult wraps a tool's return value. Strings are passed through as
// text; anything else is rendered as JSON, and JSON objects and arrays are
// also exposed as structured content.
func toolResult(out any) (*mcp.CallToolResult, error) {
	res := &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText}}}

	switch v := out.(type) {
	case nil:
		return res, nil
	case string:
		res.Content[0].Text = v
		return res, nil
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	res.Content[0].Text = string(raw)
	if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
		res.StructuredContent = json.RawMessage(raw)
	}
	return res, nil
}

// paramsObject decodes request params; absent params are an empty object.
func paramsObject(raw json.RawMessage) (map[string]any, error) {
	params := map[string]any{}
	if len(raw) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("params must be an object")
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
