package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/jsonrpc"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/logctx"
	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
	"github.com/Jacky-ZJQ/mcp-gateway/sessions"
	"github.com/google/uuid"
)

const (
	defaultServerName    = "spring-ai-mcp-gateway"
	defaultServerVersion = "1.0.0"

	initializeInstructions = "Call notifications/initialized after initialize, then use tools/list or tools/call."
)

var ErrInternal = errors.New("internal error")

// Status is the transport-neutral disposition of a handled call. Transports
// map it onto their own signalling (HTTP status codes, nothing on stdio).
type Status int

const (
	// StatusOK carries a JSON-RPC result.
	StatusOK Status = iota
	// StatusAccepted acknowledges a notification without a body.
	StatusAccepted
	// StatusRejected reports a caller error.
	StatusRejected
	// StatusInternal reports an unexpected server failure.
	StatusInternal
	// StatusDisabled reports that the gateway is administratively disabled.
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusInternal:
		return "internal"
	case StatusDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Call is one inbound JSON-RPC message plus the out-of-band session values
// the transport extracted for it.
type Call struct {
	Body            []byte
	SessionID       string
	ProtocolVersion string
}

// Reply is the outcome of a Call. Response is nil whenever the inbound
// message was a valid notification. SessionID and ProtocolVersion are set
// when the call succeeded against a session.
type Reply struct {
	Status          Status
	SessionID       string
	ProtocolVersion string
	Response        *jsonrpc.Response
}

// Engine is the protocol dispatcher. It validates the envelope, drives the
// session handshake and routes tool methods to the registry. It is
// transport agnostic and safe for concurrent use.
type Engine struct {
	host       sessions.SessionHost
	registry   *mcpservice.Registry
	log        *slog.Logger
	serverInfo mcp.ImplementationInfo
	versions   []string
	newID      func() string
}

func NewEngine(host sessions.SessionHost, registry *mcpservice.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		host:       host,
		registry:   registry,
		log:        logctx.Wrap(slog.Default()),
		serverInfo: mcp.ImplementationInfo{Name: defaultServerName, Version: defaultServerVersion},
		versions:   append([]string(nil), mcp.SupportedProtocolVersions...),
		newID:      uuid.NewString,
	}

	// Apply options (order matters; later options override earlier ones).
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the Engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = logctx.Wrap(l)
		}
	}
}

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.serverInfo.Name = name
		}
		if version != "" {
			e.serverInfo.Version = version
		}
	}
}

// WithProtocolVersions sets the supported protocol revisions, newest first.
// An empty list keeps the default.
func WithProtocolVersions(versions []string) EngineOption {
	return func(e *Engine) {
		var vs []string
		for _, v := range versions {
			if v = strings.TrimSpace(v); v != "" {
				vs = append(vs, v)
			}
		}
		if len(vs) > 0 {
			e.versions = vs
		}
	}
}

// WithSessionIDGenerator overrides how session ids are minted when the
// client does not supply one.
func WithSessionIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// ListTools returns the current catalog for out-of-band inspection.
func (e *Engine) ListTools(ctx context.Context) []mcp.Tool {
	return e.registry.ListTools(ctx)
}

// DeleteSession terminates a session at the client's request.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return sessions.ErrInvalidSessionID
	}
	if _, err := e.host.ResolveSession(ctx, sessionID); err != nil {
		return err
	}
	return e.host.DeleteSession(ctx, sessionID)
}

// Handle processes one inbound message. It never returns nil.
func (e *Engine) Handle(ctx context.Context, call *Call) (reply *Reply) {
	start := time.Now()

	if !e.registry.Enabled() {
		e.log.WarnContext(ctx, "engine.handle_request.disabled")
		return &Reply{
			Status:   StatusDisabled,
			Response: jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeFeatureDisabled, mcpservice.ErrFeatureDisabled.Error(), nil),
		}
	}

	req, perr := jsonrpc.ParseRequest(call.Body)
	if perr != nil {
		e.log.InfoContext(ctx, "engine.handle_request.invalid_envelope", slog.Int("code", int(perr.Code)), slog.String("err", perr.Message))
		// Version and method were valid, so this is a notification and
		// gets no body even though its params were rejected.
		if req.Method != "" && req.IsNotification() {
			return &Reply{Status: StatusRejected}
		}
		return &Reply{
			Status:   StatusRejected,
			Response: jsonrpc.NewErrorResponse(req.ID, perr.Code, perr.Message, nil),
		}
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: req.Method,
		ID:     req.ID.String(),
		Type:   req.Type(),
	})

	defer func() {
		if p := recover(); p != nil {
			e.log.ErrorContext(ctx, "engine.handle_request.panic", slog.Any("panic", p))
			reply = e.failure(ctx, req, fmt.Errorf("%w: panic: %v", ErrInternal, p))
		}
	}()

	result, sess, err := e.dispatch(ctx, req, call)
	if err != nil {
		reply = e.failure(ctx, req, err)
		e.log.InfoContext(ctx, "engine.handle_request.fail", slog.String("status", reply.Status.String()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return reply
	}

	reply = &Reply{Status: StatusOK, SessionID: sess.ID, ProtocolVersion: sess.ProtocolVersion}
	if req.IsNotification() {
		reply.Status = StatusAccepted
		e.log.InfoContext(ctx, "engine.handle_notification.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return reply
	}

	res, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		return e.failure(ctx, req, fmt.Errorf("%w: %v", ErrInternal, err))
	}
	reply.Response = res
	e.log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return reply
}

// failure converts a dispatch error into a reply. Notifications never get a
// body; their failure is visible only through the status.
func (e *Engine) failure(ctx context.Context, req *jsonrpc.Request, err error) *Reply {
	var pe *protocolError
	if !errors.As(err, &pe) {
		e.log.ErrorContext(ctx, "engine.handle_request.internal", slog.String("err", err.Error()))
		pe = &protocolError{code: jsonrpc.ErrorCodeInternalError, msg: "Internal error", status: StatusInternal}
	}

	reply := &Reply{Status: pe.status}
	if !req.IsNotification() {
		reply.Response = jsonrpc.NewErrorResponse(req.ID, pe.code, pe.msg, nil)
	}
	return reply
}
