package logctx

import (
	"context"
	"log/slog"

	"github.com/Jacky-ZJQ/mcp-gateway/sessions"
)

// Handler decorates records with request, session, rpc and tool attributes
// found on the context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		addGroup(&r, "req",
			"id", rd.RequestID,
			"method", rd.Method,
			"caller", rd.Caller,
			"user_agent", rd.UserAgent,
			"remote_addr", rd.RemoteAddr,
			"path", rd.Path,
		)
	}
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		addGroup(&r, "sess",
			"id", sd.SessionID,
			"protocol_version", sd.ProtocolVersion,
			"state", string(sd.State),
		)
	}
	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		addGroup(&r, "rpc", "method", msg.Method, "id", msg.ID, "type", msg.Type)
	}
	if td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData); ok {
		addGroup(&r, "tool", "name", td.ToolName, "source", td.Source)
	}
	return h.Handler.Handle(ctx, r)
}

// addGroup adds the non-empty key/value pairs in kv as one group. Empty
// groups are dropped.
func addGroup(r *slog.Record, name string, kv ...string) {
	var attrs []any
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			attrs = append(attrs, slog.String(kv[i], kv[i+1]))
		}
	}
	if len(attrs) > 0 {
		r.AddAttrs(slog.Group(name, attrs...))
	}
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

// Wrap returns a logger whose handler is decorated with Handler. A nil logger
// wraps slog.Default().
func Wrap(l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if _, ok := l.Handler().(Handler); ok {
		return l
	}
	return slog.New(Handler{Handler: l.Handler()})
}

type rpcMsg struct{}

type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	Caller     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type sessionDataKey struct{}

type SessionData struct {
	SessionID       string
	ProtocolVersion string
	State           sessions.State
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}

type toolCallDataKey struct{}

type ToolCallData struct {
	ToolName string
	Source   string
}

func WithToolCallData(ctx context.Context, data *ToolCallData) context.Context {
	return context.WithValue(ctx, toolCallDataKey{}, data)
}
