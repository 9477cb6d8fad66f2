package streaminghttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/engine"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/logctx"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/quota"
	"github.com/Jacky-ZJQ/mcp-gateway/sessions"
	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
)

var (
	_ http.Handler = (*StreamingHTTPHandler)(nil)
)

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
)

const (
	// DefaultEndpoint is where the gateway is mounted unless overridden.
	DefaultEndpoint = "/ai/mcp"

	// Use canonical header names for clarity; Go matches headers case-insensitively.
	mcpSessionIDHeader       = "Mcp-Session-Id"
	mcpProtocolVersionHeader = "Mcp-Protocol-Version"

	maxBodyBytes = 4 << 20
)

// writeJSONError emits a minimal JSON body for HTTP-layer rejections before a JSON-RPC
// message exchange is possible. We do NOT claim JSON-RPC framing here; this is
// transport-level. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Option configures the StreamingHTTPHandler.
type Option func(*newConfig)

type newConfig struct {
	logger   *slog.Logger
	endpoint string
	quota    *quota.Limiter
}

// WithLogger sets the slog logger used by the handler. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *newConfig) { c.logger = l }
}

// WithEndpoint sets the path the gateway is served under.
func WithEndpoint(endpoint string) Option {
	return func(c *newConfig) { c.endpoint = endpoint }
}

// WithQuota throttles RPC calls per caller. Catalog and delete requests are
// not counted.
func WithQuota(l *quota.Limiter) Option {
	return func(c *newConfig) { c.quota = l }
}

// StreamingHTTPHandler serves the gateway's HTTP routes.
type StreamingHTTPHandler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	eng      *engine.Engine
	endpoint string
	quota    *quota.Limiter
}

// New constructs a StreamingHTTPHandler around an engine.
func New(eng *engine.Engine, opts ...Option) (*StreamingHTTPHandler, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}

	cfg := &newConfig{logger: slog.Default(), endpoint: DefaultEndpoint}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	endpoint := "/" + strings.Trim(strings.TrimSpace(cfg.endpoint), "/")
	if strings.ContainsAny(endpoint, " {}") {
		return nil, fmt.Errorf("invalid endpoint %q", cfg.endpoint)
	}

	h := &StreamingHTTPHandler{
		log:      logctx.Wrap(cfg.logger),
		eng:      eng,
		endpoint: endpoint,
		quota:    cfg.quota,
	}

	var post http.Handler = http.HandlerFunc(h.handlePostMCP)
	if cfg.quota != nil {
		post = cfg.quota.Middleware(post)
	}

	toolsPath := strings.TrimSuffix(endpoint, "/") + "/tools"
	rpcPath := endpoint
	if rpcPath == "/" {
		// Keep the root pattern from matching every path.
		rpcPath = "/{$}"
	}

	mux := http.NewServeMux()
	mux.Handle(fmt.Sprintf("POST %s", rpcPath), post)
	mux.HandleFunc(fmt.Sprintf("DELETE %s", rpcPath), h.handleDeleteMCP)
	mux.HandleFunc(fmt.Sprintf("GET %s", toolsPath), h.handleGetTools)
	h.mux = mux
	return h, nil
}

// Endpoint returns the normalized path the handler serves RPC on.
func (h *StreamingHTTPHandler) Endpoint() string { return h.endpoint }

func (h *StreamingHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var caller string
	if h.quota != nil {
		caller = h.quota.KeyFor(r)
	}
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		Caller:     caller,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

// handlePostMCP carries a single JSON-RPC message to the engine.
func (h *StreamingHTTPHandler) handlePostMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.post.start")

	// A missing Content-Type is tolerated; an explicit non-JSON one is not.
	if r.Header.Get("Content-Type") != "" {
		ctype, err := contenttype.GetMediaType(r)
		if err != nil || !ctype.Matches(jsonMediaType) {
			writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
			h.log.WarnContext(ctx, "content_type.unsupported")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			h.log.WarnContext(ctx, "http.post.body_too_large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		h.log.WarnContext(ctx, "http.post.read.fail", slog.String("err", err.Error()))
		return
	}

	reply := h.eng.Handle(ctx, &engine.Call{
		Body:            body,
		SessionID:       r.Header.Get(mcpSessionIDHeader),
		ProtocolVersion: r.Header.Get(mcpProtocolVersionHeader),
	})

	if reply.SessionID != "" {
		w.Header().Set(mcpSessionIDHeader, reply.SessionID)
	}
	if reply.ProtocolVersion != "" {
		w.Header().Set(mcpProtocolVersionHeader, reply.ProtocolVersion)
	}

	status := httpStatus(reply.Status)
	if reply.Response == nil {
		w.WriteHeader(status)
	} else {
		writeJSON(w, status, reply.Response)
	}

	h.log.InfoContext(ctx, "http.post.ok",
		slog.Int("status", status),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
}

// handleDeleteMCP terminates the session named by the request headers.
func (h *StreamingHTTPHandler) handleDeleteMCP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.delete.start")

	sessID := strings.TrimSpace(r.Header.Get(mcpSessionIDHeader))
	if sessID == "" {
		h.log.WarnContext(ctx, "delete.missing_session_id")
		writeJSONError(w, http.StatusBadRequest, "missing Mcp-Session-Id header")
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessID})

	if err := h.eng.DeleteSession(ctx, sessID); err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) || errors.Is(err, sessions.ErrSessionExpired) {
			h.log.InfoContext(ctx, "session.delete.miss")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.ErrorContext(ctx, "session.delete.fail", slog.String("err", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	h.log.InfoContext(ctx, "session.delete.ok")
	w.WriteHeader(http.StatusNoContent)
}

// handleGetTools lists the catalog outside the JSON-RPC envelope.
func (h *StreamingHTTPHandler) handleGetTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.ListTools(r.Context()))
}

func httpStatus(s engine.Status) int {
	switch s {
	case engine.StatusOK:
		return http.StatusOK
	case engine.StatusAccepted:
		return http.StatusAccepted
	case engine.StatusRejected:
		return http.StatusBadRequest
	case engine.StatusDisabled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
