package streaminghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/engine"
	"github.com/Jacky-ZJQ/mcp-gateway/internal/quota"
	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
	"github.com/Jacky-ZJQ/mcp-gateway/sessions/memoryhost"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	srv *httptest.Server
	url string
}

func newTestServer(t *testing.T, enabled bool, opts ...Option) *testServer {
	t.Helper()

	tools := []*mcpservice.Tool{
		mcpservice.NewScalarTool("greet", "Greet someone", mcpservice.StringParam("name", "who to greet"),
			func(ctx context.Context, name string) (any, error) {
				return "Hello, " + name + "!", nil
			}),
		mcpservice.NewTool("schools", "List schools", nil,
			func(ctx context.Context, args mcpservice.Args) (any, error) {
				return []map[string]any{{"name": "Peking University"}}, nil
			}),
		mcpservice.NewTool("broken", "Always fails", nil,
			func(ctx context.Context, args mcpservice.Args) (any, error) {
				return nil, errors.New("database offline")
			}),
		mcpservice.NewTool("crash", "Always panics", nil,
			func(ctx context.Context, args mcpservice.Args) (any, error) {
				panic("boom")
			}),
	}
	reg, err := mcpservice.NewRegistry(mcpservice.RegistryConfig{Enabled: enabled, AutoRegisterUnconfiguredTools: true}, tools, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	log := slog.New(testLogHandler(t))
	eng := engine.NewEngine(memoryhost.New(), reg, engine.WithLogger(log), engine.WithServerInfo("test-server", "1.0.0"))

	h, err := New(eng, append([]Option{WithLogger(log)}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, url: srv.URL + DefaultEndpoint}
}

func (s *testServer) post(t *testing.T, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.do(t, req)
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	res, err := s.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

// handshake returns the session id of a ready session.
func (s *testServer) handshake(t *testing.T) string {
	t.Helper()
	res, _ := s.post(t, initializeBody, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("initialize: unexpected status %d", res.StatusCode)
	}
	sid := res.Header.Get(mcpSessionIDHeader)
	if sid == "" {
		t.Fatalf("initialize: missing session header")
	}
	ack, body := s.post(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, map[string]string{mcpSessionIDHeader: sid})
	if ack.StatusCode != http.StatusAccepted || len(body) != 0 {
		t.Fatalf("initialized: unexpected status %d body %q", ack.StatusCode, body)
	}
	return sid
}

func decodeEnvelope(t *testing.T, data []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope %q: %v", data, err)
	}
	return env
}

func TestHandshakeAndToolCall(t *testing.T) {
	s := newTestServer(t, true)

	res, data := s.post(t, initializeBody, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", res.StatusCode)
	}
	if got := res.Header.Get(mcpProtocolVersionHeader); got != "2025-06-18" {
		t.Fatalf("unexpected protocol version header %q", got)
	}
	env := decodeEnvelope(t, data)
	var initRes sdk.InitializeResult
	if err := json.Unmarshal(env.Result, &initRes); err != nil {
		t.Fatalf("decode initialize result: %v", err)
	}
	if initRes.ServerInfo == nil || initRes.ServerInfo.Name != "test-server" {
		t.Fatalf("unexpected server info: %+v", initRes.ServerInfo)
	}
	if initRes.ProtocolVersion != "2025-06-18" {
		t.Fatalf("unexpected protocol version %q", initRes.ProtocolVersion)
	}

	sid := res.Header.Get(mcpSessionIDHeader)
	hdrs := map[string]string{mcpSessionIDHeader: sid, mcpProtocolVersionHeader: "2025-06-18"}
	if ack, _ := s.post(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, hdrs); ack.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected initialized status %d", ack.StatusCode)
	}

	res, data = s.post(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"greet","arguments":{"name":"you"}}}`, hdrs)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", res.StatusCode, data)
	}
	env = decodeEnvelope(t, data)
	var call sdk.CallToolResult
	if err := json.Unmarshal(env.Result, &call); err != nil {
		t.Fatalf("decode call result: %v", err)
	}
	if call.IsError || len(call.Content) != 1 {
		t.Fatalf("unexpected call result: %+v", call)
	}
	text, ok := call.Content[0].(*sdk.TextContent)
	if !ok || text.Text != "Hello, you!" {
		t.Fatalf("unexpected content: %#v", call.Content[0])
	}
}

func TestStructuredToolResult(t *testing.T) {
	s := newTestServer(t, true)
	sid := s.handshake(t)

	res, data := s.post(t, `{"jsonrpc":"2.0","id":"c1","method":"tools/call","params":{"name":"schools"}}`, map[string]string{mcpSessionIDHeader: sid})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", res.StatusCode)
	}
	env := decodeEnvelope(t, data)
	if string(env.ID) != `"c1"` {
		t.Fatalf("expected string id echoed, got %s", env.ID)
	}
	var call mcp.CallToolResult
	if err := json.Unmarshal(env.Result, &call); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.Content[0].Text != `[{"name":"Peking University"}]` || call.StructuredContent == nil {
		t.Fatalf("unexpected result: %+v", call)
	}
}

func TestToolFailureIsInBand(t *testing.T) {
	s := newTestServer(t, true)
	sid := s.handshake(t)

	res, data := s.post(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"broken"}}`, map[string]string{mcpSessionIDHeader: sid})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", res.StatusCode)
	}
	var call sdk.CallToolResult
	if err := json.Unmarshal(decodeEnvelope(t, data).Result, &call); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !call.IsError {
		t.Fatalf("expected isError result")
	}
}

func TestStatusMapping(t *testing.T) {
	s := newTestServer(t, true)
	sid := s.handshake(t)
	withSession := map[string]string{mcpSessionIDHeader: sid}

	cases := []struct {
		name    string
		body    string
		headers map[string]string
		status  int
		code    int
		noBody  bool
	}{
		{"invalid envelope", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, nil, http.StatusBadRequest, -32600, false},
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, nil, http.StatusBadRequest, -32600, false},
		{"missing session", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, nil, http.StatusBadRequest, -32002, false},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`, withSession, http.StatusBadRequest, -32601, false},
		{"tool panic", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"crash"}}`, withSession, http.StatusInternalServerError, -32603, false},
		{"failed notification", `{"jsonrpc":"2.0","method":"prompts/list"}`, withSession, http.StatusBadRequest, 0, true},
		{"ping notification", `{"jsonrpc":"2.0","method":"ping"}`, withSession, http.StatusAccepted, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := s.post(t, tc.body, tc.headers)
			if res.StatusCode != tc.status {
				t.Fatalf("want status %d got %d (%s)", tc.status, res.StatusCode, data)
			}
			if tc.noBody {
				if len(data) != 0 {
					t.Fatalf("expected empty body, got %q", data)
				}
				return
			}
			env := decodeEnvelope(t, data)
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("want code %d, got %+v", tc.code, env.Error)
			}
		})
	}
}

func TestSessionHeadersOnReplies(t *testing.T) {
	s := newTestServer(t, true)
	sid := s.handshake(t)

	res, _ := s.post(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, map[string]string{mcpSessionIDHeader: sid})
	if res.Header.Get(mcpSessionIDHeader) != sid || res.Header.Get(mcpProtocolVersionHeader) != "2025-06-18" {
		t.Fatalf("missing session headers: %v", res.Header)
	}
}

func TestContentType(t *testing.T) {
	s := newTestServer(t, true)

	req, _ := http.NewRequest(http.MethodPost, s.url, strings.NewReader(initializeBody))
	req.Header.Set("Content-Type", "text/plain")
	res, _ := s.do(t, req)
	if res.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", res.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, s.url, strings.NewReader(initializeBody))
	res, _ = s.do(t, req)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("missing content-type should be accepted, got %d", res.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, s.url, strings.NewReader(initializeBody))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	res, _ = s.do(t, req)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("json with charset should be accepted, got %d", res.StatusCode)
	}
}

func TestDisabledGateway(t *testing.T) {
	s := newTestServer(t, false)

	res, data := s.post(t, initializeBody, nil)
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.StatusCode)
	}
	env := decodeEnvelope(t, data)
	if env.Error == nil || env.Error.Code != -32000 {
		t.Fatalf("unexpected error: %+v", env.Error)
	}
}

func TestGetTools(t *testing.T) {
	s := newTestServer(t, true)

	req, _ := http.NewRequest(http.MethodGet, s.url+"/tools", nil)
	res, data := s.do(t, req)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", res.StatusCode)
	}
	var tools []mcp.Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tools))
	}
	if tools[0].Annotations.RegistrationSource != mcp.SourceAutoTool {
		t.Fatalf("unexpected source %q", tools[0].Annotations.RegistrationSource)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t, true)
	sid := s.handshake(t)

	del := func(id string) int {
		req, _ := http.NewRequest(http.MethodDelete, s.url, nil)
		if id != "" {
			req.Header.Set(mcpSessionIDHeader, id)
		}
		res, _ := s.do(t, req)
		return res.StatusCode
	}

	if got := del(""); got != http.StatusBadRequest {
		t.Fatalf("missing header: want 400 got %d", got)
	}
	if got := del(sid); got != http.StatusNoContent {
		t.Fatalf("delete: want 204 got %d", got)
	}
	if got := del(sid); got != http.StatusNotFound {
		t.Fatalf("second delete: want 404 got %d", got)
	}

	res, data := s.post(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`, map[string]string{mcpSessionIDHeader: sid})
	if res.StatusCode != http.StatusBadRequest || decodeEnvelope(t, data).Error.Message != "Unknown MCP session" {
		t.Fatalf("deleted session should be unknown: %d %s", res.StatusCode, data)
	}
}

func TestQuota(t *testing.T) {
	s := newTestServer(t, true, WithQuota(quota.New(1, time.Hour)))

	first, _ := s.post(t, initializeBody, map[string]string{"X-User-Id": "u1"})
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first call: unexpected status %d", first.StatusCode)
	}
	second, _ := s.post(t, initializeBody, map[string]string{"X-User-Id": "u1"})
	if second.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second call: want 429 got %d", second.StatusCode)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	// The catalog is not metered.
	req, _ := http.NewRequest(http.MethodGet, s.url+"/tools", nil)
	req.Header.Set("X-User-Id", "u1")
	if res, _ := s.do(t, req); res.StatusCode != http.StatusOK {
		t.Fatalf("tools listing should bypass quota, got %d", res.StatusCode)
	}
}

func TestCustomEndpoint(t *testing.T) {
	reg, err := mcpservice.NewRegistry(mcpservice.RegistryConfig{Enabled: true, AutoRegisterUnconfiguredTools: true},
		[]*mcpservice.Tool{mcpservice.NewTool("noop", "", nil, func(ctx context.Context, args mcpservice.Args) (any, error) { return nil, nil })}, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h, err := New(engine.NewEngine(memoryhost.New(), reg), WithEndpoint("/rpc/"), WithLogger(slog.New(testLogHandler(t))))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if h.Endpoint() != "/rpc" {
		t.Fatalf("unexpected endpoint %q", h.Endpoint())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(initializeBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ai/mcp", strings.NewReader(initializeBody)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("default endpoint should not be mounted, got %d", rec.Code)
	}
}

// ============================================================================

// Bridge is an implementation of slog.Handler that works
// with the stdlib testing pkg.
type Bridge struct {
	slog.Handler
	t   testing.TB
	buf *bytes.Buffer
	mu  *sync.Mutex
}

// Handle implements slog.Handler.
func (b *Bridge) Handle(ctx context.Context, rec slog.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.Handler.Handle(ctx, rec)
	if err != nil {
		return err
	}

	output, err := io.ReadAll(b.buf)
	if err != nil {
		return err
	}

	// The output comes back with a newline, which we need to
	// trim before feeding to t.Log.
	output = bytes.TrimSuffix(output, []byte("\n"))

	b.t.Helper()

	b.t.Log(string(output))

	return nil
}

// WithAttrs implements slog.Handler.
func (b *Bridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Bridge{
		t:       b.t,
		buf:     b.buf,
		mu:      b.mu,
		Handler: b.Handler.WithAttrs(attrs),
	}
}

// WithGroup implements slog.Handler.
func (b *Bridge) WithGroup(name string) slog.Handler {
	return &Bridge{
		t:       b.t,
		buf:     b.buf,
		mu:      b.mu,
		Handler: b.Handler.WithGroup(name),
	}
}

func testLogHandler(t *testing.T) *Bridge {
	b := &Bridge{
		t:   t,
		buf: &bytes.Buffer{},
		mu:  &sync.Mutex{},
	}
	hOpts := &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
	}
	b.Handler = slog.NewTextHandler(b.buf, hOpts)

	return b
}
