package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Jacky-ZJQ/mcp-gateway/sessions"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := Wrap(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRequestData(context.Background(), &RequestData{RequestID: "req-1", Method: "POST", Path: "/ai/mcp"})
	ctx = WithSessionData(ctx, &SessionData{SessionID: "s-1", ProtocolVersion: "2025-06-18", State: sessions.StateReady})
	ctx = WithRPCMessage(ctx, &RPCMessage{Method: "tools/call", ID: "7", Type: "request"})
	ctx = WithToolCallData(ctx, &ToolCallData{ToolName: "query_course", Source: "AUTO_TOOL"})

	log.InfoContext(ctx, "engine.handle_request.ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, group := range []string{"req", "sess", "rpc", "tool"} {
		if _, ok := rec[group].(map[string]any); !ok {
			t.Fatalf("missing %q group in %s", group, buf.String())
		}
	}
	if got := rec["tool"].(map[string]any)["name"]; got != "query_course" {
		t.Fatalf("unexpected tool name: %v", got)
	}
	if got := rec["sess"].(map[string]any)["state"]; got != "ready" {
		t.Fatalf("unexpected session state: %v", got)
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	l := Wrap(nil)
	if Wrap(l) != l {
		t.Fatal("wrapping an already wrapped logger should return it unchanged")
	}
}

func TestWithAttrsKeepsDecoration(t *testing.T) {
	var buf bytes.Buffer
	log := Wrap(slog.New(slog.NewJSONHandler(&buf, nil))).With(slog.String("component", "engine"))

	ctx := WithToolCallData(context.Background(), &ToolCallData{ToolName: "ping"})
	log.InfoContext(ctx, "x")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["component"] != "engine" {
		t.Fatalf("missing component attr: %s", buf.String())
	}
	if _, ok := rec["tool"]; !ok {
		t.Fatalf("decoration lost after With: %s", buf.String())
	}
}

func TestHandlerDropsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	log := Wrap(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRequestData(context.Background(), &RequestData{RequestID: "req-1", Method: "STDIO"})
	ctx = WithToolCallData(ctx, &ToolCallData{})
	log.InfoContext(ctx, "x")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	req := rec["req"].(map[string]any)
	if len(req) != 2 {
		t.Fatalf("expected only id and method, got %v", req)
	}
	if _, ok := rec["tool"]; ok {
		t.Fatalf("empty tool group should be dropped: %s", buf.String())
	}
}
