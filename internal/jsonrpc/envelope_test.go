package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestParseRequestRejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		code ErrorCode
		msg  string
	}{
		{"empty", "", ErrorCodeInvalidRequest, "Request body is required"},
		{"null", "null", ErrorCodeInvalidRequest, "Request body is required"},
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, ErrorCodeInvalidRequest, "JSON-RPC batch is not supported"},
		{"scalar", `"hello"`, ErrorCodeInvalidRequest, "Request must be a JSON object"},
		{"broken", `{"jsonrpc":`, ErrorCodeInvalidRequest, "Request body is not valid JSON"},
		{"missing version", `{"id":1,"method":"ping"}`, ErrorCodeInvalidRequest, "jsonrpc must be '2.0'"},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, ErrorCodeInvalidRequest, "jsonrpc must be '2.0'"},
		{"numeric version", `{"jsonrpc":2.0,"id":1,"method":"ping"}`, ErrorCodeInvalidRequest, "jsonrpc must be '2.0'"},
		{"object id", `{"jsonrpc":"2.0","id":{},"method":"ping"}`, ErrorCodeInvalidRequest, "id must be string or number"},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"ping"}`, ErrorCodeInvalidRequest, "id must be string or number"},
		{"bool id", `{"jsonrpc":"2.0","id":true,"method":"ping"}`, ErrorCodeInvalidRequest, "id must be string or number"},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, ErrorCodeInvalidRequest, "method is required"},
		{"blank method", `{"jsonrpc":"2.0","id":1,"method":"  "}`, ErrorCodeInvalidRequest, "method is required"},
		{"numeric method", `{"jsonrpc":"2.0","id":1,"method":5}`, ErrorCodeInvalidRequest, "method is required"},
		{"array params", `{"jsonrpc":"2.0","id":1,"method":"ping","params":[]}`, ErrorCodeInvalidParams, "params must be an object"},
		{"string params", `{"jsonrpc":"2.0","id":1,"method":"ping","params":"x"}`, ErrorCodeInvalidParams, "params must be an object"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, perr := ParseRequest([]byte(tc.body))
			if req == nil {
				t.Fatalf("expected non-nil request")
			}
			if perr == nil {
				t.Fatalf("expected error for %s", tc.body)
			}
			if perr.Code != tc.code {
				t.Fatalf("unexpected code: want %d got %d", tc.code, perr.Code)
			}
			if perr.Message != tc.msg {
				t.Fatalf("unexpected message: want %q got %q", tc.msg, perr.Message)
			}
		})
	}
}

func TestParseRequestVersionErrorKeepsID(t *testing.T) {
	req, perr := ParseRequest([]byte(`{"jsonrpc":"1.0","id":"abc","method":"ping"}`))
	if perr == nil {
		t.Fatal("expected error")
	}
	if req.ID.String() != "abc" {
		t.Fatalf("expected id to be recovered, got %q", req.ID.String())
	}
}

func TestParseRequestAccepts(t *testing.T) {
	req, perr := ParseRequest([]byte(` {"jsonrpc":"2.0","id":7,"method":" tools/list ","params":{"cursor":"x"}} `))
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if req.Method != "tools/list" {
		t.Fatalf("expected trimmed method, got %q", req.Method)
	}
	if req.IsNotification() {
		t.Fatal("expected request, got notification")
	}
	if v, ok := req.ID.Value().(int64); !ok || v != 7 {
		t.Fatalf("unexpected id value: %#v", req.ID.Value())
	}
	if string(req.Params) != `{"cursor":"x"}` {
		t.Fatalf("unexpected params: %s", req.Params)
	}
}

func TestParseRequestNotification(t *testing.T) {
	req, perr := ParseRequest([]byte(`{"jsonrpc":"2.0","method":"notifications/initialized","params":null}`))
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if !req.IsNotification() {
		t.Fatal("expected notification")
	}
	if req.Params != nil {
		t.Fatalf("expected null params to be dropped, got %s", req.Params)
	}
}

func TestErrorResponseEncodesNullID(t *testing.T) {
	b, err := json.Marshal(NewErrorResponse(nil, ErrorCodeInvalidRequest, "bad", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"bad"}}`
	if string(b) != want {
		t.Fatalf("unexpected encoding:\nwant %s\ngot  %s", want, b)
	}
}

func TestResultResponseKeepsStringID(t *testing.T) {
	res, err := NewResultResponse(NewRequestID("r-1"), map[string]any{})
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	b, _ := json.Marshal(res)
	want := `{"jsonrpc":"2.0","id":"r-1","result":{}}`
	if string(b) != want {
		t.Fatalf("unexpected encoding:\nwant %s\ngot  %s", want, b)
	}
}

func TestFractionalIDEchoesVerbatim(t *testing.T) {
	req, perr := ParseRequest([]byte(`{"jsonrpc":"2.0","id":1.50,"method":"ping"}`))
	if perr != nil {
		t.Fatalf("parse: %v", perr)
	}
	res, err := NewResultResponse(req.ID, map[string]any{})
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	b, _ := json.Marshal(res)
	want := `{"jsonrpc":"2.0","id":1.50,"result":{}}`
	if string(b) != want {
		t.Fatalf("unexpected encoding:\nwant %s\ngot  %s", want, b)
	}
}
