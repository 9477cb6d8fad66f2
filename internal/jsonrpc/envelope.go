package jsonrpc

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ParseRequest decodes a single inbound JSON-RPC request and validates the
// envelope in a fixed order: body present and a single object, version, id
// type, method, params type. The first failure is returned as an *Error.
//
// The returned request is never nil. On failure it carries whatever id could
// be recovered so the caller can correlate the error response.
func ParseRequest(body []byte) (*Request, *Error) {
	req := &Request{}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return req, NewError(ErrorCodeInvalidRequest, "Request body is required")
	}
	if trimmed[0] == '[' {
		return req, NewError(ErrorCodeInvalidRequest, "JSON-RPC batch is not supported")
	}
	if trimmed[0] != '{' {
		return req, NewError(ErrorCodeInvalidRequest, "Request must be a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return req, NewError(ErrorCodeInvalidRequest, "Request body is not valid JSON")
	}

	// The id is recovered early so that a version failure can still echo it.
	rawID, hasID := fields["id"]
	var idErr bool
	if hasID {
		if isJSONString(rawID) || isJSONNumber(rawID) {
			var id RequestID
			if err := json.Unmarshal(rawID, &id); err == nil {
				req.ID = &id
			} else {
				idErr = true
			}
		} else {
			idErr = true
		}
	}

	var version string
	if raw, ok := fields["jsonrpc"]; !ok || json.Unmarshal(raw, &version) != nil || version != ProtocolVersion {
		return req, NewError(ErrorCodeInvalidRequest, "jsonrpc must be '2.0'")
	}
	req.JSONRPCVersion = version

	if idErr {
		req.ID = nil
		return req, NewError(ErrorCodeInvalidRequest, "id must be string or number")
	}

	var method string
	if raw, ok := fields["method"]; ok {
		if err := json.Unmarshal(raw, &method); err != nil {
			method = ""
		}
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return req, NewError(ErrorCodeInvalidRequest, "method is required")
	}
	req.Method = method

	if raw, ok := fields["params"]; ok && !isJSONNull(raw) {
		if !isJSONObject(raw) {
			return req, NewError(ErrorCodeInvalidParams, "params must be an object")
		}
		req.Params = raw
	}

	return req, nil
}

func isJSONString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func isJSONNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

func isJSONObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
