package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC id. It holds a string, an int64 for integral
// numbers, or a json.Number for any other number so it echoes back exactly
// as the caller sent it.
type RequestID struct {
	value any
}

// NewRequestID wraps a string or integer id. Other values yield an empty id.
func NewRequestID(value any) *RequestID {
	switch v := value.(type) {
	case string, int64, json.Number:
		return &RequestID{value: v}
	case int:
		return &RequestID{value: int64(v)}
	case int32:
		return &RequestID{value: int64(v)}
	default:
		return &RequestID{}
	}
}

// String formats the id for logs. Empty for a nil id.
func (id *RequestID) String() string {
	if id == nil {
		return ""
	}
	switch v := id.value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Value returns the underlying string, int64 or json.Number.
func (id *RequestID) Value() any {
	if id == nil {
		return nil
	}
	return id.value
}

// IsNil reports whether there is no id to echo.
func (id *RequestID) IsNil() bool {
	return id == nil || id.value == nil
}

// MarshalJSON encodes a nil id as null.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id.IsNil() {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		id.value = s
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("JSON-RPC ID must be a string or number, got: %s", data)
	}
	if i, err := n.Int64(); err == nil {
		id.value = i
		return nil
	}
	id.value = n
	return nil
}
