package mcpservice

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Handler is a manually registered tool without self-described metadata.
// It receives the raw tools/call argument bag.
type Handler interface {
	Name() string
	Execute(ctx context.Context, args map[string]any) (any, error)
}

type handlerFunc struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (any, error)
}

func (h handlerFunc) Name() string { return h.name }

func (h handlerFunc) Execute(ctx context.Context, args map[string]any) (any, error) {
	return h.fn(ctx, args)
}

// HandlerFunc adapts a function to the Handler interface.
func HandlerFunc(name string, fn func(ctx context.Context, args map[string]any) (any, error)) Handler {
	return handlerFunc{name: name, fn: fn}
}

// RequiredString reads field from args as trimmed text. A missing or blank
// value is an ArgumentError "<field> is required".
func RequiredString(args map[string]any, field string) (string, error) {
	s := OptionalString(args, field)
	if s == "" || strings.TrimSpace(s) == "" {
		return "", NewArgumentError("%s is required", field)
	}
	return strings.TrimSpace(s), nil
}

// OptionalString reads field from args as text, returning "" when it is
// absent or blank. Non-string values use their default formatting.
func OptionalString(args map[string]any, field string) string {
	v, ok := args[field]
	if !ok || v == nil {
		return ""
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
