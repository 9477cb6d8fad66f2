package mcpservice

import (
	"context"
	"fmt"

	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
)

// Tool is a self-describing tool implementation registered explicitly at
// wiring time. It carries its own name, description, generated input schema
// and a bound invoker.
type Tool struct {
	Name           string
	Title          string
	Description    string
	InputSchema    mcp.Schema
	ReadOnlyHint   bool
	IdempotentHint bool

	params []Param
	fn     func(ctx context.Context, args Args) (any, error)
}

// ToolOption configures a Tool at construction.
type ToolOption func(*Tool)

// WithTitle sets a human-readable title. Defaults to the tool name.
func WithTitle(title string) ToolOption {
	return func(t *Tool) { t.Title = title }
}

// WithHints sets the behavior hints. Discovered tools default to read-only
// and idempotent.
func WithHints(readOnly, idempotent bool) ToolOption {
	return func(t *Tool) {
		t.ReadOnlyHint = readOnly
		t.IdempotentHint = idempotent
	}
}

// WithInputSchema replaces the generated input schema.
func WithInputSchema(s mcp.Schema) ToolOption {
	return func(t *Tool) { t.InputSchema = cloneSchema(s) }
}

// NewTool builds a tool taking zero or more named parameters. Each parameter
// is bound by name from the argument bag; see Bind for the rules.
func NewTool(name, description string, params []Param, fn func(ctx context.Context, args Args) (any, error), opts ...ToolOption) *Tool {
	t := &Tool{
		Name:           name,
		Title:          name,
		Description:    description,
		ReadOnlyHint:   true,
		IdempotentHint: true,
		params:         append([]Param(nil), params...),
		fn:             fn,
	}
	if len(params) == 0 {
		t.InputSchema = mcp.EmptyObjectSchema()
	} else {
		t.InputSchema = objectSchema(params)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// NewScalarTool builds a tool with a single scalar parameter of type T.
func NewScalarTool[T any](name, description string, param Param, fn func(ctx context.Context, v T) (any, error), opts ...ToolOption) *Tool {
	if param.Kind != ScalarKind {
		panic(fmt.Sprintf("mcpservice: NewScalarTool %q: param %q is %s, not scalar", name, param.Name, param.Kind))
	}
	return NewTool(name, description, []Param{param}, func(ctx context.Context, args Args) (any, error) {
		return fn(ctx, Value[T](args, param.Name))
	}, opts...)
}

// NewRecordTool builds a tool whose single parameter is the structured
// record T. The record's fields form the input schema, and callers may send
// them either at the top level or nested under paramName.
func NewRecordTool[T any](name, description, paramName string, fn func(ctx context.Context, in T) (any, error), opts ...ToolOption) *Tool {
	p := RecordParam[T](paramName, "")
	opts = append([]ToolOption{WithInputSchema(p.schema)}, opts...)
	return NewTool(name, description, []Param{p}, func(ctx context.Context, args Args) (any, error) {
		return fn(ctx, Value[T](args, paramName))
	}, opts...)
}

// NewMapTool builds a tool that receives the raw argument bag.
func NewMapTool(name, description, paramName string, fn func(ctx context.Context, args map[string]any) (any, error), opts ...ToolOption) *Tool {
	p := MapParam(paramName, "")
	opts = append([]ToolOption{WithInputSchema(mcp.Schema{"type": "object", "properties": map[string]any{}, "additionalProperties": true})}, opts...)
	return NewTool(name, description, []Param{p}, func(ctx context.Context, args Args) (any, error) {
		return fn(ctx, Value[map[string]any](args, paramName))
	}, opts...)
}

// Params returns the declared parameters.
func (t *Tool) Params() []Param {
	return append([]Param(nil), t.params...)
}

// Invoke binds args to the declared parameters and runs the tool.
func (t *Tool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	bound, err := Bind(t.params, args)
	if err != nil {
		return nil, err
	}
	return t.fn(ctx, bound)
}
