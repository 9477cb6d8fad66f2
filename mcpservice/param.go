package mcpservice

import (
	"fmt"

	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
	"github.com/go-viper/mapstructure/v2"
)

// ParamKind is the binding shape of a tool parameter. It is fixed when the
// tool is registered so binding never inspects Go types at call time.
type ParamKind int

const (
	// ScalarKind is a single text, number or boolean value.
	ScalarKind ParamKind = iota + 1
	// MapKind receives the argument bag as a generic key/value map.
	MapKind
	// RecordKind is a structured object decoded into a Go struct.
	RecordKind
)

func (k ParamKind) String() string {
	switch k {
	case ScalarKind:
		return "scalar"
	case MapKind:
		return "map"
	case RecordKind:
		return "record"
	default:
		return fmt.Sprintf("ParamKind(%d)", int(k))
	}
}

// Param describes one named parameter of a discovered tool.
type Param struct {
	Name        string
	Description string
	Kind        ParamKind
	Required    bool

	schema  mcp.Schema
	convert func(v any) (any, error)
	zero    func() any
}

// Schema returns the JSON schema fragment describing the parameter.
func (p Param) Schema() mcp.Schema {
	out := make(mcp.Schema, len(p.schema)+1)
	for k, v := range p.schema {
		out[k] = v
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	return out
}

// Optional returns a copy of p that is not listed as required in the schema.
func (p Param) Optional() Param {
	p.Required = false
	return p
}

// StringParam declares a required text parameter.
func StringParam(name, description string) Param {
	return scalarParam[string](name, description, "string", true)
}

// OptionalStringParam declares an optional text parameter bound as *string;
// an absent key binds to nil.
func OptionalStringParam(name, description string) Param {
	return scalarParam[*string](name, description, "string", false)
}

// IntParam declares a required integer parameter.
func IntParam(name, description string) Param {
	return scalarParam[int](name, description, "integer", true)
}

// FloatParam declares a required number parameter.
func FloatParam(name, description string) Param {
	return scalarParam[float64](name, description, "number", true)
}

// BoolParam declares a required boolean parameter.
func BoolParam(name, description string) Param {
	return scalarParam[bool](name, description, "boolean", true)
}

// MapParam declares a parameter receiving a generic key/value map. As the
// only parameter of a tool it receives the whole argument bag.
func MapParam(name, description string) Param {
	return Param{
		Name:        name,
		Description: description,
		Kind:        MapKind,
		schema:      mcp.Schema{"type": "object", "additionalProperties": true},
		convert: func(v any) (any, error) {
			if m, ok := v.(map[string]any); ok {
				return m, nil
			}
			return decode[map[string]any](v)
		},
		zero: func() any { return map[string]any(nil) },
	}
}

// RecordParam declares a structured parameter decoded into T. Its schema is
// reflected from T.
func RecordParam[T any](name, description string) Param {
	return Param{
		Name:        name,
		Description: description,
		Kind:        RecordKind,
		schema:      reflectSchema[T](),
		convert:     func(v any) (any, error) { return decode[T](v) },
		zero:        func() any { var z T; return z },
	}
}

func scalarParam[T any](name, description, jsonType string, required bool) Param {
	return Param{
		Name:        name,
		Description: description,
		Kind:        ScalarKind,
		Required:    required,
		schema:      mcp.Schema{"type": jsonType},
		convert:     func(v any) (any, error) { return decode[T](v) },
		zero:        func() any { var z T; return z },
	}
}

// decode converts loosely typed JSON-ish input into T. Numbers arriving as
// float64 or numeric strings are accepted for integer targets, and json tags
// name struct fields.
func decode[T any](input any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(input); err != nil {
		return out, err
	}
	return out, nil
}
