package mcpservice

import (
	"strings"
)

// Args holds parameter values bound from a tools/call argument bag, in
// declaration order.
type Args struct {
	names  []string
	values []any
}

// Bind adapts an untyped argument map to params.
//
// A single parameter is bound by the first rule that applies:
//   - its key is present and it is a scalar: convert that value;
//   - it is a map: pass the whole argument map through;
//   - its key is the only key present: convert that value;
//   - otherwise: convert the whole argument map, which a scalar can never
//     accept, so a scalar whose key is absent fails as "<name> is required".
//
// Multiple parameters are each looked up by name; an absent key binds the
// parameter's zero value. Any conversion failure is an *ArgumentError.
func Bind(params []Param, args map[string]any) (Args, error) {
	if args == nil {
		args = map[string]any{}
	}
	out := Args{
		names:  make([]string, len(params)),
		values: make([]any, len(params)),
	}

	if len(params) == 1 {
		v, err := bindSingle(params[0], args)
		if err != nil {
			return Args{}, err
		}
		out.names[0] = params[0].Name
		out.values[0] = v
		return out, nil
	}

	for i, p := range params {
		out.names[i] = p.Name
		raw, ok := args[p.Name]
		if !ok || raw == nil {
			out.values[i] = p.zero()
			continue
		}
		v, err := p.convert(raw)
		if err != nil {
			return Args{}, conversionError(p, err)
		}
		out.values[i] = v
	}
	return out, nil
}

func bindSingle(p Param, args map[string]any) (any, error) {
	raw, ok := args[p.Name]

	var (
		v   any
		err error
	)
	switch {
	case ok && p.Kind == ScalarKind:
		v, err = p.convert(raw)
	case p.Kind == MapKind:
		return args, nil
	case ok && len(args) == 1:
		v, err = p.convert(raw)
	case p.Kind == ScalarKind:
		return nil, NewArgumentError("%s is required", p.Name)
	default:
		v, err = p.convert(args)
	}
	if err != nil {
		return nil, conversionError(p, err)
	}
	return v, nil
}

func conversionError(p Param, err error) *ArgumentError {
	return &ArgumentError{
		Message: "invalid value for " + p.Name + ": " + err.Error(),
		Err:     err,
	}
}

// Len returns the number of bound parameters.
func (a Args) Len() int { return len(a.values) }

// At returns the i-th bound value.
func (a Args) At(i int) any {
	if i < 0 || i >= len(a.values) {
		return nil
	}
	return a.values[i]
}

// Get returns the value bound to name and whether such a parameter exists.
func (a Args) Get(name string) (any, bool) {
	for i, n := range a.names {
		if n == name {
			return a.values[i], true
		}
	}
	return nil, false
}

// Value returns the value bound to name as T, or T's zero value when the
// parameter does not exist or has a different type.
func Value[T any](a Args, name string) T {
	v, _ := a.Get(name)
	t, _ := v.(T)
	return t
}

// String returns a string parameter.
func (a Args) String(name string) string { return Value[string](a, name) }

// Int returns an integer parameter.
func (a Args) Int(name string) int { return Value[int](a, name) }

// Bool returns a boolean parameter.
func (a Args) Bool(name string) bool { return Value[bool](a, name) }

// OptionalString returns an optional string parameter, nil when absent.
func (a Args) OptionalString(name string) *string { return Value[*string](a, name) }

// RequiredString returns the trimmed string parameter or an ArgumentError
// naming it when it is blank.
func (a Args) RequiredString(name string) (string, error) {
	s := strings.TrimSpace(a.String(name))
	if s == "" {
		return "", NewArgumentError("%s is required", name)
	}
	return s, nil
}
