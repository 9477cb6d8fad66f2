package mcpservice

import (
	"errors"
	"fmt"
)

var (
	// ErrFeatureDisabled is returned by the registry when the gateway is
	// administratively disabled.
	ErrFeatureDisabled = errors.New("MCP gateway is disabled")
	// ErrUnsupportedTool is matched by UnsupportedToolError.
	ErrUnsupportedTool = errors.New("unsupported tool")
)

// UnsupportedToolError reports a tools/call for a name the registry does not know.
type UnsupportedToolError struct {
	Name string
}

func (e *UnsupportedToolError) Error() string { return "Unsupported tool: " + e.Name }

func (e *UnsupportedToolError) Is(target error) bool { return target == ErrUnsupportedTool }

// ArgumentError is a caller-input failure: a missing field, a value that
// cannot be converted to the declared parameter type, or any validation the
// tool itself rejects. The dispatcher reports it as invalid params rather
// than folding it into the tool result.
type ArgumentError struct {
	Message string
	Err     error
}

// NewArgumentError builds an ArgumentError with a formatted message.
func NewArgumentError(format string, args ...any) *ArgumentError {
	return &ArgumentError{Message: fmt.Sprintf(format, args...)}
}

func (e *ArgumentError) Error() string { return e.Message }

func (e *ArgumentError) Unwrap() error { return e.Err }

// IsArgumentError reports whether err carries an ArgumentError.
func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}

// ExecutionError wraps a failure raised by a tool's own logic.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("Tool invoke failed: %s: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
