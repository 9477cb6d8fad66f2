package mcpservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
)

// RegistryConfig is the declarative part of the tool catalog.
type RegistryConfig struct {
	// Enabled gates the whole gateway. A disabled registry lists nothing and
	// refuses calls.
	Enabled bool
	// AutoRegisterUnconfiguredTools adds discovered tools and manual handlers
	// that no override claims.
	AutoRegisterUnconfiguredTools bool
	// Overrides are applied in order and take precedence over every other source.
	Overrides []ToolOverride
}

// ToolOverride declares a tool explicitly and may replace the metadata the
// backing implementation supplies.
type ToolOverride struct {
	Name           string
	Title          string
	Description    string
	InputSchema    mcp.Schema
	ReadOnlyHint   *bool
	IdempotentHint *bool
	// Enabled defaults to true when nil.
	Enabled *bool
}

func (o ToolOverride) enabled() bool { return o.Enabled == nil || *o.Enabled }

type invoker func(ctx context.Context, args map[string]any) (any, error)

type resolvedTool struct {
	name           string
	title          string
	description    string
	inputSchema    mcp.Schema
	readOnlyHint   bool
	idempotentHint bool
	source         string
	invoke         invoker
}

// Registry is the immutable tool catalog built once at startup. It is safe
// for concurrent use without locking because nothing mutates it after
// NewRegistry returns.
type Registry struct {
	enabled bool
	byName  map[string]*resolvedTool
	ordered []*resolvedTool
	log     *slog.Logger
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used while building the catalog.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry merges configuration overrides, discovered tools and manual
// handlers into one catalog. Precedence is override, then discovered, then
// manual. It fails on duplicate names within a source, on an override with
// no implementation, and on an empty catalog.
func NewRegistry(cfg RegistryConfig, tools []*Tool, handlers []Handler, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		enabled: cfg.Enabled,
		byName:  make(map[string]*resolvedTool),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	if !cfg.Enabled {
		r.log.Info("registry.disabled")
		return r, nil
	}

	discovered := make(map[string]*Tool, len(tools))
	for _, t := range tools {
		if t == nil {
			continue
		}
		key := normalize(t.Name)
		if key == "" {
			return nil, errors.New("tool name must not be empty")
		}
		if _, dup := discovered[key]; dup {
			return nil, fmt.Errorf("duplicate tool name detected: %s", t.Name)
		}
		discovered[key] = t
	}

	manual := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		if h == nil {
			continue
		}
		key := normalize(h.Name())
		if key == "" {
			return nil, errors.New("tool handler name must not be empty")
		}
		if _, dup := manual[key]; dup {
			return nil, fmt.Errorf("duplicate tool handler: %s", h.Name())
		}
		manual[key] = h
	}

	configured := make(map[string]struct{}, len(cfg.Overrides))
	for _, o := range cfg.Overrides {
		if !o.enabled() {
			continue
		}
		key := normalize(o.Name)
		if key == "" {
			return nil, errors.New("configured tool name must not be empty")
		}
		if _, dup := configured[key]; dup {
			return nil, fmt.Errorf("duplicate tool config: %s", o.Name)
		}
		configured[key] = struct{}{}

		rt, err := resolveOverride(o, discovered[key], manual[key])
		if err != nil {
			return nil, err
		}
		r.add(key, rt)
	}

	if cfg.AutoRegisterUnconfiguredTools {
		for _, t := range sortedTools(discovered) {
			key := normalize(t.Name)
			if _, ok := configured[key]; ok {
				continue
			}
			if _, ok := r.byName[key]; ok {
				continue
			}
			r.log.Info("registry.auto_register", slog.String("tool", t.Name), slog.String("source", mcp.SourceAutoTool))
			r.add(key, &resolvedTool{
				name:           strings.TrimSpace(t.Name),
				title:          t.Title,
				description:    t.Description,
				inputSchema:    cloneSchema(t.InputSchema),
				readOnlyHint:   t.ReadOnlyHint,
				idempotentHint: t.IdempotentHint,
				source:         mcp.SourceAutoTool,
				invoke:         t.Invoke,
			})
		}

		for _, h := range sortedHandlers(manual) {
			key := normalize(h.Name())
			if _, ok := configured[key]; ok {
				continue
			}
			if _, ok := r.byName[key]; ok {
				continue
			}
			r.log.Info("registry.auto_register", slog.String("tool", h.Name()), slog.String("source", mcp.SourceManualHandler))
			name := strings.TrimSpace(h.Name())
			r.add(key, &resolvedTool{
				name:           name,
				title:          name,
				inputSchema:    mcp.EmptyObjectSchema(),
				readOnlyHint:   true,
				idempotentHint: true,
				source:         mcp.SourceManualHandler,
				invoke:         h.Execute,
			})
		}
	}

	if len(r.ordered) == 0 {
		return nil, errors.New("no tools available: configure tool overrides or register tools")
	}

	r.log.Info("registry.ready", slog.Int("tools", len(r.ordered)))
	return r, nil
}

func resolveOverride(o ToolOverride, discovered *Tool, handler Handler) (*resolvedTool, error) {
	if discovered == nil && handler == nil {
		return nil, fmt.Errorf("no tool or tool handler found for configured tool: %s", o.Name)
	}

	name := strings.TrimSpace(o.Name)
	rt := &resolvedTool{name: name, source: mcp.SourceConfigOverride}

	switch {
	case strings.TrimSpace(o.Title) != "":
		rt.title = strings.TrimSpace(o.Title)
	case discovered != nil:
		rt.title = discovered.Title
	default:
		rt.title = name
	}

	switch {
	case strings.TrimSpace(o.Description) != "":
		rt.description = strings.TrimSpace(o.Description)
	case discovered != nil:
		rt.description = discovered.Description
	}

	switch {
	case len(o.InputSchema) > 0:
		rt.inputSchema = cloneSchema(o.InputSchema)
	case discovered != nil:
		rt.inputSchema = cloneSchema(discovered.InputSchema)
	default:
		rt.inputSchema = mcp.EmptyObjectSchema()
	}

	switch {
	case o.ReadOnlyHint != nil:
		rt.readOnlyHint = *o.ReadOnlyHint
	case discovered != nil:
		rt.readOnlyHint = discovered.ReadOnlyHint
	}
	switch {
	case o.IdempotentHint != nil:
		rt.idempotentHint = *o.IdempotentHint
	case discovered != nil:
		rt.idempotentHint = discovered.IdempotentHint
	}

	if discovered != nil {
		rt.invoke = discovered.Invoke
	} else {
		rt.invoke = handler.Execute
	}
	return rt, nil
}

func (r *Registry) add(key string, rt *resolvedTool) {
	r.byName[key] = rt
	r.ordered = append(r.ordered, rt)
}

// Enabled reports whether the gateway is enabled.
func (r *Registry) Enabled() bool { return r.enabled }

// Len returns the number of catalogued tools.
func (r *Registry) Len() int { return len(r.ordered) }

// ListTools returns the catalog in registration order. It is empty when the
// gateway is disabled.
func (r *Registry) ListTools(ctx context.Context) []mcp.Tool {
	if !r.enabled {
		return []mcp.Tool{}
	}
	out := make([]mcp.Tool, 0, len(r.ordered))
	for _, rt := range r.ordered {
		out = append(out, mcp.Tool{
			Name:        rt.name,
			Title:       rt.title,
			Description: rt.description,
			Source:      rt.source,
			InputSchema: cloneSchema(rt.inputSchema),
			Annotations: mcp.ToolAnnotations{
				ReadOnlyHint:       rt.readOnlyHint,
				IdempotentHint:     rt.idempotentHint,
				RegistrationSource: rt.source,
			},
		})
	}
	return out
}

// Source returns the registration source of the named tool, or "" if unknown.
func (r *Registry) Source(name string) string {
	if rt, ok := r.byName[normalize(name)]; ok {
		return rt.source
	}
	return ""
}

// CallTool invokes the named tool (matched case-insensitively). Caller-input
// failures are returned as *ArgumentError or *UnsupportedToolError; failures
// raised by the tool itself are wrapped in *ExecutionError.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if !r.enabled {
		return nil, ErrFeatureDisabled
	}
	if strings.TrimSpace(name) == "" {
		return nil, NewArgumentError("name is required")
	}
	rt, ok := r.byName[normalize(name)]
	if !ok {
		return nil, &UnsupportedToolError{Name: name}
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := rt.invoke(ctx, args)
	if err != nil {
		if IsArgumentError(err) {
			return nil, err
		}
		return nil, &ExecutionError{Tool: rt.name, Err: err}
	}
	return res, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sortedTools(m map[string]*Tool) []*Tool {
	out := make([]*Tool, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortedHandlers(m map[string]Handler) []Handler {
	out := make([]Handler, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
