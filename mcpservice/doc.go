// Package mcpservice is the tool-authoring and tool-catalog layer of the
// gateway.
//
// # Sources
//
// Tools reach the catalog from three places:
//
//	ToolOverride : declarative configuration (highest precedence)
//	*Tool        : self-describing implementations registered at wiring time
//	Handler      : manual handlers that only know their name (fallback)
//
// NewRegistry merges them once. An override resolves each field from its own
// non-empty value, then the discovered tool, then manual defaults, and
// invokes the discovered tool when one exists. With auto-registration on,
// unclaimed discovered tools (AUTO_TOOL) and then unclaimed handlers
// (MANUAL_HANDLER) are appended in name order. The resulting Registry is
// immutable and shared by reference.
//
// # Parameters
//
// A Tool declares its parameters as Param values whose ParamKind (scalar,
// map or record) is fixed at registration. Bind uses the kind, not runtime
// reflection, to adapt the loosely typed tools/call argument bag:
//
//	tool := mcpservice.NewTool("generate_course_reservation", "Create a reservation",
//		[]mcpservice.Param{
//			mcpservice.StringParam("courseName", "course"),
//			mcpservice.OptionalStringParam("remark", "free text"),
//		},
//		func(ctx context.Context, args mcpservice.Args) (any, error) {
//			course, err := args.RequiredString("courseName")
//			if err != nil {
//				return nil, err
//			}
//			return book(ctx, course, args.OptionalString("remark"))
//		})
//
// Record parameters reflect their JSON schema from the Go type with
// invopop/jsonschema; values are converted with mapstructure using json tags.
//
// # Errors
//
// Registry.CallTool distinguishes caller-input failures (*ArgumentError,
// *UnsupportedToolError, ErrFeatureDisabled) from failures raised by the
// tool (*ExecutionError). The dispatcher maps the former to JSON-RPC errors
// and folds the latter into an isError tool result.
package mcpservice
