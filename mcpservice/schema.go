package mcpservice

import (
	"encoding/json"

	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
	"github.com/invopop/jsonschema"
)

// reflectSchema reflects a JSON Schema from T using invopop/jsonschema and
// returns it as a generic document. Definitions are inlined and the root
// struct is expanded so the result can be embedded as a tool input schema.
func reflectSchema[T any]() mcp.Schema {
	r := &jsonschema.Reflector{
		DoNotReference:            true, // inline defs
		ExpandedStruct:            true, // put struct at root
		AllowAdditionalProperties: true,
	}
	// Reflect from a zero value pointer to capture struct tags consistently
	s := r.Reflect(new(T))
	if s == nil {
		return mcp.EmptyObjectSchema()
	}

	b, err := json.Marshal(s)
	if err != nil {
		return mcp.EmptyObjectSchema()
	}
	var doc mcp.Schema
	if err := json.Unmarshal(b, &doc); err != nil || doc == nil {
		return mcp.EmptyObjectSchema()
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	if doc["type"] == "object" {
		if _, ok := doc["properties"]; !ok {
			doc["properties"] = map[string]any{}
		}
	}
	return doc
}

// objectSchema builds the input schema for a tool taking params by name.
func objectSchema(params []Param) mcp.Schema {
	props := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		props[p.Name] = p.Schema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := mcp.Schema{"type": "object", "properties": props}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// cloneSchema deep-copies a schema document so callers cannot mutate a
// registered tool's schema.
func cloneSchema(s mcp.Schema) mcp.Schema {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		out := make(mcp.Schema, len(s))
		for k, v := range s {
			out[k] = v
		}
		return out
	}
	var out mcp.Schema
	_ = json.Unmarshal(b, &out)
	return out
}
