// ABOUTME: Declared input schemas for tools and argument validation.
// ABOUTME: Rejects missing, unknown, and wrong-typed arguments before dispatch.

package tools

import (
	"fmt"
)

// FieldType names the accepted type of a schema field.
type FieldType string

// Supported field types.
const (
	TypeString FieldType = "string"
)

// Field declares one named argument of a tool's input schema.
type Field struct {
	Name        string
	Type        FieldType
	Required    bool
	Description string
}

// Schema is the declared shape of a tool's arguments.
type Schema struct {
	Fields []Field
}

// Validate checks an argument map against the schema. Required fields
// must be present with the declared type; fields not declared by the
// schema are rejected rather than silently ignored.
func (s Schema) Validate(args map[string]any) error {
	declared := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = f
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("unexpected argument %q", name)
		}
	}

	for _, f := range s.Fields {
		val, present := args[f.Name]
		if !present {
			if f.Required {
				return fmt.Errorf("missing required argument %q", f.Name)
			}
			continue
		}
		switch f.Type {
		case TypeString:
			if _, ok := val.(string); !ok {
				return fmt.Errorf("argument %q must be a string", f.Name)
			}
		default:
			return fmt.Errorf("argument %q has unsupported schema type %q", f.Name, f.Type)
		}
	}

	return nil
}

// JSONSchema renders the schema as a JSON-Schema-shaped document for
// exposure to clients.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
