// ABOUTME: Tests for schema validation of tool arguments.
// ABOUTME: Covers required, unknown, and wrong-typed fields plus JSON schema rendering.

package tools

import (
	"strings"
	"testing"
)

func TestSchemaValidate(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "query", Type: TypeString, Required: true},
	}}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{
			name: "valid arguments",
			args: map[string]any{"query": "SELECT 1"},
		},
		{
			name:    "missing required field",
			args:    map[string]any{},
			wantErr: `missing required argument "query"`,
		},
		{
			name:    "wrong type",
			args:    map[string]any{"query": 42},
			wantErr: `argument "query" must be a string`,
		},
		{
			name:    "unknown field",
			args:    map[string]any{"query": "SELECT 1", "limit": 10},
			wantErr: `unexpected argument "limit"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSchemaValidate_Empty(t *testing.T) {
	schema := Schema{}

	if err := schema.Validate(map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := schema.Validate(nil); err != nil {
		t.Fatalf("unexpected error for nil args: %v", err)
	}
	if err := schema.Validate(map[string]any{"extra": true}); err == nil {
		t.Fatal("expected error for extra argument")
	}
}

func TestSchemaJSONSchema(t *testing.T) {
	schema := Schema{Fields: []Field{
		{Name: "table_name", Type: TypeString, Required: true, Description: "Qualified name"},
	}}

	doc := schema.JSONSchema()
	if doc["type"] != "object" {
		t.Errorf("type = %v, want object", doc["type"])
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatal("properties missing")
	}
	if _, ok := props["table_name"]; !ok {
		t.Error("expected table_name property")
	}
	required, ok := doc["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "table_name" {
		t.Errorf("required = %v, want [table_name]", doc["required"])
	}
}
