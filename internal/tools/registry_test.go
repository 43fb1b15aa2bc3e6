// ABOUTME: Tests for the tool registry including registration and lookup.
// ABOUTME: Validates duplicate detection and unknown-tool errors.

package tools

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func testTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: name + " test tool",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, nil
		},
	}
}

func TestRegistryRegister(t *testing.T) {
	t.Run("registers tool successfully", func(t *testing.T) {
		registry := NewRegistry(slog.Default())

		if err := registry.Register(testTool("tool-a")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tool, err := registry.Lookup("tool-a")
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if tool.Name != "tool-a" {
			t.Errorf("expected name 'tool-a', got %q", tool.Name)
		}
	})

	t.Run("returns error for duplicate name", func(t *testing.T) {
		registry := NewRegistry(slog.Default())

		if err := registry.Register(testTool("tool-a")); err != nil {
			t.Fatalf("unexpected error on first register: %v", err)
		}

		err := registry.Register(testTool("tool-a"))
		if !errors.Is(err, ErrDuplicateTool) {
			t.Fatalf("expected ErrDuplicateTool, got %v", err)
		}
	})
}

func TestRegistryLookup(t *testing.T) {
	t.Run("unknown tool", func(t *testing.T) {
		registry := NewRegistry(slog.Default())

		_, err := registry.Lookup("nope")
		if !errors.Is(err, ErrUnknownTool) {
			t.Fatalf("expected ErrUnknownTool, got %v", err)
		}
	})
}

func TestRegistryList(t *testing.T) {
	registry := NewRegistry(slog.Default())
	for _, name := range []string{"a", "b", "c"} {
		if err := registry.Register(testTool(name)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := len(registry.List()); got != 3 {
		t.Errorf("expected 3 tools, got %d", got)
	}
}
