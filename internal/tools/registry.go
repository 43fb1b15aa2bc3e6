// ABOUTME: Registry mapping tool names to handlers and input schemas.
// ABOUTME: Populated once at startup; read-only while serving traffic.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrDuplicateTool indicates a tool with the same name is already registered.
var ErrDuplicateTool = errors.New("tool already registered")

// ErrUnknownTool indicates the requested tool is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Handler executes a tool with schema-validated arguments and returns a
// JSON-serializable result or an error.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool describes a registered tool: its wire name, human description,
// declared input schema, and the handler bound to the backend.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Registry holds the set of registered tools. Registration happens once,
// before any request traffic, so lookups need no locking afterwards.
type Registry struct {
	tools  map[string]*Tool
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool to the registry.
// Returns ErrDuplicateTool if a tool with the same name exists.
func (r *Registry) Register(tool *Tool) error {
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, tool.Name)
	}
	r.tools[tool.Name] = tool

	r.logger.Debug("tool registered",
		"tool_name", tool.Name,
		"total_tools", len(r.tools),
	)
	return nil
}

// Lookup returns the tool with the given name.
// Returns ErrUnknownTool if no such tool is registered.
func (r *Registry) Lookup(name string) (*Tool, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return tool, nil
}

// List returns all registered tools in unspecified order.
func (r *Registry) List() []*Tool {
	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	return tools
}
