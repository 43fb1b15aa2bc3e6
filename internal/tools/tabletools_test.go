// ABOUTME: Tests for the built-in table tools.
// ABOUTME: Verifies handler wiring and that malformed names never reach the backend.

package tools

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminal-data/tablebridge/internal/backend"
)

func TestRegisterTableTools(t *testing.T) {
	registry := NewRegistry(slog.Default())
	mock := backend.NewMockCapability()

	require.NoError(t, RegisterTableTools(registry, mock))

	for _, name := range []string{"execute_query", "list_tables", "describe_table"} {
		_, err := registry.Lookup(name)
		assert.NoError(t, err, "tool %s should be registered", name)
	}

	// Registering twice collides on every name.
	err := RegisterTableTools(registry, mock)
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestListTablesTool(t *testing.T) {
	registry := NewRegistry(slog.Default())
	mock := backend.NewMockCapability()
	mock.Tables = []string{"sales.orders", "sales.customers"}
	require.NoError(t, RegisterTableTools(registry, mock))

	tool, err := registry.Lookup("list_tables")
	require.NoError(t, err)

	out, err := tool.Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.orders", "sales.customers"}, out)
}

func TestDescribeTableTool(t *testing.T) {
	registry := NewRegistry(slog.Default())
	mock := backend.NewMockCapability()
	mock.Schemas["sales.orders"] = []backend.Record{{"ddl": "CREATE TABLE orders (...)"}}
	require.NoError(t, RegisterTableTools(registry, mock))

	tool, err := registry.Lookup("describe_table")
	require.NoError(t, err)

	t.Run("valid name reaches backend", func(t *testing.T) {
		out, err := tool.Handler(context.Background(), map[string]any{"table_name": "sales.orders"})
		require.NoError(t, err)
		records, ok := out.([]backend.Record)
		require.True(t, ok)
		require.Len(t, records, 1)
		assert.Equal(t, "CREATE TABLE orders (...)", records[0]["ddl"])
	})

	t.Run("malformed name never reaches backend", func(t *testing.T) {
		_, describeBefore, _ := mock.Calls()

		_, err := tool.Handler(context.Background(), map[string]any{"table_name": "bad_name_no_dot"})
		assert.ErrorIs(t, err, backend.ErrInvalidTableName)

		_, describeAfter, _ := mock.Calls()
		assert.Equal(t, describeBefore, describeAfter, "backend DescribeTable must not be invoked")
	})
}

func TestExecuteQueryTool(t *testing.T) {
	registry := NewRegistry(slog.Default())
	mock := backend.NewMockCapability()
	mock.QueryRows = []backend.Record{{"x": int64(1)}}
	require.NoError(t, RegisterTableTools(registry, mock))

	tool, err := registry.Lookup("execute_query")
	require.NoError(t, err)

	out, err := tool.Handler(context.Background(), map[string]any{"query": "SELECT 1 AS x"})
	require.NoError(t, err)
	records, ok := out.([]backend.Record)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, int64(1), records[0]["x"])
}
