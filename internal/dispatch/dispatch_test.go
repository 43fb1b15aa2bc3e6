// ABOUTME: Tests for the request dispatcher.
// ABOUTME: Validates the one-request-one-result guarantee across all failure modes.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminal-data/tablebridge/internal/backend"
	"github.com/luminal-data/tablebridge/internal/tools"
)

func newTestDispatcher(t *testing.T, mock *backend.MockCapability) *Dispatcher {
	t.Helper()
	registry := tools.NewRegistry(slog.Default())
	require.NoError(t, tools.RegisterTableTools(registry, mock))
	return New(registry, slog.Default())
}

func TestDispatchSuccess(t *testing.T) {
	mock := backend.NewMockCapability()
	mock.QueryRows = []backend.Record{{"x": int64(1)}}
	d := newTestDispatcher(t, mock)

	res := d.Dispatch(context.Background(), Request{
		Tool:      "execute_query",
		Args:      map[string]any{"query": "SELECT 1 AS x"},
		RequestID: "req-1",
	})

	require.False(t, res.Failed(), "unexpected failure: %s", res.Error)
	assert.Equal(t, "req-1", res.RequestID)

	// Payload round-trips to the rows the backend returned.
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Payload), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, float64(1), rows[0]["x"])
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t, backend.NewMockCapability())

	res := d.Dispatch(context.Background(), Request{Tool: "drop_everything", RequestID: "req-2"})

	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "Unknown tool: drop_everything")
}

func TestDispatchValidation(t *testing.T) {
	d := newTestDispatcher(t, backend.NewMockCapability())

	t.Run("missing required argument", func(t *testing.T) {
		res := d.Dispatch(context.Background(), Request{Tool: "execute_query", Args: map[string]any{}})
		require.True(t, res.Failed())
		assert.Contains(t, res.Error, "validation error")
		assert.Contains(t, res.Error, "query")
	})

	t.Run("wrong argument type", func(t *testing.T) {
		res := d.Dispatch(context.Background(), Request{
			Tool: "describe_table",
			Args: map[string]any{"table_name": 7},
		})
		require.True(t, res.Failed())
		assert.Contains(t, res.Error, "table_name")
	})
}

func TestDispatchBackendError(t *testing.T) {
	mock := backend.NewMockCapability()
	mock.Err = fmt.Errorf("%w: permission denied", backend.ErrQueryFailed)
	d := newTestDispatcher(t, mock)

	res := d.Dispatch(context.Background(), Request{
		Tool: "execute_query",
		Args: map[string]any{"query": "SELECT 1"},
	})

	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "backend error")
	assert.Contains(t, res.Error, "permission denied")
}

func TestDispatchInvalidTableName(t *testing.T) {
	mock := backend.NewMockCapability()
	d := newTestDispatcher(t, mock)

	res := d.Dispatch(context.Background(), Request{
		Tool: "describe_table",
		Args: map[string]any{"table_name": "bad_name_no_dot"},
	})

	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "validation error")
	assert.Contains(t, res.Error, "bad_name_no_dot")

	_, describes, _ := mock.Calls()
	assert.Zero(t, describes, "backend must not be reached for malformed names")
}

func TestDispatchPanicRecovery(t *testing.T) {
	registry := tools.NewRegistry(slog.Default())
	require.NoError(t, registry.Register(&tools.Tool{
		Name:   "explode",
		Schema: tools.Schema{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("boom")
		},
	}))
	d := New(registry, slog.Default())

	res := d.Dispatch(context.Background(), Request{Tool: "explode", RequestID: "req-3"})

	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "internal error")
	assert.Equal(t, "req-3", res.RequestID)
}

func TestDispatchRoundTrip(t *testing.T) {
	mock := backend.NewMockCapability()
	mock.QueryRows = []backend.Record{
		{"s": "text", "n": 3.5, "b": true, "nil": nil, "nested": map[string]any{"k": "v"}},
	}
	d := newTestDispatcher(t, mock)

	res := d.Dispatch(context.Background(), Request{
		Tool: "execute_query",
		Args: map[string]any{"query": "SELECT *"},
	})
	require.False(t, res.Failed())

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Payload), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "text", rows[0]["s"])
	assert.Equal(t, 3.5, rows[0]["n"])
	assert.Equal(t, true, rows[0]["b"])
	assert.Nil(t, rows[0]["nil"])
	assert.Equal(t, map[string]any{"k": "v"}, rows[0]["nested"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"invalid table name", fmt.Errorf("wrap: %w", backend.ErrInvalidTableName), KindValidation},
		{"unavailable", backend.ErrUnavailable, KindBackend},
		{"query failed", backend.ErrQueryFailed, KindBackend},
		{"cancelled", context.Canceled, KindTransport},
		{"unrecognized", errors.New("mystery"), KindBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tagged := Classify(tt.err)
			assert.Equal(t, tt.want, tagged.Kind)
			assert.ErrorIs(t, tagged, tt.err)
		})
	}
}
