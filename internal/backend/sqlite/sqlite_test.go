// ABOUTME: Tests for the sqlite backend capability.
// ABOUTME: Covers table listing, DDL describe, query execution, and name validation.

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminal-data/tablebridge/internal/backend"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()

	b, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.ExecuteQuery(context.Background(),
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer TEXT, total REAL)`)
	require.NoError(t, err)
	_, err = b.ExecuteQuery(context.Background(),
		`INSERT INTO orders (id, customer, total) VALUES (1, 'acme', 9.5), (2, NULL, 3.25)`)
	require.NoError(t, err)

	return b
}

func TestListTables(t *testing.T) {
	b := newTestBackend(t)

	tables, err := b.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.orders"}, tables)
}

func TestDescribeTable(t *testing.T) {
	b := newTestBackend(t)

	t.Run("returns DDL", func(t *testing.T) {
		records, err := b.DescribeTable(context.Background(), "main.orders")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Contains(t, records[0]["ddl"], "CREATE TABLE orders")
	})

	t.Run("rejects malformed name before querying", func(t *testing.T) {
		_, err := b.DescribeTable(context.Background(), "orders")
		assert.ErrorIs(t, err, backend.ErrInvalidTableName)
	})

	t.Run("unknown dataset is a query failure", func(t *testing.T) {
		_, err := b.DescribeTable(context.Background(), "prod.orders")
		assert.ErrorIs(t, err, backend.ErrQueryFailed)
	})

	t.Run("unknown table yields empty result", func(t *testing.T) {
		records, err := b.DescribeTable(context.Background(), "main.missing")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestExecuteQuery(t *testing.T) {
	b := newTestBackend(t)

	t.Run("returns rows with nulls preserved", func(t *testing.T) {
		records, err := b.ExecuteQuery(context.Background(),
			`SELECT id, customer, total FROM orders ORDER BY id`)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "acme", records[0]["customer"])
		assert.Nil(t, records[1]["customer"])
	})

	t.Run("malformed SQL fails with query error", func(t *testing.T) {
		_, err := b.ExecuteQuery(context.Background(), `SELEKT * FROM orders`)
		require.Error(t, err)
		assert.True(t, errors.Is(err, backend.ErrQueryFailed))
	})
}
