// ABOUTME: Backend capability contract for tabular data stores.
// ABOUTME: Defines the list/describe/query interface, record model, and error classes.

package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTableName indicates a table reference that is not of the form
// "dataset.table".
var ErrInvalidTableName = errors.New("invalid table name")

// ErrUnavailable indicates the backend could not be reached or constructed.
var ErrUnavailable = errors.New("backend unavailable")

// ErrQueryFailed indicates the backend reported a failure while executing
// a query (malformed SQL, permission denial, timeout, unknown object).
var ErrQueryFailed = errors.New("query failed")

// Record is a single result row: column name to value. Values are
// backend-defined scalars (string, number, bool, nil) or nested records
// and lists, and must round-trip through JSON.
type Record map[string]any

// Capability is the data-access contract fulfilled by a concrete backend.
// Implementations must be safe for concurrent use; all methods may block
// on backend I/O and honor context cancellation.
type Capability interface {
	// ListTables returns fully qualified "dataset.table" names.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable returns schema information for a "dataset.table" name.
	DescribeTable(ctx context.Context, table string) ([]Record, error)

	// ExecuteQuery runs the query text verbatim and returns the result rows.
	ExecuteQuery(ctx context.Context, query string) ([]Record, error)

	// Close releases the backend's resources.
	Close() error
}

// SplitTableName validates and splits a qualified "dataset.table" name.
// The name must contain exactly one dot with non-empty segments on both
// sides; anything else fails with ErrInvalidTableName.
func SplitTableName(qualified string) (dataset, table string, err error) {
	parts := strings.Split(qualified, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q (want dataset.table)", ErrInvalidTableName, qualified)
	}
	return parts[0], parts[1], nil
}
