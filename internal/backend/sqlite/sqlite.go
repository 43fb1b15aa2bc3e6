// ABOUTME: SQLite implementation of the backend capability using modernc.org/sqlite
// ABOUTME: Local, credential-less backend for development and offline use

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/luminal-data/tablebridge/internal/backend"
)

// dataset is the single dataset name the sqlite backend exposes. Tables
// live in sqlite's "main" schema and are reported as "main.<table>".
const dataset = "main"

// Backend implements backend.Capability over a local sqlite database.
type Backend struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) a sqlite database at the given path.
// Parent directories are created if needed.
func New(path string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlite-backend")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %v", backend.ErrUnavailable, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", backend.ErrUnavailable, err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enabling WAL mode: %v", backend.ErrUnavailable, err)
	}

	logger.Info("sqlite backend initialized", "path", path)
	return &Backend{db: db, logger: logger}, nil
}

// ListTables returns the user tables in the database as "main.<table>".
func (b *Backend) ListTables(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %v", backend.ErrQueryFailed, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scanning table name: %v", backend.ErrQueryFailed, err)
		}
		tables = append(tables, dataset+"."+name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing tables: %v", backend.ErrQueryFailed, err)
	}

	b.logger.Debug("listed tables", "count", len(tables))
	return tables, nil
}

// DescribeTable returns the stored DDL for a "main.<table>" name.
func (b *Backend) DescribeTable(ctx context.Context, table string) ([]backend.Record, error) {
	ds, name, err := backend.SplitTableName(table)
	if err != nil {
		return nil, err
	}
	if ds != dataset {
		return nil, fmt.Errorf("%w: unknown dataset %q (sqlite backend only exposes %q)", backend.ErrQueryFailed, ds, dataset)
	}

	return b.queryRecords(ctx,
		`SELECT sql AS ddl FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, name)
}

// ExecuteQuery runs the query text verbatim against the database.
func (b *Backend) ExecuteQuery(ctx context.Context, query string) ([]backend.Record, error) {
	b.logger.Debug("executing query", "query", query)
	return b.queryRecords(ctx, query)
}

// Close releases the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// queryRecords runs a query and scans every row into a Record.
func (b *Backend) queryRecords(ctx context.Context, query string, args ...any) ([]backend.Record, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrQueryFailed, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns: %v", backend.ErrQueryFailed, err)
	}

	records := make([]backend.Record, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", backend.ErrQueryFailed, err)
		}

		record := make(backend.Record, len(cols))
		for i, col := range cols {
			record[col] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrQueryFailed, err)
	}

	return records, nil
}

// normalizeValue converts driver values into JSON-friendly scalars.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
