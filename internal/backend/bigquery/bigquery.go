// ABOUTME: BigQuery implementation of the backend capability.
// ABOUTME: Lists datasets/tables, describes tables via INFORMATION_SCHEMA, and runs queries.

package bigquery

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/luminal-data/tablebridge/internal/backend"
)

// Config holds the construction parameters for the BigQuery backend.
type Config struct {
	Project         string
	Location        string
	CredentialsFile string
	// Datasets, when non-empty, restricts ListTables to these datasets.
	Datasets []string
}

// Backend implements backend.Capability against a BigQuery project.
type Backend struct {
	client   *bigquery.Client
	datasets []string
	logger   *slog.Logger
}

// New constructs a BigQuery-backed capability. Project and location are
// required; a credentials file is optional (ambient credentials are used
// when it is empty).
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("%w: project is required", backend.ErrUnavailable)
	}
	if cfg.Location == "" {
		return nil, fmt.Errorf("%w: location is required", backend.ErrUnavailable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bigquery-backend")

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating client: %v", backend.ErrUnavailable, err)
	}
	client.Location = cfg.Location

	logger.Info("bigquery backend initialized",
		"project", cfg.Project,
		"location", cfg.Location,
		"datasets", cfg.Datasets,
	)

	return &Backend{
		client:   client,
		datasets: cfg.Datasets,
		logger:   logger,
	}, nil
}

// ListTables returns "dataset.table" names for every table in the
// configured datasets, or in all datasets when no filter is set.
func (b *Backend) ListTables(ctx context.Context) ([]string, error) {
	datasets := b.datasets
	if len(datasets) == 0 {
		all, err := b.listDatasets(ctx)
		if err != nil {
			return nil, err
		}
		datasets = all
	}

	var tables []string
	for _, dataset := range datasets {
		it := b.client.Dataset(dataset).Tables(ctx)
		for {
			table, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("%w: listing tables in %s: %v", backend.ErrQueryFailed, dataset, err)
			}
			tables = append(tables, dataset+"."+table.TableID)
		}
	}

	b.logger.Debug("listed tables", "datasets", len(datasets), "tables", len(tables))
	return tables, nil
}

// listDatasets enumerates all datasets in the project.
func (b *Backend) listDatasets(ctx context.Context) ([]string, error) {
	var datasets []string
	it := b.client.Datasets(ctx)
	for {
		dataset, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: listing datasets: %v", backend.ErrQueryFailed, err)
		}
		datasets = append(datasets, dataset.DatasetID)
	}
	return datasets, nil
}

// DescribeTable returns the DDL for a "dataset.table" name, looked up in
// the dataset's INFORMATION_SCHEMA with a bound query parameter.
func (b *Backend) DescribeTable(ctx context.Context, table string) ([]backend.Record, error) {
	dataset, name, err := backend.SplitTableName(table)
	if err != nil {
		return nil, err
	}

	q := b.client.Query(fmt.Sprintf(
		"SELECT ddl FROM `%s`.INFORMATION_SCHEMA.TABLES WHERE table_name = @table_name", dataset))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "table_name", Value: name},
	}

	return b.readRows(ctx, q)
}

// ExecuteQuery runs the query text verbatim.
func (b *Backend) ExecuteQuery(ctx context.Context, query string) ([]backend.Record, error) {
	b.logger.Debug("executing query", "query", query)
	return b.readRows(ctx, b.client.Query(query))
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	return b.client.Close()
}

// readRows runs a query and converts every row into a Record.
func (b *Backend) readRows(ctx context.Context, q *bigquery.Query) ([]backend.Record, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrQueryFailed, err)
	}

	records := make([]backend.Record, 0)
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading row: %v", backend.ErrQueryFailed, err)
		}

		record := make(backend.Record, len(row))
		for col, val := range row {
			record[col] = normalizeValue(val)
		}
		records = append(records, record)
	}

	b.logger.Debug("query returned rows", "count", len(records))
	return records, nil
}

// normalizeValue converts BigQuery values into JSON-friendly values,
// recursing into repeated and struct fields.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []bigquery.Value:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case map[string]bigquery.Value:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = normalizeValue(elem)
		}
		return out
	case []byte:
		return string(val)
	case *big.Rat:
		return val.FloatString(9)
	case civil.Date:
		return val.String()
	case civil.Time:
		return val.String()
	case civil.DateTime:
		return val.String()
	default:
		return v
	}
}
