// ABOUTME: The built-in table tools exposed to clients.
// ABOUTME: Binds execute_query, list_tables, and describe_table to a backend capability.

package tools

import (
	"context"

	"github.com/luminal-data/tablebridge/internal/backend"
)

// RegisterTableTools registers the three table tools against the given
// backend capability. Tool names and argument shapes are wire contract
// and must remain stable.
func RegisterTableTools(r *Registry, cap backend.Capability) error {
	tableTools := []*Tool{
		{
			Name:        "execute_query",
			Description: "Execute a SELECT query on the database.",
			Schema: Schema{Fields: []Field{
				{Name: "query", Type: TypeString, Required: true, Description: "SQL query text, forwarded verbatim"},
			}},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return cap.ExecuteQuery(ctx, args["query"].(string))
			},
		},
		{
			Name:        "list_tables",
			Description: "List all tables in the database.",
			Schema:      Schema{},
			Handler: func(ctx context.Context, _ map[string]any) (any, error) {
				return cap.ListTables(ctx)
			},
		},
		{
			Name:        "describe_table",
			Description: "Get the schema information for a specific table.",
			Schema: Schema{Fields: []Field{
				{Name: "table_name", Type: TypeString, Required: true, Description: "Qualified dataset.table name"},
			}},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				name := args["table_name"].(string)
				// Reject malformed names before the backend is touched.
				if _, _, err := backend.SplitTableName(name); err != nil {
					return nil, err
				}
				return cap.DescribeTable(ctx, name)
			},
		},
	}

	for _, tool := range tableTools {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
