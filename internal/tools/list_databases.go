/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"context"
	"fmt"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
)

// ListDatabasesTool lists the registered databases
func ListDatabasesTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "list_databases",
			Description: "List the databases questions can be asked against. The default database is used when a call names none.",
			InputSchema: mcp.InputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			return mcp.NewToolSuccess(p.Formatter(DefaultFormat).RenderDatabases(p.Databases()))
		},
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
