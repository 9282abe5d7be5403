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

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
)

// GetSchemaTool shows the cached schema of a database
func GetSchemaTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "get_schema",
			Description: "Show the tables, columns and relationships of a database. The schema is discovered on first use and cached.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"database": databaseProperty(),
					"format":   formatProperty(),
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			format, errResp := ValidateFormatParam(args, DefaultFormat)
			if errResp != nil {
				return *errResp, nil
			}
			g, err := p.Schema(ctx, ValidateOptionalStringParam(args, "database", ""))
			if err != nil {
				return toolError(p, format, err)
			}
			return mcp.NewToolSuccess(p.Formatter(format).RenderSchema(g))
		},
	}
}

// RefreshSchemaTool rediscovers a database's schema after it changed
func RefreshSchemaTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "refresh_schema",
			Description: "Rediscover a database's schema. Use this after tables or columns were added, renamed or dropped.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"database": databaseProperty(),
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			g, err := p.RefreshSchema(ctx, ValidateOptionalStringParam(args, "database", ""))
			if err != nil {
				return toolError(p, DefaultFormat, err)
			}
			return mcp.NewToolSuccess(
				"Schema refreshed for " + g.Database + ": " +
					pluralize(len(g.Tables), "table") + ", " +
					pluralize(len(g.Relationships), "relationship") + ".")
		},
	}
}
