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

// ValidateSQLTool checks a caller-supplied statement against the safety
// rules. A rejected statement is a successful call listing its violations.
func ValidateSQLTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name: "validate_sql",
			Description: `Check a SQL statement against the safety rules without running it.

Reports whether the statement is allowed, the statement that would run
with its row limit applied, or every rule it violates. The statement may
read any table of the database.`,
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"sql": map[string]interface{}{
						"type":        "string",
						"description": "The SQL statement to check",
					},
					"database": databaseProperty(),
					"format":   formatProperty(),
				},
				Required: []string{"sql"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			sql, errResp := ValidateStringParam(args, "sql")
			if errResp != nil {
				return *errResp, nil
			}
			format, errResp := ValidateFormatParam(args, DefaultFormat)
			if errResp != nil {
				return *errResp, nil
			}

			v, err := p.ValidateSQL(ctx, ValidateOptionalStringParam(args, "database", ""), sql, format)
			if err != nil {
				return toolError(p, format, err)
			}
			return mcp.NewToolSuccess(v.Text)
		},
	}
}
