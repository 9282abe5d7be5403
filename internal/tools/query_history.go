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

// QueryHistoryTool lists recently asked questions
func QueryHistoryTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "query_history",
			Description: "List recently asked questions with their outcome, newest first.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum entries to return (1-100, default 50)",
					},
					"database": map[string]interface{}{
						"type":        "string",
						"description": "Only show questions asked of this database",
					},
					"format": formatProperty(),
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			store := p.History()
			if store == nil {
				return mcp.NewToolError("Query history is disabled in the configuration.")
			}
			limit, errResp := ValidateOptionalIntParam(args, "limit", 0)
			if errResp != nil {
				return *errResp, nil
			}
			format, errResp := ValidateFormatParam(args, DefaultFormat)
			if errResp != nil {
				return *errResp, nil
			}

			entries, err := store.Recent(limit, ValidateOptionalStringParam(args, "database", ""))
			if err != nil {
				return toolError(p, format, err)
			}
			return mcp.NewToolSuccess(p.Formatter(format).RenderHistory(entries))
		},
	}
}
