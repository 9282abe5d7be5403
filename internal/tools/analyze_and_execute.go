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
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/orchestrator"
)

// AnalyzeAndExecuteTool answers a plain-English question against a database
func AnalyzeAndExecuteTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name: "analyze_and_execute",
			Description: `Answer a question about the data in plain English.

<usecase>
Use this for any question that can be answered from the configured databases:
- "How many customers are in the west region?"
- "Top 5 products by revenue last quarter"
- "Average order value per month this year"
</usecase>

<process>
The question is analyzed, matched against the database schema, translated
to a single read-only SELECT, checked for safety, executed with a row limit
and timeout, and the rows are returned with the SQL that produced them.
</process>

<important>
- Only read-only questions are answered. Requests to change data are rejected.
- Use explain_query to see the SQL without running it.
</important>`,
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"question": map[string]interface{}{
						"type":        "string",
						"description": "The question in plain English (3 to 1000 characters)",
					},
					"database": databaseProperty(),
					"format":   formatProperty(),
				},
				Required: []string{"question"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			question, errResp := ValidateStringParam(args, "question")
			if errResp != nil {
				return *errResp, nil
			}
			format, errResp := ValidateFormatParam(args, DefaultFormat)
			if errResp != nil {
				return *errResp, nil
			}

			result, err := p.AnalyzeAndExecute(ctx, orchestrator.Request{
				Question: question,
				Database: ValidateOptionalStringParam(args, "database", ""),
				Format:   format,
			})
			if err != nil {
				return toolError(p, format, err)
			}
			return mcp.NewToolSuccess(result.Text)
		},
	}
}
