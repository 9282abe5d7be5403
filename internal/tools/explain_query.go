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

// ExplainQueryTool translates and validates a question without running it
func ExplainQueryTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name: "explain_query",
			Description: `Show the SQL a question would run, without running it.

Returns the validated statement, the tables and joins it uses, the row
limit and timeout that would apply, and a confidence score. Set with_plan
to include the database's query plan.`,
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"question": map[string]interface{}{
						"type":        "string",
						"description": "The question in plain English",
					},
					"database": databaseProperty(),
					"with_plan": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the database's plan for the statement (default: false)",
					},
					"format": formatProperty(),
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

			x, err := p.Explain(ctx, orchestrator.Request{
				Question: question,
				Database: ValidateOptionalStringParam(args, "database", ""),
				Format:   format,
				WithPlan: ValidateBoolParam(args, "with_plan", false),
			})
			if err != nil {
				return toolError(p, format, err)
			}
			return mcp.NewToolSuccess(x.Text)
		},
	}
}
