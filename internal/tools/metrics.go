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

// GetMetricsTool reports query counters since start or the last reset
func GetMetricsTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "get_metrics",
			Description: "Show query counts, success rate, failures by kind, intents, and average latency and confidence.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"format": formatProperty(),
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			format, errResp := ValidateFormatParam(args, DefaultFormat)
			if errResp != nil {
				return *errResp, nil
			}
			return mcp.NewToolSuccess(p.Formatter(format).RenderMetrics(p.Metrics()))
		},
	}
}

// ResetMetricsTool clears the query counters
func ResetMetricsTool(p Pipeline) Tool {
	return Tool{
		Definition: mcp.Tool{
			Name:        "reset_metrics",
			Description: "Reset the query counters to zero.",
			InputSchema: mcp.InputSchema{
				Type:       "object",
				Properties: map[string]interface{}{},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error) {
			p.ResetMetrics()
			return mcp.NewToolSuccess("Metrics reset.")
		},
	}
}
