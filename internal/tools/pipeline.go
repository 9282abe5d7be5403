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
	"errors"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/database"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/history"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/metrics"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/orchestrator"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// DefaultFormat is the rendering used when a call names none. MCP
// clients display markdown.
const DefaultFormat = formatter.FormatMarkdown

// Pipeline is the query service the tools call into. *orchestrator.Orchestrator
// implements it.
type Pipeline interface {
	AnalyzeAndExecute(ctx context.Context, req orchestrator.Request) (*query.Result, error)
	Explain(ctx context.Context, req orchestrator.Request) (*query.Explanation, error)
	ValidateSQL(ctx context.Context, database, sql string, format formatter.Format) (*query.Validation, error)
	Schema(ctx context.Context, name string) (*schema.Graph, error)
	RefreshSchema(ctx context.Context, name string) (*schema.Graph, error)
	Databases() []database.Info
	Metrics() metrics.Snapshot
	ResetMetrics()
	History() *history.Store
	Formatter(format formatter.Format) *formatter.Formatter
}

// NewQueryRegistry registers every query tool backed by p
func NewQueryRegistry(p Pipeline) *Registry {
	r := NewRegistry()
	r.Register(AnalyzeAndExecuteTool(p))
	r.Register(ExplainQueryTool(p))
	r.Register(ValidateSQLTool(p))
	r.Register(GetSchemaTool(p))
	r.Register(RefreshSchemaTool(p))
	r.Register(ListDatabasesTool(p))
	r.Register(GetMetricsTool(p))
	r.Register(ResetMetricsTool(p))
	r.Register(QueryHistoryTool(p))
	return r
}

// toolError renders a pipeline failure as tool error content. Query
// failures carry their kind, message and suggestions.
func toolError(p Pipeline, format formatter.Format, err error) (mcp.ToolResponse, error) {
	var qe *query.Error
	if errors.As(err, &qe) {
		return mcp.NewToolError(p.Formatter(format).RenderError(qe))
	}
	return mcp.NewToolError("Error: " + err.Error())
}

func databaseProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Registered database to use. Omit to use the default database; list_databases shows what is available.",
	}
}

func formatProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"text", "markdown", "json", "csv", "tsv"},
		"description": "Output format (default: markdown)",
	}
}
