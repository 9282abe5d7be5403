/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/database"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/metrics"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

const mimeJSON = "application/json"

// Source is what the query resources read from. *orchestrator.Orchestrator
// implements it.
type Source interface {
	Schema(ctx context.Context, name string) (*schema.Graph, error)
	Databases() []database.Info
	Metrics() metrics.Snapshot
}

// NewQueryRegistry registers the metrics resource and one schema
// resource per registered database
func NewQueryRegistry(src Source) *Registry {
	r := NewRegistry()
	r.Register(URIMetrics, MetricsResource(src))
	r.RegisterLister(func() []Resource {
		dbs := src.Databases()
		out := make([]Resource, 0, len(dbs))
		for _, db := range dbs {
			out = append(out, SchemaResource(src, db.Name))
		}
		return out
	})
	return r
}

// MetricsResource exposes the query counters as JSON
func MetricsResource(src Source) Resource {
	return Resource{
		Definition: mcp.Resource{
			URI:         URIMetrics,
			Name:        "Query Metrics",
			Description: "Query counts, success rate, failures by kind, intents, and average latency and confidence since start or the last reset.",
			MimeType:    mimeJSON,
		},
		Handler: func(ctx context.Context) (mcp.ResourceContent, error) {
			return mcp.NewResourceSuccess(URIMetrics, mimeJSON, formatter.New(formatter.FormatJSON, 0).RenderMetrics(src.Metrics()))
		},
	}
}

// SchemaResource exposes one database's schema snapshot as JSON
func SchemaResource(src Source, name string) Resource {
	uri := SchemaURI(name)
	return Resource{
		Definition: mcp.Resource{
			URI:         uri,
			Name:        fmt.Sprintf("Schema of %s", name),
			Description: fmt.Sprintf("Tables, columns, relationships and indexes discovered in the %s database.", name),
			MimeType:    mimeJSON,
		},
		Handler: func(ctx context.Context) (mcp.ResourceContent, error) {
			f := formatter.New(formatter.FormatJSON, 0)
			g, err := src.Schema(ctx, name)
			if err != nil {
				var qe *query.Error
				if errors.As(err, &qe) {
					return mcp.NewResourceError(uri, f.RenderError(qe))
				}
				return mcp.NewResourceError(uri, "Error: "+err.Error())
			}
			return mcp.NewResourceSuccess(uri, mimeJSON, f.RenderSchema(g))
		},
	}
}
