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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/database"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/metrics"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

type fakeSource struct {
	dbs     []database.Info
	graphs  map[string]*schema.Graph
	metrics *metrics.Collector
}

func (f *fakeSource) Schema(ctx context.Context, name string) (*schema.Graph, error) {
	g, ok := f.graphs[name]
	if !ok {
		return nil, &query.Error{Kind: apperr.SchemaDiscoveryError, Message: "Could not read the schema of " + name}
	}
	return g, nil
}

func (f *fakeSource) Databases() []database.Info { return f.dbs }
func (f *fakeSource) Metrics() metrics.Snapshot  { return f.metrics.Snapshot() }

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	g, err := schema.NewGraph("shop", []schema.Table{{
		Name:    "customers",
		Type:    "TABLE",
		Columns: []schema.Column{{Name: "id", DataType: "INTEGER", IsKey: true}},
	}}, nil, nil)
	require.NoError(t, err)
	return &fakeSource{
		dbs:     []database.Info{{Name: "shop", Driver: "sqlite", Default: true}, {Name: "hr", Driver: "postgres"}},
		graphs:  map[string]*schema.Graph{"shop": g},
		metrics: metrics.New(),
	}
}

func TestParseSchemaURI(t *testing.T) {
	tests := []struct {
		uri  string
		name string
		ok   bool
	}{
		{"nldb://schema/shop", "shop", true},
		{SchemaURI("hr"), "hr", true},
		{"nldb://schema/", "", false},
		{"nldb://schema/a/b", "", false},
		{"nldb://metrics", "", false},
	}
	for _, tt := range tests {
		name, ok := ParseSchemaURI(tt.uri)
		if name != tt.name || ok != tt.ok {
			t.Errorf("ParseSchemaURI(%q) = %q, %v; want %q, %v", tt.uri, name, ok, tt.name, tt.ok)
		}
	}
}

func TestRegistryListAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register("nldb://static", Resource{
		Definition: mcp.Resource{URI: "nldb://static", Name: "static"},
		Handler: func(ctx context.Context) (mcp.ResourceContent, error) {
			return mcp.NewResourceSuccess("nldb://static", "text/plain", "ok")
		},
	})
	calls := 0
	registry.RegisterLister(func() []Resource {
		calls++
		return []Resource{{Definition: mcp.Resource{URI: "nldb://a-dynamic", Name: "dynamic"}}}
	})

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "nldb://a-dynamic", list[0].URI)
	assert.Equal(t, "nldb://static", list[1].URI)

	_, ok := registry.Get("nldb://a-dynamic")
	assert.True(t, ok)
	assert.Equal(t, 2, calls, "listers are consulted on every call")

	_, ok = registry.Get("nldb://missing")
	assert.False(t, ok)
}

func TestReadUnknownResource(t *testing.T) {
	content, err := NewRegistry().Read(context.Background(), "nldb://nope")
	require.NoError(t, err)
	require.Len(t, content.Contents, 1)
	assert.Equal(t, "Resource not found: nldb://nope", content.Contents[0].Text)
}

func TestQueryRegistry(t *testing.T) {
	src := newFakeSource(t)
	registry := NewQueryRegistry(src)

	var uris []string
	for _, r := range registry.List() {
		uris = append(uris, r.URI)
	}
	assert.Equal(t, []string{"nldb://metrics", "nldb://schema/hr", "nldb://schema/shop"}, uris)

	// a database added later shows up without re-registering
	src.dbs = append(src.dbs, database.Info{Name: "sales", Driver: "sqlite"})
	assert.Len(t, registry.List(), 4)
}

func TestReadSchemaResource(t *testing.T) {
	registry := NewQueryRegistry(newFakeSource(t))

	content, err := registry.Read(context.Background(), "nldb://schema/shop")
	require.NoError(t, err)
	assert.Equal(t, mimeJSON, content.MimeType)
	var g map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(content.Contents[0].Text), &g))
	assert.Equal(t, "shop", g["database"])

	content, err = registry.Read(context.Background(), "nldb://schema/hr")
	require.NoError(t, err)
	assert.Empty(t, content.MimeType)
	assert.Contains(t, content.Contents[0].Text, string(apperr.SchemaDiscoveryError))
}

func TestReadMetricsResource(t *testing.T) {
	src := newFakeSource(t)
	src.metrics.Started()
	src.metrics.Record(metrics.Outcome{Kind: apperr.QueryTimeout})

	content, err := NewQueryRegistry(src).Read(context.Background(), URIMetrics)
	require.NoError(t, err)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal([]byte(content.Contents[0].Text), &snap))
	assert.Equal(t, int64(1), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.Failed)
}
