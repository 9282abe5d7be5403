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
	"sort"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
)

// Handler is a function that reads a resource
type Handler func(ctx context.Context) (mcp.ResourceContent, error)

// Resource represents a registered MCP resource
type Resource struct {
	Definition mcp.Resource
	Handler    Handler
}

// Lister produces resources whose set changes at runtime, such as one
// resource per configured database
type Lister func() []Resource

// Registry manages available MCP resources
type Registry struct {
	resources map[string]Resource
	listers   []Lister
}

// NewRegistry creates a new resource registry
func NewRegistry() *Registry {
	return &Registry{
		resources: make(map[string]Resource),
	}
}

// Register adds a resource to the registry
func (r *Registry) Register(uri string, resource Resource) {
	r.resources[uri] = resource
}

// RegisterLister adds a source of dynamic resources
func (r *Registry) RegisterLister(l Lister) {
	r.listers = append(r.listers, l)
}

// Get retrieves a resource by URI
func (r *Registry) Get(uri string) (Resource, bool) {
	if resource, exists := r.resources[uri]; exists {
		return resource, true
	}
	for _, l := range r.listers {
		for _, resource := range l() {
			if resource.Definition.URI == uri {
				return resource, true
			}
		}
	}
	return Resource{}, false
}

// List returns all resource definitions sorted by URI
func (r *Registry) List() []mcp.Resource {
	resources := make([]mcp.Resource, 0, len(r.resources))
	for _, resource := range r.resources {
		resources = append(resources, resource.Definition)
	}
	for _, l := range r.listers {
		for _, resource := range l() {
			resources = append(resources, resource.Definition)
		}
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].URI < resources[j].URI })
	return resources
}

// Read retrieves a resource by URI and executes its handler
func (r *Registry) Read(ctx context.Context, uri string) (mcp.ResourceContent, error) {
	resource, exists := r.Get(uri)
	if !exists {
		return mcp.NewResourceError(uri, "Resource not found: "+uri)
	}
	return resource.Handler(ctx)
}
