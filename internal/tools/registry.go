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
	"fmt"
	"sort"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
)

// Handler runs one tool call. Arguments are never nil.
type Handler func(ctx context.Context, args map[string]interface{}) (mcp.ToolResponse, error)

// Tool pairs the advertised definition with its handler
type Tool struct {
	Definition mcp.Tool
	Handler    Handler
}

// Registry holds the tools served over tools/list and tools/call. It is
// filled once at startup and only read afterwards.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its definition name. Registering the same
// name twice is a programming error.
func (r *Registry) Register(tool Tool) {
	name := tool.Definition.Name
	if name == "" {
		panic("tools: tool definition has no name")
	}
	if _, dup := r.tools[name]; dup {
		panic(fmt.Sprintf("tools: %q registered twice", name))
	}
	r.tools[name] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns the tool definitions ordered by name
func (r *Registry) List() []mcp.Tool {
	defs := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs the named tool. An unknown name is reported as tool
// output, not as a protocol error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (mcp.ToolResponse, error) {
	tool, ok := r.Get(name)
	if !ok {
		return mcp.NewToolError("Tool not found: " + name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	start := time.Now()
	resp, err := tool.Handler(ctx, args)
	logging.Debug("tool_call", "tool", name, "is_error", resp.IsError,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, err
}
