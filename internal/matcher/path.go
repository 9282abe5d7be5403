/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package matcher

import (
	"sort"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// connect grows a tree from the first table, attaching every other table
// by its shortest foreign key path to the tree so far. It returns the
// edges used, the intermediate tables that were added, and any tables
// that could not be reached.
func connect(g *schema.Graph, tables []string) ([]schema.Relationship, []string, []string) {
	inTree := map[string]bool{tables[0]: true}
	selected := make(map[string]bool, len(tables))
	for _, t := range tables {
		selected[t] = true
	}

	var path []schema.Relationship
	var bridges, missing []string
	used := make(map[schema.Relationship]bool)

	for _, target := range tables[1:] {
		if inTree[target] {
			continue
		}
		edges := shortestPath(g, inTree, target)
		if edges == nil {
			missing = append(missing, target)
			continue
		}
		for _, e := range edges {
			if !used[e] {
				used[e] = true
				path = append(path, e)
			}
			for _, t := range []string{e.SourceTable, e.TargetTable} {
				if !inTree[t] {
					inTree[t] = true
					if !selected[t] {
						bridges = append(bridges, t)
					}
				}
			}
		}
	}
	sort.Strings(bridges)
	return path, bridges, missing
}

// shortestPath runs a breadth-first search over foreign keys, treated as
// undirected, from any table in sources to target
func shortestPath(g *schema.Graph, sources map[string]bool, target string) []schema.Relationship {
	type step struct {
		from string
		edge schema.Relationship
	}
	prev := make(map[string]step)
	visited := make(map[string]bool, len(sources))

	var queue []string
	starts := make([]string, 0, len(sources))
	for s := range sources {
		starts = append(starts, s)
	}
	sort.Strings(starts)
	for _, s := range starts {
		visited[s] = true
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			var edges []schema.Relationship
			for !sources[cur] {
				p := prev[cur]
				edges = append([]schema.Relationship{p.edge}, edges...)
				cur = p.from
			}
			return edges
		}
		for _, e := range g.Edges(cur) {
			next := e.Other(cur)
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = step{from: cur, edge: e}
			queue = append(queue, next)
		}
	}
	return nil
}
