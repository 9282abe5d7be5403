/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Column describes a single table column
type Column struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type"`
	Nullable    bool   `json:"nullable"`
	IsKey       bool   `json:"is_key"`
	IsUnique    bool   `json:"is_unique,omitempty"`
	IsIndexed   bool   `json:"is_indexed,omitempty"`
	Description string `json:"description,omitempty"`
}

// Table describes a table or view. Columns keep their declared order.
type Table struct {
	Schema      string   `json:"schema,omitempty"`
	Name        string   `json:"name"`
	Type        string   `json:"type"` // TABLE, VIEW or MATERIALIZED VIEW
	Description string   `json:"description,omitempty"`
	Columns     []Column `json:"columns"`
}

// QualifiedName returns schema.name, or just name when the schema is empty
func (t *Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Column looks up a column by name, case-insensitively
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// KeyColumns returns the primary key columns in declared order
func (t *Table) KeyColumns() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.IsKey {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// Relationship is a foreign key edge. Table fields hold qualified names.
type Relationship struct {
	SourceTable  string `json:"source_table"`
	SourceColumn string `json:"source_column"`
	TargetTable  string `json:"target_table"`
	TargetColumn string `json:"target_column"`
}

func (r Relationship) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn)
}

// Other returns the endpoint of r that is not table
func (r Relationship) Other(table string) string {
	if r.SourceTable == table {
		return r.TargetTable
	}
	return r.SourceTable
}

// Index describes an index on a table
type Index struct {
	Table   string   `json:"table"`
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// Graph is an immutable snapshot of one database's schema. It is replaced
// wholesale on refresh and must not be modified after NewGraph returns.
type Graph struct {
	Database      string         `json:"database"`
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships"`
	Indexes       []Index        `json:"indexes,omitempty"`
	DiscoveredAt  time.Time      `json:"discovered_at"`

	byName    map[string]int
	bareNames map[string][]int
	adjacency map[string][]Relationship
}

// NewGraph builds and validates a snapshot. Tables are sorted by qualified
// name so snapshots of the same schema compare equal.
func NewGraph(database string, tables []Table, rels []Relationship, indexes []Index) (*Graph, error) {
	g := &Graph{
		Database:      database,
		Tables:        append([]Table(nil), tables...),
		Relationships: append([]Relationship(nil), rels...),
		Indexes:       append([]Index(nil), indexes...),
		DiscoveredAt:  time.Now().UTC(),
	}
	sort.SliceStable(g.Tables, func(i, j int) bool {
		return g.Tables[i].QualifiedName() < g.Tables[j].QualifiedName()
	})

	if err := g.index(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) index() error {
	g.byName = make(map[string]int, len(g.Tables))
	g.bareNames = make(map[string][]int, len(g.Tables))
	g.adjacency = make(map[string][]Relationship)

	for i := range g.Tables {
		t := &g.Tables[i]
		key := strings.ToLower(t.QualifiedName())
		if _, dup := g.byName[key]; dup {
			return fmt.Errorf("duplicate table %q", t.QualifiedName())
		}
		g.byName[key] = i
		bare := strings.ToLower(t.Name)
		g.bareNames[bare] = append(g.bareNames[bare], i)

		seen := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			lc := strings.ToLower(c.Name)
			if seen[lc] {
				return fmt.Errorf("duplicate column %q in table %q", c.Name, t.QualifiedName())
			}
			seen[lc] = true
		}
	}

	for _, r := range g.Relationships {
		src, ok := g.Table(r.SourceTable)
		if !ok {
			return fmt.Errorf("relationship %s: unknown source table", r)
		}
		if _, ok := src.Column(r.SourceColumn); !ok {
			return fmt.Errorf("relationship %s: unknown source column", r)
		}
		dst, ok := g.Table(r.TargetTable)
		if !ok {
			return fmt.Errorf("relationship %s: unknown target table", r)
		}
		if _, ok := dst.Column(r.TargetColumn); !ok {
			return fmt.Errorf("relationship %s: unknown target column", r)
		}
		g.adjacency[src.QualifiedName()] = append(g.adjacency[src.QualifiedName()], r)
		if src.QualifiedName() != dst.QualifiedName() {
			g.adjacency[dst.QualifiedName()] = append(g.adjacency[dst.QualifiedName()], r)
		}
	}

	for _, ix := range g.Indexes {
		if _, ok := g.Table(ix.Table); !ok {
			return fmt.Errorf("index %q: unknown table %q", ix.Name, ix.Table)
		}
	}
	return nil
}

// Table finds a table by qualified or bare name. A bare name only resolves
// when it is unambiguous across schemas.
func (g *Graph) Table(name string) (*Table, bool) {
	key := strings.ToLower(name)
	if i, ok := g.byName[key]; ok {
		return &g.Tables[i], true
	}
	if idx := g.bareNames[key]; len(idx) == 1 {
		return &g.Tables[idx[0]], true
	}
	return nil, false
}

// TableNames returns the qualified names of all tables
func (g *Graph) TableNames() []string {
	names := make([]string, len(g.Tables))
	for i := range g.Tables {
		names[i] = g.Tables[i].QualifiedName()
	}
	return names
}

// Edges returns relationships touching the given table, in either direction
func (g *Graph) Edges(table string) []Relationship {
	t, ok := g.Table(table)
	if !ok {
		return nil
	}
	return g.adjacency[t.QualifiedName()]
}

// IndexesFor returns the indexes defined on a table
func (g *Graph) IndexesFor(table string) []Index {
	t, ok := g.Table(table)
	if !ok {
		return nil
	}
	var out []Index
	for _, ix := range g.Indexes {
		if other, ok := g.Table(ix.Table); ok && other == t {
			out = append(out, ix)
		}
	}
	return out
}

// ColumnCount returns the total number of columns across all tables
func (g *Graph) ColumnCount() int {
	n := 0
	for i := range g.Tables {
		n += len(g.Tables[i].Columns)
	}
	return n
}
