/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package matcher ranks schema tables by relevance to an analysed
// question and connects the chosen tables through foreign keys.
package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// Scoring weights. A term counts once per table, at its best match.
const (
	tableNameWeight = 2.0
	keyColumnWeight = 1.5
	columnWeight    = 1.0
	synonymFactor   = 0.8
	neighbourFactor = 0.25
)

// Options configures a Matcher
type Options struct {
	TopK           int
	RelevanceFloor float64
}

// TableScore is one selected table
type TableScore struct {
	Table   string   `json:"table"`
	Score   float64  `json:"score"`
	Matches []string `json:"matches,omitempty"`
	// Bridge marks a table pulled in only to connect two selected tables
	Bridge bool `json:"bridge,omitempty"`
}

// Selection is the working schema subset for one question. Every table is
// reachable from every other through JoinPath, or there is one table.
type Selection struct {
	Tables   []TableScore          `json:"tables"`
	JoinPath []schema.Relationship `json:"join_path,omitempty"`
	Note     string                `json:"note,omitempty"`
}

// TableNames returns the selected table names in rank order
func (s *Selection) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Table
	}
	return names
}

// Matcher is stateless and safe for concurrent use
type Matcher struct {
	topK  int
	floor float64
}

// New creates a matcher; zero options fall back to K=4, floor=1.0
func New(opts Options) *Matcher {
	m := &Matcher{topK: opts.TopK, floor: opts.RelevanceFloor}
	if m.topK <= 0 {
		m.topK = 4
	}
	if m.floor <= 0 {
		m.floor = 1.0
	}
	return m
}

// Match scores every table in g against q and selects the working set
func (m *Matcher) Match(q *analyzer.AnalyzedQuery, g *schema.Graph) (*Selection, error) {
	terms := queryTerms(q)
	if len(terms) == 0 || len(g.Tables) == 0 {
		return nil, m.noRelevant(q, g)
	}

	scores := make(map[string]*TableScore, len(g.Tables))
	for i := range g.Tables {
		t := &g.Tables[i]
		scores[t.QualifiedName()] = scoreTable(t, terms)
	}
	m.boostNeighbours(g, scores)

	ranked := make([]*TableScore, 0, len(scores))
	for _, s := range scores {
		if s.Score >= m.floor {
			ranked = append(ranked, s)
		}
	}
	if len(ranked) == 0 {
		return nil, m.noRelevant(q, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Table < ranked[j].Table
	})
	if len(ranked) > m.topK {
		ranked = ranked[:m.topK]
	}

	sel := &Selection{}
	for _, s := range ranked {
		sel.Tables = append(sel.Tables, *s)
	}
	if len(sel.Tables) == 1 {
		return sel, nil
	}

	path, bridges, missing := connect(g, sel.TableNames())
	if len(missing) > 0 {
		top := sel.Tables[0]
		sel.Note = fmt.Sprintf("no join path connects %s with %s; using %s only",
			top.Table, strings.Join(missing, ", "), top.Table)
		sel.Tables = sel.Tables[:1]
		return sel, nil
	}
	sel.JoinPath = path
	for _, b := range bridges {
		bs := *scores[b]
		bs.Bridge = true
		sel.Tables = append(sel.Tables, bs)
	}
	return sel, nil
}

func (m *Matcher) noRelevant(q *analyzer.AnalyzedQuery, g *schema.Graph) error {
	if len(q.Keywords) == 0 {
		return apperr.Newf(apperr.NoRelevantTables,
			"question has no terms to match against %d tables of %s", len(g.Tables), g.Database)
	}
	return apperr.Newf(apperr.NoRelevantTables,
		"no table of %s reaches relevance %.2f for terms %s",
		g.Database, m.floor, strings.Join(q.Keywords, ", "))
}

// queryTerms maps each stemmed term to its weight: question keywords count
// fully, synonyms supplied by business terms count a little less
func queryTerms(q *analyzer.AnalyzedQuery) map[string]float64 {
	terms := make(map[string]float64)
	put := func(term string, w float64) {
		term = analyzer.Stem(strings.ReplaceAll(strings.TrimSpace(term), " ", "_"))
		if term != "" && w > terms[term] {
			terms[term] = w
		}
	}
	for _, kw := range q.Keywords {
		put(kw, 1)
	}
	for _, e := range q.Entities {
		if e.Kind != analyzer.EntityBusinessTerm {
			continue
		}
		for _, c := range e.Candidates {
			put(c, synonymFactor)
		}
	}
	return terms
}

// nameMatches reports whether term names the identifier as a whole or
// one of its underscore separated parts
func nameMatches(name, term string) bool {
	name = strings.ToLower(name)
	if analyzer.Stem(name) == term {
		return true
	}
	for _, part := range strings.Split(name, "_") {
		if part != "" && analyzer.Stem(part) == term {
			return true
		}
	}
	return false
}

func isKeyLike(c schema.Column) bool {
	name := strings.ToLower(c.Name)
	return c.IsKey || name == "id" || strings.HasSuffix(name, "_id")
}

func scoreTable(t *schema.Table, terms map[string]float64) *TableScore {
	s := &TableScore{Table: t.QualifiedName()}

	words := make([]string, 0, len(terms))
	for term := range terms {
		words = append(words, term)
	}
	sort.Strings(words)

	for _, term := range words {
		w := terms[term]
		best, match := 0.0, ""
		if nameMatches(t.Name, term) {
			best, match = tableNameWeight*w, t.Name
		}
		for _, c := range t.Columns {
			if !nameMatches(c.Name, term) {
				continue
			}
			cw := columnWeight
			if isKeyLike(c) {
				cw = keyColumnWeight
			}
			if cw*w > best {
				best, match = cw*w, t.Name+"."+c.Name
			}
		}
		if best > 0 {
			s.Score += best
			s.Matches = append(s.Matches, match)
		}
	}
	return s
}

// boostNeighbours lifts matched tables that sit next to a strongly
// matched table; unmatched tables only join through connect
func (m *Matcher) boostNeighbours(g *schema.Graph, scores map[string]*TableScore) {
	base := make(map[string]float64, len(scores))
	for name, s := range scores {
		base[name] = s.Score
	}
	for name, score := range base {
		if score < m.floor {
			continue
		}
		for _, r := range g.Edges(name) {
			other := r.Other(name)
			if other == name || base[other] == 0 {
				continue
			}
			if boost := neighbourFactor * score; boost > 0 {
				scores[other].Score += boost
			}
		}
	}
}
