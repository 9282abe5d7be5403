/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package translator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/llm"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

var intentHints = map[analyzer.Intent]string{
	analyzer.IntentRetrieval:    "return matching rows",
	analyzer.IntentCount:        "count rows with COUNT",
	analyzer.IntentSum:          "add values with SUM",
	analyzer.IntentAvg:          "average values with AVG",
	analyzer.IntentComparison:   "compare groups or values side by side",
	analyzer.IntentRanking:      "order by the ranking measure and keep the top rows",
	analyzer.IntentTimeFiltered: "filter rows by the date range",
	analyzer.IntentUnknown:      "infer the intent from the question",
}

func dialectName(driver string) string {
	switch driver {
	case "sqlite", "sqlite3":
		return "SQLite"
	default:
		return "PostgreSQL"
	}
}

// BuildPrompt renders the generation request. It carries table and column
// names and types only, never row data.
func BuildPrompt(in Input, strict bool) llm.Request {
	dialect := dialectName(in.Dialect)

	system := fmt.Sprintf("You are a %s expert who translates questions into one read-only SQL query. "+
		"Reply with the SQL query only, optionally followed by one line of the form \"confidence: <number between 0 and 1>\".",
		dialect)
	if strict {
		system += " Your previous reply could not be used. Reply with exactly one SELECT statement " +
			"and nothing else: no prose, no markdown, no comments, no semicolons."
	}

	var sb strings.Builder
	q := in.Analysis
	fmt.Fprintf(&sb, "Question: %s\n", strings.TrimSpace(q.Question))
	fmt.Fprintf(&sb, "Intent: %s (%s)\n", q.Intent, intentHints[q.Intent])

	if hints := analysisHints(q); len(hints) > 0 {
		sb.WriteString("\nHints:\n")
		for _, h := range hints {
			fmt.Fprintf(&sb, "- %s\n", h)
		}
	}

	sb.WriteString("\nSchema:\n")
	if in.Selection != nil && in.Graph != nil {
		for _, ts := range in.Selection.Tables {
			if t, ok := in.Graph.Table(ts.Table); ok {
				writeTable(&sb, in.Graph, t)
			}
		}
		if len(in.Selection.JoinPath) > 0 {
			sb.WriteString("Join path:\n")
			for _, r := range in.Selection.JoinPath {
				fmt.Fprintf(&sb, "  %s.%s = %s.%s\n", r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("Rules:\n")
	sb.WriteString("1. Use only the tables and columns listed above.\n")
	sb.WriteString("2. Generate a single SELECT statement (a WITH ... SELECT is fine). Never modify data.\n")
	fmt.Fprintf(&sb, "3. Use %s syntax.\n", dialect)
	sb.WriteString("4. Join tables along the join path when more than one table is needed.\n")
	sb.WriteString("5. Use meaningful column aliases.\n")
	if q.Limit > 0 {
		fmt.Fprintf(&sb, "6. Return at most %d rows.\n", q.Limit)
	}
	sb.WriteString("\nSQL Query:")

	return llm.Request{System: system, Prompt: sb.String()}
}

func writeTable(sb *strings.Builder, g *schema.Graph, t *schema.Table) {
	fmt.Fprintf(sb, "Table: %s", t.QualifiedName())
	if t.Type == "VIEW" || t.Type == "MATERIALIZED VIEW" {
		fmt.Fprintf(sb, " (%s)", strings.ToLower(t.Type))
	}
	sb.WriteString("\n")
	if t.Description != "" {
		fmt.Fprintf(sb, "  Description: %s\n", t.Description)
	}
	for _, c := range t.Columns {
		fmt.Fprintf(sb, "  - %s (%s)", c.Name, c.DataType)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if c.Description != "" {
			fmt.Fprintf(sb, " -- %s", c.Description)
		}
		sb.WriteString("\n")
	}
	if keys := t.KeyColumns(); len(keys) > 0 {
		fmt.Fprintf(sb, "  Primary Key: %s\n", strings.Join(keys, ", "))
	}
	for _, r := range g.Edges(t.QualifiedName()) {
		if r.SourceTable == t.QualifiedName() {
			fmt.Fprintf(sb, "  Foreign Key: %s -> %s(%s)\n", r.SourceColumn, r.TargetTable, r.TargetColumn)
		}
	}
	sb.WriteString("\n")
}

func analysisHints(q *analyzer.AnalyzedQuery) []string {
	var hints []string
	if len(q.Terms) > 0 {
		hints = append(hints, "Business terms: "+strings.Join(q.Terms, ", "))
	}
	if len(q.Aggregations) > 0 {
		fns := make([]string, len(q.Aggregations))
		for i, a := range q.Aggregations {
			fns[i] = a.Function
		}
		hints = append(hints, "Aggregations: "+strings.Join(fns, ", "))
	}
	if r := q.TimeRange; r != nil {
		hints = append(hints, fmt.Sprintf("Time range: %s means %s <= date < %s",
			r.Expression, r.From.Format(time.DateOnly), r.To.Format(time.DateOnly)))
	}
	if q.Limit > 0 {
		hints = append(hints, fmt.Sprintf("Limit: %d", q.Limit))
	}

	var values []string
	for _, e := range q.Entities {
		switch e.Kind {
		case analyzer.EntityQuoted:
			values = append(values, fmt.Sprintf("%q", e.Text))
		case analyzer.EntityProperNoun, analyzer.EntityNumber:
			values = append(values, e.Text)
		}
	}
	if len(values) > 0 {
		sort.Strings(values)
		hints = append(hints, "Values mentioned: "+strings.Join(values, ", "))
	}
	return hints
}
