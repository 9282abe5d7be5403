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
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/llm"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/matcher"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain statement",
			input:    "SELECT COUNT(*) FROM customers",
			expected: "SELECT COUNT(*) FROM customers",
		},
		{
			name:     "code fence with language",
			input:    "```sql\nSELECT id\nFROM customers\n```",
			expected: "SELECT id FROM customers",
		},
		{
			name:     "prose before and after",
			input:    "Here is the query you asked for:\n\nSELECT name FROM products\nWHERE price > 10;\n\nThis returns products above 10.",
			expected: "SELECT name FROM products WHERE price > 10",
		},
		{
			name:     "inline lead-in",
			input:    "Sure! SELECT 1",
			expected: "SELECT 1",
		},
		{
			name:     "whole-line comments dropped",
			input:    "-- count customers\nSELECT COUNT(*)\n-- from the table\nFROM customers",
			expected: "SELECT COUNT(*) FROM customers",
		},
		{
			name:     "end of line comment does not swallow later clauses",
			input:    "```sql\nSELECT region, COUNT(*) AS n -- customers per region\nFROM customers\nGROUP BY region\n```",
			expected: "SELECT region, COUNT(*) AS n FROM customers GROUP BY region",
		},
		{
			name:     "dashes inside literal kept",
			input:    "SELECT * FROM t WHERE code = 'a--b' -- exact code\nORDER BY id",
			expected: "SELECT * FROM t WHERE code = 'a--b' ORDER BY id",
		},
		{
			name:     "whitespace inside literals kept",
			input:    "SELECT *   FROM t\n  WHERE name = 'a   b'",
			expected: "SELECT * FROM t WHERE name = 'a   b'",
		},
		{
			name:     "stacked statement kept for validation",
			input:    "SELECT * FROM customers; DROP TABLE customers;",
			expected: "SELECT * FROM customers; DROP TABLE customers",
		},
		{
			name:     "semicolon inside literal",
			input:    "SELECT * FROM t WHERE note = 'a;b'",
			expected: "SELECT * FROM t WHERE note = 'a;b'",
		},
		{
			name:     "write statements are extracted too",
			input:    "DELETE FROM customers",
			expected: "DELETE FROM customers",
		},
		{
			name:     "no sql at all",
			input:    "I'm sorry, I cannot answer that question.",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := ExtractSQL(tt.input)
			if got != tt.expected {
				t.Errorf("ExtractSQL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractSQLConfidence(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"SELECT 1\nconfidence: 0.85", 0.85, true},
		{"SELECT 1\nConfidence: 90%", 0.9, true},
		{"SELECT 1\nConfidence = 72", 0.72, true},
		{"SELECT 1", 0, false},
	}
	for _, tt := range tests {
		sql, got, ok := ExtractSQL(tt.input)
		if sql != "SELECT 1" {
			t.Errorf("ExtractSQL(%q) sql = %q", tt.input, sql)
		}
		if ok != tt.ok || got != tt.want {
			t.Errorf("ExtractSQL(%q) confidence = %v,%v want %v,%v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCheckStructure(t *testing.T) {
	tests := []struct {
		sql     string
		wantErr bool
	}{
		{"SELECT COUNT(*) FROM customers", false},
		{"WITH x AS (SELECT 1) SELECT * FROM x", false},
		{"(SELECT 1) UNION (SELECT 2)", false},
		{"SELECT COUNT(* FROM customers", true},
		{"SELECT 1)", true},
		{"SELECT * FROM t WHERE name = 'open", true},
		{"customers table has 10 rows", true},
	}
	for _, tt := range tests {
		err := checkStructure(tt.sql)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkStructure(%q) error = %v, wantErr %v", tt.sql, err, tt.wantErr)
		}
	}
}

type scriptedGenerator struct {
	replies []string
	err     error
	prompts []llm.Request
}

func (g *scriptedGenerator) Complete(ctx context.Context, req llm.Request) (string, error) {
	g.prompts = append(g.prompts, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.err != nil {
		return "", g.err
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

func testInput(t *testing.T) Input {
	t.Helper()
	g, err := schema.NewGraph("shop",
		[]schema.Table{
			{Name: "customers", Columns: []schema.Column{
				{Name: "id", DataType: "integer", IsKey: true},
				{Name: "name", DataType: "text", Nullable: true},
				{Name: "region", DataType: "text", Nullable: true},
			}},
			{Name: "orders", Columns: []schema.Column{
				{Name: "id", DataType: "integer", IsKey: true},
				{Name: "customer_id", DataType: "integer"},
				{Name: "total", DataType: "numeric"},
			}},
		},
		[]schema.Relationship{{SourceTable: "orders", SourceColumn: "customer_id", TargetTable: "customers", TargetColumn: "id"}},
		nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	a := analyzer.New(analyzer.Options{Now: func() time.Time { return time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC) }})
	q := a.Analyze("How many orders per customer last week?")
	sel, err := matcher.New(matcher.Options{}).Match(q, g)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	return Input{Analysis: q, Selection: sel, Graph: g, Dialect: "postgres"}
}

func TestTranslate(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"```sql\nSELECT c.name, COUNT(*) FROM orders o JOIN customers c ON c.id = o.customer_id GROUP BY c.name\n```\nconfidence: 0.9",
	}}
	in := testInput(t)

	res, err := New(gen).Translate(context.Background(), in, 0)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !strings.HasPrefix(res.SQL, "SELECT c.name, COUNT(*) FROM orders") {
		t.Errorf("SQL = %q", res.SQL)
	}
	if res.Confidence != 0.9 || !res.ModelReported {
		t.Errorf("confidence = %v reported=%v", res.Confidence, res.ModelReported)
	}
	if res.Intent != analyzer.IntentCount {
		t.Errorf("intent = %s", res.Intent)
	}
	if len(res.Tables) != 2 {
		t.Errorf("tables = %v, want customers and orders", res.Tables)
	}
	if strings.Contains(gen.prompts[0].System, "previous reply") {
		t.Error("first attempt should not use the strict prompt")
	}
}

func TestTranslateDefaultsConfidenceFromAnalysis(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"SELECT COUNT(*) FROM orders"}}
	in := testInput(t)

	res, err := New(gen).Translate(context.Background(), in, 1)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Confidence != in.Analysis.Confidence || res.ModelReported {
		t.Errorf("confidence = %v, want analysis confidence %v", res.Confidence, in.Analysis.Confidence)
	}
	if !strings.Contains(gen.prompts[0].System, "previous reply") {
		t.Error("retry attempt should use the strict prompt")
	}
	if res.Attempt != 1 {
		t.Errorf("attempt = %d", res.Attempt)
	}
}

func TestTranslateErrors(t *testing.T) {
	in := testInput(t)

	tests := []struct {
		name string
		gen  *scriptedGenerator
	}{
		{"no sql", &scriptedGenerator{replies: []string{"I don't know."}}},
		{"unbalanced", &scriptedGenerator{replies: []string{"SELECT COUNT(* FROM orders"}}},
		{"upstream failure", &scriptedGenerator{err: errors.New("503 overloaded")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.gen).Translate(context.Background(), in, 0)
			if !apperr.Is(err, apperr.TranslationError) {
				t.Errorf("error = %v, want TranslationError", err)
			}
		})
	}
}

func TestTranslateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&scriptedGenerator{replies: []string{"SELECT 1"}}).Translate(ctx, testInput(t), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if apperr.Is(err, apperr.TranslationError) {
		t.Error("cancellation must not be reported as a translation failure")
	}
}

func TestBuildPrompt(t *testing.T) {
	in := testInput(t)
	req := BuildPrompt(in, false)

	for _, want := range []string{
		"Question: How many orders per customer last week?",
		"Intent: AGGREGATION_COUNT",
		"Table: customers",
		"- customer_id (integer) NOT NULL",
		"Primary Key: id",
		"Foreign Key: customer_id -> customers(id)",
		"orders.customer_id = customers.id",
		"Time range: last week means 2025-05-05 <= date < 2025-05-12",
		"PostgreSQL",
	} {
		if !strings.Contains(req.Prompt+req.System, want) {
			t.Errorf("prompt missing %q:\n%s", want, req.Prompt)
		}
	}

	in.Dialect = "sqlite"
	if !strings.Contains(BuildPrompt(in, true).System, "SQLite") {
		t.Error("sqlite dialect not named")
	}
}
