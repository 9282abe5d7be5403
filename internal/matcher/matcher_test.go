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
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

func col(name string, key bool) schema.Column {
	return schema.Column{Name: name, DataType: "integer", IsKey: key}
}

func mustGraph(t *testing.T, tables []schema.Table, rels []schema.Relationship) *schema.Graph {
	t.Helper()
	g, err := schema.NewGraph("shop", tables, rels, nil)
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}
	return g
}

func shopGraph(t *testing.T) *schema.Graph {
	return mustGraph(t,
		[]schema.Table{
			{Name: "customers", Columns: []schema.Column{col("id", true), col("name", false), col("region", false)}},
			{Name: "orders", Columns: []schema.Column{col("id", true), col("customer_id", false), col("total", false), col("order_date", false)}},
			{Name: "order_items", Columns: []schema.Column{col("id", true), col("order_id", false), col("product_id", false), col("quantity", false)}},
			{Name: "products", Columns: []schema.Column{col("id", true), col("name", false), col("category", false), col("price", false)}},
			{Name: "suppliers", Columns: []schema.Column{col("id", true), col("name", false)}},
		},
		[]schema.Relationship{
			{SourceTable: "orders", SourceColumn: "customer_id", TargetTable: "customers", TargetColumn: "id"},
			{SourceTable: "order_items", SourceColumn: "order_id", TargetTable: "orders", TargetColumn: "id"},
			{SourceTable: "order_items", SourceColumn: "product_id", TargetTable: "products", TargetColumn: "id"},
		})
}

func analyze(question string) *analyzer.AnalyzedQuery {
	a := analyzer.New(analyzer.Options{Now: func() time.Time {
		return time.Date(2025, 5, 14, 0, 0, 0, 0, time.UTC)
	}})
	return a.Analyze(question)
}

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func TestMatchSingleTable(t *testing.T) {
	g := mustGraph(t, []schema.Table{
		{Name: "customers", Columns: []schema.Column{col("id", true), col("name", false), col("region", false)}},
	}, nil)

	sel, err := New(Options{}).Match(analyze("How many customers do we have?"), g)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !reflect.DeepEqual(sel.TableNames(), []string{"customers"}) {
		t.Errorf("tables = %v, want [customers]", sel.TableNames())
	}
	if len(sel.JoinPath) != 0 {
		t.Errorf("join path = %v, want none", sel.JoinPath)
	}
	if sel.Tables[0].Score < 1.0 {
		t.Errorf("score = %v, want at least the floor", sel.Tables[0].Score)
	}
}

func TestMatchJoinsRelatedTables(t *testing.T) {
	sel, err := New(Options{}).Match(analyze("Total revenue per product category"), shopGraph(t))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}

	want := []string{"order_items", "orders", "products"}
	if got := sorted(sel.TableNames()); !reflect.DeepEqual(got, want) {
		t.Fatalf("tables = %v, want %v", got, want)
	}
	if sel.Tables[0].Table != "products" {
		t.Errorf("top table = %s, want products", sel.Tables[0].Table)
	}
	if len(sel.JoinPath) != 2 {
		t.Errorf("join path = %v, want 2 edges", sel.JoinPath)
	}
}

func TestMatchAddsBridgeTable(t *testing.T) {
	g := mustGraph(t,
		[]schema.Table{
			{Name: "authors", Columns: []schema.Column{col("id", true), col("name", false)}},
			{Name: "books", Columns: []schema.Column{col("id", true), col("title", false)}},
			{Name: "writes", Columns: []schema.Column{col("a_ref", false), col("b_ref", false)}},
		},
		[]schema.Relationship{
			{SourceTable: "writes", SourceColumn: "a_ref", TargetTable: "authors", TargetColumn: "id"},
			{SourceTable: "writes", SourceColumn: "b_ref", TargetTable: "books", TargetColumn: "id"},
		})

	sel, err := New(Options{}).Match(analyze("authors and their books"), g)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !reflect.DeepEqual(sel.TableNames(), []string{"authors", "books", "writes"}) {
		t.Fatalf("tables = %v", sel.TableNames())
	}
	if !sel.Tables[2].Bridge {
		t.Error("writes should be marked as a bridge table")
	}
	if len(sel.JoinPath) != 2 {
		t.Errorf("join path = %v, want 2 edges", sel.JoinPath)
	}
}

func TestMatchNoPathReducesToTopTable(t *testing.T) {
	sel, err := New(Options{}).Match(analyze("customers and suppliers"), shopGraph(t))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !reflect.DeepEqual(sel.TableNames(), []string{"customers"}) {
		t.Errorf("tables = %v, want [customers]", sel.TableNames())
	}
	if !strings.Contains(sel.Note, "suppliers") {
		t.Errorf("note = %q, want it to name suppliers", sel.Note)
	}
	if len(sel.JoinPath) != 0 {
		t.Errorf("join path = %v, want none", sel.JoinPath)
	}
}

func TestMatchTopK(t *testing.T) {
	sel, err := New(Options{TopK: 1}).Match(analyze("Total revenue per product category"), shopGraph(t))
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !reflect.DeepEqual(sel.TableNames(), []string{"products"}) {
		t.Errorf("tables = %v, want [products]", sel.TableNames())
	}
}

func TestMatchNoRelevantTables(t *testing.T) {
	m := New(Options{})
	for _, question := range []string{"asdf qwerty", "hello"} {
		_, err := m.Match(analyze(question), shopGraph(t))
		if !apperr.Is(err, apperr.NoRelevantTables) {
			t.Errorf("Match(%q) error = %v, want NoRelevantTablesError", question, err)
		}
	}
}

func TestMatchFloor(t *testing.T) {
	// no table reaches a floor of 5
	_, err := New(Options{RelevanceFloor: 5}).Match(analyze("order totals"), shopGraph(t))
	if !apperr.Is(err, apperr.NoRelevantTables) {
		t.Errorf("error = %v, want NoRelevantTablesError", err)
	}
}

func TestScoreTableKeyColumnsWeighMore(t *testing.T) {
	terms := map[string]float64{"customer": 1}

	keyed := scoreTable(&schema.Table{Name: "invoices", Columns: []schema.Column{col("customer_id", false)}}, terms)
	plain := scoreTable(&schema.Table{Name: "invoices", Columns: []schema.Column{col("customer_name", false)}}, terms)

	if keyed.Score != keyColumnWeight || plain.Score != columnWeight {
		t.Errorf("scores = %v and %v, want %v and %v", keyed.Score, plain.Score, keyColumnWeight, columnWeight)
	}
	if !reflect.DeepEqual(keyed.Matches, []string{"invoices.customer_id"}) {
		t.Errorf("matches = %v", keyed.Matches)
	}
}

func TestNameMatches(t *testing.T) {
	tests := []struct {
		name, term string
		want       bool
	}{
		{"customers", "customer", true},
		{"order_items", "item", true},
		{"order_items", "order_item", true},
		{"categories", "category", true},
		{"customer_id", "customer", true},
		{"description", "script", false},
	}
	for _, tt := range tests {
		if got := nameMatches(tt.name, tt.term); got != tt.want {
			t.Errorf("nameMatches(%q, %q) = %v, want %v", tt.name, tt.term, got, tt.want)
		}
	}
}
