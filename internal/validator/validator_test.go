/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
)

var (
	shopTables = []string{"customers", "orders", "order_items", "products"}
	stdLimits  = Limits{DefaultRows: 100, MaxRows: 1000, Timeout: 30 * time.Second}
)

func hasRule(o *Outcome, rule Rule) bool {
	for _, v := range o.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func TestValidatePasses(t *testing.T) {
	v := New(nil)
	tests := []struct {
		name      string
		sql       string
		statement string
		limit     int
	}{
		{
			name:      "count gets default limit",
			sql:       "SELECT COUNT(*) FROM customers",
			statement: "SELECT COUNT(*) FROM customers LIMIT 100",
			limit:     100,
		},
		{
			name:      "trailing semicolon and whitespace",
			sql:       "SELECT  name\nFROM customers ;",
			statement: "SELECT name FROM customers LIMIT 100",
			limit:     100,
		},
		{
			name:      "limit under maximum kept",
			sql:       "SELECT name FROM products ORDER BY price DESC LIMIT 5",
			statement: "SELECT name FROM products ORDER BY price DESC LIMIT 5",
			limit:     5,
		},
		{
			name:      "limit above maximum clamped",
			sql:       "SELECT * FROM orders LIMIT 5000",
			statement: "SELECT * FROM orders LIMIT 1000",
			limit:     1000,
		},
		{
			name:      "limit all replaced",
			sql:       "SELECT * FROM orders LIMIT ALL",
			statement: "SELECT * FROM orders LIMIT 100",
			limit:     100,
		},
		{
			name:      "sqlite offset and count",
			sql:       "SELECT * FROM orders LIMIT 10, 5000",
			statement: "SELECT * FROM orders LIMIT 10, 1000",
			limit:     1000,
		},
		{
			name:      "fetch first clamped",
			sql:       "SELECT * FROM orders FETCH FIRST 2000 ROWS ONLY",
			statement: "SELECT * FROM orders FETCH FIRST 1000 ROWS ONLY",
			limit:     1000,
		},
		{
			name:      "limit injected before offset",
			sql:       "SELECT * FROM customers ORDER BY id OFFSET 10",
			statement: "SELECT * FROM customers ORDER BY id LIMIT 100 OFFSET 10",
			limit:     100,
		},
		{
			name:      "nested limit does not bound the outer query",
			sql:       "SELECT * FROM (SELECT * FROM customers LIMIT 5000) c",
			statement: "SELECT * FROM (SELECT * FROM customers LIMIT 5000) c LIMIT 100",
			limit:     100,
		},
		{
			name:      "cte ending in select",
			sql:       "WITH recent AS (SELECT * FROM orders WHERE total > 10) SELECT COUNT(*) FROM recent",
			statement: "WITH recent AS (SELECT * FROM orders WHERE total > 10) SELECT COUNT(*) FROM recent LIMIT 100",
			limit:     100,
		},
		{
			name:      "join with aliases",
			sql:       "SELECT c.name, SUM(o.total) FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name",
			statement: "SELECT c.name, SUM(o.total) FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name LIMIT 100",
			limit:     100,
		},
		{
			name:      "extract and distinct from are not table references",
			sql:       "SELECT EXTRACT(YEAR FROM created_at) AS y FROM orders WHERE status IS DISTINCT FROM 'void'",
			statement: "SELECT EXTRACT(YEAR FROM created_at) AS y FROM orders WHERE status IS DISTINCT FROM 'void' LIMIT 100",
			limit:     100,
		},
		{
			name:      "schema qualified name",
			sql:       "SELECT * FROM public.customers",
			statement: "SELECT * FROM public.customers LIMIT 100",
			limit:     100,
		},
		{
			name:      "keywords inside literals and quoted identifiers",
			sql:       `SELECT 'DELETE' AS word, "update" FROM customers WHERE note <> 'x; DROP TABLE y'`,
			statement: `SELECT 'DELETE' AS word, "update" FROM customers WHERE note <> 'x; DROP TABLE y' LIMIT 100`,
			limit:     100,
		},
		{
			name:      "system table",
			sql:       "SELECT table_name FROM information_schema.tables",
			statement: "SELECT table_name FROM information_schema.tables LIMIT 100",
			limit:     100,
		},
		{
			name:      "subquery in IN list",
			sql:       "SELECT name FROM customers WHERE id IN (SELECT customer_id FROM orders)",
			statement: "SELECT name FROM customers WHERE id IN (SELECT customer_id FROM orders) LIMIT 100",
			limit:     100,
		},
		{
			name:      "ordinary OR condition",
			sql:       "SELECT * FROM customers WHERE region = 'EU' OR region = 'US'",
			statement: "SELECT * FROM customers WHERE region = 'EU' OR region = 'US' LIMIT 100",
			limit:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v.Validate(tt.sql, shopTables, stdLimits)
			if !out.Passed {
				t.Fatalf("Validate(%q) failed: %v", tt.sql, out.Violations)
			}
			if out.Statement != tt.statement {
				t.Errorf("Statement = %q, want %q", out.Statement, tt.statement)
			}
			if out.Limit != tt.limit {
				t.Errorf("Limit = %d, want %d", out.Limit, tt.limit)
			}
			if out.Timeout != 30*time.Second {
				t.Errorf("Timeout = %v", out.Timeout)
			}
			if out.Err() != nil {
				t.Errorf("Err() = %v on a passing outcome", out.Err())
			}
		})
	}
}

func TestValidateRejects(t *testing.T) {
	v := New(nil)
	tests := []struct {
		name string
		sql  string
		rule Rule
		kind apperr.Kind
	}{
		{"drop", "DROP TABLE customers", RuleReadOnly, apperr.UnsafeOperation},
		{"delete lower case", "delete from customers", RuleReadOnly, apperr.UnsafeOperation},
		{"update", "UPDATE customers SET name = 'x'", RuleReadOnly, apperr.UnsafeOperation},
		{"data modifying cte", "WITH d AS (DELETE FROM orders RETURNING *) SELECT * FROM d", RuleReadOnly, apperr.UnsafeOperation},
		{"cte ending in insert", "WITH x AS (SELECT 1) INSERT INTO orders SELECT * FROM x", RuleReadOnly, apperr.UnsafeOperation},
		{"select into", "SELECT * INTO backup FROM customers", RuleReadOnly, apperr.UnsafeOperation},
		{"row locking", "SELECT * FROM customers FOR SHARE", RuleReadOnly, apperr.UnsafeOperation},
		{"side effecting function", "SELECT pg_sleep(10) FROM customers", RuleReadOnly, apperr.UnsafeOperation},
		{"stacked statements", "SELECT * FROM customers; SELECT * FROM orders", RuleSingleStatement, apperr.UnsafeOperation},
		{"stacked drop", "SELECT * FROM customers; DROP TABLE customers", RuleSingleStatement, apperr.UnsafeOperation},
		{"table outside selection", "SELECT * FROM employees", RuleAllowedTables, apperr.UnsafeOperation},
		{"joined table outside selection", "SELECT * FROM customers c JOIN payroll p ON p.id = c.id", RuleAllowedTables, apperr.UnsafeOperation},
		{"other schema", "SELECT * FROM hr.customers_private", RuleAllowedTables, apperr.UnsafeOperation},
		{"non literal limit", "SELECT * FROM customers LIMIT $1", RuleRowLimit, apperr.UnsafeOperation},
		{"limit expression", "SELECT * FROM customers LIMIT 1 + 99999", RuleRowLimit, apperr.UnsafeOperation},
		{"limit product", "SELECT * FROM customers LIMIT 10 * 1000", RuleRowLimit, apperr.UnsafeOperation},
		{"offset count expression", "SELECT * FROM customers LIMIT 5, 10 + 1", RuleRowLimit, apperr.UnsafeOperation},
		{"fetch expression", "SELECT * FROM customers FETCH FIRST 10 + 5 ROWS ONLY", RuleRowLimit, apperr.UnsafeOperation},
		{"line comment", "SELECT * FROM customers -- WHERE id = 1", RuleComment, apperr.SuspiciousQuery},
		{"block comment", "SELECT * FROM customers /* hi */", RuleComment, apperr.SuspiciousQuery},
		{"numeric tautology", "SELECT * FROM customers WHERE id = 5 OR 1=1", RuleTautology, apperr.SuspiciousQuery},
		{"string tautology", "SELECT * FROM customers WHERE name = 'x' OR 'a'='a'", RuleTautology, apperr.SuspiciousQuery},
		{"bare true", "SELECT * FROM customers WHERE id = 5 OR TRUE", RuleTautology, apperr.SuspiciousQuery},
		{"unterminated literal", "SELECT * FROM customers WHERE name = 'abc", RuleMalformed, apperr.SuspiciousQuery},
		{"empty", "  ", RuleReadOnly, apperr.UnsafeOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := v.Validate(tt.sql, shopTables, stdLimits)
			if out.Passed {
				t.Fatalf("Validate(%q) passed, want %s", tt.sql, tt.rule)
			}
			if !hasRule(out, tt.rule) {
				t.Errorf("rules = %v, want %s", out.Rules(), tt.rule)
			}
			if !apperr.Is(out.Err(), tt.kind) {
				t.Errorf("Err() = %v, want kind %s", out.Err(), tt.kind)
			}
			if out.Statement != "" {
				t.Errorf("failed outcome carries statement %q", out.Statement)
			}
		})
	}
}

func TestLeadingWriteKeywordsNeverPass(t *testing.T) {
	v := New(nil)
	for _, kw := range []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "TRUNCATE"} {
		for _, form := range []string{kw, strings.ToLower(kw), strings.ToUpper(kw[:1]) + strings.ToLower(kw[1:])} {
			sql := form + " customers"
			if out := v.Validate(sql, shopTables, stdLimits); out.Passed {
				t.Errorf("Validate(%q) passed", sql)
			}
			sql = "(" + form + " FROM customers)"
			if out := v.Validate(sql, shopTables, stdLimits); out.Passed {
				t.Errorf("Validate(%q) passed", sql)
			}
		}
	}
}

func TestUnsafeTakesPrecedence(t *testing.T) {
	out := New(nil).Validate("SELECT * FROM customers /* x */; DROP TABLE customers", shopTables, stdLimits)
	if !apperr.Is(out.Err(), apperr.UnsafeOperation) {
		t.Errorf("Err() = %v, want UnsafeOperationError", out.Err())
	}
	if !hasRule(out, RuleComment) {
		t.Errorf("rules = %v, want the comment reported too", out.Rules())
	}
}

func TestClampIsIdempotent(t *testing.T) {
	v := New(nil)
	inputs := []string{
		"SELECT * FROM orders",
		"SELECT * FROM orders LIMIT 99999",
		"SELECT * FROM orders ORDER BY total DESC OFFSET 3",
		"SELECT * FROM orders LIMIT 7, 5000",
		"SELECT * FROM orders FETCH NEXT 5000 ROWS ONLY",
		"SELECT * FROM orders LIMIT 5000 OFFSET 10",
		"SELECT * FROM orders LIMIT 20;",
	}
	for _, sql := range inputs {
		first := v.Validate(sql, shopTables, stdLimits)
		if !first.Passed {
			t.Fatalf("Validate(%q) failed: %v", sql, first.Violations)
		}
		second := v.Validate(first.Statement, shopTables, stdLimits)
		if !second.Passed || second.Statement != first.Statement || second.Limit != first.Limit {
			t.Errorf("revalidating %q gave %q/%d, want %q/%d",
				sql, second.Statement, second.Limit, first.Statement, first.Limit)
		}
		if first.Limit > stdLimits.MaxRows {
			t.Errorf("limit %d exceeds maximum", first.Limit)
		}
	}

	for _, sql := range []string{
		"SELECT * FROM orders LIMIT 1 + 99999",
		"SELECT * FROM orders LIMIT 10 * 1000",
	} {
		if out := v.Validate(sql, shopTables, stdLimits); out.Passed {
			t.Errorf("Validate(%q) passed with limit %d", sql, out.Limit)
		}
	}
}

func TestLimitsNormalized(t *testing.T) {
	v := New(nil)

	out := v.Validate("SELECT * FROM orders", shopTables, Limits{})
	if out.Limit != defaultRows {
		t.Errorf("zero limits: Limit = %d, want %d", out.Limit, defaultRows)
	}

	out = v.Validate("SELECT * FROM orders", shopTables, Limits{DefaultRows: 500, MaxRows: 50})
	if out.Limit != 50 || out.Statement != "SELECT * FROM orders LIMIT 50" {
		t.Errorf("default above max: %q/%d", out.Statement, out.Limit)
	}
}

func TestCustomSystemTables(t *testing.T) {
	v := New([]string{"audit.*"})
	if out := v.Validate("SELECT * FROM audit.events", nil, stdLimits); !out.Passed {
		t.Errorf("wildcard system schema rejected: %v", out.Violations)
	}
	if out := v.Validate("SELECT * FROM information_schema.tables", nil, stdLimits); out.Passed {
		t.Error("default system tables should not apply when a list is given")
	}
}

func TestNameMatches(t *testing.T) {
	tests := []struct {
		ref, entry string
		want       bool
	}{
		{"customers", "customers", true},
		{"Customers", "customers", true},
		{"public.customers", "customers", true},
		{"customers", "public.customers", true},
		{"public.customers", "public.customers", true},
		{"hr.customers", "public.customers", false},
		{"pg_catalog.pg_authid", "pg_catalog.*", true},
		{"orders", "customers", false},
	}
	for _, tt := range tests {
		if got := nameMatches(tt.ref, tt.entry); got != tt.want {
			t.Errorf("nameMatches(%q, %q) = %v, want %v", tt.ref, tt.entry, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	toks, lx := tokenize(`SELECT a::text, $$x;y$$, E'it\'s', "q""id", 1.5e3 FROM t -- tail`)
	var kinds []tokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
	}
	want := []tokenKind{
		tokIdent, tokIdent, tokSymbol, tokIdent, tokSymbol,
		tokString, tokSymbol, tokString, tokSymbol, tokQuotedIdent, tokSymbol,
		tokNumber, tokIdent, tokIdent, tokEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), toks)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d (%q) kind = %d, want %d", i, toks[i].text, kinds[i], want[i])
		}
	}
	if len(lx.comments) != 1 || lx.unterminated {
		t.Errorf("comments = %v unterminated = %v", lx.comments, lx.unterminated)
	}
	if got := unquote(toks[9]); got != `q"id` {
		t.Errorf("unquote = %q", got)
	}
}
