/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package translator turns an analysed question and its schema subset
// into a SQL statement via the generation service.
package translator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/llm"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/matcher"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// Generator is the generation service boundary: prompt in, text out
type Generator interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Input is everything one translation needs
type Input struct {
	Analysis  *analyzer.AnalyzedQuery
	Selection *matcher.Selection
	Graph     *schema.Graph
	// Dialect is the adapter driver: postgres, sqlite or sqlite3
	Dialect string
}

// Result is a generated statement, not yet validated
type Result struct {
	SQL        string          `json:"sql"`
	Intent     analyzer.Intent `json:"intent"`
	Tables     []string        `json:"tables"`
	Confidence float64         `json:"confidence"`
	// ModelReported is set when Confidence came from the model
	ModelReported bool `json:"model_reported"`
	Attempt       int  `json:"attempt"`
}

// Translator is safe for concurrent use
type Translator struct {
	gen Generator
}

// New creates a translator backed by gen
func New(gen Generator) *Translator {
	return &Translator{gen: gen}
}

// Translate performs one generation attempt. Attempts after the first use
// a stricter prompt; the caller owns the retry budget.
func (t *Translator) Translate(ctx context.Context, in Input, attempt int) (*Result, error) {
	req := BuildPrompt(in, attempt > 0)

	startTime := time.Now()
	text, err := t.gen.Complete(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Wrap(err, apperr.TranslationError, "generation service failed")
	}

	sql, reported, hasReported := ExtractSQL(text)
	if sql == "" {
		logging.Debug("translation_no_sql", "attempt", attempt, "response_chars", len(text))
		return nil, apperr.New(apperr.TranslationError, "response contains no SQL statement")
	}
	if err := checkStructure(sql); err != nil {
		logging.Debug("translation_unparsable", "attempt", attempt, "error", err)
		return nil, apperr.Wrap(err, apperr.TranslationError, "generated SQL does not parse")
	}

	res := &Result{
		SQL:        sql,
		Intent:     in.Analysis.Intent,
		Tables:     referencedTables(sql, in.Selection),
		Confidence: in.Analysis.Confidence,
		Attempt:    attempt,
	}
	if hasReported {
		res.Confidence = reported
		res.ModelReported = true
	}

	logging.Debug("translation_complete",
		"attempt", attempt,
		"duration_ms", time.Since(startTime).Milliseconds(),
		"confidence", res.Confidence,
		"tables", res.Tables)
	return res, nil
}

// referencedTables returns the selected tables the statement names
func referencedTables(sql string, sel *matcher.Selection) []string {
	if sel == nil {
		return nil
	}
	lower := strings.ToLower(sql)
	var out []string
	for _, name := range sel.TableNames() {
		re := regexp.MustCompile(`(^|[^a-z0-9_])"?` + regexp.QuoteMeta(strings.ToLower(lastPart(name))) + `"?($|[^a-z0-9_])`)
		if re.MatchString(lower) {
			out = append(out, name)
		}
	}
	return out
}

func lastPart(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// checkStructure verifies the statement starts with a SQL keyword and its
// quotes and parentheses balance
func checkStructure(sql string) error {
	first := strings.ToUpper(firstWord(sql))
	if !statementKeywords[first] {
		return fmt.Errorf("unexpected leading word %q", first)
	}

	depth := 0
	var quote rune
	for _, r := range sql {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced parentheses")
			}
		}
	}
	if quote != 0 {
		return fmt.Errorf("unterminated quoted text")
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses")
	}
	return nil
}
