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
	"fmt"
	"strings"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/llm"
)

// maxDescriptionRunes caps a generated description
const maxDescriptionRunes = 600

// DescribeInput is an executed or explained statement to put into words
type DescribeInput struct {
	Question string
	SQL      string
	Tables   []string
	// RowCount is -1 when the statement was not run
	RowCount int
}

// FallbackDescription is used when no generated description is available
func FallbackDescription(question string) string {
	return "This query retrieves data related to: " + strings.TrimSpace(question)
}

// BuildDescribePrompt asks for a short plain-language account of a
// statement. Like BuildPrompt it never includes row data.
func BuildDescribePrompt(in DescribeInput) llm.Request {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", strings.TrimSpace(in.Question))
	fmt.Fprintf(&sb, "SQL: %s\n", in.SQL)
	if len(in.Tables) > 0 {
		fmt.Fprintf(&sb, "Tables used: %s\n", strings.Join(in.Tables, ", "))
	}
	if in.RowCount >= 0 {
		fmt.Fprintf(&sb, "Rows returned: %d\n", in.RowCount)
	}
	sb.WriteString("\nExplain what data this query retrieves, from which tables, any filtering or " +
		"aggregation it does, and how the result answers the question.")

	return llm.Request{
		System: "You explain SQL queries to business users. Reply with two or three plain sentences. " +
			"Do not repeat the SQL, do not use markdown and avoid technical jargon.",
		Prompt: sb.String(),
	}
}

// Describe asks the generation service for a plain-language explanation
// of a statement. Callers fall back to FallbackDescription on error.
func (t *Translator) Describe(ctx context.Context, in DescribeInput) (string, error) {
	text, err := t.gen.Complete(ctx, BuildDescribePrompt(in))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", apperr.Wrap(err, apperr.TranslationError, "generation service failed")
	}
	desc := cleanDescription(text)
	if desc == "" {
		return "", apperr.New(apperr.TranslationError, "response contains no description")
	}
	return desc, nil
}

// cleanDescription drops code fences and collapses whitespace. A reply
// that starts like a statement is not a description.
func cleanDescription(text string) string {
	text = fencePattern.ReplaceAllString(text, "$1")
	text = strings.Join(strings.Fields(text), " ")
	// "SELECT ..." is a statement, "With this query ..." is prose
	if w := firstWord(text); w == strings.ToUpper(w) && statementKeywords[w] {
		return ""
	}
	if r := []rune(text); len(r) > maxDescriptionRunes {
		text = strings.TrimSpace(string(r[:maxDescriptionRunes])) + "..."
	}
	return text
}
