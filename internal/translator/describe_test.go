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

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
)

func describeInput() DescribeInput {
	return DescribeInput{
		Question: "How many customers do we have?",
		SQL:      "SELECT COUNT(*) FROM customers LIMIT 100",
		Tables:   []string{"customers"},
		RowCount: 1,
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected string
	}{
		{
			name:     "plain sentences",
			reply:    "This counts every customer.\n\nThe single number is the answer.",
			expected: "This counts every customer. The single number is the answer.",
		},
		{
			name:     "fenced reply unwrapped",
			reply:    "```\nThis counts every customer.\n```",
			expected: "This counts every customer.",
		},
		{
			name:     "prose starting with a keyword",
			reply:    "With this query we count the customers table.",
			expected: "With this query we count the customers table.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{replies: []string{tt.reply}}
			got, err := New(gen).Describe(context.Background(), describeInput())
			if err != nil {
				t.Fatalf("Describe() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("Describe() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDescribeErrors(t *testing.T) {
	tests := []struct {
		name string
		gen  *scriptedGenerator
	}{
		{"empty reply", &scriptedGenerator{replies: []string{"  \n"}}},
		{"statement instead of prose", &scriptedGenerator{replies: []string{"SELECT COUNT(*) FROM customers"}}},
		{"upstream failure", &scriptedGenerator{err: errors.New("503 overloaded")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.gen).Describe(context.Background(), describeInput())
			if !apperr.Is(err, apperr.TranslationError) {
				t.Errorf("error = %v, want TranslationError", err)
			}
		})
	}
}

func TestDescribeTruncatesLongReplies(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{strings.Repeat("word ", 400)}}
	got, err := New(gen).Describe(context.Background(), describeInput())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if !strings.HasSuffix(got, "...") || len([]rune(got)) > maxDescriptionRunes+3 {
		t.Errorf("description not capped: %d runes", len([]rune(got)))
	}
}

func TestBuildDescribePrompt(t *testing.T) {
	req := BuildDescribePrompt(describeInput())
	for _, want := range []string{
		"Question: How many customers do we have?",
		"SQL: SELECT COUNT(*) FROM customers LIMIT 100",
		"Tables used: customers",
		"Rows returned: 1",
	} {
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, req.Prompt)
		}
	}

	in := describeInput()
	in.RowCount = -1
	if strings.Contains(BuildDescribePrompt(in).Prompt, "Rows returned") {
		t.Error("unexecuted statement should not report a row count")
	}
}

func TestFallbackDescription(t *testing.T) {
	got := FallbackDescription("  top products  ")
	if got != "This query retrieves data related to: top products" {
		t.Errorf("FallbackDescription() = %q", got)
	}
}
