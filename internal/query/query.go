/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package query holds the values handed back to callers of the pipeline
package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
)

// Result is a completed query. Rows keep the database's column order in
// Columns; each row maps column name to value.
type Result struct {
	ID         string                   `json:"id"`
	Database   string                   `json:"database"`
	Question   string                   `json:"question"`
	SQL        string                   `json:"sql"`
	Columns    []string                 `json:"columns"`
	Rows       []map[string]interface{} `json:"rows"`
	RowCount   int                      `json:"row_count"`
	Truncated  bool                     `json:"truncated,omitempty"`
	Duration   time.Duration            `json:"-"`
	DurationMS int64                    `json:"duration_ms"`
	Intent     analyzer.Intent          `json:"intent"`
	Confidence float64                  `json:"confidence"`
	Tables     []string                 `json:"tables"`
	// Note carries a diagnostic from schema matching, if any
	Note string `json:"note,omitempty"`
	// Explanation says in plain language what the statement retrieved
	Explanation string `json:"explanation,omitempty"`
	// Text is the rendering in the requested output format
	Text string `json:"-"`
}

// Error is the user-facing form of a failed query
type Error struct {
	ID          string      `json:"id"`
	Kind        apperr.Kind `json:"kind"`
	Message     string      `json:"message"`
	Suggestions []string    `json:"suggestions"`
	// SQL is set when the failure happened after generation
	SQL string `json:"sql,omitempty"`
	// Code is the database error code for execution failures
	Code string `json:"code,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// String renders the error with its suggestions for terminal output
func (e *Error) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Message)
	if len(e.Suggestions) > 0 {
		sb.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			fmt.Fprintf(&sb, "\n  - %s", s)
		}
	}
	return sb.String()
}

// Explanation is a translated and validated statement that was not run
type Explanation struct {
	ID         string          `json:"id"`
	Database   string          `json:"database"`
	Question   string          `json:"question"`
	SQL        string          `json:"sql"`
	Intent     analyzer.Intent `json:"intent"`
	Confidence float64         `json:"confidence"`
	Tables     []string        `json:"tables"`
	JoinPath   []string        `json:"join_path,omitempty"`
	Limit      int             `json:"limit"`
	TimeoutMS  int64           `json:"timeout_ms"`
	Note       string          `json:"note,omitempty"`
	// Description says in plain language what the statement would do
	Description string `json:"description,omitempty"`
	// Plan is the database's plan for SQL, when requested
	PlanColumns []string                 `json:"plan_columns,omitempty"`
	Plan        []map[string]interface{} `json:"plan,omitempty"`
	Text        string                   `json:"-"`
}

// Validation is the safety check of a caller-supplied statement. Nothing
// is run; Statement is what would be executed when Valid.
type Validation struct {
	Database   string      `json:"database"`
	SQL        string      `json:"sql"`
	Valid      bool        `json:"valid"`
	Statement  string      `json:"statement,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	TimeoutMS  int64       `json:"timeout_ms,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
	Text       string      `json:"-"`
}

// Violation is one failed safety rule
type Violation struct {
	Rule    string      `json:"rule"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}
