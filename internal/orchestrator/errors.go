/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
)

const (
	minQuestionLength = 3
	maxQuestionLength = 1000
)

var (
	destructiveVerb = regexp.MustCompile(
		`^(please\s+|can you\s+|could you\s+)?(delete|drop|truncate|update|insert|alter|remove|erase|wipe)\b`)

	destructiveSQL = []*regexp.Regexp{
		regexp.MustCompile(`\bdrop\s+(table|database|schema|view|index)\b`),
		regexp.MustCompile(`\btruncate\s+(table\s+)?\w`),
		regexp.MustCompile(`\bdelete\s+from\b`),
		regexp.MustCompile(`\binsert\s+into\b`),
		regexp.MustCompile(`\bupdate\s+\S+\s+set\b`),
		regexp.MustCompile(`\balter\s+table\b`),
		regexp.MustCompile(`\bcreate\s+(table|database)\b`),
	}
)

// rejection is an input problem with its own suggestions
type rejection struct {
	message     string
	suggestions []string
}

func (r *rejection) Error() string {
	return r.message
}

func reject(message string, suggestions ...string) error {
	return apperr.Wrap(&rejection{message: message, suggestions: suggestions}, apperr.InputRejected, message)
}

// checkQuestion trims the question and rejects empty, oversized and
// destructive input
func checkQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", reject("Question cannot be empty", "Please provide a natural language question")
	}

	n := utf8.RuneCountInString(question)
	if n < minQuestionLength {
		return "", reject(fmt.Sprintf("Question is too short (minimum %d characters)", minQuestionLength),
			"Please provide a more detailed question")
	}
	if n > maxQuestionLength {
		return "", reject(fmt.Sprintf("Question is too long (maximum %d characters)", maxQuestionLength),
			"Please shorten your question")
	}

	lower := strings.ToLower(strings.Join(strings.Fields(question), " "))
	destructive := destructiveVerb.MatchString(lower)
	for _, p := range destructiveSQL {
		if destructive {
			break
		}
		destructive = p.MatchString(lower)
	}
	if destructive {
		return "", reject("Question asks to modify data; only read-only questions are answered",
			"This system is for data retrieval only",
			"Please rephrase your question to focus on querying data")
	}
	return question, nil
}

// checkDatabase validates a database identifier against the registry
func checkDatabase(name string, registered []string) error {
	if !config.ValidDatabaseName(name) {
		return reject(fmt.Sprintf("Invalid database name %q", name),
			"Database names start with a letter and contain only letters, digits and underscores")
	}
	for _, r := range registered {
		if r == name {
			return nil
		}
	}
	return reject(fmt.Sprintf("Database %q is not configured", name),
		"Use one of the configured databases: "+strings.Join(registered, ", "))
}

var suggestions = map[apperr.Kind][]string{
	apperr.SchemaDiscoveryError: {
		"Check that the database is reachable and the credentials are correct",
		"Try again shortly, or refresh the schema once the database is available",
	},
	apperr.NoRelevantTables: {
		"Check if you're using the correct business terms",
		"Try different synonyms for your data entities",
		"Ask about available data first: 'What tables are available?'",
	},
	apperr.TranslationError: {
		"Be more specific about what data you want to see",
		"Mention specific time periods, categories, or filters",
		"Use concrete business terms like 'customers', 'sales', 'products'",
	},
	apperr.UnsafeOperation: {
		"This system is for data retrieval only",
		"Please rephrase your question to focus on querying data",
	},
	apperr.SuspiciousQuery: {
		"Try rephrasing your question more clearly",
		"Use specific business terms and avoid technical jargon",
		"Be more specific about what you want to see",
	},
	apperr.PoolExhausted: {
		"The database is busy with other queries right now",
		"Try again in a few seconds",
	},
	apperr.QueryTimeout: {
		"Your query is taking too long to execute",
		"Try adding more specific filters to reduce data volume",
		"Ask for smaller date ranges or specific categories",
	},
	apperr.ExecutionError: {
		"The generated query had technical issues",
		"Try rephrasing your question with simpler terms",
		"Check if the data you're asking about exists",
	},
	apperr.InternalError: {
		"Try rephrasing your question more clearly",
		"Use specific business terms and avoid technical jargon",
		"Be more specific about what you want to see",
	},
	apperr.InputRejected: {
		"Please ask a question about your data",
	},
}

// Suggestions returns the suggestions for a failure kind
func Suggestions(kind apperr.Kind) []string {
	s, ok := suggestions[kind]
	if !ok {
		s = suggestions[apperr.InternalError]
	}
	return append([]string(nil), s...)
}

// failure carries what the orchestrator knew when a query failed
type failure struct {
	id       string
	database string
	sql      string
	rules    []string
}

// toQueryError maps any pipeline error onto exactly one user facing kind
func toQueryError(err error, f failure) *query.Error {
	qe := &query.Error{ID: f.id, SQL: f.sql, Kind: apperr.KindOf(err)}

	if apperr.IsCancellation(err) || (qe.Kind == apperr.InternalError && errors.Is(err, context.DeadlineExceeded)) {
		qe.Kind = apperr.InternalError
		qe.Message = "query cancelled"
		qe.Suggestions = []string{"The request was cancelled before it finished", "Try the question again"}
		return qe
	}

	qe.Suggestions = Suggestions(qe.Kind)

	var ae *apperr.Error
	errors.As(err, &ae)

	switch qe.Kind {
	case apperr.InputRejected:
		var r *rejection
		if errors.As(err, &r) {
			qe.Message = r.message
			if len(r.suggestions) > 0 {
				qe.Suggestions = r.suggestions
			}
		} else {
			qe.Message = ae.Message
		}
	case apperr.SchemaDiscoveryError:
		qe.Message = fmt.Sprintf("Could not read the schema of database %s", f.database)
	case apperr.NoRelevantTables:
		qe.Message = fmt.Sprintf("No tables in database %s look relevant to this question", f.database)
	case apperr.TranslationError:
		qe.Message = "Could not generate a usable SQL statement for this question"
	case apperr.UnsafeOperation:
		qe.Message = "The generated SQL was blocked because it is not a single read-only query"
	case apperr.SuspiciousQuery:
		qe.Message = "The generated SQL was blocked because it matches a suspicious pattern"
	case apperr.PoolExhausted:
		qe.Message = fmt.Sprintf("Database %s is busy; no connection became free in time", f.database)
	case apperr.QueryTimeout:
		qe.Message = "The query took too long and was cancelled"
	case apperr.ExecutionError:
		// the database message is the most useful thing to show
		qe.Message = ae.Message
		qe.Code = ae.Code
	default:
		qe.Kind = apperr.InternalError
		qe.Message = "An internal error occurred while answering the question"
	}

	if len(f.rules) > 0 && (qe.Kind == apperr.UnsafeOperation || qe.Kind == apperr.SuspiciousQuery) {
		qe.Message += fmt.Sprintf(" (rules: %s)", strings.Join(f.rules, ", "))
	}
	if len(qe.Suggestions) > 3 {
		qe.Suggestions = qe.Suggestions[:3]
	}
	return qe
}
