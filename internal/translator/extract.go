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
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// statementKeywords are words a SQL statement can start with. Writes are
// included so the validator, not extraction, rejects them.
var statementKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "ALTER": true, "CREATE": true, "TRUNCATE": true, "GRANT": true,
	"REVOKE": true, "MERGE": true, "REPLACE": true, "EXPLAIN": true, "VALUES": true,
	"TABLE": true, "COPY": true, "CALL": true, "DO": true, "VACUUM": true,
	"ATTACH": true, "DETACH": true, "PRAGMA": true,
}

var (
	fencePattern      = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
	inlineStart       = regexp.MustCompile(`\b(?:SELECT|WITH)\s`)
	confidencePattern = regexp.MustCompile(`(?im)^[\s*_-]*confidence\s*[:=]\s*([0-9]*\.?[0-9]+)\s*(%?)[\s*_]*$`)
	proseStarts       = []string{
		"THIS ", "THE ", "WILL ", "RETURNS ", "NOTE:", "NOTE ", "EXPLANATION", "HERE ",
		"IT ", "I ", "ASSUMING", "ASSUMPTION", "OUTPUT", "RESULT",
	}
)

// ExtractSQL finds the statement in a free-form reply. It strips code
// fences, leading prose, -- comments and trailing explanation,
// normalises whitespace outside quoted text, and drops one trailing
// semicolon. Text after a semicolon is kept when it starts another
// statement so stacked statements reach validation intact. The second and
// third results carry a "confidence: x" line when the reply had one.
func ExtractSQL(text string) (string, float64, bool) {
	confidence, hasConfidence := 0.0, false
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if m[2] == "%" || v > 1 {
				v /= 100
			}
			if v >= 0 && v <= 1 {
				confidence, hasConfidence = v, true
			}
		}
		text = confidencePattern.ReplaceAllString(text, "")
	}

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var lines []string
	started := false
	for _, line := range strings.Split(text, "\n") {
		// joining lines would let a -- comment swallow the clauses after it
		line = strings.TrimSpace(stripLineComment(line))
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		if !started {
			if !statementKeywords[strings.ToUpper(firstWord(line))] {
				// "Here is the query: SELECT ..."
				loc := inlineStart.FindStringIndex(line)
				if loc == nil {
					continue
				}
				line = line[loc[0]:]
			}
			started = true
		} else if isProse(upper) {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", confidence, hasConfidence
	}

	sql := collapseSpace(strings.Join(lines, "\n"))
	sql = cutAfterStatement(sql)
	return sql, confidence, hasConfidence
}

func isProse(upperLine string) bool {
	if statementKeywords[firstWord(upperLine)] {
		return false
	}
	for _, p := range proseStarts {
		if strings.HasPrefix(upperLine, p) {
			return true
		}
	}
	return false
}

// cutAfterStatement drops a trailing semicolon and anything after the
// first semicolon that is not itself SQL
func cutAfterStatement(sql string) string {
	idx := semicolonOutsideQuotes(sql)
	if idx < 0 {
		return sql
	}
	rest := strings.TrimSpace(sql[idx+1:])
	if rest != "" && statementKeywords[strings.ToUpper(firstWord(rest))] {
		return strings.TrimSuffix(strings.TrimSpace(sql), ";")
	}
	return strings.TrimSpace(sql[:idx])
}

// stripLineComment cuts a -- comment that is not inside quotes
func stripLineComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			return line[:i]
		}
	}
	return line
}

func semicolonOutsideQuotes(s string) int {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == ';':
			return i
		}
	}
	return -1
}

// collapseSpace turns every whitespace run outside quoted text into one
// space
func collapseSpace(s string) string {
	var sb strings.Builder
	var quote rune
	pendingSpace := false
	for _, r := range s {
		if quote == 0 && unicode.IsSpace(r) {
			pendingSpace = sb.Len() > 0
			continue
		}
		if pendingSpace {
			sb.WriteByte(' ')
			pendingSpace = false
		}
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func firstWord(s string) string {
	s = strings.TrimLeft(s, " \t(")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
