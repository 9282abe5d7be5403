/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package validator enforces the read-only, bounded execution policy on
// generated SQL. It accepts or rejects; apart from the row limit it never
// rewrites a statement.
package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
)

// Rule identifies one safety check
type Rule string

const (
	RuleReadOnly        Rule = "read_only"
	RuleSingleStatement Rule = "single_statement"
	RuleAllowedTables   Rule = "allowed_tables"
	RuleRowLimit        Rule = "row_limit"
	RuleComment         Rule = "comment_sequence"
	RuleTautology       Rule = "tautology"
	RuleMalformed       Rule = "malformed_statement"
)

// Violation is one failed rule
type Violation struct {
	Rule    Rule        `json:"rule"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Limits is the execution budget applied to a passing statement
type Limits struct {
	DefaultRows int
	MaxRows     int
	Timeout     time.Duration
}

const (
	defaultRows    = 100
	defaultMaxRows = 1000
)

func (l Limits) normalized() Limits {
	if l.MaxRows <= 0 {
		l.MaxRows = defaultMaxRows
	}
	if l.DefaultRows <= 0 {
		l.DefaultRows = defaultRows
	}
	if l.DefaultRows > l.MaxRows {
		l.DefaultRows = l.MaxRows
	}
	return l
}

// Outcome is the verdict on one statement. Statement, Limit and Timeout
// are only meaningful when Passed is true.
type Outcome struct {
	Passed     bool          `json:"passed"`
	Violations []Violation   `json:"violations,omitempty"`
	Statement  string        `json:"statement,omitempty"`
	Limit      int           `json:"limit"`
	Timeout    time.Duration `json:"timeout"`
}

// Rules returns the identifiers of the violated rules
func (o *Outcome) Rules() []string {
	rules := make([]string, len(o.Violations))
	for i, v := range o.Violations {
		rules[i] = string(v.Rule)
	}
	return rules
}

// Err converts a failed outcome into a classified error. Unsafe
// operations take precedence over suspicious patterns.
func (o *Outcome) Err() error {
	if o.Passed || len(o.Violations) == 0 {
		return nil
	}
	v := o.Violations[0]
	for _, candidate := range o.Violations {
		if candidate.Kind == apperr.UnsafeOperation {
			v = candidate
			break
		}
	}
	return apperr.New(v.Kind, v.Message)
}

// DefaultSystemTables may be read by any statement. Entries ending in ".*"
// allow a whole schema.
var DefaultSystemTables = []string{
	"information_schema.tables",
	"information_schema.columns",
	"information_schema.views",
	"information_schema.table_constraints",
	"information_schema.key_column_usage",
	"pg_catalog.pg_tables",
	"pg_catalog.pg_views",
	"pg_catalog.pg_indexes",
	"sqlite_master",
	"sqlite_schema",
}

// forbiddenWords may not appear anywhere in a statement outside quotes.
// Leading position is covered separately.
var forbiddenWords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
	"DROP": true, "ALTER": true, "TRUNCATE": true, "CREATE": true,
	"GRANT": true, "REVOKE": true, "INTO": true, "REPLACE": true,
	"EXEC": true, "EXECUTE": true, "COPY": true, "ATTACH": true,
	"DETACH": true, "PRAGMA": true, "VACUUM": true,
}

// forbiddenFunctions have side effects or reach outside the database
var forbiddenFunctions = map[string]bool{
	"pg_sleep": true, "pg_terminate_backend": true, "pg_cancel_backend": true,
	"pg_reload_conf": true, "pg_read_file": true, "pg_read_binary_file": true,
	"pg_ls_dir": true, "lo_import": true, "lo_export": true, "dblink": true,
	"dblink_exec": true, "set_config": true, "setval": true, "nextval": true,
	"load_extension": true, "readfile": true, "writefile": true,
}

// clauseWords end a table reference; an identifier after a table name
// that is not one of these is an alias
var clauseWords = map[string]bool{
	"WHERE": true, "JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "OUTER": true, "CROSS": true, "NATURAL": true, "ON": true,
	"USING": true, "GROUP": true, "ORDER": true, "LIMIT": true, "OFFSET": true,
	"HAVING": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
	"WINDOW": true, "FETCH": true, "FOR": true, "RETURNING": true,
	"TABLESAMPLE": true, "AS": true, "SELECT": true, "WITH": true,
}

// nonFunctionWords precede a parenthesis that is not a function call
var nonFunctionWords = map[string]bool{
	"IN": true, "EXISTS": true, "FROM": true, "JOIN": true, "AS": true,
	"ON": true, "ANY": true, "ALL": true, "SOME": true, "ARRAY": true,
	"LATERAL": true, "USING": true, "VALUES": true, "OVER": true,
	"WITH": true, "SELECT": true, "WHERE": true, "AND": true, "OR": true,
	"NOT": true, "BY": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
	"THEN": true, "ELSE": true, "WHEN": true, "CASE": true, "HAVING": true,
	"MATERIALIZED": true, "RECURSIVE": true,
}

// Validator is safe for concurrent use
type Validator struct {
	systemTables []string
}

// New creates a validator. A nil systemTables uses DefaultSystemTables.
func New(systemTables []string) *Validator {
	if systemTables == nil {
		systemTables = DefaultSystemTables
	}
	return &Validator{systemTables: systemTables}
}

// Validate checks sql against every rule. allowedTables are the tables the
// statement may read; system tables are always permitted.
func (v *Validator) Validate(sql string, allowedTables []string, limits Limits) *Outcome {
	limits = limits.normalized()
	toks, lx := tokenize(sql)
	s := newStatement(sql, toks)

	out := &Outcome{Timeout: limits.Timeout}
	add := func(rule Rule, kind apperr.Kind, format string, args ...interface{}) {
		out.Violations = append(out.Violations, Violation{Rule: rule, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	if len(s.body) == 0 {
		add(RuleReadOnly, apperr.UnsafeOperation, "statement is empty")
		return v.finish(out, sql)
	}
	if lx.unterminated {
		add(RuleMalformed, apperr.SuspiciousQuery, "unterminated quoted text or comment")
	}
	if s.unbalanced {
		add(RuleMalformed, apperr.SuspiciousQuery, "unbalanced parentheses")
	}
	for _, c := range lx.comments {
		add(RuleComment, apperr.SuspiciousQuery, "comment sequence %q is not allowed", truncate(c.text, 40))
	}

	if msg := s.leadingStatement(); msg != "" {
		add(RuleReadOnly, apperr.UnsafeOperation, "%s", msg)
	}
	for _, msg := range s.forbidden() {
		add(RuleReadOnly, apperr.UnsafeOperation, "%s", msg)
	}
	if s.stacked() {
		add(RuleSingleStatement, apperr.UnsafeOperation, "multiple statements are not allowed")
	}
	for _, ref := range s.tableRefs() {
		if !v.permitted(ref, allowedTables) {
			add(RuleAllowedTables, apperr.UnsafeOperation, "table %s is not among the allowed tables", ref)
		}
	}
	if s.tautology() {
		add(RuleTautology, apperr.SuspiciousQuery, "always-true condition appended with OR")
	}

	stmt, limit, err := s.applyLimit(limits)
	if err != "" {
		add(RuleRowLimit, apperr.UnsafeOperation, "%s", err)
	}

	if len(out.Violations) == 0 {
		out.Passed = true
		out.Statement = stmt
		out.Limit = limit
	}
	return v.finish(out, sql)
}

func (v *Validator) finish(out *Outcome, sql string) *Outcome {
	if out.Passed {
		logging.Debug("sql_validated", "limit", out.Limit, "timeout_ms", out.Timeout.Milliseconds())
	} else {
		logging.Info("sql_rejected", "rules", out.Rules(), "sql_preview", truncate(sql, 100))
	}
	return out
}

func (v *Validator) permitted(ref string, allowed []string) bool {
	for _, name := range v.systemTables {
		if nameMatches(ref, name) {
			return true
		}
	}
	for _, name := range allowed {
		if nameMatches(ref, name) {
			return true
		}
	}
	return false
}

// nameMatches compares table names case-insensitively. An unqualified
// name on either side matches any schema.
func nameMatches(ref, entry string) bool {
	ref, entry = strings.ToLower(ref), strings.ToLower(entry)
	if ref == entry {
		return true
	}
	if strings.HasSuffix(entry, ".*") {
		return strings.HasPrefix(ref, strings.TrimSuffix(entry, "*"))
	}
	if lastPart(ref) != lastPart(entry) {
		return false
	}
	return !strings.Contains(ref, ".") || !strings.Contains(entry, ".")
}

func lastPart(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// statement is a tokenised statement with nesting information
type statement struct {
	input string
	toks  []token
	// body excludes trailing semicolons and EOF
	body []token
	// depth[i] is the parenthesis depth token i sits at
	depth []int
	// inCall[i] is set when token i is inside a function call's parentheses
	inCall     []bool
	unbalanced bool
}

func newStatement(input string, toks []token) *statement {
	s := &statement{input: input, toks: toks}

	n := len(toks) - 1 // EOF
	for n > 0 && toks[n-1].is(";") {
		n--
	}
	s.body = toks[:n]

	s.depth = make([]int, len(toks))
	s.inCall = make([]bool, len(toks))
	var frames []bool
	for i, t := range toks {
		if t.is(")") {
			if len(frames) == 0 {
				s.unbalanced = true
			} else {
				frames = frames[:len(frames)-1]
			}
		}
		s.depth[i] = len(frames)
		if len(frames) > 0 {
			s.inCall[i] = frames[len(frames)-1]
		}
		if t.is("(") {
			frames = append(frames, s.isCallParen(i))
		}
	}
	if len(frames) != 0 {
		s.unbalanced = true
	}
	return s
}

// at returns token i, or EOF past the end
func (s *statement) at(i int) token {
	if i < 0 || i >= len(s.toks) {
		return s.toks[len(s.toks)-1]
	}
	return s.toks[i]
}

func (s *statement) isCallParen(i int) bool {
	prev := s.at(i - 1)
	if i == 0 || prev.kind != tokIdent && prev.kind != tokQuotedIdent {
		return false
	}
	if nonFunctionWords[prev.word()] {
		return false
	}
	switch s.at(i + 1).word() {
	case "SELECT", "WITH", "VALUES":
		return false
	}
	return true
}

// matching returns the index of the parenthesis closing the one at i
func (s *statement) matching(i int) int {
	depth := 0
	for j := i; j < len(s.toks); j++ {
		switch {
		case s.toks[j].is("("):
			depth++
		case s.toks[j].is(")"):
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(s.toks) - 1
}

// leadingStatement returns a message when the statement is not a query
func (s *statement) leadingStatement() string {
	i := 0
	for s.at(i).is("(") {
		i++
	}
	first := s.at(i)
	switch first.word() {
	case "SELECT":
		return ""
	case "WITH":
		_, end := s.cteNames(i)
		j := end
		for s.at(j).is("(") {
			j++
		}
		if w := s.at(j).word(); w != "SELECT" {
			if w == "" {
				w = s.at(j).text
			}
			return fmt.Sprintf("common table expression must end in SELECT, found %s", strings.ToUpper(w))
		}
		return ""
	default:
		return fmt.Sprintf("only SELECT statements are allowed, found %s", strings.ToUpper(first.text))
	}
}

// cteNames parses the WITH list starting at token i and returns the
// defined names and the index just past the list
func (s *statement) cteNames(i int) ([]string, int) {
	j := i + 1
	if s.at(j).word() == "RECURSIVE" {
		j++
	}
	var names []string
	for {
		name := s.at(j)
		if name.kind != tokIdent && name.kind != tokQuotedIdent {
			return names, j
		}
		names = append(names, unquote(name))
		j++
		if s.at(j).is("(") {
			j = s.matching(j) + 1
		}
		if s.at(j).word() != "AS" {
			return names, j
		}
		j++
		if s.at(j).word() == "NOT" {
			j++
		}
		if s.at(j).word() == "MATERIALIZED" {
			j++
		}
		if !s.at(j).is("(") {
			return names, j
		}
		j = s.matching(j) + 1
		if !s.at(j).is(",") {
			return names, j
		}
		j++
	}
}

// forbidden reports write keywords, locking clauses and side-effecting
// functions anywhere in the statement
func (s *statement) forbidden() []string {
	var msgs []string
	seen := map[string]bool{}
	report := func(key, msg string) {
		if !seen[key] {
			seen[key] = true
			msgs = append(msgs, msg)
		}
	}

	for i, t := range s.toks {
		if t.kind != tokIdent {
			continue
		}
		w := t.word()
		call := s.at(i + 1).is("(")
		// column and schema qualifiers such as o.update
		dotted := s.at(i-1).is(".") || s.at(i+1).is(".")
		switch {
		case dotted && !call:
		case forbiddenWords[w] && !(w == "REPLACE" && call):
			report(w, fmt.Sprintf("%s is not allowed in a read-only query", w))
		case w == "FOR":
			switch s.at(i + 1).word() {
			case "UPDATE", "SHARE", "NO", "KEY":
				report("FOR", "row locking clauses are not allowed")
			}
		case call && forbiddenFunctions[strings.ToLower(t.text)]:
			report(w, fmt.Sprintf("function %s is not allowed", strings.ToLower(t.text)))
		}
	}
	return msgs
}

// stacked reports a semicolon followed by another statement
func (s *statement) stacked() bool {
	for _, t := range s.body {
		if t.is(";") {
			return true
		}
	}
	return false
}

// tableRefs returns every table named after FROM or JOIN, excluding
// common table expressions, derived tables and table functions
func (s *statement) tableRefs() []string {
	ctes := map[string]bool{}
	for i, t := range s.toks {
		if t.word() == "WITH" {
			names, _ := s.cteNames(i)
			for _, n := range names {
				ctes[strings.ToLower(n)] = true
			}
		}
	}

	var refs []string
	for i, t := range s.toks {
		w := t.word()
		if w != "FROM" && w != "JOIN" || s.at(i-1).is(".") {
			continue
		}
		if w == "FROM" {
			// EXTRACT(x FROM y), SUBSTRING(x FROM 1), IS DISTINCT FROM
			if s.inCall[i] {
				continue
			}
			if s.at(i-1).word() == "DISTINCT" {
				continue
			}
		}
		for _, ref := range s.fromList(i+1, w == "FROM") {
			if !strings.Contains(ref, ".") && ctes[strings.ToLower(ref)] {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

func (s *statement) fromList(j int, commaList bool) []string {
	var refs []string
	for {
		for {
			w := s.at(j).word()
			if w != "LATERAL" && w != "ONLY" {
				break
			}
			j++
		}

		t := s.at(j)
		switch {
		case t.is("("):
			j = s.matching(j) + 1
		case t.kind == tokIdent && !clauseWords[t.word()] || t.kind == tokQuotedIdent:
			name, next := s.qualifiedName(j)
			if s.at(next).is("(") {
				j = s.matching(next) + 1
			} else {
				refs = append(refs, name)
				j = next
			}
		default:
			return refs
		}

		if s.at(j).word() == "AS" {
			j += 2
		} else if a := s.at(j); a.kind == tokQuotedIdent || a.kind == tokIdent && !clauseWords[a.word()] {
			j++
		}
		if s.at(j).is("(") {
			j = s.matching(j) + 1
		}
		if !commaList || !s.at(j).is(",") {
			return refs
		}
		j++
	}
}

func (s *statement) qualifiedName(j int) (string, int) {
	parts := []string{unquote(s.at(j))}
	j++
	for s.at(j).is(".") {
		next := s.at(j + 1)
		if next.kind != tokIdent && next.kind != tokQuotedIdent {
			break
		}
		parts = append(parts, unquote(next))
		j += 2
	}
	return strings.Join(parts, "."), j
}

// tautology looks for OR followed by a condition that is always true
func (s *statement) tautology() bool {
	for i, t := range s.toks {
		if t.word() == "OR" && s.alwaysTrue(i+1) {
			return true
		}
	}
	return false
}

func (s *statement) alwaysTrue(j int) bool {
	for s.at(j).is("(") {
		j++
	}
	a := s.at(j)
	if ends(s.at(j + 1)) {
		switch a.kind {
		case tokIdent:
			return a.word() == "TRUE"
		case tokNumber:
			f, err := strconv.ParseFloat(a.text, 64)
			return err == nil && f != 0
		case tokString:
			return unquote(a) != ""
		}
		return false
	}

	op, b := s.at(j+1), s.at(j+2)
	if !ends(s.at(j + 3)) {
		return false
	}
	if op.word() == "LIKE" {
		return a.kind == tokString && b.kind == tokString && unquote(a) == unquote(b) ||
			b.kind == tokString && unquote(b) == "%"
	}
	if op.kind != tokSymbol {
		return false
	}
	switch {
	case a.kind == tokNumber && b.kind == tokNumber:
		x, errA := strconv.ParseFloat(a.text, 64)
		y, errB := strconv.ParseFloat(b.text, 64)
		if errA != nil || errB != nil {
			return false
		}
		return compare(op.text, x < y, x == y)
	case a.kind == tokString && b.kind == tokString:
		x, y := unquote(a), unquote(b)
		return compare(op.text, x < y, x == y)
	case a.kind == tokIdent && b.kind == tokIdent && a.word() != "NULL":
		return op.text == "=" && strings.EqualFold(a.text, b.text)
	}
	return false
}

func compare(op string, less, equal bool) bool {
	switch op {
	case "=":
		return equal
	case "<>", "!=":
		return !equal
	case "<":
		return less
	case "<=":
		return less || equal
	case ">":
		return !less && !equal
	case ">=":
		return !less
	}
	return false
}

// ends reports whether t can follow a complete condition
func ends(t token) bool {
	return t.kind == tokEOF || t.kind == tokIdent || t.is(")") || t.is(";") || t.is(",")
}

// applyLimit clamps or injects the top-level row limit and renders the
// canonical statement. A non-empty message means the limit could not be
// enforced.
func (s *statement) applyLimit(limits Limits) (string, int, string) {
	replace := map[int]string{}
	insert := map[int]string{}
	limit := 0

	limitAt, fetchAt, offsetAt := -1, -1, -1
	for i, t := range s.body {
		if s.depth[i] != 0 || s.at(i-1).is(".") {
			continue
		}
		switch t.word() {
		case "LIMIT":
			limitAt = i
		case "FETCH":
			fetchAt = i
		case "OFFSET":
			if offsetAt < 0 {
				offsetAt = i
			}
		}
	}

	clamp := func(i int) string {
		n, err := strconv.Atoi(s.at(i).text)
		if err != nil || n < 0 {
			return fmt.Sprintf("row limit %s is not a whole number", s.at(i).text)
		}
		if n > limits.MaxRows {
			replace[i] = strconv.Itoa(limits.MaxRows)
			n = limits.MaxRows
		}
		limit = n
		return ""
	}

	switch {
	case limitAt >= 0:
		count := limitAt + 1
		next := s.at(count)
		switch {
		case next.word() == "ALL" || next.word() == "NULL":
			if !endsLimit(s.at(count + 1)) {
				return "", 0, "row limit must be a literal number"
			}
			replace[count] = strconv.Itoa(limits.DefaultRows)
			limit = limits.DefaultRows
		case next.kind == tokNumber:
			// SQLite LIMIT offset, count
			if s.at(count+1).is(",") && s.at(count+2).kind == tokNumber {
				count += 2
			}
			// LIMIT 1 + 99999 would be clamped on 1 and run unbounded
			if !endsLimit(s.at(count + 1)) {
				return "", 0, "row limit must be a literal number"
			}
			if msg := clamp(count); msg != "" {
				return "", 0, msg
			}
		default:
			return "", 0, "row limit must be a literal number"
		}
	case fetchAt >= 0:
		j := fetchAt + 1
		if w := s.at(j).word(); w == "FIRST" || w == "NEXT" {
			j++
		}
		if s.at(j).kind == tokNumber {
			if w := s.at(j + 1).word(); w != "ROW" && w != "ROWS" {
				return "", 0, "row limit must be a literal number"
			}
			if msg := clamp(j); msg != "" {
				return "", 0, msg
			}
		} else if w := s.at(j).word(); w == "ROW" || w == "ROWS" {
			limit = 1
		} else {
			return "", 0, "row limit must be a literal number"
		}
	default:
		clause := fmt.Sprintf("LIMIT %d", limits.DefaultRows)
		if offsetAt >= 0 {
			insert[offsetAt] = clause + " "
		} else {
			insert[len(s.body)] = " " + clause
		}
		limit = limits.DefaultRows
	}

	return s.render(replace, insert), limit, ""
}

// endsLimit reports whether t may follow the row count of a LIMIT clause
func endsLimit(t token) bool {
	switch t.word() {
	case "OFFSET", "FOR", "FETCH":
		return true
	}
	return t.kind == tokEOF || t.is(")") || t.is(";")
}

// render rebuilds the body with every whitespace run collapsed to one
// space, applying token replacements and insertions
func (s *statement) render(replace, insert map[int]string) string {
	var sb strings.Builder
	for i, t := range s.body {
		if i > 0 && t.start > s.body[i-1].end {
			sb.WriteByte(' ')
		}
		sb.WriteString(insert[i])
		if r, ok := replace[i]; ok {
			sb.WriteString(r)
		} else {
			sb.WriteString(s.input[t.start:t.end])
		}
	}
	sb.WriteString(insert[len(s.body)])
	return sb.String()
}
