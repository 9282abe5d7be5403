/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package formatter renders query results, errors, explanations and
// metrics as text, markdown, JSON, CSV or TSV.
package formatter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	prettytext "github.com/jedib0t/go-pretty/v6/text"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/analyzer"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/metrics"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// Format selects an output rendering
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatTSV      Format = "tsv"
)

// Formats lists the supported formats
var Formats = []Format{FormatText, FormatMarkdown, FormatJSON, FormatCSV, FormatTSV}

// ParseFormat accepts a format name; empty means text
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "table":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text, markdown, json, csv or tsv)", name)
}

const (
	defaultMaxDisplayRows = 100
	maxCellWidth          = 50
	lowConfidence         = 0.7
)

// Formatter renders in one format. It holds no mutable state.
type Formatter struct {
	format         Format
	maxDisplayRows int
}

// New creates a formatter. maxDisplayRows caps the rows shown in text
// and markdown tables; zero uses 100.
func New(format Format, maxDisplayRows int) *Formatter {
	if format == "" {
		format = FormatText
	}
	if maxDisplayRows <= 0 {
		maxDisplayRows = defaultMaxDisplayRows
	}
	return &Formatter{format: format, maxDisplayRows: maxDisplayRows}
}

// OutputFormat returns the format this formatter renders
func (f *Formatter) OutputFormat() Format {
	return f.format
}

func (f *Formatter) markdown() bool {
	return f.format == FormatMarkdown
}

// heading renders a section label
func (f *Formatter) heading(label string) string {
	if f.markdown() {
		return "**" + label + ":**"
	}
	return label + ":"
}

func (f *Formatter) codeBlock(sql string) string {
	if f.markdown() {
		return "```sql\n" + sql + "\n```"
	}
	return "  " + sql
}

func toJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// noResultsMarker is the whole csv/tsv output for a result without rows
const noResultsMarker = "no results"

// RenderResult renders a completed query. A result without rows always
// yields an explicit no-results message, including the csv and tsv formats.
func (f *Formatter) RenderResult(r *query.Result) string {
	switch f.format {
	case FormatJSON:
		return toJSON(r)
	case FormatCSV:
		// a lone header line reads as an empty table, not as no results
		if len(r.Columns) == 0 || len(r.Rows) == 0 {
			return noResultsMarker
		}
		return strings.TrimRight(f.newTable(r.Columns, r.Rows, false).RenderCSV(), "\n")
	case FormatTSV:
		if len(r.Columns) == 0 || len(r.Rows) == 0 {
			return noResultsMarker
		}
		return renderTSV(r.Columns, r.Rows)
	}

	if len(r.Rows) == 0 {
		return f.noResults(r)
	}

	var parts []string
	if answer := singleValue(r); answer != "" {
		parts = append(parts, f.heading("Answer")+" "+answer, "")
	}
	if r.Explanation != "" {
		parts = append(parts, f.heading("Explanation")+" "+r.Explanation, "")
	}
	parts = append(parts, f.heading("Summary")+" "+summary(r), "")
	parts = append(parts, f.heading("Results"), f.renderTable(r.Columns, r.Rows))

	shown := len(r.Rows)
	if shown > f.maxDisplayRows {
		parts = append(parts, "", f.emphasis(fmt.Sprintf("Showing first %d of %d results", f.maxDisplayRows, shown)))
	}
	if r.Truncated {
		parts = append(parts, "", f.emphasis(fmt.Sprintf("Results were limited to %d rows", shown)))
	}
	if r.Note != "" {
		parts = append(parts, "", f.heading("Note")+" "+r.Note)
	}
	if r.Confidence < lowConfidence {
		parts = append(parts, "", f.emphasis("Note: This query has moderate confidence. Please verify the results."))
	}
	return strings.Join(parts, "\n")
}

func (f *Formatter) emphasis(s string) string {
	if f.markdown() {
		return "*" + s + "*"
	}
	return s
}

func (f *Formatter) noResults(r *query.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\n", f.heading("No results found for"), r.Question)
	sb.WriteString(f.heading("Possible reasons") + "\n")
	for _, reason := range []string{
		"The filters might be too restrictive",
		"The data might not exist in the database",
		"The query might need adjustment",
	} {
		fmt.Fprintf(&sb, "- %s\n", reason)
	}
	if r.SQL != "" {
		fmt.Fprintf(&sb, "\n%s\n%s", f.heading("SQL Query Used"), f.codeBlock(r.SQL))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// summary renders "Found N results (executed in X)"
func summary(r *query.Result) string {
	found := "Found 1 result"
	if r.RowCount != 1 {
		found = fmt.Sprintf("Found %s results", groupDigits(strconv.Itoa(r.RowCount)))
	}
	d := r.Duration
	if d == 0 && r.DurationMS > 0 {
		d = time.Duration(r.DurationMS) * time.Millisecond
	}
	if d < time.Second {
		return fmt.Sprintf("%s (executed in %dms)", found, d.Milliseconds())
	}
	return fmt.Sprintf("%s (executed in %.2fs)", found, d.Seconds())
}

// singleValue phrases a one-cell aggregate as a sentence
func singleValue(r *query.Result) string {
	if len(r.Rows) != 1 || len(r.Columns) != 1 {
		return ""
	}
	col := r.Columns[0]
	v := r.Rows[0][col]
	if !r.Intent.IsAggregation() && !isNumber(v) {
		return ""
	}
	return fmt.Sprintf("The %s is %s.", humanize(col), displayValue(v))
}

func humanize(column string) string {
	name := column
	if i := strings.Index(name, "("); i > 0 {
		name = name[:i]
	}
	name = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
	if name == "" {
		return "result"
	}
	return name
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func (f *Formatter) newTable(columns []string, rows []map[string]interface{}, display bool) table.Writer {
	t := table.NewWriter()
	style := table.StyleLight
	style.Format.Header = prettytext.FormatDefault
	t.SetStyle(style)

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for i, row := range rows {
		if display && i >= f.maxDisplayRows {
			break
		}
		cells := make(table.Row, len(columns))
		for j, c := range columns {
			if display {
				cells[j] = displayValue(row[c])
			} else {
				cells[j] = rawValue(row[c])
			}
		}
		t.AppendRow(cells)
	}
	return t
}

func (f *Formatter) renderTable(columns []string, rows []map[string]interface{}) string {
	t := f.newTable(columns, rows, true)
	if f.markdown() {
		return t.RenderMarkdown()
	}
	return t.Render()
}

// displayValue formats a value for people: grouped digits, short dates
// and truncated long text
func displayValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return groupDigits(fmt.Sprintf("%d", val))
	case float32:
		return groupDigits(strconv.FormatFloat(float64(val), 'f', 2, 32))
	case float64:
		return groupDigits(strconv.FormatFloat(val, 'f', 2, 64))
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return val.Format(time.DateOnly)
		}
		return val.Format("2006-01-02 15:04")
	}
	s := rawValue(v)
	if utf8.RuneCountInString(s) > maxCellWidth {
		runes := []rune(s)
		s = string(runes[:maxCellWidth-3]) + "..."
	}
	return s
}

// groupDigits inserts thousands separators into a decimal number
func groupDigits(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var sb strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		sb.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(intPart[i : i+3])
	}
	return sign + sb.String() + frac
}

// RenderError renders a failed query with its suggestions
func (f *Formatter) RenderError(e *query.Error) string {
	if f.format == FormatJSON {
		return toJSON(e)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (%s)\n", f.heading("Error"), e.Message, e.Kind)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", f.heading("Suggestions"))
		for _, s := range e.Suggestions {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
	}
	if e.SQL != "" {
		fmt.Fprintf(&sb, "\n%s\n%s\n", f.heading("SQL Query"), f.codeBlock(e.SQL))
	}
	return strings.TrimRight(sb.String(), "\n")
}

var intentDescriptions = map[analyzer.Intent]string{
	analyzer.IntentRetrieval:    "lists the matching rows",
	analyzer.IntentCount:        "counts the matching rows",
	analyzer.IntentSum:          "adds up the requested values",
	analyzer.IntentAvg:          "averages the requested values",
	analyzer.IntentComparison:   "compares the requested groups",
	analyzer.IntentRanking:      "ranks rows and keeps the top entries",
	analyzer.IntentTimeFiltered: "filters rows to the requested time range",
	analyzer.IntentUnknown:      "answers the question",
}

// ConfidenceLabel buckets a confidence score
func ConfidenceLabel(c float64) string {
	switch {
	case c >= 0.8:
		return "High"
	case c >= 0.6:
		return "Moderate"
	default:
		return "Low"
	}
}

// RenderExplanation renders a statement that was translated but not run
func (f *Formatter) RenderExplanation(x *query.Explanation) string {
	if f.format == FormatJSON {
		return toJSON(x)
	}

	var parts []string
	how := x.Description
	if how == "" {
		how = fmt.Sprintf("This query %s", intentDescriptions[x.Intent])
		if len(x.Tables) > 0 {
			how += " from " + strings.Join(x.Tables, ", ")
		}
		how += "."
	}
	parts = append(parts, f.heading("How this query works")+" "+how)
	parts = append(parts, "", f.heading("SQL Query"), f.codeBlock(x.SQL))
	parts = append(parts, "", fmt.Sprintf("%s %s (%.1f%%)", f.heading("Confidence"), ConfidenceLabel(x.Confidence), x.Confidence*100))
	if len(x.Tables) > 0 {
		parts = append(parts, "", f.heading("Tables used")+" "+strings.Join(x.Tables, ", "))
	}
	if len(x.JoinPath) > 0 {
		parts = append(parts, "", f.heading("Join path"))
		for _, j := range x.JoinPath {
			parts = append(parts, "- "+j)
		}
	}
	parts = append(parts, "", fmt.Sprintf("%s %d rows, timeout %s",
		f.heading("Limits"), x.Limit, time.Duration(x.TimeoutMS)*time.Millisecond))
	if x.Note != "" {
		parts = append(parts, "", f.heading("Note")+" "+x.Note)
	}
	if len(x.Plan) > 0 {
		parts = append(parts, "", f.heading("Query plan"), f.renderPlan(x))
	}
	return strings.Join(parts, "\n")
}

// RenderValidation renders the safety check of a caller-supplied statement
func (f *Formatter) RenderValidation(v *query.Validation) string {
	if f.format == FormatJSON {
		return toJSON(v)
	}

	var parts []string
	if v.Valid {
		parts = append(parts, f.heading("Valid")+" the statement passes every safety rule for "+v.Database)
		parts = append(parts, "", f.heading("Statement that would run"), f.codeBlock(v.Statement))
		parts = append(parts, "", fmt.Sprintf("%s %d rows, timeout %s",
			f.heading("Limits"), v.Limit, time.Duration(v.TimeoutMS)*time.Millisecond))
		return strings.Join(parts, "\n")
	}

	parts = append(parts, f.heading("Invalid")+" the statement was rejected for "+v.Database)
	parts = append(parts, "", f.heading("SQL"), f.codeBlock(v.SQL))
	parts = append(parts, "", f.heading("Violations"))
	for _, violation := range v.Violations {
		parts = append(parts, fmt.Sprintf("- %s (%s): %s", violation.Rule, violation.Kind, violation.Message))
	}
	return strings.Join(parts, "\n")
}

// renderPlan shows a single JSON plan document verbatim and anything
// else as a table
func (f *Formatter) renderPlan(x *query.Explanation) string {
	if len(x.Plan) == 1 && len(x.PlanColumns) == 1 {
		v := x.Plan[0][x.PlanColumns[0]]
		switch v.(type) {
		case string, []interface{}, map[string]interface{}:
			doc := rawValue(v)
			var pretty interface{}
			if json.Unmarshal([]byte(doc), &pretty) == nil {
				doc = toJSON(pretty)
			}
			if f.markdown() {
				return "```json\n" + doc + "\n```"
			}
			return doc
		}
	}
	t := f.newTable(x.PlanColumns, x.Plan, false)
	if f.markdown() {
		return t.RenderMarkdown()
	}
	return t.Render()
}

// RenderMetrics renders a metrics snapshot
func (f *Formatter) RenderMetrics(s metrics.Snapshot) string {
	if f.format == FormatJSON {
		return toJSON(s)
	}

	rows := []map[string]interface{}{
		{"metric": "total queries", "value": s.TotalQueries},
		{"metric": "succeeded", "value": s.Succeeded},
		{"metric": "failed", "value": s.Failed},
		{"metric": "in flight", "value": s.InFlight},
		{"metric": "success rate", "value": fmt.Sprintf("%.1f%%", s.SuccessRate*100)},
		{"metric": "average latency (ms)", "value": s.AvgLatencyMS},
		{"metric": "average confidence", "value": s.AvgConfidence},
		{"metric": "uptime", "value": (time.Duration(s.UptimeSeconds) * time.Second).String()},
	}
	for _, k := range sortedKeys(s.FailuresByKind) {
		rows = append(rows, map[string]interface{}{"metric": "failed: " + k, "value": s.FailuresByKind[k]})
	}
	for _, k := range sortedKeys(s.Intents) {
		rows = append(rows, map[string]interface{}{"metric": "intent: " + k, "value": s.Intents[k]})
	}
	stages := make([]string, 0, len(s.StageAvgMS))
	for k := range s.StageAvgMS {
		stages = append(stages, k)
	}
	sort.Strings(stages)
	for _, k := range stages {
		rows = append(rows, map[string]interface{}{"metric": "stage " + k + " (ms)", "value": s.StageAvgMS[k]})
	}

	return f.heading("Metrics") + "\n" + f.renderAll([]string{"metric", "value"}, rows)
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderAll renders a table without the display cap
func (f *Formatter) renderAll(columns []string, rows []map[string]interface{}) string {
	t := table.NewWriter()
	style := table.StyleLight
	style.Format.Header = prettytext.FormatDefault
	t.SetStyle(style)
	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	t.AppendHeader(header)
	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for j, c := range columns {
			cells[j] = displayValue(row[c])
		}
		t.AppendRow(cells)
	}
	if f.markdown() {
		return t.RenderMarkdown()
	}
	return t.Render()
}

// RenderSchema renders a schema snapshot table by table
func (f *Formatter) RenderSchema(g *schema.Graph) string {
	if f.format == FormatJSON {
		return toJSON(g)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (%d tables, %d relationships, discovered %s)\n",
		f.heading("Database"), g.Database, len(g.Tables), len(g.Relationships),
		g.DiscoveredAt.Format(time.RFC3339))

	for i := range g.Tables {
		t := &g.Tables[i]
		kind := strings.ToLower(t.Type)
		if kind == "" {
			kind = "table"
		}
		fmt.Fprintf(&sb, "\n%s %s (%s)\n", f.heading("Table"), t.QualifiedName(), kind)
		if t.Description != "" {
			sb.WriteString(t.Description + "\n")
		}

		rows := make([]map[string]interface{}, len(t.Columns))
		for j, c := range t.Columns {
			nullable := "YES"
			if !c.Nullable {
				nullable = "NO"
			}
			key := ""
			if c.IsKey {
				key = "PK"
			}
			rows[j] = map[string]interface{}{"column": c.Name, "type": c.DataType, "nullable": nullable, "key": key}
		}
		sb.WriteString(f.renderAll([]string{"column", "type", "nullable", "key"}, rows))
		sb.WriteString("\n")

		for _, r := range g.Edges(t.QualifiedName()) {
			if src, ok := g.Table(r.SourceTable); ok && src == t {
				fmt.Fprintf(&sb, "- %s.%s references %s.%s\n", r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
