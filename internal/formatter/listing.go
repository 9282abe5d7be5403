/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package formatter

import (
	"fmt"
	"strings"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/database"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/history"
)

const timestampLayout = "2006-01-02 15:04"

// RenderDatabases renders the registered databases, marking the default
func (f *Formatter) RenderDatabases(dbs []database.Info) string {
	if f.format == FormatJSON {
		return toJSON(dbs)
	}
	if len(dbs) == 0 {
		return "No databases are configured."
	}

	rows := make([]map[string]interface{}, len(dbs))
	for i, db := range dbs {
		def := ""
		if db.Default {
			def = "*"
		}
		state := "idle"
		if db.Connected {
			state = "connected"
		}
		rows[i] = map[string]interface{}{"name": db.Name, "driver": db.Driver, "state": state, "default": def}
	}
	return fmt.Sprintf("%s %d configured\n", f.heading("Databases"), len(dbs)) +
		f.renderAll([]string{"name", "driver", "state", "default"}, rows)
}

// RenderHistory renders recorded questions, newest first
func (f *Formatter) RenderHistory(entries []history.Entry) string {
	if f.format == FormatJSON {
		return toJSON(entries)
	}
	if len(entries) == 0 {
		return "No queries recorded yet."
	}

	rows := make([]map[string]interface{}, len(entries))
	for i, e := range entries {
		outcome := "ok"
		if !e.Succeeded() {
			outcome = e.ErrorKind
		}
		rows[i] = map[string]interface{}{
			"when":     e.CreatedAt.Local().Format(timestampLayout),
			"database": e.Database,
			"question": e.Question,
			"intent":   strings.ToLower(e.Intent),
			"rows":     e.RowCount,
			"ms":       e.DurationMS,
			"outcome":  outcome,
		}
	}
	columns := []string{"when", "database", "question", "intent", "rows", "ms", "outcome"}
	return fmt.Sprintf("%s %d entries\n", f.heading("History"), len(entries)) + f.renderAll(columns, rows)
}

// RenderFrequent renders the most often asked questions
func (f *Formatter) RenderFrequent(groups []history.Frequent) string {
	if f.format == FormatJSON {
		return toJSON(groups)
	}
	if len(groups) == 0 {
		return "No queries recorded yet."
	}

	rows := make([]map[string]interface{}, len(groups))
	for i, g := range groups {
		rows[i] = map[string]interface{}{
			"times":      g.Count,
			"question":   g.Question,
			"last asked": g.LastAsked.Local().Format(timestampLayout),
		}
	}
	return f.heading("Frequent questions") + "\n" + f.renderAll([]string{"times", "question", "last asked"}, rows)
}
