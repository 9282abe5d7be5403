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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// tsvValue converts a value to a TSV-safe string.
// Handles NULLs, special characters, and complex types.
func tsvValue(v interface{}) string {
	s := rawValue(v)

	// Escape special characters that would break TSV parsing
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}

// rawValue renders a value without display formatting; NULL is empty
func rawValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%v", val)
	case []interface{}, map[string]interface{}:
		// Arrays and JSON objects are serialised as JSON
		jsonBytes, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(jsonBytes)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderTSV returns a header row followed by data rows, tab-separated
func renderTSV(columns []string, rows []map[string]interface{}) string {
	if len(columns) == 0 {
		return ""
	}

	var sb strings.Builder
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = tsvValue(c)
	}
	sb.WriteString(strings.Join(header, "\t"))

	for _, row := range rows {
		sb.WriteString("\n")
		values := make([]string, len(columns))
		for i, c := range columns {
			values[i] = tsvValue(row[c])
		}
		sb.WriteString(strings.Join(values, "\t"))
	}
	return sb.String()
}
