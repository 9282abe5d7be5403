/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"fmt"
	"math"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
)

// ValidateStringParam validates and extracts a required string parameter from args
// Returns the string value and a ToolResponse error if validation fails
func ValidateStringParam(args map[string]interface{}, name string) (string, *mcp.ToolResponse) {
	value, ok := args[name].(string)
	if !ok || value == "" {
		resp, _ := mcp.NewToolError(fmt.Sprintf("Missing or invalid '%s' argument", name))
		return "", &resp
	}
	return value, nil
}

// ValidateOptionalStringParam validates and extracts an optional string parameter
// Returns the string value (or defaultValue if not present)
func ValidateOptionalStringParam(args map[string]interface{}, name string, defaultValue string) string {
	value, ok := args[name].(string)
	if !ok {
		return defaultValue
	}
	return value
}

// ValidateOptionalIntParam extracts an optional whole-number parameter.
// JSON numbers arrive as float64; fractional values are rejected.
func ValidateOptionalIntParam(args map[string]interface{}, name string, defaultValue int) (int, *mcp.ToolResponse) {
	raw, present := args[name]
	if !present || raw == nil {
		return defaultValue, nil
	}
	value, ok := raw.(float64)
	if !ok || value != math.Trunc(value) {
		resp, _ := mcp.NewToolError(fmt.Sprintf("Error: %s must be a whole number", name))
		return 0, &resp
	}
	return int(value), nil
}

// ValidateBoolParam validates and extracts an optional boolean parameter
// Returns the bool value (or defaultValue if not present)
func ValidateBoolParam(args map[string]interface{}, name string, defaultValue bool) bool {
	value, ok := args[name].(bool)
	if !ok {
		return defaultValue
	}
	return value
}

// ValidateFormatParam extracts the optional output format
func ValidateFormatParam(args map[string]interface{}, defaultFormat formatter.Format) (formatter.Format, *mcp.ToolResponse) {
	name := ValidateOptionalStringParam(args, "format", "")
	if name == "" {
		return defaultFormat, nil
	}
	format, err := formatter.ParseFormat(name)
	if err != nil {
		resp, _ := mcp.NewToolError(fmt.Sprintf("Error: %v", err))
		return "", &resp
	}
	return format, nil
}
