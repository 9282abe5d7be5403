/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package resources

import "strings"

// Resource URI constants
const (
	// URIMetrics is the query counters snapshot
	URIMetrics = "nldb://metrics"

	// SchemaURIPrefix is followed by a database name
	SchemaURIPrefix = "nldb://schema/"
)

// SchemaURI returns the schema resource URI of a database
func SchemaURI(database string) string {
	return SchemaURIPrefix + database
}

// ParseSchemaURI extracts the database name from a schema resource URI
func ParseSchemaURI(uri string) (string, bool) {
	if !strings.HasPrefix(uri, SchemaURIPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(uri, SchemaURIPrefix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
