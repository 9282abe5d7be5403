/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
)

// LogLevel represents the logging verbosity level for database operations
type LogLevel int32

const (
	// LogLevelNone disables all database logging
	LogLevelNone LogLevel = iota
	// LogLevelInfo logs connections, queries and errors
	LogLevelInfo
	// LogLevelDebug adds metadata loading, pool and statement details
	LogLevelDebug
	// LogLevelTrace adds full statement text
	LogLevelTrace
)

// EnvDBLogLevel controls database operation logging
const EnvDBLogLevel = "NLDB_DB_LOG_LEVEL"

var dbLogLevel atomic.Int32

func init() {
	dbLogLevel.Store(int32(ParseLogLevel(os.Getenv(EnvDBLogLevel))))
}

// ParseLogLevel maps none|info|debug|trace; anything else is none
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	case "trace":
		return LogLevelTrace
	default:
		return LogLevelNone
	}
}

// SetLogLevel sets the database log level
func SetLogLevel(level LogLevel) {
	dbLogLevel.Store(int32(level))
}

// GetLogLevel returns the current database log level
func GetLogLevel() LogLevel {
	return LogLevel(dbLogLevel.Load())
}

// LogConnection logs a connection attempt
func LogConnection(connStr string, duration time.Duration, err error) {
	if GetLogLevel() < LogLevelInfo {
		return
	}
	if err != nil {
		logging.Warn("db_connection_failed",
			"connection", sanitizeConnStr(connStr), "duration", duration.String(), "error", err)
		return
	}
	logging.Info("db_connected",
		"connection", sanitizeConnStr(connStr), "duration", duration.String())
}

// LogConnectionDetails logs pool configuration
func LogConnectionDetails(connStr string, poolConfig map[string]interface{}) {
	if GetLogLevel() < LogLevelDebug {
		return
	}
	logging.Debug("db_pool_config", "connection", sanitizeConnStr(connStr), "pool_config", poolConfig)
}

// LogMetadataLoad logs a schema discovery
func LogMetadataLoad(connStr string, tableCount int, duration time.Duration, err error) {
	if GetLogLevel() < LogLevelInfo {
		return
	}
	if err != nil {
		logging.Warn("db_metadata_failed",
			"connection", sanitizeConnStr(connStr), "duration", duration.String(), "error", err)
		return
	}
	logging.Info("db_metadata_loaded",
		"connection", sanitizeConnStr(connStr), "table_count", tableCount, "duration", duration.String())
}

// LogMetadataDetails logs discovery counts
func LogMetadataDetails(connStr string, schemaCount, tableCount, columnCount int) {
	if GetLogLevel() < LogLevelDebug {
		return
	}
	logging.Debug("db_metadata_details",
		"connection", sanitizeConnStr(connStr),
		"schema_count", schemaCount,
		"table_count", tableCount,
		"column_count", columnCount)
}

// LogQuery logs a finished statement
func LogQuery(query string, duration time.Duration, rowCount int, err error) {
	if GetLogLevel() < LogLevelInfo {
		return
	}
	preview := truncate(strings.TrimSpace(query), 100)
	if err != nil {
		logging.Warn("db_query_failed", "query", preview, "duration", duration.String(), "error", err)
		return
	}
	logging.Info("db_query", "query", preview, "row_count", rowCount, "duration", duration.String())
}

// LogQueryDetails logs a statement about to run
func LogQueryDetails(query string, args []interface{}) {
	switch level := GetLogLevel(); {
	case level >= LogLevelTrace:
		logging.Debug("db_query_start", "query", strings.TrimSpace(query), "args", args)
	case level >= LogLevelDebug:
		logging.Debug("db_query_start", "query", truncate(strings.TrimSpace(query), 200), "arg_count", len(args))
	}
}

// LogPoolStats logs connection pool statistics
func LogPoolStats(connStr string, acquiredConns, idleConns, maxConns int32) {
	if GetLogLevel() < LogLevelDebug {
		return
	}
	logging.Debug("db_pool_stats",
		"connection", sanitizeConnStr(connStr),
		"acquired", acquiredConns, "idle", idleConns, "max", maxConns)
}

// sanitizeConnStr removes password from connection string for logging
func sanitizeConnStr(connStr string) string {
	schemeIdx := strings.Index(connStr, "://")
	if schemeIdx == -1 {
		return sanitizeKeyValueDSN(connStr)
	}

	scheme := connStr[:schemeIdx+3]
	rest := connStr[schemeIdx+3:]

	// the last @ before the path separates credentials, so passwords may contain @
	end := len(rest)
	if i := strings.IndexAny(rest, "/?"); i != -1 {
		end = i
	}
	hostSepIdx := strings.LastIndex(rest[:end], "@")
	if hostSepIdx == -1 {
		return connStr
	}

	credentials := rest[:hostSepIdx]
	hostAndRest := rest[hostSepIdx+1:]

	colonIdx := strings.Index(credentials, ":")
	if colonIdx == -1 {
		return connStr
	}

	return scheme + credentials[:colonIdx] + ":***@" + hostAndRest
}

// sanitizeKeyValueDSN masks password=... in a key/value DSN
func sanitizeKeyValueDSN(dsn string) string {
	fields := strings.Fields(dsn)
	changed := false
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = f[:len("password=")] + "***"
			changed = true
		}
	}
	if !changed {
		return dsn
	}
	return strings.Join(fields, " ")
}

// truncate truncates a string to maxLen characters, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
