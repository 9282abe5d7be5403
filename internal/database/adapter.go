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
	"context"
	"errors"
	"strings"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// ErrCancelUnsupported is returned by Conn.Cancel when the driver has no
// out-of-band cancellation
var ErrCancelUnsupported = errors.New("statement cancellation not supported")

// ErrClosed is returned when acquiring from a closed adapter
var ErrClosed = errors.New("database adapter closed")

// Adapter is the capability set the pipeline needs from a database. Each
// registered database has one Adapter owning a bounded connection pool.
type Adapter interface {
	// Name is the registered database identifier
	Name() string
	// Driver is "postgres", "sqlite" or "sqlite3"
	Driver() string
	// DiscoverMetadata reads tables, columns, keys and indexes
	DiscoverMetadata(ctx context.Context) (*schema.Graph, error)
	// Acquire blocks until a pooled connection is free or ctx is done
	Acquire(ctx context.Context) (Conn, error)
	// ExplainPrefix is prepended to a statement to obtain its plan
	ExplainPrefix() string
	Stats() PoolStats
	Close()
}

// Conn is a connection checked out of an Adapter's pool. Exactly one of
// Release or Discard must be called.
type Conn interface {
	// Query runs sql and collects at most maxRows rows
	Query(ctx context.Context, sql string, maxRows int) (*Rows, error)
	// Cancel asks the server to abort the statement running on this connection
	Cancel(ctx context.Context) error
	// Release returns a healthy connection to the pool
	Release()
	// Discard closes the connection instead of returning it
	Discard()
}

// Rows is a fully materialised result set
type Rows struct {
	Columns   []string
	Values    [][]interface{}
	Truncated bool // more rows were available than requested
}

// PoolStats is a point-in-time view of a pool
type PoolStats struct {
	Acquired int32 `json:"acquired"`
	Idle     int32 `json:"idle"`
	Max      int32 `json:"max"`
}

// ErrorCode extracts a driver error code such as a PostgreSQL SQLSTATE
func ErrorCode(err error) string {
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		return coded.SQLState()
	}
	return ""
}

// IsMissingObject reports whether err says a referenced table or column
// does not exist, which usually means the cached schema is stale
func IsMissingObject(err error) bool {
	switch ErrorCode(err) {
	case "42P01", "42703":
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column")
}
