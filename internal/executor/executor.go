/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package executor runs validated statements against the registered
// databases under the pool-wait and statement-timeout budgets.
package executor

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/database"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/validator"
)

const (
	defaultPoolWait = 5 * time.Second
	defaultTimeout  = 30 * time.Second
	cancelTimeout   = 5 * time.Second
	planRowLimit    = 1000
)

// Pools resolves a database identifier to its adapter
type Pools interface {
	Adapter(ctx context.Context, name string) (database.Adapter, error)
	Config(name string) (config.DatabaseConfig, bool)
}

// Result is the materialised output of one statement
type Result struct {
	Columns   []string
	Rows      []map[string]interface{}
	Truncated bool
	Duration  time.Duration
}

// Executor is safe for concurrent use
type Executor struct {
	pools Pools
	// onStale is told about failures that suggest the cached schema no
	// longer matches the database
	onStale func(database string)
	calls   atomic.Int64
}

// New creates an executor. onStale may be nil.
func New(pools Pools, onStale func(database string)) *Executor {
	return &Executor{pools: pools, onStale: onStale}
}

// Calls returns how many statements have been submitted for execution
func (e *Executor) Calls() int64 {
	return e.calls.Load()
}

// Execute runs a validated statement. The connection is released on
// success and discarded on timeout or cancellation.
func (e *Executor) Execute(ctx context.Context, db string, outcome *validator.Outcome) (*Result, error) {
	if outcome == nil || !outcome.Passed {
		return nil, apperr.New(apperr.InternalError, "statement has not passed validation")
	}
	e.calls.Add(1)
	adapter, err := e.pools.Adapter(ctx, db)
	if err != nil {
		return nil, e.connectError(db, err)
	}
	return e.run(ctx, adapter, outcome.Statement, outcome.Limit, outcome.Timeout)
}

// Plan asks the database for the plan of a validated statement without
// running it
func (e *Executor) Plan(ctx context.Context, db string, outcome *validator.Outcome) (*Result, error) {
	if outcome == nil || !outcome.Passed {
		return nil, apperr.New(apperr.InternalError, "statement has not passed validation")
	}
	adapter, err := e.pools.Adapter(ctx, db)
	if err != nil {
		return nil, e.connectError(db, err)
	}
	return e.run(ctx, adapter, adapter.ExplainPrefix()+outcome.Statement, planRowLimit, outcome.Timeout)
}

func (e *Executor) run(ctx context.Context, adapter database.Adapter, statement string, limit int, timeout time.Duration) (*Result, error) {
	poolWait := defaultPoolWait
	if dbConfig, ok := e.pools.Config(adapter.Name()); ok {
		poolWait = dbConfig.PoolWaitDuration()
		if timeout <= 0 {
			timeout = dbConfig.QueryTimeoutDuration()
		}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	conn, err := e.acquire(ctx, adapter, poolWait)
	if err != nil {
		return nil, err
	}

	// Exactly one of Release or Discard runs, whatever happens below.
	settled := false
	defer func() {
		if !settled {
			conn.Discard()
		}
	}()

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	rows, err := conn.Query(queryCtx, statement, limit)
	duration := time.Since(startTime)

	switch {
	case err == nil:
		settled = true
		conn.Release()
	case ctx.Err() != nil:
		settled = true
		abort(conn)
		return nil, ctx.Err()
	case errors.Is(queryCtx.Err(), context.DeadlineExceeded):
		settled = true
		abort(conn)
		logging.Warn("query_timeout", "database", adapter.Name(), "timeout", timeout.String())
		return nil, apperr.Newf(apperr.QueryTimeout, "statement did not finish within %s", timeout)
	default:
		settled = true
		conn.Release()
		if database.IsMissingObject(err) {
			e.stale(adapter.Name())
		}
		execErr := apperr.Wrap(err, apperr.ExecutionError, err.Error())
		execErr.Code = database.ErrorCode(err)
		return nil, execErr
	}

	columns := uniqueColumns(rows.Columns)
	return &Result{
		Columns:   columns,
		Rows:      toMaps(columns, rows.Values),
		Truncated: rows.Truncated,
		Duration:  duration,
	}, nil
}

// acquire waits up to poolWait for a pooled connection
func (e *Executor) acquire(ctx context.Context, adapter database.Adapter, poolWait time.Duration) (database.Conn, error) {
	waitCtx, cancel := context.WithTimeout(ctx, poolWait)
	defer cancel()

	conn, err := adapter.Acquire(waitCtx)
	if err == nil {
		return conn, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
		stats := adapter.Stats()
		logging.Warn("pool_exhausted",
			"database", adapter.Name(),
			"wait", poolWait.String(),
			"acquired", stats.Acquired,
			"max", stats.Max)
		return nil, apperr.Newf(apperr.PoolExhausted, "no connection to %s became free within %s", adapter.Name(), poolWait)
	}
	return nil, e.connectError(adapter.Name(), err)
}

func (e *Executor) connectError(db string, err error) error {
	var classified *apperr.Error
	if errors.As(err, &classified) {
		return err
	}
	e.stale(db)
	return apperr.Wrapf(err, apperr.ExecutionError, "could not connect to database %s", db)
}

func (e *Executor) stale(db string) {
	if e.onStale != nil {
		e.onStale(db)
	}
}

// abort cancels the running statement where the driver supports it and
// closes the connection
func abort(conn database.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := conn.Cancel(ctx); err != nil && !errors.Is(err, database.ErrCancelUnsupported) {
		logging.Debug("query_cancel_failed", "error", err)
	}
	conn.Discard()
}

// uniqueColumns suffixes repeated column names so rows can be maps. A
// suffixed name never takes the name of another result column.
func uniqueColumns(columns []string) []string {
	out := make([]string, len(columns))
	reserved := make(map[string]bool, len(columns))
	for _, c := range columns {
		reserved[c] = true
	}
	used := make(map[string]bool, len(columns))
	next := make(map[string]int)
	for i, c := range columns {
		name := c
		if used[name] {
			n := max(next[c], 2)
			for {
				name = c + "_" + strconv.Itoa(n)
				n++
				if !used[name] && !reserved[name] {
					break
				}
			}
			next[c] = n
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func toMaps(columns []string, values [][]interface{}) []map[string]interface{} {
	rows := make([]map[string]interface{}, len(values))
	for i, v := range values {
		row := make(map[string]interface{}, len(columns))
		for j, c := range columns {
			if j < len(v) {
				row[c] = v[j]
			}
		}
		rows[i] = row
	}
	return rows
}
