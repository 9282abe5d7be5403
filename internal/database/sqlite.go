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
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	// sqlite (pure Go) and sqlite3 (cgo) drivers
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// SQLiteAdapter serves a SQLite file opened read-only through database/sql.
// The "sqlite" driver is modernc.org/sqlite, "sqlite3" is mattn/go-sqlite3.
type SQLiteAdapter struct {
	name     string
	driver   string
	dsn      string
	db       *sql.DB
	maxConns int
}

// NewSQLiteAdapter opens the database file and verifies it is readable
func NewSQLiteAdapter(ctx context.Context, dbConfig config.DatabaseConfig) (*SQLiteAdapter, error) {
	startTime := time.Now()
	dsn := sqliteDSN(dbConfig.ConnectionString())

	db, err := sql.Open(dbConfig.Driver, dsn)
	if err != nil {
		LogConnection(dsn, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	maxConns := dbConfig.PoolMaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxIdleTime(dbConfig.IdleTimeDuration())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		LogConnection(dsn, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	LogConnection(dsn, time.Since(startTime), nil)
	return newSQLiteAdapter(dbConfig.Name, dbConfig.Driver, dsn, db, maxConns), nil
}

func newSQLiteAdapter(name, driverName, dsn string, db *sql.DB, maxConns int) *SQLiteAdapter {
	return &SQLiteAdapter{
		name:     name,
		driver:   driverName,
		dsn:      dsn,
		db:       db,
		maxConns: maxConns,
	}
}

// sqliteDSN turns a path into a read-only URI filename
func sqliteDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?mode=ro"
}

func (a *SQLiteAdapter) Name() string { return a.name }

func (a *SQLiteAdapter) Driver() string { return a.driver }

func (a *SQLiteAdapter) ExplainPrefix() string { return "EXPLAIN QUERY PLAN " }

// Close closes the underlying handle
func (a *SQLiteAdapter) Close() {
	a.db.Close()
}

// Stats reports pool usage
func (a *SQLiteAdapter) Stats() PoolStats {
	s := a.db.Stats()
	return PoolStats{
		Acquired: int32(s.InUse),
		Idle:     int32(s.Idle),
		Max:      int32(a.maxConns),
	}
}

// Acquire checks out a dedicated connection; it blocks while all
// connections are in use
func (a *SQLiteAdapter) Acquire(ctx context.Context) (Conn, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		if err == sql.ErrConnDone {
			return nil, ErrClosed
		}
		return nil, err
	}
	stats := a.Stats()
	LogPoolStats(a.dsn, stats.Acquired, stats.Idle, stats.Max)
	return &sqlConn{conn: conn}, nil
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Query(ctx context.Context, query string, maxRows int) (*Rows, error) {
	startTime := time.Now()
	LogQueryDetails(query, nil)

	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		LogQuery(query, time.Since(startTime), 0, err)
		return nil, err
	}
	defer rows.Close()

	result, err := collectRows(rows, maxRows)
	if err != nil {
		LogQuery(query, time.Since(startTime), 0, err)
		return nil, err
	}

	LogQuery(query, time.Since(startTime), len(result.Values), nil)
	return result, nil
}

func collectRows(rows *sql.Rows, maxRows int) (*Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	result := &Rows{Columns: columns}

	for rows.Next() {
		if maxRows > 0 && len(result.Values) >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Values = append(result.Values, values)
	}
	return result, rows.Err()
}

// Cancel is a no-op for SQLite; context cancellation interrupts the
// statement and the caller discards the connection
func (c *sqlConn) Cancel(context.Context) error {
	return ErrCancelUnsupported
}

func (c *sqlConn) Release() {
	_ = c.conn.Close()
}

// Discard marks the driver connection bad so database/sql closes it
// instead of pooling it
func (c *sqlConn) Discard() {
	_ = c.conn.Raw(func(interface{}) error {
		return driver.ErrBadConn
	})
	_ = c.conn.Close()
}

// DiscoverMetadata reads sqlite_master and the table pragmas
func (a *SQLiteAdapter) DiscoverMetadata(ctx context.Context) (*schema.Graph, error) {
	startTime := time.Now()

	g, err := a.discover(ctx)
	if err != nil {
		LogMetadataLoad(a.dsn, 0, time.Since(startTime), err)
		return nil, err
	}

	LogMetadataLoad(a.dsn, len(g.Tables), time.Since(startTime), nil)
	LogMetadataDetails(a.dsn, 1, len(g.Tables), g.ColumnCount())
	return g, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (a *SQLiteAdapter) discover(ctx context.Context) (*schema.Graph, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []schema.Table
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, schema.Table{Name: name, Type: strings.ToUpper(kind)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var rels []schema.Relationship
	var indexes []schema.Index
	for i := range tables {
		t := &tables[i]
		if t.Columns, err = a.columns(ctx, t.Name); err != nil {
			return nil, err
		}

		ix, err := a.indexes(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		for _, idx := range ix {
			for _, col := range idx.Columns {
				for c := range t.Columns {
					if strings.EqualFold(t.Columns[c].Name, col) {
						t.Columns[c].IsIndexed = true
						if idx.Unique && len(idx.Columns) == 1 {
							t.Columns[c].IsUnique = true
						}
					}
				}
			}
		}
		indexes = append(indexes, ix...)
	}

	for i := range tables {
		fks, err := a.foreignKeys(ctx, tables[i].Name, tables)
		if err != nil {
			return nil, err
		}
		rels = append(rels, fks...)
	}

	g, err := schema.NewGraph(a.name, tables, rels, indexes)
	if err != nil {
		return nil, fmt.Errorf("inconsistent schema metadata: %w", err)
	}
	return g, nil
}

func (a *SQLiteAdapter) columns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := a.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, schema.Column{
			Name:     name,
			DataType: dataType,
			Nullable: notNull == 0 && pk == 0,
			IsKey:    pk > 0,
		})
	}
	return cols, rows.Err()
}

func (a *SQLiteAdapter) indexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := a.db.QueryContext(ctx, "PRAGMA index_list("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", table, err)
	}

	type entry struct {
		name   string
		unique bool
	}
	var entries []entry
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan index of %s: %w", table, err)
		}
		entries = append(entries, entry{name: name, unique: unique == 1})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]schema.Index, 0, len(entries))
	for _, e := range entries {
		cols, err := a.indexColumns(ctx, e.name)
		if err != nil {
			return nil, err
		}
		out = append(out, schema.Index{Table: table, Name: e.name, Columns: cols, Unique: e.unique})
	}
	return out, nil
}

func (a *SQLiteAdapter) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "PRAGMA index_info("+quoteIdent(index)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("failed to scan index %s: %w", index, err)
		}
		// expression columns have no name
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

func (a *SQLiteAdapter) foreignKeys(ctx context.Context, table string, tables []schema.Table) ([]schema.Relationship, error) {
	rows, err := a.db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var rels []schema.Relationship
	for rows.Next() {
		var id, seq int
		var target, from, onUpdate, onDelete, match string
		var to sql.NullString
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
		}

		targetTable := findTable(tables, target)
		if targetTable == nil {
			continue
		}
		targetColumn := to.String
		if !to.Valid || targetColumn == "" {
			// REFERENCES t without a column list means t's primary key
			keys := targetTable.KeyColumns()
			if seq >= len(keys) {
				continue
			}
			targetColumn = keys[seq]
		}
		if _, ok := targetTable.Column(targetColumn); !ok {
			continue
		}
		rels = append(rels, schema.Relationship{
			SourceTable:  table,
			SourceColumn: from,
			TargetTable:  targetTable.Name,
			TargetColumn: targetColumn,
		})
	}
	return rels, rows.Err()
}

func findTable(tables []schema.Table, name string) *schema.Table {
	for i := range tables {
		if strings.EqualFold(tables[i].Name, name) {
			return &tables[i]
		}
	}
	return nil
}
