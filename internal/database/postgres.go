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
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

const applicationName = "nldb-query"

// PostgresAdapter serves one PostgreSQL database through a pgx pool. Every
// session is read-only.
type PostgresAdapter struct {
	name    string
	connStr string
	pool    *pgxpool.Pool
}

// NewPostgresAdapter creates the pool and verifies connectivity
func NewPostgresAdapter(ctx context.Context, dbConfig config.DatabaseConfig) (*PostgresAdapter, error) {
	startTime := time.Now()
	connStr := dbConfig.ConnectionString()

	enhancedConnStr, err := addApplicationName(connStr, applicationName)
	if err != nil {
		return nil, fmt.Errorf("unable to enhance connection string: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(enhancedConnStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if dbConfig.PoolMaxConns > 0 {
		poolConfig.MaxConns = int32(dbConfig.PoolMaxConns)
	}
	if dbConfig.PoolMinConns > 0 {
		poolConfig.MinConns = int32(dbConfig.PoolMinConns)
	}
	poolConfig.MaxConnIdleTime = dbConfig.IdleTimeDuration()

	// Enforced for every session; a generated statement that slips past
	// validation still cannot write.
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}
	poolConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	LogConnectionDetails(connStr, map[string]interface{}{
		"max_conns":          poolConfig.MaxConns,
		"min_conns":          poolConfig.MinConns,
		"max_conn_idle_time": poolConfig.MaxConnIdleTime.String(),
	})

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	LogConnection(connStr, time.Since(startTime), nil)

	return &PostgresAdapter{
		name:    dbConfig.Name,
		connStr: connStr,
		pool:    pool,
	}, nil
}

// addApplicationName adds application_name parameter to a PostgreSQL connection string
func addApplicationName(connStr, appName string) (string, error) {
	// key=value DSNs are passed through untouched
	if !strings.Contains(connStr, "://") {
		if strings.Contains(connStr, "application_name") {
			return connStr, nil
		}
		return strings.TrimSpace(connStr + " application_name=" + appName), nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid connection string: %w", err)
	}

	query := u.Query()
	if !query.Has("application_name") {
		query.Set("application_name", appName)
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}

func (a *PostgresAdapter) Name() string { return a.name }

func (a *PostgresAdapter) Driver() string { return "postgres" }

func (a *PostgresAdapter) ExplainPrefix() string { return "EXPLAIN (FORMAT JSON) " }

// Close closes the pool
func (a *PostgresAdapter) Close() {
	a.pool.Close()
}

// Stats reports pool usage
func (a *PostgresAdapter) Stats() PoolStats {
	s := a.pool.Stat()
	return PoolStats{
		Acquired: s.AcquiredConns(),
		Idle:     s.IdleConns(),
		Max:      s.MaxConns(),
	}
}

// Acquire checks a connection out of the pool
func (a *PostgresAdapter) Acquire(ctx context.Context) (Conn, error) {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	stats := a.Stats()
	LogPoolStats(a.connStr, stats.Acquired, stats.Idle, stats.Max)
	return &pgConn{conn: conn}, nil
}

type pgConn struct {
	conn *pgxpool.Conn
}

func (c *pgConn) Query(ctx context.Context, sql string, maxRows int) (*Rows, error) {
	startTime := time.Now()
	LogQueryDetails(sql, nil)

	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		LogQuery(sql, time.Since(startTime), 0, err)
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &Rows{Columns: make([]string, len(fields))}
	for i, fd := range fields {
		result.Columns[i] = fd.Name
	}

	for rows.Next() {
		if maxRows > 0 && len(result.Values) >= maxRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			LogQuery(sql, time.Since(startTime), len(result.Values), err)
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		result.Values = append(result.Values, values)
	}
	if err := rows.Err(); err != nil {
		LogQuery(sql, time.Since(startTime), len(result.Values), err)
		return nil, err
	}

	LogQuery(sql, time.Since(startTime), len(result.Values), nil)
	return result, nil
}

func (c *pgConn) Cancel(ctx context.Context) error {
	return c.conn.Conn().PgConn().CancelRequest(ctx)
}

func (c *pgConn) Release() {
	c.conn.Release()
}

// Discard takes the connection out of the pool and closes it
func (c *pgConn) Discard() {
	raw := c.conn.Hijack()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = raw.Close(ctx)
}

const pgMetadataQuery = `
	WITH table_info AS (
		SELECT
			c.oid AS table_oid,
			n.nspname AS schema_name,
			c.relname AS table_name,
			CASE c.relkind
				WHEN 'r' THEN 'TABLE'
				WHEN 'p' THEN 'TABLE'
				WHEN 'v' THEN 'VIEW'
				WHEN 'm' THEN 'MATERIALIZED VIEW'
			END AS table_type,
			obj_description(c.oid) AS table_description
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p', 'v', 'm')
			AND NOT c.relispartition
			AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
			AND n.nspname NOT LIKE 'pg_temp_%'
	),
	pk_columns AS (
		SELECT con.conrelid AS table_oid, unnest(con.conkey) AS attnum
		FROM pg_constraint con
		WHERE con.contype = 'p'
	),
	unique_columns AS (
		SELECT DISTINCT con.conrelid AS table_oid, unnest(con.conkey) AS attnum
		FROM pg_constraint con
		WHERE con.contype = 'u'
	),
	indexed_columns AS (
		SELECT DISTINCT i.indrelid AS table_oid, unnest(i.indkey) AS attnum
		FROM pg_index i
	)
	SELECT
		ti.schema_name,
		ti.table_name,
		ti.table_type,
		COALESCE(ti.table_description, '') AS table_description,
		a.attname AS column_name,
		pg_catalog.format_type(a.atttypid, a.atttypmod) AS data_type,
		NOT a.attnotnull AS is_nullable,
		COALESCE(col_description(ti.table_oid, a.attnum), '') AS column_description,
		pk.attnum IS NOT NULL AS is_primary_key,
		uq.attnum IS NOT NULL AS is_unique,
		ix.attnum IS NOT NULL AS is_indexed
	FROM table_info ti
	JOIN pg_attribute a ON a.attrelid = ti.table_oid AND a.attnum > 0 AND NOT a.attisdropped
	LEFT JOIN pk_columns pk ON pk.table_oid = ti.table_oid AND pk.attnum = a.attnum
	LEFT JOIN unique_columns uq ON uq.table_oid = ti.table_oid AND uq.attnum = a.attnum
	LEFT JOIN indexed_columns ix ON ix.table_oid = ti.table_oid AND ix.attnum = a.attnum
	ORDER BY ti.schema_name, ti.table_name, a.attnum
`

const pgRelationshipQuery = `
	SELECT
		n.nspname || '.' || c.relname AS source_table,
		a.attname AS source_column,
		fn.nspname || '.' || fc.relname AS target_table,
		fa.attname AS target_column
	FROM pg_constraint con
	JOIN pg_class c ON c.oid = con.conrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_class fc ON fc.oid = con.confrelid
	JOIN pg_namespace fn ON fn.oid = fc.relnamespace
	JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS cols(col_num, ref_num, ord) ON true
	JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = cols.col_num
	JOIN pg_attribute fa ON fa.attrelid = fc.oid AND fa.attnum = cols.ref_num
	WHERE con.contype = 'f'
		AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
	ORDER BY source_table, con.conname, cols.ord
`

const pgIndexQuery = `
	SELECT
		n.nspname || '.' || c.relname AS table_name,
		ic.relname AS index_name,
		i.indisunique,
		ARRAY(
			SELECT a.attname::text
			FROM unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord)
			JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
			ORDER BY k.ord
		) AS columns
	FROM pg_index i
	JOIN pg_class c ON c.oid = i.indrelid
	JOIN pg_class ic ON ic.oid = i.indexrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
	ORDER BY table_name, index_name
`

// DiscoverMetadata reads the catalog and assembles a schema snapshot
func (a *PostgresAdapter) DiscoverMetadata(ctx context.Context) (*schema.Graph, error) {
	startTime := time.Now()

	g, err := a.discover(ctx)
	if err != nil {
		LogMetadataLoad(a.connStr, 0, time.Since(startTime), err)
		return nil, err
	}

	LogMetadataLoad(a.connStr, len(g.Tables), time.Since(startTime), nil)
	return g, nil
}

func (a *PostgresAdapter) discover(ctx context.Context) (*schema.Graph, error) {
	rows, err := a.pool.Query(ctx, pgMetadataQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}

	var tables []schema.Table
	index := make(map[string]int)
	schemaSet := make(map[string]bool)

	for rows.Next() {
		var schemaName, tableName, tableType, tableDesc, columnName, dataType, columnDesc string
		var isNullable, isPrimaryKey, isUnique, isIndexed bool

		if err := rows.Scan(&schemaName, &tableName, &tableType, &tableDesc, &columnName, &dataType,
			&isNullable, &columnDesc, &isPrimaryKey, &isUnique, &isIndexed); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		key := schemaName + "." + tableName
		schemaSet[schemaName] = true
		i, exists := index[key]
		if !exists {
			tables = append(tables, schema.Table{
				Schema:      schemaName,
				Name:        tableName,
				Type:        tableType,
				Description: tableDesc,
			})
			i = len(tables) - 1
			index[key] = i
		}

		tables[i].Columns = append(tables[i].Columns, schema.Column{
			Name:        columnName,
			DataType:    dataType,
			Nullable:    isNullable,
			IsKey:       isPrimaryKey,
			IsUnique:    isUnique,
			IsIndexed:   isIndexed,
			Description: columnDesc,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rels, err := a.relationships(ctx, index)
	if err != nil {
		return nil, err
	}
	indexes, err := a.indexes(ctx, index)
	if err != nil {
		return nil, err
	}

	g, err := schema.NewGraph(a.name, tables, rels, indexes)
	if err != nil {
		return nil, fmt.Errorf("inconsistent catalog metadata: %w", err)
	}

	LogMetadataDetails(a.connStr, len(schemaSet), len(tables), g.ColumnCount())
	return g, nil
}

func (a *PostgresAdapter) relationships(ctx context.Context, known map[string]int) ([]schema.Relationship, error) {
	rows, err := a.pool.Query(ctx, pgRelationshipQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	var rels []schema.Relationship
	for rows.Next() {
		var r schema.Relationship
		if err := rows.Scan(&r.SourceTable, &r.SourceColumn, &r.TargetTable, &r.TargetColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		// edges into partitions or excluded schemas are dropped
		if _, ok := known[r.SourceTable]; !ok {
			continue
		}
		if _, ok := known[r.TargetTable]; !ok {
			continue
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (a *PostgresAdapter) indexes(ctx context.Context, known map[string]int) ([]schema.Index, error) {
	rows, err := a.pool.Query(ctx, pgIndexQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}

	var out []schema.Index
	ix, err := pgx.CollectRows[schema.Index](rows, func(row pgx.CollectableRow) (schema.Index, error) {
		var idx schema.Index
		err := row.Scan(&idx.Table, &idx.Name, &idx.Unique, &idx.Columns)
		return idx, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan index: %w", err)
	}
	for _, idx := range ix {
		if _, ok := known[idx.Table]; ok {
			out = append(out, idx)
		}
	}
	return out, nil
}
