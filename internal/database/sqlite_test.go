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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockSQLite(t *testing.T) (*SQLiteAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newSQLiteAdapter("shop", "sqlite", "file:shop.db?mode=ro", db, 2), mock
}

const masterQuery = `SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`

var (
	tableInfoCols  = []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}
	indexListCols  = []string{"seq", "name", "unique", "origin", "partial"}
	indexInfoCols  = []string{"seqno", "cid", "name"}
	foreignKeyCols = []string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}
)

func TestSQLiteDiscoverMetadata(t *testing.T) {
	a, mock := newMockSQLite(t)

	mock.ExpectQuery(masterQuery).WillReturnRows(
		sqlmock.NewRows([]string{"name", "type"}).
			AddRow("customers", "table").
			AddRow("orders", "table"))

	mock.ExpectQuery(`PRAGMA table_info("customers")`).WillReturnRows(
		sqlmock.NewRows(tableInfoCols).
			AddRow(0, "id", "INTEGER", 0, nil, 1).
			AddRow(1, "name", "TEXT", 1, nil, 0).
			AddRow(2, "email", "TEXT", 0, nil, 0))
	mock.ExpectQuery(`PRAGMA index_list("customers")`).WillReturnRows(
		sqlmock.NewRows(indexListCols).AddRow(0, "idx_customers_email", 1, "c", 0))
	mock.ExpectQuery(`PRAGMA index_info("idx_customers_email")`).WillReturnRows(
		sqlmock.NewRows(indexInfoCols).AddRow(0, 2, "email"))

	mock.ExpectQuery(`PRAGMA table_info("orders")`).WillReturnRows(
		sqlmock.NewRows(tableInfoCols).
			AddRow(0, "id", "INTEGER", 0, nil, 1).
			AddRow(1, "customer_id", "INTEGER", 1, nil, 0).
			AddRow(2, "total", "REAL", 0, nil, 0))
	mock.ExpectQuery(`PRAGMA index_list("orders")`).WillReturnRows(
		sqlmock.NewRows(indexListCols))

	mock.ExpectQuery(`PRAGMA foreign_key_list("customers")`).WillReturnRows(
		sqlmock.NewRows(foreignKeyCols))
	mock.ExpectQuery(`PRAGMA foreign_key_list("orders")`).WillReturnRows(
		sqlmock.NewRows(foreignKeyCols).
			AddRow(0, 0, "customers", "customer_id", nil, "NO ACTION", "NO ACTION", "NONE"))

	g, err := a.DiscoverMetadata(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "shop", g.Database)
	assert.Equal(t, []string{"customers", "orders"}, g.TableNames())

	customers, ok := g.Table("customers")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, customers.KeyColumns())
	email, _ := customers.Column("email")
	assert.True(t, email.IsIndexed)
	assert.True(t, email.IsUnique)
	name, _ := customers.Column("name")
	assert.False(t, name.Nullable)

	edges := g.Edges("orders")
	require.Len(t, edges, 1)
	assert.Equal(t, "orders", edges[0].SourceTable)
	assert.Equal(t, "customer_id", edges[0].SourceColumn)
	assert.Equal(t, "customers", edges[0].TargetTable)
	assert.Equal(t, "id", edges[0].TargetColumn, "NULL target column resolves to the primary key")

	assert.Len(t, g.IndexesFor("customers"), 1)
}

func TestSQLiteDiscoverSkipsDanglingForeignKey(t *testing.T) {
	a, mock := newMockSQLite(t)

	mock.ExpectQuery(masterQuery).WillReturnRows(
		sqlmock.NewRows([]string{"name", "type"}).AddRow("orders", "table"))
	mock.ExpectQuery(`PRAGMA table_info("orders")`).WillReturnRows(
		sqlmock.NewRows(tableInfoCols).AddRow(0, "customer_id", "INTEGER", 0, nil, 0))
	mock.ExpectQuery(`PRAGMA index_list("orders")`).WillReturnRows(sqlmock.NewRows(indexListCols))
	mock.ExpectQuery(`PRAGMA foreign_key_list("orders")`).WillReturnRows(
		sqlmock.NewRows(foreignKeyCols).
			AddRow(0, 0, "customers", "customer_id", "id", "NO ACTION", "NO ACTION", "NONE"))

	g, err := a.DiscoverMetadata(context.Background())
	require.NoError(t, err)
	assert.Empty(t, g.Relationships)
}

func TestSQLiteDiscoverError(t *testing.T) {
	a, mock := newMockSQLite(t)
	mock.ExpectQuery(masterQuery).WillReturnError(errors.New("disk I/O error"))

	_, err := a.DiscoverMetadata(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestSQLiteQueryTruncates(t *testing.T) {
	a, mock := newMockSQLite(t)
	mock.ExpectQuery("SELECT name FROM customers LIMIT 10").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).
			AddRow([]byte("Ada")).
			AddRow("Grace").
			AddRow("Linus"))

	conn, err := a.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	rows, err := conn.Query(context.Background(), "SELECT name FROM customers LIMIT 10", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, rows.Columns)
	require.Len(t, rows.Values, 2)
	assert.Equal(t, "Ada", rows.Values[0][0], "[]byte values are converted to strings")
	assert.True(t, rows.Truncated)
}

func TestSQLiteQueryError(t *testing.T) {
	a, mock := newMockSQLite(t)
	mock.ExpectQuery("SELECT * FROM missing").WillReturnError(errors.New("no such table: missing"))

	conn, err := a.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Query(context.Background(), "SELECT * FROM missing", 10)
	require.Error(t, err)
	assert.True(t, IsMissingObject(err))
}

func TestSQLiteCancelUnsupported(t *testing.T) {
	a, _ := newMockSQLite(t)
	conn, err := a.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Discard()

	assert.ErrorIs(t, conn.Cancel(context.Background()), ErrCancelUnsupported)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:/data/app.db?mode=ro", sqliteDSN("/data/app.db"))
	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file:app.db?cache=shared", sqliteDSN("file:app.db?cache=shared"))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"orders"`, quoteIdent("orders"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}
