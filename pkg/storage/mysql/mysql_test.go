package mysql

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/storage/sqlcommon"
)

func TestPrepareDSN(t *testing.T) {
	dsn, dbName, err := PrepareDSN("root:secret@tcp(localhost:3306)/subgraph", sqlcommon.NewConfig(
		sqlcommon.WithUsername("reader"),
		sqlcommon.WithQueryTimeout(10*time.Second),
	))
	require.NoError(t, err)
	require.Equal(t, "subgraph", dbName)

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "reader", parsed.User)
	require.Equal(t, "secret", parsed.Passwd)
	require.True(t, parsed.ParseTime)
	require.Equal(t, "10000", parsed.Params["max_execution_time"])

	_, _, err = PrepareDSN("not a dsn", sqlcommon.NewConfig())
	require.Error(t, err)
}

func TestHandleSQLError(t *testing.T) {
	err := HandleSQLError(&mysql.MySQLError{Number: queryTimeoutErrno, Message: "Query execution was interrupted"})
	require.ErrorIs(t, err, storage.ErrQueryTimeout)

	err = HandleSQLError(&mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"})
	require.NotErrorIs(t, err, storage.ErrQueryTimeout)
	require.ErrorContains(t, err, "sql error")

	require.ErrorIs(t, HandleSQLError(sql.ErrNoRows), storage.ErrNotFound)
	require.ErrorContains(t, HandleSQLError(errors.New("boom")), "boom")
}

func TestIntrospectionQueries(t *testing.T) {
	in := introspection(sq.StatementBuilder, "subgraph")

	query, args, err := in.ForeignKeys.ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "kcu.referenced_table_name IS NOT NULL")
	require.Equal(t, []any{"subgraph"}, args)

	query, _, err = in.Columns.ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "c.data_type")
}
