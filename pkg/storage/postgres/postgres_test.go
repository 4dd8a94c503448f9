package postgres

import (
	"errors"
	"net/url"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/storage/sqlcommon"
)

func TestPrepareURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		opts     []sqlcommon.DatastoreOption
		user     string
		password string
		timeout  string
	}{
		{
			name: "untouched",
			uri:  "postgres://a:b@localhost:5432/db",
			user: "a", password: "b",
		},
		{
			name:     "override_password",
			uri:      "postgres://a:b@localhost:5432/db",
			opts:     []sqlcommon.DatastoreOption{sqlcommon.WithPassword("secret")},
			user:     "a",
			password: "secret",
		},
		{
			name:     "override_user_keeps_password",
			uri:      "postgres://a:b@localhost:5432/db",
			opts:     []sqlcommon.DatastoreOption{sqlcommon.WithUsername("c")},
			user:     "c",
			password: "b",
		},
		{
			name:    "statement_timeout",
			uri:     "postgres://localhost:5432/db?sslmode=disable",
			opts:    []sqlcommon.DatastoreOption{sqlcommon.WithQueryTimeout(10 * time.Second)},
			timeout: "10000",
		},
		{
			name:    "explicit_statement_timeout_wins",
			uri:     "postgres://localhost:5432/db?statement_timeout=5",
			opts:    []sqlcommon.DatastoreOption{sqlcommon.WithQueryTimeout(10 * time.Second)},
			timeout: "5",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := PrepareURI(tc.uri, sqlcommon.NewConfig(tc.opts...))
			require.NoError(t, err)

			parsed, err := url.Parse(out)
			require.NoError(t, err)
			if tc.user != "" {
				require.Equal(t, tc.user, parsed.User.Username())
				password, _ := parsed.User.Password()
				require.Equal(t, tc.password, password)
			}
			require.Equal(t, tc.timeout, parsed.Query().Get("statement_timeout"))
		})
	}

	_, err := PrepareURI("postgres://%zz", sqlcommon.NewConfig())
	require.Error(t, err)
}

func TestHandleSQLError(t *testing.T) {
	err := HandleSQLError(&pgconn.PgError{Code: queryCanceledCode, Message: "canceling statement due to statement timeout"})
	require.ErrorIs(t, err, storage.ErrQueryTimeout)

	err = HandleSQLError(&pgconn.PgError{Code: "42P01"})
	require.NotErrorIs(t, err, storage.ErrQueryTimeout)

	err = HandleSQLError(errors.New("boom"))
	require.ErrorContains(t, err, "sql error: boom")
}

func TestIntrospectionQueries(t *testing.T) {
	in := introspection(sqStatementBuilder(), "app")

	query, args, err := in.Columns.ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "FROM information_schema.columns c")
	require.Contains(t, query, "$1")
	require.ElementsMatch(t, []any{"app", "BASE TABLE"}, args)

	query, args, err = in.UniqueKeys.ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "tc.constraint_type IN ($")
	require.Len(t, args, 3)

	query, args, err = in.ForeignKeys.ToSql()
	require.NoError(t, err)
	require.Contains(t, query, "position_in_unique_constraint")
	require.Equal(t, []any{"app"}, args)
}

func sqStatementBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}
