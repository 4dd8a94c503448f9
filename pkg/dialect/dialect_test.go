package dialect

import (
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

func render(t *testing.T, s sq.Sqlizer) (string, []any) {
	t.Helper()
	query, args, err := s.ToSql()
	require.NoError(t, err)
	return query, args
}

func TestByName(t *testing.T) {
	for name, expected := range map[string]string{
		"postgres":   Postgres,
		"PostgreSQL": Postgres,
		"pg":         Postgres,
		"sqlite":     SQLite,
		"mysql":      MySQL,
	} {
		d, err := ByName(name)
		require.NoError(t, err)
		require.Equal(t, expected, d.Name())
	}

	_, err := ByName("oracle")
	require.Error(t, err)
}

func TestQuoting(t *testing.T) {
	pg := NewPostgres()
	require.Equal(t, `"app"."accounts"`, pg.Table("app", "accounts"))
	require.Equal(t, `"accounts"`, pg.Table("", "accounts"))
	require.Equal(t, `"t0"."we""ird"`, Column(pg, "t0", `we"ird`))

	lite := NewSQLite()
	require.Equal(t, `"accounts"`, lite.Table("app", "accounts"))

	my := NewMySQL()
	require.Equal(t, "`app`.`accounts`", my.Table("app", "accounts"))
	require.Equal(t, "`t0`.`a``b`", Column(my, "t0", "a`b"))
}

func TestMembership(t *testing.T) {
	text := catalog.ScalarCodec("text")
	numeric := catalog.ScalarCodec("numeric")
	bytea := catalog.ScalarCodec("bytea")

	tests := []struct {
		name     string
		dialect  Dialect
		codec    *catalog.Codec
		values   any
		negate   bool
		expected string
		args     []any
	}{
		{
			name:     "postgres_text",
			dialect:  NewPostgres(),
			codec:    text,
			values:   []string{"a", "b"},
			expected: `c = ANY(?::text[])`,
			args:     []any{[]string{"a", "b"}},
		},
		{
			name:     "postgres_numeric_negated",
			dialect:  NewPostgres(),
			codec:    numeric,
			values:   []string{"1.5"},
			negate:   true,
			expected: `c <> ALL(?::text[]::numeric[])`,
			args:     []any{[]string{"1.5"}},
		},
		{
			name:     "sqlite_text",
			dialect:  NewSQLite(),
			codec:    text,
			values:   []string{"a", "b"},
			expected: `c IN (SELECT value FROM json_each(?))`,
			args:     []any{`["a","b"]`},
		},
		{
			name:     "sqlite_binary_negated",
			dialect:  NewSQLite(),
			codec:    bytea,
			values:   [][]byte{{0xde, 0xad}},
			negate:   true,
			expected: `hex(c) NOT IN (SELECT value FROM json_each(?))`,
			args:     []any{`["DEAD"]`},
		},
		{
			name:     "sqlite_empty",
			dialect:  NewSQLite(),
			codec:    catalog.ScalarCodec("int8"),
			values:   []int64{},
			expected: `c IN (SELECT value FROM json_each(?))`,
			args:     []any{`[]`},
		},
		{
			name:     "mysql_negated",
			dialect:  NewMySQL(),
			codec:    catalog.ScalarCodec("int8"),
			values:   []int64{1, 2},
			negate:   true,
			expected: `NOT (c MEMBER OF(CAST(? AS JSON)))`,
			args:     []any{`[1,2]`},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expr, err := tc.dialect.Membership("c", tc.codec, tc.values, tc.negate)
			require.NoError(t, err)
			query, args := render(t, expr)
			require.Equal(t, tc.expected, query)
			require.Equal(t, tc.args, args)
		})
	}

	_, err := NewSQLite().Membership("c", text, []int32{1}, false)
	require.Error(t, err)
}

func TestPattern(t *testing.T) {
	tests := []struct {
		dialect     Dialect
		insensitive bool
		expected    string
	}{
		{dialect: NewPostgres(), expected: `c LIKE ?`},
		{dialect: NewPostgres(), insensitive: true, expected: `c ILIKE ?`},
		{dialect: NewSQLite(), expected: `c LIKE ? ESCAPE '\'`},
		{dialect: NewSQLite(), insensitive: true, expected: `lower(c) LIKE lower(?) ESCAPE '\'`},
		{dialect: NewMySQL(), expected: `c LIKE BINARY ?`},
		{dialect: NewMySQL(), insensitive: true, expected: `LOWER(c) LIKE LOWER(?)`},
	}
	for _, tc := range tests {
		query, args := render(t, tc.dialect.Pattern("c", catalog.KindText, "%x%", tc.insensitive))
		require.Equal(t, tc.expected, query, tc.dialect.Name())
		require.Equal(t, []any{"%x%"}, args)
	}
}

func TestValidity(t *testing.T) {
	query, args := render(t, NewPostgres().RangeContains(`"t0"."_block_range"`, 42))
	require.Equal(t, `"t0"."_block_range" @> ?::bigint`, query)
	require.Equal(t, []any{int64(42)}, args)

	query, args = render(t, NewSQLite().RangeContains("r", 7))
	require.Equal(t, `(json_extract(r, '$[0]') <= ? AND (json_extract(r, '$[1]') IS NULL OR ? < json_extract(r, '$[1]')))`, query)
	require.Equal(t, []any{int64(7), int64(7)}, args)

	query, _ = render(t, NewPostgres().Current("r"))
	require.Equal(t, `upper_inf(r)`, query)

	query, _ = render(t, NewSQLite().Current("r"))
	require.Equal(t, `json_extract(r, '$[1]') IS NULL`, query)

	query, _ = render(t, NewMySQL().Current("r"))
	require.Equal(t, `JSON_TYPE(JSON_EXTRACT(r, '$[1]')) = 'NULL'`, query)
}

func TestBind(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.Equal(t, "2024-01-02 03:04:05+00:00", NewSQLite().Bind(ts))
	require.Equal(t, ts, NewPostgres().Bind(ts))
	require.Equal(t, "x", NewSQLite().Bind("x"))
}
