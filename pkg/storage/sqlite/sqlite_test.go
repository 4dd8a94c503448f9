package sqlite

import (
	"context"
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/storage/sqlcommon"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var schema = []string{
	`CREATE TABLE owners (
		id text NOT NULL,
		name text,
		_id text PRIMARY KEY,
		_block_range int8range NOT NULL
	)`,
	`CREATE TABLE accounts (
		id text NOT NULL,
		first_seen int8,
		data bytea,
		owner_id text REFERENCES owners (id),
		_id text PRIMARY KEY,
		_block_range int8range NOT NULL
	)`,
	`CREATE TABLE _metadata (key text PRIMARY KEY, value text)`,
	`INSERT INTO owners VALUES ('o1', 'alice', 'u1', '[1, null]')`,
	`INSERT INTO accounts VALUES ('a1', 29258, x'dead', 'o1', 'u2', '[29258, null]')`,
	`INSERT INTO accounts VALUES ('a2', 197681, NULL, NULL, 'u3', '[197681, null]')`,
	`INSERT INTO _metadata VALUES ('lastProcessedHeight', '240853')`,
	`INSERT INTO _metadata VALUES ('deployments', '{"1":"QmOld","240000":"QmNew"}')`,
	`INSERT INTO _metadata VALUES ('chain', 'mainnet')`,
}

func newTestDatastore(t *testing.T, opts ...sqlcommon.DatastoreOption) (*Datastore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "subgraph.db")
	ds, err := New(path, sqlcommon.NewConfig(append([]sqlcommon.DatastoreOption{sqlcommon.WithSchema("app")}, opts...)...))
	require.NoError(t, err)
	t.Cleanup(ds.Close)

	for _, stmt := range schema {
		_, err := ds.db.Exec(stmt)
		require.NoError(t, err)
	}
	return ds, path
}

func TestPrepareDSN(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected []string
	}{
		{
			name:     "defaults",
			uri:      "file.db",
			expected: []string{"journal_mode(WAL)", "busy_timeout(100)", "case_sensitive_like(1)"},
		},
		{
			name:     "keeps_explicit_pragmas",
			uri:      "file.db?_pragma=busy_timeout(500)&_pragma=journal_mode(DELETE)",
			expected: []string{"busy_timeout(500)", "journal_mode(DELETE)", "case_sensitive_like(1)"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dsn, err := PrepareDSN(tc.uri)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(dsn, "file.db?"))

			query, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
			require.NoError(t, err)
			require.ElementsMatch(t, tc.expected, query["_pragma"])
		})
	}

	_, err := PrepareDSN("file.db?%zz")
	require.Error(t, err)
}

func TestCatalog(t *testing.T) {
	ds, _ := newTestDatastore(t)

	cat, err := ds.Catalog(context.Background())
	require.NoError(t, err)
	require.Equal(t, "app", cat.Schema())

	names := make([]string, 0)
	for _, r := range cat.Resources() {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{"accounts", "owners"}, names)

	accounts, err := cat.Resource("accounts")
	require.NoError(t, err)
	require.True(t, accounts.HasValidity())
	require.Equal(t, []string{"id"}, accounts.PrimaryKey())

	attr, ok := accounts.UserAttribute("first_seen")
	require.True(t, ok)
	require.Equal(t, catalog.KindInt, attr.Kind())

	attr, ok = accounts.UserAttribute("data")
	require.True(t, ok)
	require.Equal(t, catalog.KindBinary, attr.Kind())

	_, ok = accounts.UserAttribute("_id")
	require.False(t, ok)

	rel, ok := cat.Relation("accounts", "owner")
	require.True(t, ok)
	require.Equal(t, "owners", rel.Remote.Name)

	rel, ok = cat.Relation("owners", "accounts")
	require.True(t, ok)
	require.Equal(t, catalog.Many, rel.Cardinality)
}

func TestCatalogWithTags(t *testing.T) {
	tags, err := catalog.ParseTags([]byte(`
tables:
  accounts:
    hiddenColumns: [data]
    foreignKeys:
      - columns: [owner_id]
        references: owners
        forwardName: holder
`))
	require.NoError(t, err)

	ds, _ := newTestDatastore(t, sqlcommon.WithTags(tags))
	cat, err := ds.Catalog(context.Background())
	require.NoError(t, err)

	accounts, err := cat.Resource("accounts")
	require.NoError(t, err)
	_, ok := accounts.UserAttribute("data")
	require.False(t, ok)

	_, ok = cat.Relation("accounts", "holder")
	require.True(t, ok)
	_, ok = cat.Relation("accounts", "owner")
	require.False(t, ok)
}

func TestMetadata(t *testing.T) {
	ds, _ := newTestDatastore(t)

	entries, err := ds.Metadata(context.Background(), storage.MetadataTable)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.JSONEq(t, `240853`, string(entries["lastProcessedHeight"]))
	require.JSONEq(t, `{"1":"QmOld","240000":"QmNew"}`, string(entries["deployments"]))
	require.JSONEq(t, `"mainnet"`, string(entries["chain"]))

	_, err = ds.Metadata(context.Background(), "accounts")
	require.Error(t, err)
}

func TestQuery(t *testing.T) {
	ds, _ := newTestDatastore(t)

	rows, err := ds.Query(context.Background(), storage.Statement{
		SQL:   `SELECT "id", "first_seen", "data" FROM "accounts" WHERE "first_seen" >= ? ORDER BY "_id"`,
		Args:  []any{int64(0)},
		Kinds: []catalog.ScalarKind{catalog.KindText, catalog.KindInt, catalog.KindBinary},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"id", "first_seen", "data"}, rows[0].Columns)
	require.Equal(t, []any{"a1", int64(29258), []byte{0xde, 0xad}}, rows[0].Values)
	require.Equal(t, []any{"a2", int64(197681), nil}, rows[1].Values)

	b, err := json.Marshal(rows[0])
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"a1","first_seen":29258,"data":"0xdead"}`, string(b))

	_, err = ds.Query(context.Background(), storage.Statement{SQL: `SELECT * FROM missing`})
	require.ErrorContains(t, err, "sql error")
}

func TestQueryTimeout(t *testing.T) {
	_, path := newTestDatastore(t)

	ds, err := New(path, sqlcommon.NewConfig(sqlcommon.WithQueryTimeout(time.Nanosecond)))
	require.NoError(t, err)
	defer ds.Close()

	_, err = ds.Query(context.Background(), storage.Statement{SQL: `SELECT id FROM accounts`})
	require.ErrorIs(t, err, storage.ErrQueryTimeout)
}

func TestNotReadyAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subgraph.db")
	ds, err := New(path, sqlcommon.NewConfig())
	require.NoError(t, err)

	status, err := ds.IsReady(context.Background())
	require.NoError(t, err)
	require.True(t, status.IsReady)

	ds.Close()
	status, err = ds.IsReady(context.Background())
	require.Error(t, err)
	require.False(t, status.IsReady)
}
