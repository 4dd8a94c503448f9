package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
)

// testCatalog models owners <- accounts <- transfers, all versioned by block range.
func testCatalog(t testing.TB) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.NewBuilder("app").
		AddTable("owners",
			catalog.Column{Name: "id", Type: "text", NotNull: true},
			catalog.Column{Name: "name", Type: "text"},
			catalog.Column{Name: "_id", Type: "uuid", NotNull: true},
			catalog.Column{Name: "_block_range", Type: "int8range", NotNull: true},
		).
		AddTable("accounts",
			catalog.Column{Name: "id", Type: "text", NotNull: true},
			catalog.Column{Name: "first_seen", Type: "int8"},
			catalog.Column{Name: "name", Type: "varchar"},
			catalog.Column{Name: "balance", Type: "numeric"},
			catalog.Column{Name: "ratio", Type: "float8"},
			catalog.Column{Name: "active", Type: "bool"},
			catalog.Column{Name: "data", Type: "bytea"},
			catalog.Column{Name: "created_at", Type: "timestamp"},
			catalog.Column{Name: "payload", Type: "jsonb"},
			catalog.Column{Name: "owner_id", Type: "text"},
			catalog.Column{Name: "_id", Type: "uuid", NotNull: true},
			catalog.Column{Name: "_block_range", Type: "int8range", NotNull: true},
		).
		AddTable("transfers",
			catalog.Column{Name: "id", Type: "text", NotNull: true},
			catalog.Column{Name: "amount", Type: "numeric"},
			catalog.Column{Name: "account_id", Type: "text"},
			catalog.Column{Name: "_id", Type: "uuid", NotNull: true},
			catalog.Column{Name: "_block_range", Type: "int8range", NotNull: true},
		).
		AddTable("_metadata",
			catalog.Column{Name: "key", Type: "varchar"},
			catalog.Column{Name: "value", Type: "jsonb"},
		).
		AddUniqueKey("owners", "owners_pkey", true, "_id").
		AddUniqueKey("accounts", "accounts_pkey", true, "_id").
		AddUniqueKey("transfers", "transfers_pkey", true, "_id").
		AddForeignKey(catalog.ForeignKey{Name: "accounts_owner_id_fkey", Table: "accounts", Columns: []string{"owner_id"}, RefTable: "owners", RefColumns: []string{"id"}}).
		AddForeignKey(catalog.ForeignKey{Name: "transfers_account_id_fkey", Table: "transfers", Columns: []string{"account_id"}, RefTable: "accounts", RefColumns: []string{"id"}}).
		Build()
	require.NoError(t, err)

	return cat
}

func testCompiler(t testing.TB, opts ...CompilerOption) *Compiler {
	t.Helper()
	return NewCompiler(testCatalog(t), dialect.NewPostgres(), opts...)
}

func int64Ptr(v int64) *int64 {
	return &v
}
