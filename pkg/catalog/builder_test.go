package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testBuilder(opts ...BuilderOption) *Builder {
	return NewBuilder("app", opts...).
		AddTable("accounts",
			Column{Name: "id", Type: "text", NotNull: true},
			Column{Name: "first_seen", Type: "bigint"},
			Column{Name: "_id", Type: "uuid", NotNull: true},
			Column{Name: "_block_range", Type: "int8range", NotNull: true},
		).
		AddTable("transfers",
			Column{Name: "id", Type: "text", NotNull: true},
			Column{Name: "from_id", Type: "text"},
			Column{Name: "to_id", Type: "text"},
			Column{Name: "_block_range", Type: "int8range", NotNull: true},
		).
		AddTable("profiles",
			Column{Name: "id", Type: "text", NotNull: true},
			Column{Name: "account_id", Type: "text"},
		).
		AddTable("_metadata", Column{Name: "key", Type: "varchar"}, Column{Name: "value", Type: "jsonb"}).
		AddTable("_metadata_0xabc", Column{Name: "key", Type: "varchar"}).
		AddTable("_global", Column{Name: "key", Type: "varchar"}).
		AddTable("_poi", Column{Name: "id", Type: "int8"}).
		AddUniqueKey("accounts", "accounts_pkey", true, "_id").
		AddUniqueKey("profiles", "profiles_account_id_key", false, "account_id").
		AddForeignKey(ForeignKey{Name: "transfers_from_fkey", Table: "transfers", Columns: []string{"from_id"}, RefTable: "accounts", RefColumns: []string{"id"}}).
		AddForeignKey(ForeignKey{Name: "transfers_to_fkey", Table: "transfers", Columns: []string{"to_id"}, RefTable: "accounts", RefColumns: []string{"id"}}).
		AddForeignKey(ForeignKey{Name: "profiles_account_fkey", Table: "profiles", Columns: []string{"account_id"}, RefTable: "accounts", RefColumns: []string{"id"}})
}

func TestBuildHidesBookkeepingTables(t *testing.T) {
	cat, err := testBuilder().Build()
	require.NoError(t, err)

	names := make([]string, 0)
	for _, r := range cat.Resources() {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{"accounts", "profiles", "transfers"}, names)

	for _, hidden := range []string{"_metadata", "_metadata_0xabc", "_global", "_poi"} {
		_, err := cat.Resource(hidden)
		require.ErrorIs(t, err, ErrUnknownResource)
		require.True(t, IsHiddenTable(hidden))
	}
	require.True(t, IsMetadataTable("_metadata_0xabc"))
	require.False(t, IsMetadataTable("_global"))
}

func TestBuildUniqueKeys(t *testing.T) {
	cat, err := testBuilder().Build()
	require.NoError(t, err)

	accounts, err := cat.Resource("accounts")
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, accounts.PrimaryKey())
	require.Len(t, accounts.UniqueKeys(), 1)
	require.True(t, accounts.HasValidity())

	profiles, err := cat.Resource("profiles")
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, profiles.PrimaryKey())
	_, ok := profiles.UniqueKeyByColumns("account_id")
	require.True(t, ok)
	require.False(t, profiles.HasValidity())
}

func TestBuildRelationIndex(t *testing.T) {
	cat, err := testBuilder().Build()
	require.NoError(t, err)

	tests := []struct {
		resource    string
		name        string
		remote      string
		local       []string
		remoteAttrs []string
		cardinality Cardinality
		direction   Direction
	}{
		{resource: "transfers", name: "from", remote: "accounts", local: []string{"from_id"}, remoteAttrs: []string{"id"}, cardinality: One, direction: Forward},
		{resource: "transfers", name: "to", remote: "accounts", local: []string{"to_id"}, remoteAttrs: []string{"id"}, cardinality: One, direction: Forward},
		{resource: "accounts", name: "transfers", remote: "transfers", local: []string{"id"}, remoteAttrs: []string{"from_id"}, cardinality: Many, direction: Backward},
		{resource: "accounts", name: "transfers_by_to_id", remote: "transfers", local: []string{"id"}, remoteAttrs: []string{"to_id"}, cardinality: Many, direction: Backward},
		{resource: "accounts", name: "profiles", remote: "profiles", local: []string{"id"}, remoteAttrs: []string{"account_id"}, cardinality: One, direction: Backward},
		{resource: "profiles", name: "account", remote: "accounts", local: []string{"account_id"}, remoteAttrs: []string{"id"}, cardinality: One, direction: Forward},
	}

	for _, tc := range tests {
		t.Run(tc.resource+"."+tc.name, func(t *testing.T) {
			rel, ok := cat.Relation(tc.resource, tc.name)
			require.True(t, ok)
			require.Equal(t, tc.remote, rel.Remote.Name)
			require.Equal(t, tc.resource, rel.Local.Name)
			require.Equal(t, tc.local, rel.LocalAttributes)
			require.Equal(t, tc.remoteAttrs, rel.RemoteAttributes)
			require.Equal(t, tc.cardinality, rel.Cardinality)
			require.Equal(t, tc.direction, rel.Direction)

			inv := rel.Inverse()
			require.NotNil(t, inv)
			require.Same(t, rel, inv.Inverse())
			require.Equal(t, rel.LocalAttributes, inv.RemoteAttributes)
			require.Equal(t, rel.RemoteAttributes, inv.LocalAttributes)
		})
	}

	_, ok := cat.Relation("accounts", "nope")
	require.False(t, ok)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		err     error
	}{
		{
			name:    "duplicate_column",
			builder: NewBuilder("s").AddTable("a", Column{Name: "x", Type: "text"}, Column{Name: "x", Type: "int4"}),
			err:     ErrDuplicateAttribute,
		},
		{
			name:    "placeholder_in_identifier",
			builder: NewBuilder("s").AddTable("a", Column{Name: "x?", Type: "text"}),
			err:     ErrInvalidIdentifier,
		},
		{
			name:    "placeholder_in_table",
			builder: NewBuilder("s").AddTable("a?", Column{Name: "x", Type: "text"}),
			err:     ErrInvalidIdentifier,
		},
		{
			name: "arity",
			builder: NewBuilder("s").
				AddTable("a", Column{Name: "id", Type: "text"}, Column{Name: "b_id", Type: "text"}).
				AddTable("b", Column{Name: "id", Type: "text"}).
				AddForeignKey(ForeignKey{Name: "fk", Table: "a", Columns: []string{"b_id"}, RefTable: "b", RefColumns: []string{"id", "id"}}),
			err: ErrRelationArity,
		},
		{
			name: "type_mismatch",
			builder: NewBuilder("s").
				AddTable("a", Column{Name: "id", Type: "text"}, Column{Name: "b_id", Type: "bool"}).
				AddTable("b", Column{Name: "id", Type: "text"}).
				AddForeignKey(ForeignKey{Name: "fk", Table: "a", Columns: []string{"b_id"}, RefTable: "b", RefColumns: []string{"id"}}),
			err: ErrRelationTypeMismatch,
		},
		{
			name: "unknown_column",
			builder: NewBuilder("s").
				AddTable("a", Column{Name: "id", Type: "text"}).
				AddTable("b", Column{Name: "id", Type: "text"}).
				AddForeignKey(ForeignKey{Name: "fk", Table: "a", Columns: []string{"b_id"}, RefTable: "b", RefColumns: []string{"id"}}),
			err: ErrUnknownColumn,
		},
		{
			name: "unknown_table",
			builder: NewBuilder("s").
				AddTable("a", Column{Name: "id", Type: "text"}).
				AddForeignKey(ForeignKey{Name: "fk", Table: "a", Columns: []string{"id"}, RefTable: "missing", RefColumns: []string{"id"}}),
			err: ErrUnknownTable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestBuildWithTags(t *testing.T) {
	tags, err := ParseTags([]byte(`
hiddenTables: ["^profiles$"]
tables:
  accounts:
    hiddenColumns: [first_seen, _block_range]
  transfers:
    foreignKeys:
      - columns: [from_id]
        references: accounts
        forwardName: sender
        backwardName: sent
      - columns: [to_id]
        references: accounts
        backwardName: received
`))
	require.NoError(t, err)

	cat, err := testBuilder(WithTags(tags)).Build()
	require.NoError(t, err)

	_, err = cat.Resource("profiles")
	require.ErrorIs(t, err, ErrUnknownResource)

	accounts, err := cat.Resource("accounts")
	require.NoError(t, err)
	_, ok := accounts.Attribute("first_seen")
	require.False(t, ok)
	require.True(t, accounts.HasValidity(), "the validity column cannot be hidden")

	rel, ok := cat.Relation("transfers", "sender")
	require.True(t, ok)
	require.Equal(t, "transfers_from_fkey", rel.Constraint)

	rel, ok = cat.Relation("accounts", "received")
	require.True(t, ok)
	require.Equal(t, []string{"to_id"}, rel.RemoteAttributes)

	_, ok = cat.Relation("accounts", "sent")
	require.True(t, ok)
	_, ok = cat.Relation("transfers", "to")
	require.True(t, ok)
	_, ok = cat.Relation("accounts", "transfers")
	require.False(t, ok)
}

func TestBuildTaggedForeignKey(t *testing.T) {
	tags, err := ParseTags([]byte(`
tables:
  profiles:
    uniqueKeys: [[account_id]]
    foreignKeys:
      - columns: [account_id]
        references: accounts
`))
	require.NoError(t, err)

	cat, err := NewBuilder("app", WithTags(tags)).
		AddTable("accounts", Column{Name: "id", Type: "text"}).
		AddTable("profiles", Column{Name: "id", Type: "text"}, Column{Name: "account_id", Type: "text"}).
		Build()
	require.NoError(t, err)

	rel, ok := cat.Relation("profiles", "account")
	require.True(t, ok)
	require.Equal(t, "profiles_account_id_fkey", rel.Constraint)
	require.Equal(t, []string{"id"}, rel.RemoteAttributes)

	back, ok := cat.Relation("accounts", "profiles")
	require.True(t, ok)
	require.Equal(t, One, back.Cardinality)
}

func TestParseTagsRejectsUnknownFields(t *testing.T) {
	_, err := ParseTags([]byte(`hidden: [x]`))
	require.Error(t, err)

	_, err = ParseTags([]byte(`hiddenTables: ["("]`))
	require.Error(t, err)
}

func TestKindFromPgType(t *testing.T) {
	for _, tc := range []struct {
		in   string
		kind ScalarKind
	}{
		{in: "bool", kind: KindBoolean},
		{in: "BOOLEAN", kind: KindBoolean},
		{in: "bytea", kind: KindBinary},
		{in: "int2", kind: KindInt},
		{in: "integer", kind: KindInt},
		{in: "bigint", kind: KindInt},
		{in: "float4", kind: KindFloat},
		{in: "double precision", kind: KindFloat},
		{in: "numeric(78,0)", kind: KindNumeric},
		{in: "timestamp without time zone", kind: KindTimestamp},
		{in: "timestamptz", kind: KindTimestamp},
		{in: "character varying", kind: KindText},
		{in: "text", kind: KindText},
		{in: "jsonb", kind: KindUnsupported},
		{in: "int8range", kind: KindUnsupported},
		{in: "_text", kind: KindUnsupported},
	} {
		require.Equal(t, tc.kind, KindFromPgType(tc.in), tc.in)
	}

	require.True(t, KindInt.Compatible(KindNumeric))
	require.False(t, KindText.Compatible(KindInt))
	require.False(t, KindUnsupported.Compatible(KindUnsupported))
}
