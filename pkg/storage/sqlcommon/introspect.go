package sqlcommon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
)

// Introspection holds the three queries an engine answers to describe its schema.
//
// Columns yields (table, column, type, is_nullable) with is_nullable YES or NO, in
// ordinal order. UniqueKeys yields (constraint, table, constraint_type, column) grouped by
// constraint. ForeignKeys yields (constraint, table, column, referenced table, referenced
// column) grouped by constraint.
type Introspection struct {
	Columns     sq.SelectBuilder
	UniqueKeys  sq.SelectBuilder
	ForeignKeys sq.SelectBuilder
}

// BuildCatalog runs the introspection queries and builds the catalog they describe.
func BuildCatalog(ctx context.Context, dbInfo *DBInfo, cfg *Config, in Introspection) (*catalog.Catalog, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.BuildCatalog")
	defer span.End()

	b := catalog.NewBuilder(cfg.Schema, catalog.WithTags(cfg.Tags))

	steps := []struct {
		name string
		sb   sq.SelectBuilder
		load func(*sql.Rows, *catalog.Builder) error
	}{
		{name: "columns", sb: in.Columns, load: loadColumns},
		{name: "unique keys", sb: in.UniqueKeys, load: loadUniqueKeys},
		{name: "foreign keys", sb: in.ForeignKeys, load: loadForeignKeys},
	}
	for _, step := range steps {
		rows, err := step.sb.QueryContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("introspect %s: %w", step.name, dbInfo.HandleSQLError(err))
		}
		err = step.load(rows, b)
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("introspect %s: %w", step.name, err)
		}
	}

	cat, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}
	return cat, nil
}

func loadColumns(rows *sql.Rows, b *catalog.Builder) error {
	for rows.Next() {
		var table, column, typ, nullable string
		if err := rows.Scan(&table, &column, &typ, &nullable); err != nil {
			return err
		}
		b.AddTable(table, catalog.Column{
			Name:    column,
			Type:    typ,
			NotNull: strings.EqualFold(nullable, "NO"),
		})
	}
	return rows.Err()
}

func loadUniqueKeys(rows *sql.Rows, b *catalog.Builder) error {
	type key struct {
		name, table string
		primary     bool
		columns     []string
	}
	var (
		keys []*key
		last *key
	)
	for rows.Next() {
		var name, table, typ, column string
		if err := rows.Scan(&name, &table, &typ, &column); err != nil {
			return err
		}
		if last == nil || last.name != name || last.table != table {
			last = &key{name: name, table: table, primary: strings.EqualFold(typ, "PRIMARY KEY")}
			keys = append(keys, last)
		}
		last.columns = append(last.columns, column)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		b.AddUniqueKey(k.table, k.name, k.primary, k.columns...)
	}
	return nil
}

func loadForeignKeys(rows *sql.Rows, b *catalog.Builder) error {
	var (
		fks  []*catalog.ForeignKey
		last *catalog.ForeignKey
	)
	for rows.Next() {
		var name, table, column, refTable, refColumn string
		if err := rows.Scan(&name, &table, &column, &refTable, &refColumn); err != nil {
			return err
		}
		if last == nil || last.Name != name || last.Table != table {
			last = &catalog.ForeignKey{Name: name, Table: table, RefTable: refTable}
			fks = append(fks, last)
		}
		last.Columns = append(last.Columns, column)
		last.RefColumns = append(last.RefColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, fk := range fks {
		b.AddForeignKey(*fk)
	}
	return nil
}

// ReadMetadata returns every entry of a key/value metadata table. Values that are not
// valid JSON are returned as JSON strings.
func ReadMetadata(ctx context.Context, dbInfo *DBInfo, d dialect.Dialect, schema, table string) (map[string]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ReadMetadata")
	defer span.End()

	if !catalog.IsMetadataTable(table) {
		return nil, fmt.Errorf("%q is not a metadata table", table)
	}

	rows, err := dbInfo.stbl.
		Select(d.QuoteIdent("key"), d.QuoteIdent("value")).
		From(d.Table(schema, table)).
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.handle(ctx, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		switch {
		case !value.Valid:
			out[key] = json.RawMessage("null")
		case json.Valid([]byte(value.String)):
			out[key] = json.RawMessage(value.String)
		default:
			raw, err := json.Marshal(value.String)
			if err != nil {
				return nil, err
			}
			out[key] = raw
		}
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return out, nil
}
