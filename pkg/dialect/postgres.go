package dialect

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

type postgres struct{}

// NewPostgres returns the postgres dialect. Membership binds a native array and the
// validity column is an int8range.
func NewPostgres() Dialect {
	return postgres{}
}

func (postgres) Name() string { return Postgres }

func (postgres) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }

func (postgres) QuoteIdent(name string) string { return quoteWith(name, '"') }

func (d postgres) Table(schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (postgres) Membership(column string, codec *catalog.Codec, values any, negate bool) (sq.Sqlizer, error) {
	cast := codec.PgType
	if cast == "" {
		return nil, fmt.Errorf("membership on column %s without a type", column)
	}
	if codec.Kind == catalog.KindNumeric {
		// numeric lists are bound as text so arbitrary precision survives the driver
		cast = "text[]::" + cast
	}
	if negate {
		return sq.Expr(fmt.Sprintf("%s <> ALL(?::%s[])", column, cast), values), nil
	}
	return sq.Expr(fmt.Sprintf("%s = ANY(?::%s[])", column, cast), values), nil
}

func (postgres) Pattern(column string, _ catalog.ScalarKind, pattern any, caseInsensitive bool) sq.Sqlizer {
	if caseInsensitive {
		return sq.Expr(column+" ILIKE ?", pattern)
	}
	return sq.Expr(column+" LIKE ?", pattern)
}

func (postgres) RangeContains(column string, revision int64) sq.Sqlizer {
	return sq.Expr(column+" @> ?::bigint", revision)
}

func (postgres) Current(column string) sq.Sqlizer {
	return sq.Expr("upper_inf(" + column + ")")
}

func (postgres) Bind(v any) any { return v }
