package dialect

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

type mysql struct{}

// NewMySQL returns the mysql dialect. Lists are bound as one JSON array tested with
// MEMBER OF, and the validity column is stored as in sqlite. Case insensitive patterns
// compare LOWER() of both sides. LOWER() follows the column's character set, so non-ASCII
// results can differ from postgres ILIKE.
func NewMySQL() Dialect {
	return mysql{}
}

func (mysql) Name() string { return MySQL }

func (mysql) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (mysql) QuoteIdent(name string) string { return quoteWith(name, '`') }

func (d mysql) Table(schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (mysql) Membership(column string, codec *catalog.Codec, values any, negate bool) (sq.Sqlizer, error) {
	list, err := jsonList(values)
	if err != nil {
		return nil, err
	}
	if codec.Kind == catalog.KindBinary {
		column = "HEX(" + column + ")"
	}
	expr := column + " MEMBER OF(CAST(? AS JSON))"
	if negate {
		expr = "NOT (" + expr + ")"
	}
	return sq.Expr(expr, list), nil
}

func (mysql) Pattern(column string, _ catalog.ScalarKind, pattern any, caseInsensitive bool) sq.Sqlizer {
	if caseInsensitive {
		return sq.Expr("LOWER("+column+") LIKE LOWER(?)", pattern)
	}
	return sq.Expr(column+" LIKE BINARY ?", pattern)
}

func (mysql) RangeContains(column string, revision int64) sq.Sqlizer {
	return sq.Expr(
		"(JSON_EXTRACT("+column+", '$[0]') <= ? AND (JSON_TYPE(JSON_EXTRACT("+column+", '$[1]')) = 'NULL' OR ? < JSON_EXTRACT("+column+", '$[1]')))",
		revision, revision,
	)
}

func (mysql) Current(column string) sq.Sqlizer {
	return sq.Expr("JSON_TYPE(JSON_EXTRACT(" + column + ", '$[1]')) = 'NULL'")
}

func (mysql) Bind(v any) any { return v }
