package dialect

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

type sqlite struct{}

// NewSQLite returns the sqlite dialect. Lists are bound as one JSON array and expanded
// with json_each. The validity column holds a JSON [lower, upper] pair where a null upper
// bound is unbounded. Case sensitive LIKE relies on the case_sensitive_like pragma, which
// the sqlite datastore sets on every connection. Case insensitive patterns compare
// lower() of both sides, and sqlite's lower() only folds ASCII letters, so unlike
// postgres ILIKE a nocase match of non-ASCII text stays case sensitive.
func NewSQLite() Dialect {
	return sqlite{}
}

func (sqlite) Name() string { return SQLite }

func (sqlite) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }

func (sqlite) QuoteIdent(name string) string { return quoteWith(name, '"') }

// Table ignores the schema: a sqlite database file is a single namespace.
func (d sqlite) Table(_, table string) string {
	return d.QuoteIdent(table)
}

func (sqlite) Membership(column string, codec *catalog.Codec, values any, negate bool) (sq.Sqlizer, error) {
	list, err := jsonList(values)
	if err != nil {
		return nil, err
	}
	if codec.Kind == catalog.KindBinary {
		column = "hex(" + column + ")"
	}
	op := " IN "
	if negate {
		op = " NOT IN "
	}
	return sq.Expr(column+op+"(SELECT value FROM json_each(?))", list), nil
}

func (sqlite) Pattern(column string, _ catalog.ScalarKind, pattern any, caseInsensitive bool) sq.Sqlizer {
	if caseInsensitive {
		return sq.Expr("lower("+column+`) LIKE lower(?) ESCAPE '\'`, pattern)
	}
	return sq.Expr(column+` LIKE ? ESCAPE '\'`, pattern)
}

func (sqlite) RangeContains(column string, revision int64) sq.Sqlizer {
	return sq.Expr(
		"(json_extract("+column+", '$[0]') <= ? AND (json_extract("+column+", '$[1]') IS NULL OR ? < json_extract("+column+", '$[1]')))",
		revision, revision,
	)
}

func (sqlite) Current(column string) sq.Sqlizer {
	return sq.Expr("json_extract(" + column + ", '$[1]') IS NULL")
}

func (sqlite) Bind(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(TimestampFormat)
	}
	return v
}
