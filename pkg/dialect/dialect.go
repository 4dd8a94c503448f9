// Package dialect contains the SQL spellings that differ between the supported engines.
// Everything it renders binds values through placeholders; only quoted identifiers are
// ever written into the statement text.
package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite"
	MySQL    = "mysql"
)

// Dialect renders engine specific predicate fragments.
type Dialect interface {
	// Name returns the engine name (postgres, sqlite or mysql).
	Name() string

	// PlaceholderFormat is applied to every statement built for this engine.
	PlaceholderFormat() sq.PlaceholderFormat

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// Table renders a schema qualified table reference.
	Table(schema, table string) string

	// Membership renders `column IN list` (or NOT IN) with the whole list bound as one
	// parameter. values is a typed slice as produced by value coercion.
	Membership(column string, codec *catalog.Codec, values any, negate bool) (sq.Sqlizer, error)

	// Pattern renders a positive LIKE match of column against an already escaped pattern.
	Pattern(column string, kind catalog.ScalarKind, pattern any, caseInsensitive bool) sq.Sqlizer

	// RangeContains renders "the validity range in column contains revision".
	RangeContains(column string, revision int64) sq.Sqlizer

	// Current renders "the validity range in column is still open", selecting the latest
	// version of every row.
	Current(column string) sq.Sqlizer

	// Bind converts a coerced scalar into the value handed to the driver.
	Bind(v any) any
}

// Column renders alias.column with both parts quoted.
func Column(d Dialect, alias, column string) string {
	return d.QuoteIdent(alias) + "." + d.QuoteIdent(column)
}

// ByName returns the dialect registered for an engine name.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case Postgres, "postgresql", "pg":
		return NewPostgres(), nil
	case SQLite:
		return NewSQLite(), nil
	case MySQL:
		return NewMySQL(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", name)
	}
}

func quoteWith(name string, q byte) string {
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}
