// Package filter compiles request filters, orderings and as-of revisions into one
// parameterized SQL predicate plus an ordering, ready to attach to a base scan.
//
// Compilation is a pure function of the Catalog and the request. A Compiler holds no
// per-request state and can be shared by any number of goroutines.
package filter

import (
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
)

// RootAlias is the alias of the table a request scans. Relation subqueries use t1, t2...
const RootAlias = "t0"

// Request is everything a caller supplies for one compilation.
type Request struct {
	Resource string
	Filter   Node
	Order    *OrderSpec
	// AsOf pins every table touched by the request to one revision.
	AsOf *int64
	// Latest restricts every table to its current row versions when AsOf is unset.
	Latest bool
}

// Compiled is the output of a compilation. Where is nil when nothing is filtered.
type Compiled struct {
	Resource *catalog.Resource
	Alias    string
	Where    sq.Sqlizer
	OrderBy  []string
	Revision Revision

	format sq.PlaceholderFormat
}

// ToSql renders the predicate with the dialect's placeholders. It returns an empty string
// when the predicate is always true.
func (c *Compiled) ToSql() (string, []any, error) {
	if c.Where == nil {
		return "", nil, nil
	}
	sql, args, err := c.Where.ToSql()
	if err != nil {
		return "", nil, err
	}
	sql, err = c.format.ReplacePlaceholders(sql)
	return sql, args, err
}

// Compiler turns requests into Compiled predicates against one catalog.
type Compiler struct {
	catalog *catalog.Catalog
	dialect dialect.Dialect
	guard   Guard
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithGuard replaces the default input guard.
func WithGuard(g Guard) CompilerOption {
	return func(c *Compiler) {
		c.guard = g
	}
}

// NewCompiler returns a Compiler for cat rendering SQL for d.
func NewCompiler(cat *catalog.Catalog, d dialect.Dialect, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		catalog: cat,
		dialect: d,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the catalog the compiler resolves names against.
func (c *Compiler) Catalog() *catalog.Catalog {
	return c.catalog
}

// Dialect returns the dialect the compiler renders for.
func (c *Compiler) Dialect() dialect.Dialect {
	return c.dialect
}

// Compile validates and lowers one request. Ordering is checked first, then the whole
// filter is guarded, and only then is any predicate built.
func (c *Compiler) Compile(req Request) (*Compiled, error) {
	res, err := c.catalog.Resource(req.Resource)
	if err != nil {
		return nil, err
	}

	rev, err := revisionOf(req)
	if err != nil {
		return nil, err
	}

	root := target{res: res, alias: RootAlias}

	orderBy, err := c.orderBy(root, req.Order)
	if err != nil {
		return nil, err
	}

	if err := c.guard.Check(req.Filter); err != nil {
		return nil, err
	}

	s := &scope{dialect: c.dialect, revision: rev, nextAlias: 1}
	where, err := s.lower(root, req.Filter, nil)
	if err != nil {
		return nil, err
	}

	return &Compiled{
		Resource: res,
		Alias:    RootAlias,
		Where:    conjoin(where, rev.predicate(c.dialect, root)),
		OrderBy:  orderBy,
		Revision: rev,
		format:   c.dialect.PlaceholderFormat(),
	}, nil
}

// target is a resource bound to the alias it is scanned under.
type target struct {
	res   *catalog.Resource
	alias string
}

func (t target) column(d dialect.Dialect, name string) string {
	return dialect.Column(d, t.alias, name)
}

// scope is the state of one compilation. The revision is fixed when the scope is created
// and handed unchanged to every alias, however deep.
type scope struct {
	dialect   dialect.Dialect
	revision  Revision
	nextAlias int
}

func (s *scope) alias() string {
	a := "t" + strconv.Itoa(s.nextAlias)
	s.nextAlias++
	return a
}

func (s *scope) lower(t target, n Node, path []string) (sq.Sqlizer, error) {
	switch node := n.(type) {
	case nil:
		return nil, nil
	case Leaf:
		return s.condition(t, node, append(path, FieldName(node.Field, node.Operator)))
	case And:
		return s.lowerAnd(t, node, path)
	case Or:
		return s.lowerOr(t, node, path)
	case Not:
		return s.lowerNot(t, node, path)
	case RelationFilter:
		return s.relation(t, node, append(path, node.Relation))
	default:
		return nil, fmt.Errorf("unknown filter node %T", n)
	}
}

func appendPath(path []string, key string, i int) []string {
	return append(path, key+"["+strconv.Itoa(i)+"]")
}
