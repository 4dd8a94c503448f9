// Package query plans complete read statements: it compiles a request with the filter
// compiler and wraps the predicate in a paginated, deterministically ordered scan.
package query

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/Yiling-J/theine-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/subquery/query-subgraph/internal/keys"
	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
	"github.com/subquery/query-subgraph/pkg/filter"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/telemetry"
)

var tracer = otel.Tracer("pkg/query")

const (
	DefaultLimit    = 100
	DefaultMaxLimit = 1000
)

var (
	ErrInvalidPagination = errors.New("invalid pagination")
	ErrUnknownUniqueKey  = errors.New("no unique key on the given columns")
)

// ListRequest asks for one page of rows of a resource.
type ListRequest struct {
	Resource string
	Filter   filter.Node
	Order    *filter.OrderSpec
	AsOf     *int64
	Latest   bool

	First *int
	Skip  *int
	// Offset is accepted as an alias of Skip.
	Offset *int
}

// UniqueRequest asks for the row identified by the values of one unique key.
type UniqueRequest struct {
	Resource string
	Key      map[string]any
	AsOf     *int64
	Latest   bool
}

// Planner renders requests into statements. It is safe for concurrent use.
type Planner struct {
	compiler     *filter.Compiler
	defaultLimit int
	maxLimit     int
	cacheSize    int64
	cache        *theine.Cache[uint64, storage.Statement]
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithDefaultLimit sets the page size used when a request has no first argument.
func WithDefaultLimit(n int) PlannerOption {
	return func(p *Planner) {
		p.defaultLimit = n
	}
}

// WithMaxLimit sets the largest page a request may ask for.
func WithMaxLimit(n int) PlannerOption {
	return func(p *Planner) {
		p.maxLimit = n
	}
}

// WithCache keeps up to size rendered statements. A size of zero disables the cache.
func WithCache(size int64) PlannerOption {
	return func(p *Planner) {
		p.cacheSize = size
	}
}

// NewPlanner returns a Planner rendering statements with c.
func NewPlanner(c *filter.Compiler, opts ...PlannerOption) (*Planner, error) {
	p := &Planner{
		compiler:     c,
		defaultLimit: DefaultLimit,
		maxLimit:     DefaultMaxLimit,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.defaultLimit <= 0 || p.maxLimit < p.defaultLimit {
		return nil, fmt.Errorf("default limit %d must be positive and at most the max limit %d", p.defaultLimit, p.maxLimit)
	}

	if p.cacheSize > 0 {
		cache, err := theine.NewBuilder[uint64, storage.Statement](p.cacheSize).Build()
		if err != nil {
			return nil, fmt.Errorf("plan cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// Close releases the plan cache.
func (p *Planner) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
}

// Catalog returns the catalog requests are planned against.
func (p *Planner) Catalog() *catalog.Catalog {
	return p.compiler.Catalog()
}

// PlanList renders one page of a filtered, ordered scan. Rows are ordered by the requested
// column first and by the primary key after it, so pages never overlap.
func (p *Planner) PlanList(ctx context.Context, req ListRequest) (storage.Statement, error) {
	_, span := tracer.Start(ctx, "query.PlanList", trace.WithAttributes(
		attribute.String("resource", req.Resource),
	))
	defer span.End()

	limit, skip, err := p.page(req)
	if err != nil {
		telemetry.TraceError(span, err)
		return storage.Statement{}, err
	}

	key, cacheable := p.listKey(req, limit, skip)
	if stmt, ok := p.cached(key, cacheable); ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return stmt, nil
	}

	compiled, err := p.compiler.Compile(filter.Request{
		Resource: req.Resource,
		Filter:   req.Filter,
		Order:    req.Order,
		AsOf:     req.AsOf,
		Latest:   req.Latest,
	})
	if err != nil {
		telemetry.TraceError(span, err)
		return storage.Statement{}, err
	}

	stmt, err := p.render(compiled, limit, skip)
	if err != nil {
		telemetry.TraceError(span, err)
		return storage.Statement{}, err
	}

	p.store(key, cacheable, stmt)
	return stmt, nil
}

// PlanByUnique renders a lookup of at most one row by a unique key of the resource.
func (p *Planner) PlanByUnique(ctx context.Context, req UniqueRequest) (storage.Statement, error) {
	_, span := tracer.Start(ctx, "query.PlanByUnique", trace.WithAttributes(
		attribute.String("resource", req.Resource),
	))
	defer span.End()

	res, err := p.compiler.Catalog().Resource(req.Resource)
	if err != nil {
		telemetry.TraceError(span, err)
		return storage.Statement{}, err
	}

	cols := make([]string, 0, len(req.Key))
	for col := range req.Key {
		cols = append(cols, col)
	}
	uk, ok := res.UniqueKeyByColumns(cols...)
	if !ok || len(cols) == 0 {
		err := fmt.Errorf("%w: %s %v", ErrUnknownUniqueKey, req.Resource, cols)
		telemetry.TraceError(span, err)
		return storage.Statement{}, err
	}

	// Key columns in key order keep the rendered statement stable.
	conds := make([]filter.Node, 0, len(uk.Columns))
	for _, col := range uk.Columns {
		conds = append(conds, filter.Leaf{Field: col, Operator: filter.OpEqual, Value: req.Key[col]})
	}

	compiled, err := p.compiler.Compile(filter.Request{
		Resource: req.Resource,
		Filter:   filter.And{Children: conds},
		AsOf:     req.AsOf,
		Latest:   req.Latest,
	})
	if err != nil {
		telemetry.TraceError(span, err)
		return storage.Statement{}, err
	}

	stmt, err := p.render(compiled, 1, 0)
	if err != nil {
		telemetry.TraceError(span, err)
		return storage.Statement{}, err
	}
	return stmt, nil
}

func (p *Planner) page(req ListRequest) (limit, skip int, err error) {
	limit = p.defaultLimit
	if req.First != nil {
		limit = *req.First
	}
	if limit < 0 || limit > p.maxLimit {
		return 0, 0, fmt.Errorf("%w: first must be between 0 and %d, got %d", ErrInvalidPagination, p.maxLimit, limit)
	}

	switch {
	case req.Skip != nil && req.Offset != nil && *req.Skip != *req.Offset:
		return 0, 0, fmt.Errorf("%w: skip and offset disagree", ErrInvalidPagination)
	case req.Skip != nil:
		skip = *req.Skip
	case req.Offset != nil:
		skip = *req.Offset
	}
	if skip < 0 {
		return 0, 0, fmt.Errorf("%w: skip must not be negative, got %d", ErrInvalidPagination, skip)
	}
	return limit, skip, nil
}

func (p *Planner) render(c *filter.Compiled, limit, skip int) (storage.Statement, error) {
	d := p.compiler.Dialect()
	res := c.Resource

	attrs := res.UserAttributes()
	columns := make([]string, 0, len(attrs))
	names := make([]string, 0, len(attrs))
	kinds := make([]catalog.ScalarKind, 0, len(attrs))
	for _, a := range attrs {
		columns = append(columns, dialect.Column(d, c.Alias, a.Name))
		names = append(names, a.Name)
		kinds = append(kinds, a.Kind())
	}

	orderBy := append([]string(nil), c.OrderBy...)
	for _, col := range res.PrimaryKey() {
		if len(c.OrderBy) > 0 && orderedBy(c.OrderBy, dialect.Column(d, c.Alias, col)) {
			continue
		}
		orderBy = append(orderBy, dialect.Column(d, c.Alias, col)+" ASC")
	}

	builder := sq.StatementBuilder.PlaceholderFormat(d.PlaceholderFormat()).
		Select(columns...).
		From(d.Table(res.Schema, res.Name) + " AS " + d.QuoteIdent(c.Alias)).
		Where(c.Where).
		OrderBy(orderBy...).
		Suffix("LIMIT ? OFFSET ?", limit, skip)

	sql, args, err := builder.ToSql()
	if err != nil {
		return storage.Statement{}, fmt.Errorf("render %s: %w", res.Name, err)
	}
	return storage.Statement{SQL: sql, Args: args, Columns: names, Kinds: kinds}, nil
}

// orderedBy reports whether column already leads one of the ORDER BY terms.
func orderedBy(terms []string, column string) bool {
	for _, term := range terms {
		if len(term) > len(column) && term[:len(column)] == column && term[len(column)] == ' ' {
			return true
		}
	}
	return false
}

func (p *Planner) listKey(req ListRequest, limit, skip int) (uint64, bool) {
	if p.cache == nil {
		return 0, false
	}

	k := keys.NewPlanKey().Resource(req.Resource)
	if err := k.Filter(req.Filter); err != nil {
		return 0, false
	}
	return k.Order(req.Order).Revision(req.AsOf, req.Latest).Page(limit, skip).Sum(), true
}

func (p *Planner) cached(key uint64, ok bool) (storage.Statement, bool) {
	if !ok {
		return storage.Statement{}, false
	}
	return p.cache.Get(key)
}

func (p *Planner) store(key uint64, ok bool, stmt storage.Statement) {
	if !ok {
		return
	}
	p.cache.Set(key, stmt, 1)
}
