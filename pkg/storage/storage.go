// Package storage contains the datastore interface the query service reads through, and
// the statement and row types its implementations share.
//
//go:generate mockgen -source storage.go -destination ../../internal/mocks/mock_storage.go -package mocks Datastore
package storage

import (
	"context"
	"encoding/json"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
)

// MetadataTable is the key/value table the indexer keeps its progress in.
const MetadataTable = "_metadata"

// Statement is a fully rendered read. Columns and Kinds describe the select list in order.
type Statement struct {
	SQL     string
	Args    []any
	Columns []string
	Kinds   []catalog.ScalarKind
}

// Datastore is a read only view over one indexer schema.
type Datastore interface {
	// Query runs a rendered statement and returns all of its rows. A statement that runs
	// past the configured query timeout fails with ErrQueryTimeout.
	Query(ctx context.Context, stmt Statement) ([]Row, error)

	// Catalog introspects the schema and returns the resources it exposes.
	Catalog(ctx context.Context) (*catalog.Catalog, error)

	// Metadata returns the raw entries of a metadata table, keyed by entry name.
	Metadata(ctx context.Context, table string) (map[string]json.RawMessage, error)

	// Dialect is the SQL dialect statements for this datastore must be rendered in.
	Dialect() dialect.Dialect

	// IsReady reports whether the datastore is ready to accept traffic.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the datastore and cleans up any residual resources.
	Close()
}

// RowCountEstimator is implemented by datastores that can estimate table sizes cheaply.
type RowCountEstimator interface {
	RowCountEstimates(ctx context.Context) (map[string]int64, error)
}

// ReadinessStatus represents the readiness status of the datastore.
type ReadinessStatus struct {
	// Message is a human-friendly status message for the current datastore status.
	Message string

	IsReady bool
}
