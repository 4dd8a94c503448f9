package mocks

import (
	"context"
	"time"

	"github.com/subquery/query-subgraph/pkg/storage"
)

// slowDatastore is a proxy to the actual ds except Query waits queryDelay first, or until
// the context is done. This allows simulating requests that run past their deadline.
type slowDatastore struct {
	queryDelay time.Duration
	storage.Datastore
}

// NewMockSlowDatastore returns a wrapper of a datastore that adds artificial delays into queries.
func NewMockSlowDatastore(ds storage.Datastore, queryDelay time.Duration) storage.Datastore {
	return &slowDatastore{
		queryDelay: queryDelay,
		Datastore:  ds,
	}
}

func (m *slowDatastore) Close() {}

func (m *slowDatastore) Query(ctx context.Context, stmt storage.Statement) ([]storage.Row, error) {
	select {
	case <-ctx.Done():
		return nil, storage.ErrQueryTimeout
	case <-time.After(m.queryDelay):
	}
	return m.Datastore.Query(ctx, stmt)
}
