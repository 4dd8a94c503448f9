package server

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/subquery/query-subgraph/pkg/query"
	serverErrors "github.com/subquery/query-subgraph/pkg/server/errors"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/telemetry"
)

// Get answers GET /v1/{entity}/{id}. The optional block query parameter reads the row as
// of that revision.
func (s *Server) Get(w http.ResponseWriter, r *http.Request) {
	entity, id := r.PathValue("entity"), r.PathValue("id")
	ctx, span := tracer.Start(r.Context(), "Get", trace.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("id", id),
	))
	defer span.End()
	r = r.WithContext(ctx)

	req, err := s.parseGet(r, entity, id)
	if err != nil {
		telemetry.TraceError(span, err)
		s.writeError(w, r, err)
		return
	}

	stmt, err := s.planner.PlanByUnique(ctx, req)
	if err != nil {
		telemetry.TraceError(span, err)
		s.writeError(w, r, err)
		return
	}

	rows, err := s.datastore.Query(ctx, stmt)
	if err != nil {
		telemetry.TraceError(span, err)
		s.writeError(w, r, err)
		return
	}
	if len(rows) == 0 {
		s.writeError(w, r, storage.ErrNotFound)
		return
	}

	s.writeJSON(w, r, rows[0])
}

func (s *Server) parseGet(r *http.Request, entity, id string) (query.UniqueRequest, error) {
	res, err := s.planner.Catalog().Resource(entity)
	if err != nil {
		return query.UniqueRequest{}, err
	}

	pk := res.PrimaryKey()
	if len(pk) != 1 {
		return query.UniqueRequest{}, serverErrors.InvalidRequest("%q has no single column key to look rows up by", entity)
	}

	req := query.UniqueRequest{
		Resource: entity,
		Key:      map[string]any{pk[0]: id},
		Latest:   true,
	}
	if block := r.URL.Query().Get("block"); block != "" {
		asOf, err := parseRevision(block)
		if err != nil {
			return query.UniqueRequest{}, err
		}
		req.AsOf, req.Latest = asOf, false
	}
	return req, nil
}
