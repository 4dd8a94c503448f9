package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/subquery/query-subgraph/pkg/filter"
	"github.com/subquery/query-subgraph/pkg/query"
	serverErrors "github.com/subquery/query-subgraph/pkg/server/errors"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/telemetry"
)

const maxBodyBytes = 1 << 20

type listResponse struct {
	Items []storage.Row `json:"items"`
}

// List answers POST /v1/{entity}. The body carries the filter under "where", the ordering
// under "orderBy" and "orderDirection", the revision under "block.number" and the page
// under "first" and "skip" (or "offset"). Without a block number only current row
// versions are read.
func (s *Server) List(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	ctx, span := tracer.Start(r.Context(), "List", trace.WithAttributes(
		attribute.String("entity", entity),
	))
	defer span.End()
	r = r.WithContext(ctx)

	req, err := s.parseList(w, r, entity)
	if err != nil {
		telemetry.TraceError(span, err)
		s.writeError(w, r, err)
		return
	}

	stmt, err := s.planner.PlanList(ctx, req)
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
	if rows == nil {
		rows = []storage.Row{}
	}
	span.SetAttributes(attribute.Int("items", len(rows)))

	s.writeJSON(w, r, listResponse{Items: rows})
}

func (s *Server) parseList(w http.ResponseWriter, r *http.Request, entity string) (query.ListRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return query.ListRequest{}, serverErrors.InvalidRequest("failed to read request body: %s", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) {
		return query.ListRequest{}, serverErrors.InvalidRequest("request body is not valid JSON")
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return query.ListRequest{}, serverErrors.InvalidRequest("request body must be a JSON object")
	}

	res, err := s.planner.Catalog().Resource(entity)
	if err != nil {
		return query.ListRequest{}, err
	}

	where, err := filter.Parse(res, parsed.Get("where"))
	if err != nil {
		return query.ListRequest{}, err
	}

	orderBy, err := optionalString(parsed, "orderBy")
	if err != nil {
		return query.ListRequest{}, err
	}
	direction, err := optionalString(parsed, "orderDirection")
	if err != nil {
		return query.ListRequest{}, err
	}
	order, err := filter.NewOrderSpec(orderBy, direction)
	if err != nil {
		return query.ListRequest{}, err
	}

	asOf, err := blockNumber(parsed.Get("block.number"))
	if err != nil {
		return query.ListRequest{}, err
	}

	req := query.ListRequest{
		Resource: entity,
		Filter:   where,
		Order:    order,
		AsOf:     asOf,
		Latest:   asOf == nil,
	}
	if req.First, err = optionalInt(parsed, "first"); err != nil {
		return query.ListRequest{}, err
	}
	if req.Skip, err = optionalInt(parsed, "skip"); err != nil {
		return query.ListRequest{}, err
	}
	if req.Offset, err = optionalInt(parsed, "offset"); err != nil {
		return query.ListRequest{}, err
	}
	return req, nil
}

func optionalString(obj gjson.Result, key string) (string, error) {
	v := obj.Get(key)
	switch v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return v.Str, nil
	default:
		return "", serverErrors.InvalidRequest("%s must be a string", key)
	}
}

func optionalInt(obj gjson.Result, key string) (*int, error) {
	v := obj.Get(key)
	if v.Type == gjson.Null {
		return nil, nil
	}
	if v.Type != gjson.Number {
		return nil, serverErrors.InvalidRequest("%s must be an integer", key)
	}
	n, err := strconv.Atoi(v.Raw)
	if err != nil {
		return nil, serverErrors.InvalidRequest("%s must be an integer", key)
	}
	return &n, nil
}

// blockNumber reads an as-of revision. A missing or null value means the latest revision.
func blockNumber(v gjson.Result) (*int64, error) {
	if v.Type == gjson.Null {
		return nil, nil
	}
	if v.Type != gjson.Number {
		return nil, invalidRevision()
	}
	return parseRevision(v.Raw)
}

func parseRevision(s string) (*int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil, invalidRevision()
	}
	return &n, nil
}

func invalidRevision() error {
	return &filter.CompileError{Code: filter.CodeInvalidRevision, Path: []string{"block", "number"}, Err: filter.ErrInvalidRevision}
}
