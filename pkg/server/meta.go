package server

import (
	"net/http"

	"github.com/subquery/query-subgraph/pkg/telemetry"
)

// Meta answers GET /v1/_meta with the indexing status summary.
func (s *Server) Meta(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Meta")
	defer span.End()
	r = r.WithContext(ctx)

	payload, err := s.metadata.Payload(ctx)
	if err != nil {
		telemetry.TraceError(span, err)
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, payload)
}

// Metadata answers GET /v1/_metadata with every metadata entry of the indexer. The
// optional chainId query parameter selects the table of one chain of a multi chain project.
func (s *Server) Metadata(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Metadata")
	defer span.End()
	r = r.WithContext(ctx)

	entries, err := s.metadata.Metadata(ctx, r.URL.Query().Get("chainId"))
	if err != nil {
		telemetry.TraceError(span, err)
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, entries)
}
