// Package server exposes the query pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/subquery/query-subgraph/internal/build"
	"github.com/subquery/query-subgraph/pkg/logger"
	"github.com/subquery/query-subgraph/pkg/metadata"
	"github.com/subquery/query-subgraph/pkg/middleware"
	httpmiddleware "github.com/subquery/query-subgraph/pkg/middleware/http"
	"github.com/subquery/query-subgraph/pkg/middleware/logging"
	"github.com/subquery/query-subgraph/pkg/middleware/recovery"
	"github.com/subquery/query-subgraph/pkg/middleware/requestid"
	"github.com/subquery/query-subgraph/pkg/query"
	serverErrors "github.com/subquery/query-subgraph/pkg/server/errors"
	"github.com/subquery/query-subgraph/pkg/server/health"
	"github.com/subquery/query-subgraph/pkg/storage"
)

var tracer = otel.Tracer("pkg/server")

const DefaultUpstreamTimeout = 15 * time.Second

// A Server answers list, lookup and metadata requests for one indexer schema.
type Server struct {
	logger    logger.Logger
	datastore storage.Datastore
	planner   *query.Planner
	metadata  *metadata.Service
	config    *Config
}

type Dependencies struct {
	Datastore storage.Datastore
	Planner   *query.Planner
	Metadata  *metadata.Service
	Logger    logger.Logger
}

type Config struct {
	// UpstreamTimeout bounds the whole handling of a request.
	UpstreamTimeout    time.Duration
	CORSAllowedOrigins []string
	CORSAllowedHeaders []string

	// EnableHTTPHistograms observes the duration of every request by route.
	EnableHTTPHistograms bool
}

// New creates a new Server which uses the supplied backends.
func New(dependencies *Dependencies, config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if config.UpstreamTimeout <= 0 {
		config.UpstreamTimeout = DefaultUpstreamTimeout
	}
	l := dependencies.Logger
	if l == nil {
		l = logger.NewNoopLogger()
	}
	m := dependencies.Metadata
	if m == nil {
		m = metadata.NewService(dependencies.Datastore, metadata.WithLogger(l))
	}
	return &Server{
		logger:    l,
		datastore: dependencies.Datastore,
		planner:   dependencies.Planner,
		metadata:  m,
		config:    config,
	}
}

// IsReady reports whether the datastore is reachable.
func (s *Server) IsReady(ctx context.Context) (bool, error) {
	status, err := s.datastore.IsReady(ctx)
	if err != nil {
		return false, err
	}
	return status.IsReady, nil
}

// Handler returns the routes of the server wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/{entity}", s.List)
	mux.HandleFunc("GET /v1/{entity}/{id}", s.Get)
	mux.HandleFunc("GET /v1/_meta", s.Meta)
	mux.HandleFunc("GET /v1/_metadata", s.Metadata)
	mux.Handle("GET /healthz", &health.Checker{TargetService: s})

	var h http.Handler = httpmiddleware.RecordRoute(mux)
	h = middleware.NewTimeoutHandler(s.config.UpstreamTimeout, s.logger).Handler(h)
	if s.config.EnableHTTPHistograms {
		h = httpmiddleware.NewRequestDurationHandler(h)
	}
	h = cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedHeaders:   s.config.CORSAllowedHeaders,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowCredentials: true,
	}).Handler(h)
	h = recovery.HTTPPanicRecoveryHandler(h, s.logger)
	h = logging.NewHTTPLoggingHandler(h, s.logger)
	h = requestid.NewHTTPHandler(h)
	return otelhttp.NewHandler(h, build.ProjectName)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.DebugWithContext(r.Context(), "failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	encoded := serverErrors.HandleError("", err)
	if encoded.IsInternal() {
		logging.SetInternalError(r.Context(), err)
	}
	encoded.Write(w)
}
