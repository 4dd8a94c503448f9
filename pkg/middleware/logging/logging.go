// Package logging writes one access log entry per HTTP request.
package logging

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/subquery/query-subgraph/pkg/logger"
	httpmiddleware "github.com/subquery/query-subgraph/pkg/middleware/http"
)

const (
	httpMethodKey      = "http_method"
	httpRouteKey       = "http_route"
	httpPathKey        = "http_path"
	httpCodeKey        = "http_code"
	traceIDKey         = "trace_id"
	internalErrorKey   = "internal_error"
	httpReqCompleteKey = "http_req_complete"
	userAgentKey       = "user_agent"
	queryDurationKey   = "query_duration_ms"

	healthCheckPath = "/healthz"
)

type internalErrorCtxKey struct{}

type internalError struct {
	mu  sync.Mutex
	err error
}

// SetInternalError attaches err to the access log entry of the request running under ctx.
// Handlers call it for failures whose detail must not reach the client.
func SetInternalError(ctx context.Context, err error) {
	if holder, ok := ctx.Value(internalErrorCtxKey{}).(*internalError); ok {
		holder.mu.Lock()
		holder.err = err
		holder.mu.Unlock()
	}
}

// NewHTTPLoggingHandler logs every completed request except health checks. Requests that
// recorded an internal error are logged at error level.
func NewHTTPLoggingHandler(next http.Handler, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthCheckPath {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		holder := &internalError{}
		ctx := context.WithValue(r.Context(), internalErrorCtxKey{}, holder)
		rec := httpmiddleware.NewStatusRecorder(w)

		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String(httpMethodKey, r.Method),
			zap.String(httpPathKey, r.URL.Path),
			zap.Int(httpCodeKey, rec.Status),
			zap.String(queryDurationKey, strconv.FormatInt(time.Since(start).Milliseconds(), 10)),
		}
		if rec.Route != "" {
			fields = append(fields, zap.String(httpRouteKey, rec.Route))
		}

		spanCtx := trace.SpanContextFromContext(ctx)
		if spanCtx.HasTraceID() {
			fields = append(fields, zap.String(traceIDKey, spanCtx.TraceID().String()))
		}

		if ua := r.UserAgent(); ua != "" {
			fields = append(fields, zap.String(userAgentKey, ua))
		}

		holder.mu.Lock()
		err := holder.err
		holder.mu.Unlock()
		if err != nil {
			fields = append(fields, zap.String(internalErrorKey, err.Error()))
			l.ErrorWithContext(ctx, httpReqCompleteKey, fields...)
			return
		}

		l.InfoWithContext(ctx, httpReqCompleteKey, fields...)
	})
}
