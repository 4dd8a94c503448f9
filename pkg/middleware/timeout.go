package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/subquery/query-subgraph/pkg/logger"
)

// TimeoutHandler sets the timeout in each request
type TimeoutHandler struct {
	timeout time.Duration
	logger  logger.Logger
}

// NewTimeoutHandler returns new TimeoutHandler that timeouts request if it
// exceeds the timeout value
func NewTimeoutHandler(timeout time.Duration, logger logger.Logger) *TimeoutHandler {
	return &TimeoutHandler{
		timeout: timeout,
		logger:  logger,
	}
}

// Handler bounds the context of every request. Unlike http.TimeoutHandler it does not
// write the response itself, so handlers can map the deadline to their own error body.
func (h *TimeoutHandler) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		next.ServeHTTP(w, r.WithContext(ctx))

		if ctx.Err() == context.DeadlineExceeded {
			h.logger.WarnWithContext(ctx, "request exceeded its deadline",
				zap.String("http_path", r.URL.Path), zap.Duration("timeout", h.timeout))
		}
	})
}
