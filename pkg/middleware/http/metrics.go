package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/subquery/query-subgraph/internal/build"
)

const unmatchedRoute = "unmatched"

var requestDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace:                       build.MetricsNamespace,
	Name:                            "request_duration_ms",
	Help:                            "The request duration (in ms) labeled by method, route and status code.",
	Buckets:                         []float64{1, 5, 10, 25, 50, 100, 200, 300, 1000, 2000, 5000, 10000},
	NativeHistogramBucketFactor:     1.1,
	NativeHistogramMaxBucketNumber:  100,
	NativeHistogramMinResetDuration: time.Hour,
}, []string{"method", "route", "code"})

// NewRequestDurationHandler observes the duration of every request. The route label is
// the pattern recorded by RecordRoute, so ids in paths do not explode the label set.
func NewRequestDurationHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := rec.Route
		if route == "" {
			route = unmatchedRoute
		}
		requestDurationHistogram.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status)).
			Observe(float64(time.Since(start).Milliseconds()))
	})
}
