// Package http contains the HTTP middlewares shared by every route of the server.
package http

import (
	"net/http"
)

// StatusRecorder remembers the status code written through it.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
	Bytes  int
	// Route is the pattern the mux matched, set by RecordRoute.
	Route string
}

// NewStatusRecorder wraps w. The status defaults to 200, as in net/http.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.Bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RecordRoute wraps a mux and copies the pattern it matched onto the StatusRecorder
// wrapping w. Middlewares further out cannot read r.Pattern themselves once any of them
// has replaced the request with a copy.
func RecordRoute(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if rec, ok := w.(*StatusRecorder); ok {
			rec.Route = r.Pattern
		}
	})
}
