// Package health contains the handler that reports whether the server can take traffic.
package health

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

// TargetService defines an interface that services can implement for server health checks.
type TargetService interface {
	IsReady(ctx context.Context) (bool, error)
}

type response struct {
	Status string `json:"status"`
}

// Checker answers health checks for one TargetService.
type Checker struct {
	TargetService
}

func (o *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, code := StatusServing, http.StatusOK

	ready, err := o.IsReady(r.Context())
	if err != nil || !ready {
		status, code = StatusNotServing, http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response{Status: status})
}
