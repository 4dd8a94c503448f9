package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := NewStatusRecorder(rec)
	require.Equal(t, http.StatusOK, sr.Status)
	require.Same(t, sr, NewStatusRecorder(sr))

	sr.WriteHeader(http.StatusNotFound)
	n, err := sr.Write([]byte("missing"))
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, sr.Status)
	require.Equal(t, n, sr.Bytes)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, rec, sr.Unwrap())
}

func TestRecordRoute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/{entity}/{id}", func(w http.ResponseWriter, r *http.Request) {})

	sr := NewStatusRecorder(httptest.NewRecorder())
	RecordRoute(mux).ServeHTTP(sr, httptest.NewRequest(http.MethodGet, "/v1/accounts/a01", nil))
	require.Equal(t, "GET /v1/{entity}/{id}", sr.Route)

	sr = NewStatusRecorder(httptest.NewRecorder())
	RecordRoute(mux).ServeHTTP(sr, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	require.Empty(t, sr.Route)
	require.Equal(t, http.StatusNotFound, sr.Status)
}

func TestNewRequestDurationHandler(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/{entity}/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := NewRequestDurationHandler(RecordRoute(mux))

	for _, id := range []string{"a01", "a02", "a03"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/accounts/"+id, nil))
	}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Equal(t, 2, testutil.CollectAndCount(requestDurationHistogram, "query_subgraph_request_duration_ms"))
}
