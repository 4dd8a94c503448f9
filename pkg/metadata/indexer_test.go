package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subquery/query-subgraph/pkg/logger"
)

func TestNewIndexerClient(t *testing.T) {
	var testcases = map[string]struct {
		url      string
		wantErr  bool
		wantMeta string
	}{
		`root`:       {url: "http://indexer:3000", wantMeta: "http://indexer:3000/meta"},
		`slash_base`: {url: "http://indexer:3000/api/", wantMeta: "http://indexer:3000/api/meta"},
		`file_base`:  {url: "http://indexer:3000/api", wantMeta: "http://indexer:3000/meta"},
		`bad_scheme`: {url: "ftp://indexer", wantErr: true},
		`unparsable`: {url: "http://[::1", wantErr: true},
	}

	for name, tc := range testcases {
		t.Run(name, func(t *testing.T) {
			c, err := NewIndexerClient(tc.url)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantMeta, c.endpoint(metaPath))
		})
	}
}

func TestIndexerStatus(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/meta" {
				_, _ = w.Write([]byte(`{"chain":"1"}`))
			}
		}))
		t.Cleanup(srv.Close)

		c, err := NewIndexerClient(srv.URL, WithIndexerRetryMax(0))
		require.NoError(t, err)

		st := c.Status(context.Background())
		require.True(t, st.Healthy)
		require.JSONEq(t, `"1"`, string(st.Meta["chain"]))
	})

	t.Run("unhealthy_status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		t.Cleanup(srv.Close)

		c, err := NewIndexerClient(srv.URL, WithIndexerRetryMax(0))
		require.NoError(t, err)
		require.False(t, c.Status(context.Background()).Healthy)
	})

	t.Run("retries_then_succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" && calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		}))
		t.Cleanup(srv.Close)

		c, err := NewIndexerClient(srv.URL, WithIndexerRetryMax(2))
		require.NoError(t, err)
		require.True(t, c.Status(context.Background()).Healthy)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("unreachable_logs_warning", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		log, logs := logger.NewObserverLogger("warn")
		c, err := NewIndexerClient(url, WithIndexerRetryMax(0), WithIndexerLogger(log))
		require.NoError(t, err)

		st := c.Status(context.Background())
		require.False(t, st.Healthy)
		require.Nil(t, st.Meta)
		require.Equal(t, 1, logs.FilterMessage("failed to fetch indexer meta").Len())
		require.Equal(t, 1, logs.FilterMessage("failed to fetch indexer health").Len())
	})
}
