package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
		err    string
	}{
		{
			name:   "default_is_valid",
			modify: func(cfg *Config) {},
		},
		{
			name:   "schema_name_with_quote",
			modify: func(cfg *Config) { cfg.Name = `app"; drop` },
			err:    "config 'name' must be a valid schema name, got \"app\\\"; drop\"",
		},
		{
			name:   "unknown_engine",
			modify: func(cfg *Config) { cfg.Datastore.Engine = "memory" },
			err:    "config 'datastore.engine' must be one of ['postgres', 'mysql', 'sqlite']",
		},
		{
			name:   "sqlite_needs_uri",
			modify: func(cfg *Config) { cfg.Datastore.Engine = "sqlite" },
			err:    "config 'datastore.uri' is required for the sqlite engine",
		},
		{
			name:   "zero_limit",
			modify: func(cfg *Config) { cfg.Query.Limit = 0 },
			err:    "config 'query.limit' must be positive",
		},
		{
			name:   "max_limit_below_limit",
			modify: func(cfg *Config) { cfg.Query.MaxLimit = 10 },
			err:    "config 'query.maxLimit' (10) cannot be lower than 'query.limit' config (100)",
		},
		{
			name:   "zero_query_timeout",
			modify: func(cfg *Config) { cfg.Query.Timeout = 0 },
			err:    "config 'query.timeout' must be a positive duration",
		},
		{
			name: "upstream_timeout_below_query_timeout",
			modify: func(cfg *Config) {
				cfg.Query.Timeout = 5 * time.Minute
				cfg.HTTP.UpstreamTimeout = 2 * time.Second
			},
			err: "config 'http.upstreamTimeout' (2s) cannot be lower than 'query.timeout' config (5m0s)",
		},
		{
			name:   "negative_cache",
			modify: func(cfg *Config) { cfg.Query.PlanCacheSize = -1 },
			err:    "config 'query.planCacheSize' cannot be negative",
		},
		{
			name:   "indexer_url_scheme",
			modify: func(cfg *Config) { cfg.Indexer.URL = "indexer:3000" },
			err:    "config 'indexer.url' must be an http(s) URL, got \"indexer:3000\"",
		},
		{
			name:   "log_format",
			modify: func(cfg *Config) { cfg.Log.Format = "xml" },
			err:    "config 'log.format' must be one of ['text', 'json']",
		},
		{
			name:   "log_level",
			modify: func(cfg *Config) { cfg.Log.Level = "verbose" },
			err:    "config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		},
		{
			name: "sample_ratio",
			modify: func(cfg *Config) {
				cfg.Trace.Enabled = true
				cfg.Trace.SampleRatio = 1.5
			},
			err: "config 'trace.sampleRatio' must be between 0 and 1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)

			err := cfg.Verify()
			if tc.err == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tc.err)
		})
	}
}

func TestDatastoreURI(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Datastore.Host = "db"
	cfg.Datastore.Port = 6543
	cfg.Datastore.Database = "subql"
	require.Equal(t, "postgres://db:6543/subql", cfg.DatastoreURI())

	cfg.Datastore.URI = "postgres://other/x"
	require.Equal(t, "postgres://other/x", cfg.DatastoreURI())

	cfg.Datastore.Engine = "sqlite"
	cfg.Datastore.URI = "file.db"
	require.Equal(t, "file.db", cfg.DatastoreURI())
}

func TestMustDefaultConfig(t *testing.T) {
	cfg := MustDefaultConfig()
	require.False(t, cfg.Metrics.Enabled)
	require.False(t, cfg.Trace.Enabled)
	require.NoError(t, cfg.Verify())
}
