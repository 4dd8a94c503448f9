// Package config contains all knobs and defaults used to configure the query service when
// running as a standalone server.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

const (
	DefaultSchema          = "public"
	DefaultQueryLimit      = 100
	DefaultMaxQueryLimit   = 1000
	DefaultQueryTimeout    = 10 * time.Second
	DefaultPlanCacheSize   = 10000
	DefaultIndexerTimeout  = 5 * time.Second
	DefaultIndexerRetryMax = 2
)

var schemaPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$-]*$`)

type DatastoreMetricsConfig struct {
	// Enabled enables export of the Datastore metrics.
	Enabled bool
}

// DatastoreConfig defines the connection to the database the indexer writes to.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'postgres', 'mysql', 'sqlite')
	Engine   string
	URI      string
	Username string
	Password string

	// Host, Port and Database build a postgres URI when URI is empty.
	Host     string
	Port     int
	Database string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections to the datastore in the idle connection
	// pool.
	MaxIdleConns int

	// ConnMaxIdleTime is the maximum amount of time a connection to the datastore may be idle.
	ConnMaxIdleTime time.Duration

	// ConnMaxLifetime is the maximum amount of time a connection to the datastore may be reused.
	ConnMaxLifetime time.Duration

	// Metrics is configuration for the Datastore metrics.
	Metrics DatastoreMetricsConfig
}

type HTTPConfig struct {
	Addr string

	// UpstreamTimeout bounds the handling of one request, queries included.
	UpstreamTimeout time.Duration

	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
}

// QueryConfig tunes how requests are turned into SQL.
type QueryConfig struct {
	// Limit is the page size used when a request does not ask for one.
	Limit int

	// MaxLimit is the largest page size a request may ask for.
	MaxLimit int

	// Timeout is the statement timeout of every query.
	Timeout time.Duration

	// Explain logs the plan of every statement before it runs.
	Explain bool

	// PlanCacheSize is the number of rendered statements kept. Zero disables the cache.
	PlanCacheSize int64

	// AllowNull makes null filter values mean "no condition" instead of an error.
	AllowNull bool

	// AllowEmptyObject makes empty filter objects mean "no condition" instead of an error.
	AllowEmptyObject bool
}

// IndexerConfig points at a running indexer whose status enriches metadata responses.
type IndexerConfig struct {
	URL      string
	Timeout  time.Duration
	RetryMax int
}

type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

type OTLPTraceConfig struct {
	Endpoint string
}

type MetricConfig struct {
	Enabled bool
	Addr    string

	// EnableHTTPHistograms records the request duration of every route.
	EnableHTTPHistograms bool
}

type Config struct {
	// Name is the database schema the indexer writes the project to.
	Name string

	// TagsFile is a YAML file adjusting the exposed catalog (hidden tables and columns,
	// relation names, virtual foreign keys).
	TagsFile string

	Datastore DatastoreConfig
	HTTP      HTTPConfig
	Query     QueryConfig
	Indexer   IndexerConfig
	Log       LogConfig
	Trace     TraceConfig
	Metrics   MetricConfig
}

func (cfg *Config) Verify() error {
	if !schemaPattern.MatchString(cfg.Name) {
		return fmt.Errorf("config 'name' must be a valid schema name, got %q", cfg.Name)
	}

	switch cfg.Datastore.Engine {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config 'datastore.engine' must be one of ['postgres', 'mysql', 'sqlite']")
	}

	if cfg.Datastore.Engine != "postgres" && cfg.Datastore.URI == "" {
		return fmt.Errorf("config 'datastore.uri' is required for the %s engine", cfg.Datastore.Engine)
	}

	if cfg.Query.Limit <= 0 {
		return errors.New("config 'query.limit' must be positive")
	}

	if cfg.Query.MaxLimit < cfg.Query.Limit {
		return fmt.Errorf(
			"config 'query.maxLimit' (%d) cannot be lower than 'query.limit' config (%d)",
			cfg.Query.MaxLimit,
			cfg.Query.Limit,
		)
	}

	if cfg.Query.Timeout <= 0 {
		return errors.New("config 'query.timeout' must be a positive duration")
	}

	if cfg.HTTP.UpstreamTimeout < cfg.Query.Timeout {
		return fmt.Errorf(
			"config 'http.upstreamTimeout' (%s) cannot be lower than 'query.timeout' config (%s)",
			cfg.HTTP.UpstreamTimeout,
			cfg.Query.Timeout,
		)
	}

	if cfg.Query.PlanCacheSize < 0 {
		return errors.New("config 'query.planCacheSize' cannot be negative")
	}

	if cfg.Indexer.URL != "" {
		u, err := url.Parse(cfg.Indexer.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("config 'indexer.url' must be an http(s) URL, got %q", cfg.Indexer.URL)
		}
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" &&
		cfg.Log.Level != "panic" &&
		cfg.Log.Level != "fatal" {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Trace.Enabled && (cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1) {
		return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
	}

	return nil
}

// DatastoreURI returns the configured URI, or a postgres URI assembled from host, port and
// database when none is set.
func (cfg *Config) DatastoreURI() string {
	ds := cfg.Datastore
	if ds.URI != "" || ds.Engine != "postgres" {
		return ds.URI
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", ds.Host, ds.Port),
		Path:   "/" + ds.Database,
	}
	return u.String()
}

func DefaultConfig() *Config {
	return &Config{
		Name: DefaultSchema,
		Datastore: DatastoreConfig{
			Engine:       "postgres",
			Host:         "127.0.0.1",
			Port:         5432,
			Database:     "postgres",
			MaxIdleConns: 10,
			MaxOpenConns: 30,
		},
		HTTP: HTTPConfig{
			Addr:               "0.0.0.0:3000",
			UpstreamTimeout:    DefaultQueryTimeout + 5*time.Second,
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedHeaders: []string{"*"},
		},
		Query: QueryConfig{
			Limit:         DefaultQueryLimit,
			MaxLimit:      DefaultMaxQueryLimit,
			Timeout:       DefaultQueryTimeout,
			PlanCacheSize: DefaultPlanCacheSize,
		},
		Indexer: IndexerConfig{
			Timeout:  DefaultIndexerTimeout,
			RetryMax: DefaultIndexerRetryMax,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
			},
			SampleRatio: 0.2,
			ServiceName: "query-subgraph",
		},
		Metrics: MetricConfig{
			Enabled:              true,
			Addr:                 "0.0.0.0:2112",
			EnableHTTPHistograms: false,
		},
	}
}

// MustDefaultConfig returns default server config with tracing and metrics turned off.
func MustDefaultConfig() *Config {
	config := DefaultConfig()

	config.Metrics.Enabled = false
	config.Trace.Enabled = false

	return config
}
