package run

import (
	"github.com/spf13/cobra"

	"github.com/subquery/query-subgraph/cmd/util"
)

// bindRunFlags binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindRunFlags(command *cobra.Command) {
	defaultConfig := DefaultConfig()
	flags := command.Flags()

	flags.StringP("name", "n", defaultConfig.Name, "the database schema of the project to serve")
	util.MustBindPFlag("name", flags.Lookup("name"))
	util.MustBindEnv("name", "SUBGRAPH_NAME", "PG_SCHEMA")

	flags.String("tags-file", defaultConfig.TagsFile, "a YAML file hiding tables and columns, renaming relations or declaring foreign keys")
	util.MustBindPFlag("tagsFile", flags.Lookup("tags-file"))
	util.MustBindEnv("tagsFile", "SUBGRAPH_TAGS_FILE", "SUBGRAPH_TAGSFILE")

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine the indexer writes to ('postgres', 'mysql' or 'sqlite')")
	util.MustBindPFlag("datastore.engine", flags.Lookup("datastore-engine"))
	util.MustBindEnv("datastore.engine", "SUBGRAPH_DATASTORE_ENGINE")

	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri of the datastore (postgres builds one from host, port and database when unset)")
	util.MustBindPFlag("datastore.uri", flags.Lookup("datastore-uri"))
	util.MustBindEnv("datastore.uri", "SUBGRAPH_DATASTORE_URI")

	flags.String("datastore-username", defaultConfig.Datastore.Username, "the connection username, overriding the one in the uri")
	util.MustBindPFlag("datastore.username", flags.Lookup("datastore-username"))
	util.MustBindEnv("datastore.username", "SUBGRAPH_DATASTORE_USERNAME", "DB_USER")

	flags.String("datastore-password", defaultConfig.Datastore.Password, "the connection password, overriding the one in the uri")
	util.MustBindPFlag("datastore.password", flags.Lookup("datastore-password"))
	util.MustBindEnv("datastore.password", "SUBGRAPH_DATASTORE_PASSWORD", "DB_PASS")

	flags.String("datastore-host", defaultConfig.Datastore.Host, "the postgres host used when no uri is set")
	util.MustBindPFlag("datastore.host", flags.Lookup("datastore-host"))
	util.MustBindEnv("datastore.host", "SUBGRAPH_DATASTORE_HOST", "DB_HOST")

	flags.Int("datastore-port", defaultConfig.Datastore.Port, "the postgres port used when no uri is set")
	util.MustBindPFlag("datastore.port", flags.Lookup("datastore-port"))
	util.MustBindEnv("datastore.port", "SUBGRAPH_DATASTORE_PORT", "DB_PORT")

	flags.String("datastore-database", defaultConfig.Datastore.Database, "the postgres database used when no uri is set")
	util.MustBindPFlag("datastore.database", flags.Lookup("datastore-database"))
	util.MustBindEnv("datastore.database", "SUBGRAPH_DATASTORE_DATABASE", "DB_DATABASE")

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")
	util.MustBindPFlag("datastore.maxOpenConns", flags.Lookup("datastore-max-open-conns"))
	util.MustBindEnv("datastore.maxOpenConns", "SUBGRAPH_DATASTORE_MAX_OPEN_CONNS", "SUBGRAPH_DATASTORE_MAXOPENCONNS")

	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")
	util.MustBindPFlag("datastore.maxIdleConns", flags.Lookup("datastore-max-idle-conns"))
	util.MustBindEnv("datastore.maxIdleConns", "SUBGRAPH_DATASTORE_MAX_IDLE_CONNS", "SUBGRAPH_DATASTORE_MAXIDLECONNS")

	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")
	util.MustBindPFlag("datastore.connMaxIdleTime", flags.Lookup("datastore-conn-max-idle-time"))
	util.MustBindEnv("datastore.connMaxIdleTime", "SUBGRAPH_DATASTORE_CONN_MAX_IDLE_TIME", "SUBGRAPH_DATASTORE_CONNMAXIDLETIME")

	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")
	util.MustBindPFlag("datastore.connMaxLifetime", flags.Lookup("datastore-conn-max-lifetime"))
	util.MustBindEnv("datastore.connMaxLifetime", "SUBGRAPH_DATASTORE_CONN_MAX_LIFETIME", "SUBGRAPH_DATASTORE_CONNMAXLIFETIME")

	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics.Enabled, "enable/disable sql metrics")
	util.MustBindPFlag("datastore.metrics.enabled", flags.Lookup("datastore-metrics-enabled"))
	util.MustBindEnv("datastore.metrics.enabled", "SUBGRAPH_DATASTORE_METRICS_ENABLED")

	flags.String("http-addr", defaultConfig.HTTP.Addr, "the host:port address to serve the HTTP server on")
	util.MustBindPFlag("http.addr", flags.Lookup("http-addr"))
	util.MustBindEnv("http.addr", "SUBGRAPH_HTTP_ADDR")

	flags.Int("port", 0, "the port to serve the HTTP server on, overriding the port of http-addr")
	util.MustBindPFlag("port", flags.Lookup("port"))
	util.MustBindEnv("port", "SUBGRAPH_PORT")

	flags.Duration("http-upstream-timeout", defaultConfig.HTTP.UpstreamTimeout, "the timeout duration for handling one HTTP request")
	util.MustBindPFlag("http.upstreamTimeout", flags.Lookup("http-upstream-timeout"))
	util.MustBindEnv("http.upstreamTimeout", "SUBGRAPH_HTTP_UPSTREAM_TIMEOUT", "SUBGRAPH_HTTP_UPSTREAMTIMEOUT")

	flags.StringSlice("http-cors-allowed-origins", defaultConfig.HTTP.CORSAllowedOrigins, "specifies the CORS allowed origins")
	util.MustBindPFlag("http.corsAllowedOrigins", flags.Lookup("http-cors-allowed-origins"))
	util.MustBindEnv("http.corsAllowedOrigins", "SUBGRAPH_HTTP_CORS_ALLOWED_ORIGINS", "SUBGRAPH_HTTP_CORSALLOWEDORIGINS")

	flags.StringSlice("http-cors-allowed-headers", defaultConfig.HTTP.CORSAllowedHeaders, "specifies the CORS allowed headers")
	util.MustBindPFlag("http.corsAllowedHeaders", flags.Lookup("http-cors-allowed-headers"))
	util.MustBindEnv("http.corsAllowedHeaders", "SUBGRAPH_HTTP_CORS_ALLOWED_HEADERS", "SUBGRAPH_HTTP_CORSALLOWEDHEADERS")

	flags.Int("query-limit", defaultConfig.Query.Limit, "the page size used when a request does not ask for one")
	util.MustBindPFlag("query.limit", flags.Lookup("query-limit"))
	util.MustBindEnv("query.limit", "SUBGRAPH_QUERY_LIMIT")

	flags.Int("query-max-limit", defaultConfig.Query.MaxLimit, "the largest page size a request may ask for")
	util.MustBindPFlag("query.maxLimit", flags.Lookup("query-max-limit"))
	util.MustBindEnv("query.maxLimit", "SUBGRAPH_QUERY_MAX_LIMIT", "SUBGRAPH_QUERY_MAXLIMIT")

	flags.Duration("query-timeout", defaultConfig.Query.Timeout, "the statement timeout of every query")
	util.MustBindPFlag("query.timeout", flags.Lookup("query-timeout"))
	util.MustBindEnv("query.timeout", "SUBGRAPH_QUERY_TIMEOUT")

	flags.Bool("query-explain", defaultConfig.Query.Explain, "log the plan of every statement before it runs")
	util.MustBindPFlag("query.explain", flags.Lookup("query-explain"))
	util.MustBindEnv("query.explain", "SUBGRAPH_QUERY_EXPLAIN")

	flags.Int64("query-plan-cache-size", defaultConfig.Query.PlanCacheSize, "the number of rendered statements kept (0 disables the cache)")
	util.MustBindPFlag("query.planCacheSize", flags.Lookup("query-plan-cache-size"))
	util.MustBindEnv("query.planCacheSize", "SUBGRAPH_QUERY_PLAN_CACHE_SIZE", "SUBGRAPH_QUERY_PLANCACHESIZE")

	flags.Bool("query-allow-null", defaultConfig.Query.AllowNull, "treat null filter values as no condition instead of rejecting them")
	util.MustBindPFlag("query.allowNull", flags.Lookup("query-allow-null"))
	util.MustBindEnv("query.allowNull", "SUBGRAPH_QUERY_ALLOW_NULL", "SUBGRAPH_QUERY_ALLOWNULL")

	flags.Bool("query-allow-empty-object", defaultConfig.Query.AllowEmptyObject, "treat empty filter objects as no condition instead of rejecting them")
	util.MustBindPFlag("query.allowEmptyObject", flags.Lookup("query-allow-empty-object"))
	util.MustBindEnv("query.allowEmptyObject", "SUBGRAPH_QUERY_ALLOW_EMPTY_OBJECT", "SUBGRAPH_QUERY_ALLOWEMPTYOBJECT")

	flags.String("indexer", defaultConfig.Indexer.URL, "the url of the indexer whose meta and health enrich metadata responses")
	util.MustBindPFlag("indexer.url", flags.Lookup("indexer"))
	util.MustBindEnv("indexer.url", "SUBGRAPH_INDEXER", "SUBGRAPH_INDEXER_URL")

	flags.Duration("indexer-timeout", defaultConfig.Indexer.Timeout, "the timeout of one request to the indexer")
	util.MustBindPFlag("indexer.timeout", flags.Lookup("indexer-timeout"))
	util.MustBindEnv("indexer.timeout", "SUBGRAPH_INDEXER_TIMEOUT")

	flags.Int("indexer-retry-max", defaultConfig.Indexer.RetryMax, "the number of times a failed request to the indexer is retried")
	util.MustBindPFlag("indexer.retryMax", flags.Lookup("indexer-retry-max"))
	util.MustBindEnv("indexer.retryMax", "SUBGRAPH_INDEXER_RETRY_MAX", "SUBGRAPH_INDEXER_RETRYMAX")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "SUBGRAPH_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "SUBGRAPH_LOG_LEVEL")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
	util.MustBindEnv("trace.enabled", "SUBGRAPH_TRACE_ENABLED")

	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	util.MustBindPFlag("trace.otlp.endpoint", flags.Lookup("trace-otlp-endpoint"))
	util.MustBindEnv("trace.otlp.endpoint", "SUBGRAPH_TRACE_OTLP_ENDPOINT")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
	util.MustBindEnv("trace.sampleRatio", "SUBGRAPH_TRACE_SAMPLE_RATIO", "SUBGRAPH_TRACE_SAMPLERATIO")

	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces.")
	util.MustBindPFlag("trace.serviceName", flags.Lookup("trace-service-name"))
	util.MustBindEnv("trace.serviceName", "SUBGRAPH_TRACE_SERVICE_NAME", "SUBGRAPH_TRACE_SERVICENAME")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint")
	util.MustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	util.MustBindEnv("metrics.enabled", "SUBGRAPH_METRICS_ENABLED")

	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")
	util.MustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	util.MustBindEnv("metrics.addr", "SUBGRAPH_METRICS_ADDR")

	flags.Bool("metrics-enable-http-histograms", defaultConfig.Metrics.EnableHTTPHistograms, "enables request duration histograms for every route")
	util.MustBindPFlag("metrics.enableHTTPHistograms", flags.Lookup("metrics-enable-http-histograms"))
	util.MustBindEnv("metrics.enableHTTPHistograms", "SUBGRAPH_METRICS_ENABLE_HTTP_HISTOGRAMS", "SUBGRAPH_METRICS_ENABLEHTTPHISTOGRAMS")
}
