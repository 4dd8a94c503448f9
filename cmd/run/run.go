// Package run contains the command to run the query service.
package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	goruntime "runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.uber.org/zap"

	"github.com/subquery/query-subgraph/internal/build"
	serverconfig "github.com/subquery/query-subgraph/internal/server/config"
	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/filter"
	"github.com/subquery/query-subgraph/pkg/logger"
	"github.com/subquery/query-subgraph/pkg/metadata"
	"github.com/subquery/query-subgraph/pkg/query"
	"github.com/subquery/query-subgraph/pkg/server"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/storage/mysql"
	"github.com/subquery/query-subgraph/pkg/storage/postgres"
	"github.com/subquery/query-subgraph/pkg/storage/sqlcommon"
	"github.com/subquery/query-subgraph/pkg/storage/sqlite"
	"github.com/subquery/query-subgraph/pkg/telemetry"
)

// catalogMaxElapsedTime bounds how long startup waits for the datastore to answer.
const catalogMaxElapsedTime = 30 * time.Second

// NewRunCommand returns the command that serves the query API.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the query service",
		Long:  "Run the query service.",
		Run:   run,
		Args:  cobra.NoArgs,
	}

	bindRunFlags(cmd)

	return cmd
}

// DefaultConfig returns the configuration used when neither flags, environment nor a
// config file set a value.
func DefaultConfig() *serverconfig.Config {
	return serverconfig.DefaultConfig()
}

// ReadConfig returns the server configuration based on the values provided in the server's 'config.yaml' file.
// The 'config.yaml' file is loaded from '/etc/query-subgraph', '$HOME/.query-subgraph', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*serverconfig.Config, error) {
	config := serverconfig.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load server config: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}

	if port := viper.GetInt("port"); port > 0 {
		host, _, err := net.SplitHostPort(config.HTTP.Addr)
		if err != nil {
			return nil, fmt.Errorf("config 'http.addr' %q: %w", config.HTTP.Addr, err)
		}
		config.HTTP.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	return config, nil
}

func run(_ *cobra.Command, _ []string) {
	config, err := ReadConfig()
	if err != nil {
		panic(err)
	}

	if err := config.Verify(); err != nil {
		panic(err)
	}

	logger := logger.MustNewLogger(config.Log.Format, config.Log.Level)
	serverCtx := &ServerContext{Logger: logger}
	if err := serverCtx.Run(context.Background(), config); err != nil {
		panic(err)
	}
}

type ServerContext struct {
	Logger logger.Logger
}

// telemetryConfig returns the function that must be called to shut down tracing.
// The context provided to this function should be error-free, or shut down will be incomplete.
func (s *ServerContext) telemetryConfig(config *serverconfig.Config) func() error {
	if config.Trace.Enabled {
		s.Logger.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s'", config.Trace.SampleRatio, config.Trace.OTLP.Endpoint))

		tp := telemetry.MustNewTracerProvider(
			telemetry.WithOTLPEndpoint(config.Trace.OTLP.Endpoint),
			telemetry.WithAttributes(
				semconv.ServiceNameKey.String(config.Trace.ServiceName),
				semconv.ServiceVersionKey.String(build.Version),
			),
			telemetry.WithSamplingRatio(config.Trace.SampleRatio),
		)
		return func() error {
			// the batch span processor may need up to 5 seconds to flush
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return tp.Close(ctx)
		}
	}
	tp := telemetry.Disabled()
	return func() error {
		return tp.Close(context.Background())
	}
}

func (s *ServerContext) datastoreConfig(config *serverconfig.Config) (storage.Datastore, error) {
	var tags *catalog.Tags
	if config.TagsFile != "" {
		var err error
		tags, err = catalog.LoadTags(config.TagsFile)
		if err != nil {
			return nil, err
		}
	}

	datastoreOptions := []sqlcommon.DatastoreOption{
		sqlcommon.WithUsername(config.Datastore.Username),
		sqlcommon.WithPassword(config.Datastore.Password),
		sqlcommon.WithSchema(config.Name),
		sqlcommon.WithLogger(s.Logger),
		sqlcommon.WithTags(tags),
		sqlcommon.WithMaxOpenConns(config.Datastore.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(config.Datastore.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(config.Datastore.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(config.Datastore.ConnMaxLifetime),
		sqlcommon.WithQueryTimeout(config.Query.Timeout),
		sqlcommon.WithExplain(config.Query.Explain),
	}

	if config.Datastore.Metrics.Enabled {
		datastoreOptions = append(datastoreOptions, sqlcommon.WithMetrics())
	}

	dsCfg := sqlcommon.NewConfig(datastoreOptions...)

	var datastore storage.Datastore
	var err error
	switch config.Datastore.Engine {
	case "mysql":
		datastore, err = mysql.New(config.DatastoreURI(), dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize mysql datastore: %w", err)
		}
	case "postgres":
		datastore, err = postgres.New(config.DatastoreURI(), dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres datastore: %w", err)
		}
	case "sqlite":
		datastore, err = sqlite.New(config.DatastoreURI(), dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite datastore: %w", err)
		}
	default:
		return nil, fmt.Errorf("storage engine '%s' is unsupported", config.Datastore.Engine)
	}

	s.Logger.Info(fmt.Sprintf("using '%v' storage engine", config.Datastore.Engine))

	return datastore, nil
}

// catalogConfig introspects the schema, waiting for the datastore to come up, and checks
// that every exposed column can be filtered.
func (s *ServerContext) catalogConfig(ctx context.Context, datastore storage.Datastore) (*catalog.Catalog, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = catalogMaxElapsedTime

	var cat *catalog.Catalog
	err := backoff.RetryNotify(
		func() error {
			var err error
			cat, err = datastore.Catalog(ctx)
			return err
		},
		backoff.WithContext(policy, ctx),
		func(err error, next time.Duration) {
			s.Logger.Warn("failed to introspect the datastore, retrying", zap.Error(err), zap.Duration("next", next))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("introspect datastore: %w", err)
	}

	if err := filter.CheckCatalog(cat, datastore.Dialect()); err != nil {
		return nil, fmt.Errorf("unsupported catalog: %w", err)
	}

	s.Logger.Info(fmt.Sprintf("serving %d entities from schema '%s'", len(cat.Resources()), cat.Schema()))
	return cat, nil
}

func (s *ServerContext) plannerConfig(config *serverconfig.Config, cat *catalog.Catalog, datastore storage.Datastore) (*query.Planner, error) {
	compiler := filter.NewCompiler(cat, datastore.Dialect(), filter.WithGuard(filter.Guard{
		AllowNull:        config.Query.AllowNull,
		AllowEmptyObject: config.Query.AllowEmptyObject,
	}))

	return query.NewPlanner(compiler,
		query.WithDefaultLimit(config.Query.Limit),
		query.WithMaxLimit(config.Query.MaxLimit),
		query.WithCache(config.Query.PlanCacheSize),
	)
}

func (s *ServerContext) metadataConfig(config *serverconfig.Config, datastore storage.Datastore) (*metadata.Service, error) {
	opts := []metadata.Option{metadata.WithLogger(s.Logger)}

	if config.Indexer.URL != "" {
		client, err := metadata.NewIndexerClient(config.Indexer.URL,
			metadata.WithIndexerTimeout(config.Indexer.Timeout),
			metadata.WithIndexerRetryMax(config.Indexer.RetryMax),
			metadata.WithIndexerLogger(s.Logger),
		)
		if err != nil {
			return nil, err
		}
		s.Logger.Info(fmt.Sprintf("reading indexer status from '%s'", config.Indexer.URL))
		opts = append(opts, metadata.WithIndexer(client))
	}

	return metadata.NewService(datastore, opts...), nil
}

func (s *ServerContext) Run(ctx context.Context, config *serverconfig.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProviderCloser := s.telemetryConfig(config)

	datastore, err := s.datastoreConfig(config)
	if err != nil {
		return err
	}
	defer datastore.Close()

	cat, err := s.catalogConfig(ctx, datastore)
	if err != nil {
		return err
	}

	planner, err := s.plannerConfig(config, cat, datastore)
	if err != nil {
		return err
	}
	defer planner.Close()

	meta, err := s.metadataConfig(config, datastore)
	if err != nil {
		return err
	}

	var metricsServer *http.Server
	if config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer = &http.Server{Addr: config.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 30 * time.Second}

		go func() {
			s.Logger.Info(fmt.Sprintf("📈 starting prometheus metrics server on '%s'", config.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					s.Logger.Fatal("failed to start prometheus metrics server", zap.Error(err))
				}
			}
			s.Logger.Info("metrics server shut down.")
		}()
	}

	svr := server.New(&server.Dependencies{
		Datastore: datastore,
		Planner:   planner,
		Metadata:  meta,
		Logger:    s.Logger,
	}, &server.Config{
		UpstreamTimeout:      config.HTTP.UpstreamTimeout,
		CORSAllowedOrigins:   config.HTTP.CORSAllowedOrigins,
		CORSAllowedHeaders:   config.HTTP.CORSAllowedHeaders,
		EnableHTTPHistograms: config.Metrics.EnableHTTPHistograms,
	})

	s.Logger.Info(
		"starting query-subgraph service...",
		zap.String("version", build.Version),
		zap.String("date", build.Date),
		zap.String("commit", build.Commit),
		zap.String("go-version", goruntime.Version()),
		zap.String("schema", config.Name),
	)

	lis, err := net.Listen("tcp", config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:           svr.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		s.Logger.Info(fmt.Sprintf("🚀 starting HTTP server on '%s'...", lis.Addr().String()))
		if err := httpServer.Serve(lis); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Fatal("HTTP server closed with unexpected error", zap.Error(err))
			}
		}
		s.Logger.Info("HTTP server shut down.")
	}()

	// wait for cancellation signal
	<-ctx.Done()
	s.Logger.Info("attempting to shutdown gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		s.Logger.Info("failed to shutdown the http server", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			s.Logger.Info("failed to shutdown the prometheus metrics server", zap.Error(err))
		}
	}

	if err := tracerProviderCloser(); err != nil {
		s.Logger.Error("failed to shutdown tracing", zap.Error(err))
	}

	s.Logger.Info("server exited. goodbye 👋")

	return nil
}
