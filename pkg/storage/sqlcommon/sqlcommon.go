package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/logger"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/telemetry"
)

var tracer = otel.Tracer("pkg/storage/sqlcommon")

const DefaultSchema = "public"

// Config defines the configuration parameters
// for setting up and managing a sql connection.
type Config struct {
	Username string
	Password string
	Schema   string
	Logger   logger.Logger
	Tags     *catalog.Tags

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	QueryTimeout time.Duration
	Explain      bool

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithSchema returns a DatastoreOption that sets the schema the indexer writes to.
func WithSchema(schema string) DatastoreOption {
	return func(config *Config) {
		config.Schema = schema
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithTags returns a DatastoreOption that applies a tags document to introspection.
func WithTags(t *catalog.Tags) DatastoreOption {
	return func(cfg *Config) {
		cfg.Tags = t
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// WithQueryTimeout returns a DatastoreOption that bounds every statement.
func WithQueryTimeout(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.QueryTimeout = d
	}
}

// WithExplain returns a DatastoreOption that logs the query plan of every statement.
func WithExplain(explain bool) DatastoreOption {
	return func(cfg *Config) {
		cfg.Explain = explain
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema
	}

	return cfg
}

// DBInfo encapsulates DB information for use in common method.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn

	logger        logger.Logger
	timeout       time.Duration
	explainPrefix string
}

type errorHandlerFn func(error) error

// NewDBInfo constructs a [DBInfo] object. Statements are explained with explainPrefix
// when cfg.Explain is set.
func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler errorHandlerFn, cfg *Config, explainPrefix string) *DBInfo {
	info := &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
		logger:         cfg.Logger,
		timeout:        cfg.QueryTimeout,
	}
	if cfg.Explain {
		info.explainPrefix = explainPrefix
	}
	return info
}

// DB returns the underlying connection pool.
func (i *DBInfo) DB() *sql.DB {
	return i.db
}

// Builder returns the statement builder bound to the connection pool.
func (i *DBInfo) Builder() sq.StatementBuilderType {
	return i.stbl
}

// Query runs a rendered statement under the configured timeout and scans every row.
func Query(ctx context.Context, dbInfo *DBInfo, stmt storage.Statement) ([]storage.Row, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("args", len(stmt.Args)))

	if dbInfo.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbInfo.timeout)
		defer cancel()
	}

	if dbInfo.explainPrefix != "" {
		dbInfo.explain(ctx, stmt)
	}

	rows, err := dbInfo.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		err = dbInfo.handle(ctx, err)
		telemetry.TraceError(span, err)
		return nil, err
	}
	defer rows.Close()

	out, err := scanRows(rows, stmt.Columns, stmt.Kinds)
	if err != nil {
		err = dbInfo.handle(ctx, err)
		telemetry.TraceError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

func (i *DBInfo) handle(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", storage.ErrQueryTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return storage.ErrCancelled
	}
	return i.HandleSQLError(err)
}

func (i *DBInfo) explain(ctx context.Context, stmt storage.Statement) {
	rows, err := i.db.QueryContext(ctx, i.explainPrefix+" "+stmt.SQL, stmt.Args...)
	if err != nil {
		i.logger.WarnWithContext(ctx, "explain failed", zap.Error(err))
		return
	}
	defer rows.Close()

	plan, err := scanRows(rows, nil, nil)
	if err != nil {
		i.logger.WarnWithContext(ctx, "explain failed", zap.Error(err))
		return
	}
	lines := make([]string, 0, len(plan))
	for _, r := range plan {
		lines = append(lines, fmt.Sprint(r.Values...))
	}
	i.logger.InfoWithContext(ctx, "query plan", zap.String("sql", stmt.SQL), zap.Strings("plan", lines))
}

// IsReady returns true if connection to datastore is successful.
func IsReady(ctx context.Context, db *sql.DB) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}

// HandleSQLError translates errors every driver reports the same way.
func HandleSQLError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	return fmt.Errorf("sql error: %w", err)
}
