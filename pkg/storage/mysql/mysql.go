package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/subquery/query-subgraph/internal/build"
	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
	"github.com/subquery/query-subgraph/pkg/logger"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("pkg/storage/mysql")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mysql."+name)
}

// ER_QUERY_TIMEOUT, raised when max_execution_time fires.
const queryTimeoutErrno = 3024

// Datastore provides a MySQL based implementation of [storage.Datastore]. The schema is
// the database named in the DSN unless one is configured.
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	cfg              *sqlcommon.Config
	schema           string
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

var _ storage.Datastore = (*Datastore)(nil)

// PrepareDSN applies the configured credentials and statement timeout to a DSN and
// returns it with the database it names.
func PrepareDSN(uri string, cfg *sqlcommon.Config) (string, string, error) {
	dsnCfg, err := mysql.ParseDSN(uri)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse mysql connection dsn: %w", err)
	}

	if cfg.Username != "" {
		dsnCfg.User = cfg.Username
	}
	if cfg.Password != "" {
		dsnCfg.Passwd = cfg.Password
	}

	dsnCfg.ParseTime = true
	if cfg.QueryTimeout > 0 {
		if dsnCfg.Params == nil {
			dsnCfg.Params = map[string]string{}
		}
		if _, ok := dsnCfg.Params["max_execution_time"]; !ok {
			dsnCfg.Params["max_execution_time"] = strconv.FormatInt(cfg.QueryTimeout.Milliseconds(), 10)
		}
	}

	return dsnCfg.FormatDSN(), dsnCfg.DBName, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, dbName, err := PrepareDSN(uri, cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err = backoff.Retry(func() error {
		err = db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for mysql", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	schema := cfg.Schema
	if schema == sqlcommon.DefaultSchema && dbName != "" {
		schema = dbName
	}

	stbl := sq.StatementBuilder.RunWith(db)
	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           sqlcommon.NewDBInfo(db, stbl, HandleSQLError, cfg, "EXPLAIN"),
		cfg:              cfg,
		schema:           schema,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Close closes the datastore and cleans up any residual resources.
func (m *Datastore) Close() {
	if m.dbStatsCollector != nil {
		prometheus.Unregister(m.dbStatsCollector)
	}
	m.db.Close()
}

// Dialect see [storage.Datastore].Dialect.
func (m *Datastore) Dialect() dialect.Dialect {
	return dialect.NewMySQL()
}

// Query see [storage.Datastore].Query.
func (m *Datastore) Query(ctx context.Context, stmt storage.Statement) ([]storage.Row, error) {
	ctx, span := startTrace(ctx, "Query")
	defer span.End()

	return sqlcommon.Query(ctx, m.dbInfo, stmt)
}

// Catalog see [storage.Datastore].Catalog.
func (m *Datastore) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	ctx, span := startTrace(ctx, "Catalog")
	defer span.End()

	cfg := *m.cfg
	cfg.Schema = m.schema
	return sqlcommon.BuildCatalog(ctx, m.dbInfo, &cfg, introspection(m.stbl, m.schema))
}

// Metadata see [storage.Datastore].Metadata.
func (m *Datastore) Metadata(ctx context.Context, table string) (map[string]json.RawMessage, error) {
	ctx, span := startTrace(ctx, "Metadata")
	defer span.End()

	return sqlcommon.ReadMetadata(ctx, m.dbInfo, m.Dialect(), m.schema, table)
}

// IsReady see [sqlcommon.IsReady].
func (m *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	return sqlcommon.IsReady(ctx, m.db)
}

func introspection(stbl sq.StatementBuilderType, schema string) sqlcommon.Introspection {
	return sqlcommon.Introspection{
		Columns: stbl.
			Select("c.table_name", "c.column_name", "c.data_type", "c.is_nullable").
			From("information_schema.columns c").
			Join("information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name").
			Where(sq.Eq{"c.table_schema": schema, "t.table_type": "BASE TABLE"}).
			OrderBy("c.table_name", "c.ordinal_position"),
		UniqueKeys: stbl.
			Select("tc.constraint_name", "tc.table_name", "tc.constraint_type", "kcu.column_name").
			From("information_schema.table_constraints tc").
			Join("information_schema.key_column_usage kcu ON kcu.constraint_schema = tc.constraint_schema AND kcu.constraint_name = tc.constraint_name AND kcu.table_name = tc.table_name").
			Where(sq.Eq{"tc.table_schema": schema, "tc.constraint_type": []string{"PRIMARY KEY", "UNIQUE"}}).
			OrderBy("tc.table_name", "tc.constraint_name", "kcu.ordinal_position"),
		ForeignKeys: stbl.
			Select("kcu.constraint_name", "kcu.table_name", "kcu.column_name", "kcu.referenced_table_name", "kcu.referenced_column_name").
			From("information_schema.key_column_usage kcu").
			Where(sq.Eq{"kcu.table_schema": schema}).
			Where(sq.NotEq{"kcu.referenced_table_name": nil}).
			OrderBy("kcu.table_name", "kcu.constraint_name", "kcu.ordinal_position"),
	}
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == queryTimeoutErrno {
		return fmt.Errorf("%w: %w", storage.ErrQueryTimeout, err)
	}

	return sqlcommon.HandleSQLError(err)
}
