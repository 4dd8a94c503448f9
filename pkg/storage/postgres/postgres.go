package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
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

var tracer = otel.Tracer("pkg/storage/postgres")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "postgres."+name)
}

// query_canceled, raised when statement_timeout fires.
const queryCanceledCode = "57014"

// Datastore provides a PostgreSQL based implementation of [storage.Datastore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	cfg              *sqlcommon.Config
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

// Ensures that Datastore implements the Datastore interface.
var (
	_ storage.Datastore         = (*Datastore)(nil)
	_ storage.RowCountEstimator = (*Datastore)(nil)
)

// PrepareURI applies the configured credentials and sets the server side statement
// timeout, so a runaway statement is stopped by the server even if the client goes away.
func PrepareURI(uri string, cfg *sqlcommon.Config) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse postgres connection uri: %w", err)
	}

	if cfg.Username != "" || cfg.Password != "" {
		username := ""
		if cfg.Username != "" {
			username = cfg.Username
		} else if parsed.User != nil {
			username = parsed.User.Username()
		}

		switch {
		case cfg.Password != "":
			parsed.User = url.UserPassword(username, cfg.Password)
		case parsed.User != nil:
			if password, ok := parsed.User.Password(); ok {
				parsed.User = url.UserPassword(username, password)
			} else {
				parsed.User = url.User(username)
			}
		default:
			parsed.User = url.User(username)
		}
	}

	if cfg.QueryTimeout > 0 {
		query := parsed.Query()
		if !query.Has("statement_timeout") {
			query.Set("statement_timeout", strconv.FormatInt(cfg.QueryTimeout.Milliseconds(), 10))
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}

// initDB initializes a new postgres database connection.
func initDB(uri string, cfg *sqlcommon.Config) (*sql.DB, error) {
	uri, err := PrepareURI(uri, cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}

	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns) // default is 2, not retaining connections(0) would be detrimental for performance
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	db, err := initDB(uri, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}

	return NewWithDB(db, cfg)
}

// configureDB waits for the database and registers its pool metrics.
func configureDB(db *sql.DB, cfg *sqlcommon.Config) (prometheus.Collector, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err := backoff.Retry(func() error {
		err := db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for database", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	return collector, nil
}

// NewWithDB creates a new [Datastore] storage with the provided database connection.
func NewWithDB(db *sql.DB, cfg *sqlcommon.Config) (*Datastore, error) {
	collector, err := configureDB(db, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure db: %w", err)
	}

	stbl := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db)
	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           sqlcommon.NewDBInfo(db, stbl, HandleSQLError, cfg, "EXPLAIN"),
		cfg:              cfg,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Close see [storage.Datastore].Close.
func (s *Datastore) Close() {
	if s.dbStatsCollector != nil {
		prometheus.Unregister(s.dbStatsCollector)
	}
	s.db.Close()
}

// Dialect see [storage.Datastore].Dialect.
func (s *Datastore) Dialect() dialect.Dialect {
	return dialect.NewPostgres()
}

// Query see [storage.Datastore].Query.
func (s *Datastore) Query(ctx context.Context, stmt storage.Statement) ([]storage.Row, error) {
	ctx, span := startTrace(ctx, "Query")
	defer span.End()

	return sqlcommon.Query(ctx, s.dbInfo, stmt)
}

// Catalog see [storage.Datastore].Catalog.
func (s *Datastore) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	ctx, span := startTrace(ctx, "Catalog")
	defer span.End()

	return sqlcommon.BuildCatalog(ctx, s.dbInfo, s.cfg, introspection(s.stbl, s.cfg.Schema))
}

// Metadata see [storage.Datastore].Metadata.
func (s *Datastore) Metadata(ctx context.Context, table string) (map[string]json.RawMessage, error) {
	ctx, span := startTrace(ctx, "Metadata")
	defer span.End()

	return sqlcommon.ReadMetadata(ctx, s.dbInfo, s.Dialect(), s.cfg.Schema, table)
}

// RowCountEstimates returns the planner's row estimate for every table of the schema.
func (s *Datastore) RowCountEstimates(ctx context.Context) (map[string]int64, error) {
	ctx, span := startTrace(ctx, "RowCountEstimates")
	defer span.End()

	rows, err := s.stbl.
		Select("c.relname", "c.reltuples::bigint").
		From("pg_class c").
		Join("pg_namespace n ON n.oid = c.relnamespace").
		Where(sq.Eq{"n.nspname": s.cfg.Schema, "c.relkind": "r"}).
		QueryContext(ctx)
	if err != nil {
		return nil, HandleSQLError(err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			table    string
			estimate int64
		)
		if err := rows.Scan(&table, &estimate); err != nil {
			return nil, HandleSQLError(err)
		}
		out[table] = estimate
	}
	if err := rows.Err(); err != nil {
		return nil, HandleSQLError(err)
	}
	return out, nil
}

// IsReady see [sqlcommon.IsReady].
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	return sqlcommon.IsReady(ctx, s.db)
}

func introspection(stbl sq.StatementBuilderType, schema string) sqlcommon.Introspection {
	return sqlcommon.Introspection{
		Columns: stbl.
			Select("c.table_name", "c.column_name", "c.udt_name", "c.is_nullable").
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
			Select("rc.constraint_name", "kcu.table_name", "kcu.column_name", "ref.table_name", "ref.column_name").
			From("information_schema.referential_constraints rc").
			Join("information_schema.key_column_usage kcu ON kcu.constraint_schema = rc.constraint_schema AND kcu.constraint_name = rc.constraint_name").
			Join("information_schema.key_column_usage ref ON ref.constraint_schema = rc.unique_constraint_schema AND ref.constraint_name = rc.unique_constraint_name AND ref.ordinal_position = kcu.position_in_unique_constraint").
			Where(sq.Eq{"rc.constraint_schema": schema}).
			OrderBy("kcu.table_name", "rc.constraint_name", "kcu.ordinal_position"),
	}
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == queryCanceledCode {
		return fmt.Errorf("%w: %w", storage.ErrQueryTimeout, err)
	}

	return sqlcommon.HandleSQLError(err)
}
