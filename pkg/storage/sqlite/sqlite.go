package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/subquery/query-subgraph/internal/build"
	"github.com/subquery/query-subgraph/pkg/catalog"
	"github.com/subquery/query-subgraph/pkg/dialect"
	"github.com/subquery/query-subgraph/pkg/logger"
	"github.com/subquery/query-subgraph/pkg/storage"
	"github.com/subquery/query-subgraph/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("pkg/storage/sqlite")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite."+name)
}

// Datastore provides a SQLite based implementation of [storage.Datastore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	cfg              *sqlcommon.Config
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
}

// Ensures that SQLite implements the Datastore interface.
var _ storage.Datastore = (*Datastore)(nil)

// PrepareDSN prepares a raw DSN for use with SQLite, specifying defaults for journal mode
// and busy timeout, and turning on case sensitive LIKE, which pattern filters rely on.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}

		uri = uri[:i]
	}

	foundJournalMode := false
	foundBusyTimeout := false
	foundCaseSensitiveLike := false
	for _, val := range query["_pragma"] {
		switch {
		case strings.HasPrefix(val, "journal_mode"):
			foundJournalMode = true
		case strings.HasPrefix(val, "busy_timeout"):
			foundBusyTimeout = true
		case strings.HasPrefix(val, "case_sensitive_like"):
			foundCaseSensitiveLike = true
		}
	}

	if !foundJournalMode {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !foundBusyTimeout {
		query.Add("_pragma", "busy_timeout(100)")
	}
	if !foundCaseSensitiveLike {
		query.Add("_pragma", "case_sensitive_like(1)")
	}

	uri += "?" + query.Encode()

	return uri, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)

	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           sqlcommon.NewDBInfo(db, stbl, HandleSQLError, cfg, "EXPLAIN QUERY PLAN"),
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
	return dialect.NewSQLite()
}

// Query see [storage.Datastore].Query. The indexer may hold the write lock, so busy
// errors are retried.
func (s *Datastore) Query(ctx context.Context, stmt storage.Statement) ([]storage.Row, error) {
	ctx, span := startTrace(ctx, "Query")
	defer span.End()

	var rows []storage.Row
	err := busyRetry(func() error {
		var err error
		rows, err = sqlcommon.Query(ctx, s.dbInfo, stmt)
		return err
	})
	return rows, err
}

// Catalog see [storage.Datastore].Catalog.
func (s *Datastore) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	ctx, span := startTrace(ctx, "Catalog")
	defer span.End()

	return sqlcommon.BuildCatalog(ctx, s.dbInfo, s.cfg, introspection(s.stbl))
}

// Metadata see [storage.Datastore].Metadata.
func (s *Datastore) Metadata(ctx context.Context, table string) (map[string]json.RawMessage, error) {
	ctx, span := startTrace(ctx, "Metadata")
	defer span.End()

	return sqlcommon.ReadMetadata(ctx, s.dbInfo, s.Dialect(), "", table)
}

// IsReady see [sqlcommon.IsReady].
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	return sqlcommon.IsReady(ctx, s.db)
}

// introspection reads the schema through the pragma table valued functions. The schema
// name is ignored: one database file is one namespace.
func introspection(stbl sq.StatementBuilderType) sqlcommon.Introspection {
	tables := sq.And{
		sq.Eq{"m.type": "table"},
		sq.Expr("m.name NOT LIKE 'sqlite_%'"),
	}
	return sqlcommon.Introspection{
		Columns: stbl.
			Select("m.name", "p.name", "p.type", `CASE WHEN p."notnull" = 1 OR p.pk > 0 THEN 'NO' ELSE 'YES' END`).
			From("sqlite_master m").
			Join("pragma_table_info(m.name) p").
			Where(tables).
			OrderBy("m.name", "p.cid"),
		UniqueKeys: stbl.
			Select("il.name", "m.name", "CASE il.origin WHEN 'pk' THEN 'PRIMARY KEY' ELSE 'UNIQUE' END", "ii.name").
			From("sqlite_master m").
			Join("pragma_index_list(m.name) il").
			Join("pragma_index_info(il.name) ii").
			Where(tables).
			Where(sq.Eq{`il."unique"`: 1}).
			Where("ii.name IS NOT NULL").
			OrderBy("m.name", "il.name", "ii.seqno"),
		ForeignKeys: stbl.
			Select("m.name || '_' || f.id || '_fkey'", "m.name", `f."from"`, `f."table"`, `COALESCE(f."to", 'id')`).
			From("sqlite_master m").
			Join("pragma_foreign_key_list(m.name) f").
			Where(tables).
			OrderBy("m.name", "f.id", "f.seq"),
	}
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error) error {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code()&0xFF == sqlite3.SQLITE_INTERRUPT {
		return fmt.Errorf("%w: %w", storage.ErrQueryTimeout, err)
	}

	return sqlcommon.HandleSQLError(err)
}

// SQLite will return an SQLITE_BUSY error when the database is locked rather than waiting for the lock.
// This function retries the operation up to maxRetries times before returning the error.
func busyRetry(fn func() error) error {
	const maxRetries = 10
	for retries := 0; ; retries++ {
		err := fn()
		if err == nil {
			return nil
		}

		if isBusyError(err) {
			if retries < maxRetries {
				continue
			}

			return fmt.Errorf("sqlite busy error after %d retries: %w", maxRetries, err)
		}

		return err
	}
}

var busyErrors = map[int]struct{}{
	sqlite3.SQLITE_BUSY_RECOVERY:      {},
	sqlite3.SQLITE_BUSY_SNAPSHOT:      {},
	sqlite3.SQLITE_BUSY_TIMEOUT:       {},
	sqlite3.SQLITE_BUSY:               {},
	sqlite3.SQLITE_LOCKED_SHAREDCACHE: {},
	sqlite3.SQLITE_LOCKED:             {},
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	_, ok := busyErrors[sqliteErr.Code()]
	return ok
}
