// Package repository implements the winner engine's stores on a relational
// database: PostgreSQL through pgx or SQLite through modernc.org/sqlite.
//
// Timestamps are stored as unix milliseconds in both dialects.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/okian/spms/internal/domain/winners"
	"github.com/okian/spms/pkg/logger"
	"github.com/okian/spms/pkg/metrics"
)

// Supported driver names, matching config.DatabaseDriver.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
	connMaxLifetime     = time.Hour
)

// Store is the SQL-backed winner engine store.
type Store struct {
	db           *sql.DB
	dialect      dialect
	logger       logger.Logger
	now          func() time.Time
	maxOpenConns int
}

var _ winners.Store = (*Store)(nil)

// Open connects to the database, applies the embedded migrations and
// returns a ready Store. For sqlite, dsn is a file path.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: dsn is required", ErrInvalidArgument)
	}

	s := &Store{
		logger:       logger.Get().Named("repository"),
		now:          time.Now,
		maxOpenConns: defaultMaxOpenConns,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch driver {
	case DriverPostgres:
		s.dialect = postgres
	case DriverSQLite:
		s.dialect = sqlite
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}
	if s.dialect == sqlite {
		// One writer keeps SQLITE_BUSY out of concurrent resolutions.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
		db.SetMaxIdleConns(min(defaultMaxIdleConns, s.maxOpenConns))
		db.SetConnMaxLifetime(connMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", driver, err)
	}
	s.db = db

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s.logger.Info(ctx, "store opened", logger.String("driver", driver))
	return s, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// q adapts a query written with ? placeholders to the store's dialect.
func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

// observe starts timing op; the returned func records latency and failure
// from *errp. Not-found and conflict results are expected outcomes and are
// not counted as errors.
//
//	defer s.observe("get_quarter")(&err)
func (s *Store) observe(op string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		if isNotFound(err) || isConflict(err) {
			err = nil
		}
		metrics.RecordStoreQuery(op, float64(time.Since(start).Microseconds())/1000, err)
	}
}
